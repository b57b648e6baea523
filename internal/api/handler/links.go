package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/linkyapp/linky/internal/api/models"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/bookmarks"
	"github.com/linkyapp/linky/internal/database"
)

// ListLinks returns the links of the current user, or of every user with ?all=true.
func (h *Handler) ListLinks(c *gin.Context) {
	user := currentUser(c)

	all, _ := strconv.ParseBool(c.Query("all"))
	var (
		links []database.Link
		err   error
	)
	if all {
		links, err = h.bookmarks.ListAllLinks(c.Request.Context(), user)
	} else {
		links, err = h.bookmarks.ListLinks(c.Request.Context(), user)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ToLinks(links))
}

func (h *Handler) GetLink(c *gin.Context) {
	id, ok := idParam(c, "link")
	if !ok {
		return
	}

	link, err := h.bookmarks.GetLink(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ToLink(link))
}

func (h *Handler) CreateLink(c *gin.Context) {
	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.NewValidation("body", "Invalid request body."))
		return
	}

	link, err := h.bookmarks.CreateLink(c.Request.Context(), currentUser(c), bookmarks.LinkInput{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.metrics.RecordLinkCreated()

	c.JSON(http.StatusCreated, models.ToLink(link))
}

// UpdateLink applies a partial update. Fields missing from the body stay unchanged.
func (h *Handler) UpdateLink(c *gin.Context) {
	id, ok := idParam(c, "link")
	if !ok {
		return
	}

	var req models.UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.NewValidation("body", "Invalid request body."))
		return
	}

	link, err := h.bookmarks.UpdateLink(c.Request.Context(), currentUser(c), id, bookmarks.LinkUpdate{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Archived:    req.Archived,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ToLink(link))
}

func (h *Handler) DeleteLink(c *gin.Context) {
	id, ok := idParam(c, "link")
	if !ok {
		return
	}

	if err := h.bookmarks.DeleteLink(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.metrics.RecordLinkDeleted()

	c.Status(http.StatusNoContent)
}
