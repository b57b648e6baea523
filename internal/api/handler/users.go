package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkyapp/linky/internal/account"
	"github.com/linkyapp/linky/internal/api/models"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/database"
	"github.com/samber/lo"
)

// Me returns the current user with its links.
func (h *Handler) Me(c *gin.Context) {
	user := currentUser(c)

	links, err := h.bookmarks.ListLinks(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ToUser(user, links, h.avatars))
}

// ListUsers returns every user with its links.
func (h *Handler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	users, err := h.accounts.ListUsers(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	links, err := h.bookmarks.ListAllLinks(ctx, user)
	if err != nil {
		respondError(c, err)
		return
	}
	linksByUser := lo.GroupBy(links, func(l database.Link) uint { return l.UserID })

	c.JSON(http.StatusOK, models.ToUsers(users, linksByUser, h.avatars))
}

// GetUser returns a user. Users may always look up themselves.
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := idParam(c, "user")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	current := currentUser(c)

	if id == current.ID {
		h.Me(c)
		return
	}
	if err := h.accounts.Authorize(current, account.ActionListUsers); err != nil {
		respondError(c, err)
		return
	}

	user, err := h.accounts.GetUser(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	links, err := h.linksOf(ctx, current, user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ToUser(user, links, h.avatars))
}

// UpdateUser changes the active and admin flags of a user.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c, "user")
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.NewValidation("body", "Invalid request body."))
		return
	}

	ctx := c.Request.Context()
	user, err := h.accounts.UpdateUser(ctx, id, database.UserFlags{
		IsActive: req.IsActive,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	links, err := h.linksOf(ctx, currentUser(c), user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ToUser(user, links, h.avatars))
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c, "user")
	if !ok {
		return
	}

	if err := h.accounts.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// linksOf returns the links of user as seen by current.
func (h *Handler) linksOf(ctx context.Context, current, user *database.User) ([]database.Link, error) {
	if current.ID == user.ID {
		return h.bookmarks.ListLinks(ctx, user)
	}
	all, err := h.bookmarks.ListAllLinks(ctx, current)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(l database.Link, _ int) bool { return l.UserID == user.ID }), nil
}
