package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkyapp/linky/internal/api/models"
	"github.com/linkyapp/linky/internal/apperr"
)

// GetSettings returns the settings of the current user, or the defaults if none were saved.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.bookmarks.GetSettings(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSettings(settings))
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req models.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.NewValidation("body", "Invalid request body."))
		return
	}

	settings, err := h.bookmarks.UpdateSettings(c.Request.Context(), currentUser(c), req.Background)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSettings(settings))
}
