package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/linkyapp/linky/internal/api/models"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/scheduler"
)

// ServerStatus reports the permission mode, the login limiter, the token cache and the background jobs.
func (h *Handler) ServerStatus(c *gin.Context) {
	status := models.ServerStatus{
		AllowAllPermissions: h.accounts.AllowsAllPermissions(),
		Jobs:                []models.Job{},
	}
	if h.limiter != nil {
		status.LoginClients = h.limiter.Len()
	}
	if h.tokens != nil {
		status.TokenCache = models.ToCacheStats(h.tokens.Stats())
	}
	if h.jobs != nil {
		status.Jobs = models.ToJobs(h.jobs.Jobs())
	}
	c.JSON(http.StatusOK, status)
}

// RunJob triggers a background job and returns its state.
func (h *Handler) RunJob(c *gin.Context) {
	id := c.Param("id")
	if h.jobs == nil {
		respondError(c, apperr.NotFound("job", id))
		return
	}

	if err := h.jobs.RunJobNow(id); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			respondError(c, apperr.NotFound("job", id))
			return
		}
		respondError(c, err)
		return
	}

	info, ok := h.jobs.GetJob(id)
	if !ok {
		respondError(c, apperr.NotFound("job", id))
		return
	}
	log.Info("Job triggered", "id", id, "user", currentUser(c).ID)
	c.JSON(http.StatusAccepted, models.ToJob(info))
}

// ClearTokenCache evicts every cached token. Tokens are resolved from the database again afterwards.
func (h *Handler) ClearTokenCache(c *gin.Context) {
	if h.tokens != nil {
		h.tokens.Clear(c.Request.Context())
	}
	c.Status(http.StatusNoContent)
}
