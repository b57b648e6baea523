package handler

import (
	"net/http"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/linkyapp/linky/internal/account"
	"github.com/linkyapp/linky/internal/api/auth"
	"github.com/linkyapp/linky/internal/api/models"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/bookmarks"
	"github.com/linkyapp/linky/internal/cache"
	"github.com/linkyapp/linky/internal/database"
	"github.com/linkyapp/linky/internal/gravatar"
	"github.com/linkyapp/linky/internal/metrics"
	"github.com/linkyapp/linky/internal/scheduler"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping() error
}

// JobRunner exposes the background jobs of the server.
type JobRunner interface {
	Jobs() []scheduler.JobInfo
	GetJob(id string) (scheduler.JobInfo, bool)
	RunJobNow(id string) error
}

// ClientCounter reports how many clients a rate limiter tracks.
type ClientCounter interface {
	Len() int
}

// Services holds the components the handlers work with.
// Tokens, Jobs and Metrics may be nil.
type Services struct {
	Accounts  *account.Service
	Bookmarks *bookmarks.Service
	DB        Pinger
	Tokens    *cache.TokenCache
	Jobs      JobRunner
	Metrics   *metrics.Collector
}

type Handler struct {
	accounts  *account.Service
	bookmarks *bookmarks.Service
	db        Pinger
	tokens    *cache.TokenCache
	jobs      JobRunner
	avatars   *gravatar.Resolver
	limiter   ClientCounter
	metrics   *metrics.Collector
}

func New(svc Services, avatars *gravatar.Resolver, limiter ClientCounter) *Handler {
	return &Handler{
		accounts:  svc.Accounts,
		bookmarks: svc.Bookmarks,
		db:        svc.DB,
		tokens:    svc.Tokens,
		jobs:      svc.Jobs,
		avatars:   avatars,
		limiter:   limiter,
		metrics:   svc.Metrics,
	}
}

// Health reports whether the server can reach its database.
func (h *Handler) Health(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		log.Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "database unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func parseUintParam(param string) (uint, error) {
	id, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.ToUint(id)
}

// idParam parses the :id path parameter. On failure it writes the error response.
func idParam(c *gin.Context, kind string) (uint, bool) {
	raw := c.Param("id")
	id, err := parseUintParam(raw)
	if err != nil {
		// an id that cannot exist cannot be found either
		c.JSON(models.ToError(apperr.NotFound(kind, raw)))
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	status, body := models.ToError(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

func currentUser(c *gin.Context) *database.User {
	return auth.CurrentUser(c)
}
