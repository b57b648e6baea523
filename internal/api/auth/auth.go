// Package auth authenticates API requests with tokens or session cookies.
package auth

import (
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/linkyapp/linky/internal/account"
	"github.com/linkyapp/linky/internal/api/models"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/database"
	"github.com/linkyapp/linky/internal/gravatar"
	"github.com/linkyapp/linky/internal/metrics"
)

const (
	// UserKey is the gin context key of the authenticated *database.User.
	UserKey = "user"
	// TokenKey is the gin context key of the API token used for the request, if any.
	TokenKey = "token"

	sessionUserID = "user_id"
	tokenScheme   = "Token"
)

// Provider authenticates requests against the account service.
type Provider struct {
	accounts *account.Service
	avatars  *gravatar.Resolver
	metrics  *metrics.Collector
}

// NewProvider creates a new auth provider. collector may be nil.
func NewProvider(accounts *account.Service, avatars *gravatar.Resolver, collector *metrics.Collector) *Provider {
	return &Provider{
		accounts: accounts,
		avatars:  avatars,
		metrics:  collector,
	}
}

// CurrentUser returns the authenticated user of the request.
func CurrentUser(c *gin.Context) *database.User {
	return c.MustGet(UserKey).(*database.User)
}

// RequireAuth accepts "Authorization: Token <key>" or a session cookie set by Login.
func (p *Provider) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if key, ok := tokenFromHeader(c.GetHeader("Authorization")); ok {
			user, err := p.accounts.ResolveToken(ctx, key)
			if err != nil {
				p.reject(c, "token", err)
				return
			}
			c.Set(TokenKey, key)
			c.Set(UserKey, user)
			c.Next()
			return
		}

		session := sessions.Default(c)
		userID, ok := session.Get(sessionUserID).(uint)
		if !ok {
			p.reject(c, "missing", apperr.ErrAuthentication)
			return
		}
		user, err := p.accounts.GetUser(ctx, userID)
		if err != nil || !user.IsActive {
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				log.Error("Failed to load session user", "error", err)
			}
			session.Clear()
			_ = session.Save()
			p.reject(c, "session", apperr.ErrAuthentication)
			return
		}

		c.Set(UserKey, user)
		c.Next()
	}
}

// RequirePermission aborts with 403 unless the authenticated user may perform action.
func (p *Provider) RequirePermission(action account.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := c.Get(UserKey)
		u, _ := user.(*database.User)
		if err := p.accounts.Authorize(u, action); err != nil {
			c.AbortWithStatusJSON(models.ToError(err))
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequirePermission for the user administration actions.
func (p *Provider) RequireAdmin() gin.HandlerFunc {
	return p.RequirePermission(account.ActionListUsers)
}

func (p *Provider) reject(c *gin.Context, reason string, err error) {
	if errors.Is(err, apperr.ErrAuthentication) {
		p.metrics.RecordAuthFailure(reason)
	} else {
		log.Error("Failed to authenticate request", "error", err)
	}
	c.AbortWithStatusJSON(models.ToError(err))
}

func tokenFromHeader(header string) (string, bool) {
	scheme, key, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, tokenScheme) {
		return "", false
	}
	key = strings.TrimSpace(key)
	return key, key != ""
}

func abortStatus(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}
