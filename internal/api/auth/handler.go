package auth

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/linkyapp/linky/internal/api/models"
	"github.com/linkyapp/linky/internal/apperr"
)

// Register creates a new account.
func (p *Provider) Register(c *gin.Context) {
	var req models.Credentials
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(models.ToError(apperr.NewValidation("body", "Invalid request body.")))
		return
	}

	user, err := p.accounts.CreateUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(models.ToError(err))
		return
	}
	p.metrics.RecordUserCreated()

	c.JSON(http.StatusCreated, models.ToUser(user, nil, p.avatars))
}

// Login checks the credentials, issues an API token and starts a session.
func (p *Provider) Login(c *gin.Context) {
	var req models.Credentials
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(models.ToError(apperr.NewValidation("body", "Invalid request body.")))
		return
	}

	ctx := c.Request.Context()
	user, err := p.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthentication) {
			p.metrics.RecordAuthFailure("login")
			log.Debug("Rejected login", "email", req.Email, "ip", c.ClientIP())
		}
		c.JSON(models.ToError(err))
		return
	}

	token, err := p.accounts.IssueToken(ctx, user)
	if err != nil {
		c.JSON(models.ToError(err))
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserID, user.ID)
	if err := session.Save(); err != nil {
		log.Error("Failed to save session", "error", err)
		c.JSON(models.ToError(err))
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Success:   true,
		Token:     token.Key,
		ExpiresAt: token.ExpiresAt,
		User:      models.ToUser(user, nil, p.avatars),
	})
}

// Logout revokes the token of the request and clears the session.
func (p *Provider) Logout(c *gin.Context) {
	if key := c.GetString(TokenKey); key != "" {
		if err := p.accounts.RevokeToken(c.Request.Context(), key); err != nil {
			c.JSON(models.ToError(err))
			return
		}
	}

	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		log.Error("Failed to clear session", "error", err)
		c.JSON(models.ToError(err))
		return
	}

	c.Status(http.StatusNoContent)
}
