// Package api serves the JSON API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/linkyapp/linky/internal/account"
	"github.com/linkyapp/linky/internal/api/auth"
	"github.com/linkyapp/linky/internal/api/handler"
	"github.com/linkyapp/linky/internal/api/models"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/config"
	"github.com/linkyapp/linky/internal/gravatar"
	"github.com/linkyapp/linky/internal/metrics"
)

const (
	sessionName       = "linky_session"
	requestIDHeader   = "X-Request-ID"
	readHeaderTimeout = 10 * time.Second
)

type Server struct {
	cfg          *config.Config
	ginEngine    *gin.Engine
	httpServer   *http.Server
	authProvider *auth.Provider
	loginLimiter *auth.RateLimiter
	handler      *handler.Handler
	metrics      *metrics.Collector
}

// New creates the API server. svc.Metrics may be nil when metrics are disabled.
func New(cfg *config.Config, svc handler.Services, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	avatars, err := gravatar.New(cfg.Gravatar)
	if err != nil {
		return nil, fmt.Errorf("failed to create gravatar resolver: %w", err)
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	loginLimiter := auth.NewLoginRateLimiter(cfg.Auth)
	s := &Server{
		cfg:          cfg,
		ginEngine:    gin.New(),
		authProvider: auth.NewProvider(svc.Accounts, avatars, svc.Metrics),
		loginLimiter: loginLimiter,
		handler:      handler.New(svc, avatars, loginLimiter),
		metrics:      svc.Metrics,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(s.cfg.ServerURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions(sessionName, store))
}

func (s *Server) setupRoutes() {
	s.ginEngine.Use(gin.Recovery(), requestID(), requestLogger())
	if s.metrics != nil {
		s.ginEngine.Use(s.metrics.Middleware())
	}
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression))
	s.setupSession()

	h := s.handler
	a := s.authProvider

	s.ginEngine.GET("/healthz", h.Health)
	if s.metrics != nil {
		s.ginEngine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.ginEngine.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", a.Register)
	authGroup.POST("/login", s.loginLimiter.Middleware(), a.Login)
	authGroup.POST("/logout", a.RequireAuth(), a.Logout)

	protected := api.Group("/")
	protected.Use(a.RequireAuth())

	protected.GET("/users/me", h.Me)
	protected.GET("/users/:id", h.GetUser)

	protected.GET("/links", h.ListLinks)
	protected.POST("/links", h.CreateLink)
	protected.GET("/links/:id", h.GetLink)
	protected.PATCH("/links/:id", h.UpdateLink)
	protected.DELETE("/links/:id", h.DeleteLink)

	protected.GET("/settings", h.GetSettings)
	protected.PUT("/settings", h.UpdateSettings)

	s.setupAdminRoutes(protected)

	if s.cfg.Debug {
		s.ginEngine.Static("/static", s.cfg.StaticDir)
	}
	s.ginEngine.NoRoute(s.noRoute)
}

func (s *Server) setupAdminRoutes(protected *gin.RouterGroup) {
	h := s.handler
	a := s.authProvider

	usersGroup := protected.Group("/users")
	usersGroup.GET("", a.RequireAdmin(), h.ListUsers)
	usersGroup.PATCH("/:id", a.RequirePermission(account.ActionChangeUser), h.UpdateUser)
	usersGroup.DELETE("/:id", a.RequirePermission(account.ActionDeleteUser), h.DeleteUser)

	adminGroup := protected.Group("/admin")
	adminGroup.Use(a.RequirePermission(account.ActionManageServer))
	adminGroup.GET("/status", h.ServerStatus)
	adminGroup.POST("/jobs/:id/run", h.RunJob)
	adminGroup.DELETE("/cache/tokens", h.ClearTokenCache)
}

// noRoute serves the development front end in debug mode. API paths and
// release mode get a JSON 404.
func (s *Server) noRoute(c *gin.Context) {
	path := c.Request.URL.Path
	if s.cfg.Debug && c.Request.Method == http.MethodGet && !strings.HasPrefix(path, "/api/") {
		c.File(filepath.Join(s.cfg.StaticDir, "index.html"))
		return
	}
	c.JSON(models.ToError(apperr.NotFound("route", path)))
}

// Handler returns the http.Handler of the server.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	log.Info("Starting API server", "listen", s.cfg.Listen)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}
