package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkyapp/linky/internal/account"
	"github.com/linkyapp/linky/internal/api/handler"
	"github.com/linkyapp/linky/internal/api/models"
	"github.com/linkyapp/linky/internal/bookmarks"
	"github.com/linkyapp/linky/internal/cache"
	"github.com/linkyapp/linky/internal/config"
	"github.com/linkyapp/linky/internal/database"
	"github.com/linkyapp/linky/internal/metrics"
	"github.com/linkyapp/linky/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type APITestSuite struct {
	suite.Suite
	cfg      *config.Config
	db       *database.Client
	accounts *account.Service
	tokens   *cache.TokenCache
	sched    *scheduler.Scheduler
	jobRuns  atomic.Int32
	server   *Server
	router   http.Handler
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	dir := s.T().TempDir()

	s.cfg = &config.Config{
		Listen:        "127.0.0.1:0",
		Debug:         true,
		ServerURL:     "http://localhost:8000",
		StaticDir:     dir,
		SessionKey:    "test-secret-key",
		SessionMaxAge: 3600,
		Database:      &config.DatabaseConfig{Driver: config.DatabaseDriverSQLite, Path: filepath.Join(dir, "linky.db")},
		Auth:          &config.AuthConfig{TokenTTL: time.Hour, LoginRateLimit: 600, LoginBurst: 100},
		Cache:         &config.CacheConfig{Type: config.CacheTypeMemory, TTL: time.Minute},
		Scheduler:     &config.SchedulerConfig{},
		Metrics:       &config.MetricsConfig{Enabled: true},
		Gravatar:      &config.GravatarConfig{Enabled: true, DefaultImage: "identicon"},
	}
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>linky</html>"), 0o600))

	db, err := database.New(s.cfg.Database)
	s.Require().NoError(err)
	s.db = db

	s.tokens = cache.NewTokenCache(s.cfg.Cache)
	s.accounts = account.New(db, &account.BcryptHasher{Cost: bcrypt.MinCost}, s.tokens, s.cfg.Auth)

	s.jobRuns.Store(0)
	s.sched, err = scheduler.New()
	s.Require().NoError(err)
	s.Require().NoError(s.sched.AddSingletonJob("count", "Count runs", time.Hour, func(ctx context.Context) error {
		s.jobRuns.Add(1)
		return nil
	}))
	s.sched.Start()

	s.server, err = New(s.cfg, s.services(metrics.NewCollector(prometheus.NewRegistry())), true)
	s.Require().NoError(err)
	s.router = s.server.Handler()
}

func (s *APITestSuite) services(collector *metrics.Collector) handler.Services {
	return handler.Services{
		Accounts:  s.accounts,
		Bookmarks: bookmarks.New(s.db, s.accounts),
		DB:        s.db,
		Tokens:    s.tokens,
		Jobs:      s.sched,
		Metrics:   collector,
	}
}

func (s *APITestSuite) TearDownTest() {
	s.NoError(s.sched.Stop())
	s.NoError(s.db.Close())
}

func (s *APITestSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v))
}

func (s *APITestSuite) login(email, password string) string {
	w := s.do(http.MethodPost, "/api/auth/login", "", models.Credentials{Email: email, Password: password})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp models.LoginResponse
	s.decode(w, &resp)
	s.Require().Len(resp.Token, 40)
	return resp.Token
}

func (s *APITestSuite) register(email, password string) string {
	w := s.do(http.MethodPost, "/api/auth/register", "", models.Credentials{Email: email, Password: password})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.login(email, password)
}

func (s *APITestSuite) superuser(email, password string) string {
	_, err := s.accounts.CreateSuperuser(context.Background(), email, password)
	s.Require().NoError(err)
	return s.login(email, password)
}

func (s *APITestSuite) createLink(token, title, url string) models.Link {
	w := s.do(http.MethodPost, "/api/links", token, models.CreateLinkRequest{Title: title, URL: url, Description: "d"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var link models.Link
	s.decode(w, &link)
	return link
}

func (s *APITestSuite) TestRegister() {
	w := s.do(http.MethodPost, "/api/auth/register", "", models.Credentials{Email: "alice@example.com", Password: "pw"})
	s.Equal(http.StatusCreated, w.Code)

	var user models.User
	s.decode(w, &user)
	s.Equal("alice@example.com", user.Email)
	s.True(user.IsActive)
	s.False(user.IsAdmin)
	s.Equal(time.Now().Format(models.DateFormat), user.Created)
	s.NotEmpty(user.Avatar)
	s.NotContains(w.Body.String(), "password")

	w = s.do(http.MethodPost, "/api/auth/register", "", models.Credentials{Email: "alice@example.com", Password: "pw"})
	s.Equal(http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	s.decode(w, &resp)
	s.Equal("validation_error", resp.Code)
	s.Contains(resp.Fields, "email")

	w = s.do(http.MethodPost, "/api/auth/register", "", models.Credentials{Email: "", Password: "pw"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestLogin_InvalidCredentials() {
	s.register("alice@example.com", "pw")

	w := s.do(http.MethodPost, "/api/auth/login", "", models.Credentials{Email: "alice@example.com", Password: "wrong"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", models.Credentials{Email: "nobody@example.com", Password: "pw"})
	s.Equal(http.StatusUnauthorized, w.Code)

	var resp models.ErrorResponse
	s.decode(w, &resp)
	s.Equal("authentication_error", resp.Code)
}

func (s *APITestSuite) TestRequiresAuthentication() {
	for _, path := range []string{"/api/links", "/api/settings", "/api/users/me", "/api/users"} {
		w := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusUnauthorized, w.Code, path)
	}

	w := s.do(http.MethodGet, "/api/links", "not-a-token", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestLinkLifecycle() {
	token := s.register("alice@example.com", "pw")

	link := s.createLink(token, "Ex", "https://example.com")
	s.NotZero(link.ID)
	s.Equal("Ex", link.Title)
	s.Equal("https://example.com", link.URL)
	s.False(link.Archived)

	w := s.do(http.MethodGet, "/api/links", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotContains(w.Body.String(), "description")
	var links []models.Link
	s.decode(w, &links)
	s.Len(links, 1)

	w = s.do(http.MethodPatch, "/api/links/"+itoa(link.ID), token, map[string]any{"archived": true})
	s.Equal(http.StatusOK, w.Code)
	var updated models.Link
	s.decode(w, &updated)
	s.True(updated.Archived)
	s.Equal("Ex", updated.Title)

	w = s.do(http.MethodGet, "/api/links/"+itoa(link.ID), token, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/api/links/"+itoa(link.ID), token, nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodDelete, "/api/links/"+itoa(link.ID), token, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestCreateLink_Invalid() {
	token := s.register("alice@example.com", "pw")

	w := s.do(http.MethodPost, "/api/links", token, models.CreateLinkRequest{Title: "t", URL: "not a url"})
	s.Equal(http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	s.decode(w, &resp)
	s.Contains(resp.Fields, "url")
}

func (s *APITestSuite) TestLinksAreIsolated() {
	alice := s.register("alice@example.com", "pw")
	bob := s.register("bob@example.com", "pw")
	link := s.createLink(alice, "Ex", "https://example.com")

	w := s.do(http.MethodGet, "/api/links", bob, nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, w.Body.String())

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		w = s.do(method, "/api/links/"+itoa(link.ID), bob, map[string]any{"title": "stolen"})
		s.Equal(http.StatusNotFound, w.Code, method)
	}

	// an invalid update of a foreign link is not found, not a validation error
	w = s.do(http.MethodPatch, "/api/links/"+itoa(link.ID), bob, map[string]any{"url": "nope"})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/links/abc", alice, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestLinkText_RoundTrip() {
	token := s.register("alice@example.com", "pw")

	link := s.createLink(token, "x &lt;y&gt; & 1 < 2", "https://example.com")
	w := s.do(http.MethodGet, "/api/links/"+itoa(link.ID), token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var fetched models.Link
	s.decode(w, &fetched)
	s.Equal("x &lt;y&gt; & 1 < 2", fetched.Title)

	w = s.do(http.MethodPost, "/api/links", token, models.CreateLinkRequest{Title: "Use <div> tags", URL: "https://example.com"})
	s.Equal(http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	s.decode(w, &resp)
	s.Contains(resp.Fields, "title")
}

func (s *APITestSuite) TestAllLinks_AdminOnly() {
	alice := s.register("alice@example.com", "pw")
	root := s.superuser("root@example.com", "pw")
	s.createLink(alice, "Ex", "https://example.com")

	w := s.do(http.MethodGet, "/api/links?all=true", alice, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/links?all=true", root, nil)
	s.Equal(http.StatusOK, w.Code)
	var links []models.Link
	s.decode(w, &links)
	s.Len(links, 1)
}

func (s *APITestSuite) TestSettings() {
	token := s.register("alice@example.com", "pw")

	w := s.do(http.MethodGet, "/api/settings", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"background":"bright"}`, w.Body.String())

	w = s.do(http.MethodPut, "/api/settings", token, models.SettingsRequest{Background: "neon"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/settings", token, models.SettingsRequest{Background: "dark"})
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/settings", token, nil)
	var settings models.Settings
	s.decode(w, &settings)
	s.Equal("dark", settings.Background)
	s.NotEmpty(settings.LastUpdated)
}

func (s *APITestSuite) TestUsers() {
	alice := s.register("alice@example.com", "pw")
	root := s.superuser("root@example.com", "pw")
	s.createLink(alice, "Ex", "https://example.com")

	w := s.do(http.MethodGet, "/api/users/me", alice, nil)
	s.Equal(http.StatusOK, w.Code)
	var me models.User
	s.decode(w, &me)
	s.Equal("alice@example.com", me.Email)
	s.Len(me.Links, 1)

	w = s.do(http.MethodGet, "/api/users", alice, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/users", root, nil)
	s.Equal(http.StatusOK, w.Code)
	var users []models.User
	s.decode(w, &users)
	s.Len(users, 2)

	// a user may always fetch itself
	w = s.do(http.MethodGet, "/api/users/"+itoa(me.ID), alice, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/users/"+itoa(me.ID), root, nil)
	s.Equal(http.StatusOK, w.Code)
	var fetched models.User
	s.decode(w, &fetched)
	s.Len(fetched.Links, 1)

	w = s.do(http.MethodDelete, "/api/users/"+itoa(me.ID), alice, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/api/users/"+itoa(me.ID), root, nil)
	s.Equal(http.StatusNoContent, w.Code)

	// the token of a deleted user is gone
	w = s.do(http.MethodGet, "/api/users/me", alice, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodDelete, "/api/users/"+itoa(me.ID), root, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestDeactivatedUserIsRejected() {
	alice := s.register("alice@example.com", "pw")
	root := s.superuser("root@example.com", "pw")

	w := s.do(http.MethodGet, "/api/users/me", alice, nil)
	var me models.User
	s.decode(w, &me)

	w = s.do(http.MethodPatch, "/api/users/"+itoa(me.ID), root, map[string]any{"is_active": false})
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/links", alice, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", models.Credentials{Email: "alice@example.com", Password: "pw"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestLogout() {
	token := s.register("alice@example.com", "pw")

	w := s.do(http.MethodPost, "/api/auth/logout", token, nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/links", token, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestSessionCookie() {
	s.register("alice@example.com", "pw")

	w := s.do(http.MethodPost, "/api/auth/login", "", models.Credentials{Email: "alice@example.com", Password: "pw"})
	s.Require().Equal(http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	s.Require().NotEmpty(cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)
}

func (s *APITestSuite) TestDevFallback() {
	w := s.do(http.MethodGet, "/some/front/end/route", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "linky")

	w = s.do(http.MethodGet, "/api/unknown", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
	var resp models.ErrorResponse
	s.decode(w, &resp)
	s.Equal("not_found", resp.Code)
}

func (s *APITestSuite) TestNoFallbackInReleaseMode() {
	s.cfg.Debug = false
	server, err := New(s.cfg, s.services(nil), true)
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodGet, "/some/front/end/route", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	s.Equal(http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestHealthAndMetrics() {
	w := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "linky_http_requests_total")
}

func (s *APITestSuite) TestLoginRateLimit() {
	s.cfg.Auth.LoginRateLimit = 1
	s.cfg.Auth.LoginBurst = 2
	server, err := New(s.cfg, s.services(nil), true)
	s.Require().NoError(err)

	var codes []int
	for range 3 {
		body, _ := json.Marshal(models.Credentials{Email: "nobody@example.com", Password: "pw"})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	s.Equal([]int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (s *APITestSuite) TestAdminStatus() {
	alice := s.register("alice@example.com", "pw")
	root := s.superuser("root@example.com", "pw")

	w := s.do(http.MethodGet, "/api/admin/status", alice, nil)
	s.Equal(http.StatusForbidden, w.Code)

	// resolve the token once more so the cache sees a hit
	s.do(http.MethodGet, "/api/users/me", root, nil)

	w = s.do(http.MethodGet, "/api/admin/status", root, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var status models.ServerStatus
	s.decode(w, &status)
	s.False(status.AllowAllPermissions)
	s.Equal(1, status.LoginClients)
	s.Require().NotNil(status.TokenCache)
	s.Equal("tokens", status.TokenCache.Name)
	s.Equal("memory", status.TokenCache.Type)
	s.Positive(status.TokenCache.Hits)
	s.Require().Len(status.Jobs, 1)
	s.Equal("count", status.Jobs[0].ID)
	s.Equal("scheduled", status.Jobs[0].Status)
}

func (s *APITestSuite) TestAdminRunJob() {
	alice := s.register("alice@example.com", "pw")
	root := s.superuser("root@example.com", "pw")

	w := s.do(http.MethodPost, "/api/admin/jobs/count/run", alice, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/admin/jobs/missing/run", root, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/admin/jobs/count/run", root, nil)
	s.Require().Equal(http.StatusAccepted, w.Code)
	var job models.Job
	s.decode(w, &job)
	s.Equal("count", job.ID)

	s.Eventually(func() bool {
		info, ok := s.sched.GetJob("count")
		return ok && info.Status == scheduler.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	s.Equal(int32(1), s.jobRuns.Load())
}

func (s *APITestSuite) TestAdminClearTokenCache() {
	alice := s.register("alice@example.com", "pw")
	root := s.superuser("root@example.com", "pw")

	w := s.do(http.MethodDelete, "/api/admin/cache/tokens", alice, nil)
	s.Equal(http.StatusForbidden, w.Code)

	_, cached := s.tokens.Get(context.Background(), alice)
	s.True(cached)

	w = s.do(http.MethodDelete, "/api/admin/cache/tokens", root, nil)
	s.Equal(http.StatusNoContent, w.Code)

	_, cached = s.tokens.Get(context.Background(), alice)
	s.False(cached)

	// tokens still resolve through the database
	w = s.do(http.MethodGet, "/api/users/me", alice, nil)
	s.Equal(http.StatusOK, w.Code)
}
