// Package account manages users, their credentials and API tokens.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/cache"
	"github.com/linkyapp/linky/internal/config"
	"github.com/linkyapp/linky/internal/database"
	"gorm.io/gorm"
)

// tokenBytes is the number of random bytes in an API token, hex encoded to 40 characters.
const tokenBytes = 20

// Service implements registration, authentication and token handling.
type Service struct {
	db     database.DB
	hasher Hasher
	tokens *cache.TokenCache
	policy *Policy
	cfg    *config.AuthConfig

	validate *validator.Validate
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// New creates a new account service. tokens may be nil, in which case every
// token lookup goes to the database.
func New(db database.DB, hasher Hasher, tokens *cache.TokenCache, cfg *config.AuthConfig) *Service {
	if cfg == nil {
		cfg = &config.AuthConfig{}
	}
	return &Service{
		db:       db,
		hasher:   hasher,
		tokens:   tokens,
		policy:   NewPolicy(cfg.AllowAllPermissions),
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
	}
}

// HasPermission reports whether user may perform action.
func (s *Service) HasPermission(user *database.User, action Action) bool {
	return s.policy.HasPermission(user, action)
}

// AllowsAllPermissions reports whether every permission check passes.
func (s *Service) AllowsAllPermissions() bool {
	return s.policy.AllowsAll()
}

// Authorize returns apperr.ErrPermission if user may not perform action.
func (s *Service) Authorize(user *database.User, action Action) error {
	if !s.HasPermission(user, action) {
		return fmt.Errorf("%s: %w", action, apperr.ErrPermission)
	}
	return nil
}

// CreateUser registers a new active, non-admin user.
func (s *Service) CreateUser(ctx context.Context, email, password string) (*database.User, error) {
	return s.createUser(ctx, email, password, false)
}

// CreateSuperuser registers a user with the admin and superuser flags set.
func (s *Service) CreateSuperuser(ctx context.Context, email, password string) (*database.User, error) {
	return s.createUser(ctx, email, password, true)
}

func (s *Service) createUser(ctx context.Context, email, password string, superuser bool) (*database.User, error) {
	email = NormalizeEmail(email)

	verr := &apperr.ValidationError{}
	switch {
	case email == "":
		verr.Add("email", "This field is required.")
	case s.validate.Var(email, "email") != nil:
		verr.Add("email", "Enter a valid email address.")
	}
	if password == "" {
		verr.Add("password", "This field is required.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	credential, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, apperr.NewValidation("password", "Ensure this field has no more than 72 bytes.")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.db.CreateUser(ctx, email, credential, superuser)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperr.NewValidation("email", "User with this email already exists.")
		}
		return nil, err
	}

	log.Info("Created user", "id", user.ID, "email", user.Email, "superuser", superuser)
	return user, nil
}

// Authenticate returns the active user matching email and password.
// Unknown emails, wrong passwords and inactive accounts all yield apperr.ErrAuthentication.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*database.User, error) {
	user, err := s.db.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// spend the same time as a real check
		s.hasher.Verify(s.dummyCredential(), password)
		return nil, apperr.ErrAuthentication
	}

	if !s.hasher.Verify(user.Password, password) || !user.IsActive {
		return nil, apperr.ErrAuthentication
	}
	return user, nil
}

func (s *Service) dummyCredential() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("linky-dummy-password")
		if err != nil {
			log.Warn("failed to create dummy credential", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// IssueToken creates a new API token for user.
func (s *Service) IssueToken(ctx context.Context, user *database.User) (*database.Token, error) {
	key, err := generateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	token := &database.Token{
		Key:    key,
		UserID: user.ID,
	}
	if s.cfg.TokenTTL > 0 {
		expiresAt := s.now().Add(s.cfg.TokenTTL)
		token.ExpiresAt = &expiresAt
	}

	if err := s.db.CreateToken(ctx, token); err != nil {
		return nil, err
	}
	if s.tokens != nil {
		s.tokens.Set(ctx, key, cache.CachedToken{UserID: token.UserID, ExpiresAt: token.ExpiresAt})
	}
	return token, nil
}

// ResolveToken returns the active user owning the token key.
func (s *Service) ResolveToken(ctx context.Context, key string) (*database.User, error) {
	if key == "" {
		return nil, apperr.ErrAuthentication
	}

	cached, ok := s.cachedToken(ctx, key)
	if !ok {
		token, err := s.db.GetToken(ctx, key)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.ErrAuthentication
			}
			return nil, err
		}
		cached = cache.CachedToken{UserID: token.UserID, ExpiresAt: token.ExpiresAt}
		if s.tokens != nil {
			s.tokens.Set(ctx, key, cached)
		}
	}

	if cached.ExpiresAt != nil && !s.now().Before(*cached.ExpiresAt) {
		if s.tokens != nil {
			s.tokens.Delete(ctx, key)
		}
		return nil, apperr.ErrAuthentication
	}

	// the user is always loaded so that deactivation applies immediately
	user, err := s.db.GetUserByID(ctx, cached.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrAuthentication
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.ErrAuthentication
	}
	return user, nil
}

func (s *Service) cachedToken(ctx context.Context, key string) (cache.CachedToken, bool) {
	if s.tokens == nil {
		return cache.CachedToken{}, false
	}
	return s.tokens.Get(ctx, key)
}

// RevokeToken deletes the token key. Revoking an unknown token is not an error.
func (s *Service) RevokeToken(ctx context.Context, key string) error {
	if s.tokens != nil {
		s.tokens.Delete(ctx, key)
	}
	return s.db.DeleteToken(ctx, key)
}

// PurgeExpiredTokens deletes all expired tokens.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.db.DeleteExpiredTokens(ctx, s.now())
}

func (s *Service) GetUser(ctx context.Context, id uint) (*database.User, error) {
	user, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	email = NormalizeEmail(email)
	user, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]database.User, error) {
	return s.db.GetAllUsers(ctx)
}

// UpdateUser changes the active and admin flags of a user.
func (s *Service) UpdateUser(ctx context.Context, id uint, flags database.UserFlags) (*database.User, error) {
	user, err := s.db.UpdateUserFlags(ctx, id, flags)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return user, nil
}

// DeleteUser removes a user with its settings, links and tokens.
func (s *Service) DeleteUser(ctx context.Context, id uint) error {
	if err := s.db.DeleteUser(ctx, id); err != nil {
		return notFound(err, "user", id)
	}
	log.Info("Deleted user", "id", id)
	return nil
}

// NormalizeEmail trims the address and lower-cases its domain part.
// The local part is kept as entered.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

func generateKey() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func notFound(err error, kind string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(kind, id)
	}
	return err
}
