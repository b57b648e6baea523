package account

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/cache"
	"github.com/linkyapp/linky/internal/config"
	"github.com/linkyapp/linky/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type AccountTestSuite struct {
	suite.Suite
	db      *database.Client
	service *Service
	ctx     context.Context
}

func (s *AccountTestSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := database.New(&config.DatabaseConfig{
		Driver: config.DatabaseDriverSQLite,
		Path:   filepath.Join(s.T().TempDir(), "linky.db"),
	})
	s.Require().NoError(err)
	s.db = db

	tokens := cache.NewTokenCache(&config.CacheConfig{Type: config.CacheTypeMemory, TTL: time.Minute})
	s.service = New(db, &BcryptHasher{Cost: bcrypt.MinCost}, tokens, &config.AuthConfig{TokenTTL: time.Hour})
}

func (s *AccountTestSuite) TearDownTest() {
	s.NoError(s.db.Close())
}

func (s *AccountTestSuite) TestCreateUserThenAuthenticate() {
	user, err := s.service.CreateUser(s.ctx, "alice@example.com", "s3cret")
	s.Require().NoError(err)
	s.True(user.IsActive)
	s.False(user.IsAdmin)
	s.False(user.IsSuperuser)
	s.NotEqual("s3cret", user.Password)

	authed, err := s.service.Authenticate(s.ctx, "alice@example.com", "s3cret")
	s.Require().NoError(err)
	s.Equal("alice@example.com", authed.Email)
	s.Equal(user.ID, authed.ID)
}

func (s *AccountTestSuite) TestCreateUser_Validation() {
	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{name: "empty email", email: "", password: "pw", field: "email"},
		{name: "blank email", email: "   ", password: "pw", field: "email"},
		{name: "malformed email", email: "not-an-email", password: "pw", field: "email"},
		{name: "empty password", email: "bob@example.com", password: "", field: "password"},
		{name: "password too long", email: "bob@example.com", password: strings.Repeat("x", 73), field: "password"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.CreateUser(s.ctx, tt.email, tt.password)
			s.Require().Error(err)

			var verr *apperr.ValidationError
			s.Require().ErrorAs(err, &verr)
			s.Contains(verr.Fields, tt.field)
		})
	}
}

func (s *AccountTestSuite) TestCreateUser_Duplicate() {
	_, err := s.service.CreateUser(s.ctx, "alice@example.com", "pw")
	s.Require().NoError(err)

	_, err = s.service.CreateUser(s.ctx, "alice@example.com", "other")
	s.True(apperr.IsValidation(err))

	// the domain is case insensitive
	_, err = s.service.CreateUser(s.ctx, "alice@EXAMPLE.com", "other")
	s.True(apperr.IsValidation(err))
}

func (s *AccountTestSuite) TestCreateSuperuser() {
	user, err := s.service.CreateSuperuser(s.ctx, "root@example.com", "pw")
	s.Require().NoError(err)
	s.True(user.IsActive)
	s.True(user.IsAdmin)
	s.True(user.IsSuperuser)

	_, err = s.service.CreateSuperuser(s.ctx, "", "pw")
	s.True(apperr.IsValidation(err))
}

func (s *AccountTestSuite) TestAuthenticate_Failures() {
	user, err := s.service.CreateUser(s.ctx, "alice@example.com", "pw")
	s.Require().NoError(err)

	_, err = s.service.Authenticate(s.ctx, "alice@example.com", "wrong")
	s.ErrorIs(err, apperr.ErrAuthentication)

	_, err = s.service.Authenticate(s.ctx, "nobody@example.com", "pw")
	s.ErrorIs(err, apperr.ErrAuthentication)

	inactive := false
	_, err = s.service.UpdateUser(s.ctx, user.ID, database.UserFlags{IsActive: &inactive})
	s.Require().NoError(err)

	_, err = s.service.Authenticate(s.ctx, "alice@example.com", "pw")
	s.ErrorIs(err, apperr.ErrAuthentication)
}

func (s *AccountTestSuite) TestAuthenticate_NormalizesEmail() {
	_, err := s.service.CreateUser(s.ctx, " alice@Example.COM ", "pw")
	s.Require().NoError(err)

	user, err := s.service.Authenticate(s.ctx, "alice@example.com", "pw")
	s.Require().NoError(err)
	s.Equal("alice@example.com", user.Email)
}

func (s *AccountTestSuite) TestTokens() {
	user, err := s.service.CreateUser(s.ctx, "alice@example.com", "pw")
	s.Require().NoError(err)

	token, err := s.service.IssueToken(s.ctx, user)
	s.Require().NoError(err)
	s.Len(token.Key, 40)
	s.Require().NotNil(token.ExpiresAt)

	resolved, err := s.service.ResolveToken(s.ctx, token.Key)
	s.Require().NoError(err)
	s.Equal(user.ID, resolved.ID)

	_, err = s.service.ResolveToken(s.ctx, "unknown")
	s.ErrorIs(err, apperr.ErrAuthentication)
	_, err = s.service.ResolveToken(s.ctx, "")
	s.ErrorIs(err, apperr.ErrAuthentication)

	s.Require().NoError(s.service.RevokeToken(s.ctx, token.Key))
	_, err = s.service.ResolveToken(s.ctx, token.Key)
	s.ErrorIs(err, apperr.ErrAuthentication)
}

func (s *AccountTestSuite) TestResolveToken_InactiveUser() {
	user, err := s.service.CreateUser(s.ctx, "alice@example.com", "pw")
	s.Require().NoError(err)
	token, err := s.service.IssueToken(s.ctx, user)
	s.Require().NoError(err)

	inactive := false
	_, err = s.service.UpdateUser(s.ctx, user.ID, database.UserFlags{IsActive: &inactive})
	s.Require().NoError(err)

	// still cached, but the user is checked on every resolve
	_, err = s.service.ResolveToken(s.ctx, token.Key)
	s.ErrorIs(err, apperr.ErrAuthentication)
}

func (s *AccountTestSuite) TestResolveToken_Expired() {
	user, err := s.service.CreateUser(s.ctx, "alice@example.com", "pw")
	s.Require().NoError(err)
	token, err := s.service.IssueToken(s.ctx, user)
	s.Require().NoError(err)

	s.service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = s.service.ResolveToken(s.ctx, token.Key)
	s.ErrorIs(err, apperr.ErrAuthentication)

	removed, err := s.service.PurgeExpiredTokens(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)
}

func (s *AccountTestSuite) TestUserAdministration() {
	user, err := s.service.CreateUser(s.ctx, "alice@example.com", "pw")
	s.Require().NoError(err)

	found, err := s.service.GetUserByEmail(s.ctx, "alice@EXAMPLE.com")
	s.Require().NoError(err)
	s.Equal(user.ID, found.ID)

	users, err := s.service.ListUsers(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 1)

	s.Require().NoError(s.service.DeleteUser(s.ctx, user.ID))
	s.ErrorIs(s.service.DeleteUser(s.ctx, user.ID), apperr.ErrNotFound)

	_, err = s.service.GetUser(s.ctx, user.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
	_, err = s.service.GetUserByEmail(s.ctx, "alice@example.com")
	s.ErrorIs(err, apperr.ErrNotFound)
}

func TestAccountTestSuite(t *testing.T) {
	suite.Run(t, new(AccountTestSuite))
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Alice@Example.COM", want: "Alice@example.com"},
		{in: "  bob@example.com ", want: "bob@example.com"},
		{in: "no-at-sign", want: "no-at-sign"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEmail(tt.in))
	}
}

func TestBcryptHasher(t *testing.T) {
	h := &BcryptHasher{Cost: bcrypt.MinCost}

	credential, err := h.Hash("pw")
	assert.NoError(t, err)
	assert.True(t, h.Verify(credential, "pw"))
	assert.False(t, h.Verify(credential, "other"))
	assert.False(t, h.Verify("garbage", "pw"))

	_, err = h.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
