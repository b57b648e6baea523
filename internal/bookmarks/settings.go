package bookmarks

import (
	"context"
	"errors"

	"github.com/linkyapp/linky/internal/account"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/database"
	"gorm.io/gorm"
)

// GetSettings returns the settings of user. Users without stored settings get
// the defaults, which are not persisted.
func (s *Service) GetSettings(ctx context.Context, user *database.User) (*database.Settings, error) {
	if err := s.authorize(user, account.ActionViewSettings); err != nil {
		return nil, err
	}
	settings, err := s.db.GetSettingsByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &database.Settings{UserID: user.ID, Background: database.BackgroundBright}, nil
		}
		return nil, err
	}
	return settings, nil
}

// CreateSettings stores the settings of a user that has none yet.
func (s *Service) CreateSettings(ctx context.Context, user *database.User, background string) (*database.Settings, error) {
	if err := s.authorize(user, account.ActionChangeSettings); err != nil {
		return nil, err
	}
	verr := &apperr.ValidationError{}
	s.check.checkBackground(verr, background)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	settings, err := s.db.CreateSettings(ctx, user.ID, database.Background(background))
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperr.NewValidation("user", "Settings for this user already exist.")
		}
		return nil, err
	}
	return settings, nil
}

// UpdateSettings changes the background of user, creating the settings on first use.
func (s *Service) UpdateSettings(ctx context.Context, user *database.User, background string) (*database.Settings, error) {
	if err := s.authorize(user, account.ActionChangeSettings); err != nil {
		return nil, err
	}
	verr := &apperr.ValidationError{}
	s.check.checkBackground(verr, background)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return s.db.UpsertSettings(ctx, user.ID, database.Background(background))
}
