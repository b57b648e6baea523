package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Background is the display theme of the front end.
type Background string

const (
	BackgroundSepia  Background = "sepia"
	BackgroundBright Background = "bright"
	BackgroundDark   Background = "dark"
)

// Backgrounds lists every recognized background.
var Backgrounds = []Background{BackgroundSepia, BackgroundBright, BackgroundDark}

// Settings holds the display preferences of a user. There is at most one row per user.
type Settings struct {
	ID         uint       `gorm:"primarykey"`
	UserID     uint       `gorm:"uniqueIndex;not null"`
	User       *User      `gorm:"constraint:OnDelete:CASCADE;"`
	Background Background `gorm:"size:10;not null;default:bright"`
	CreatedAt  time.Time  `gorm:"column:created"`
	UpdatedAt  time.Time  `gorm:"column:last_updated"`
}

func (Settings) TableName() string {
	return "settings"
}

// GetSettingsByUserID returns gorm.ErrRecordNotFound if the user has no settings yet.
// Most users never store any, so the lookup uses Find to keep gorm from logging the miss.
func (c *Client) GetSettingsByUserID(ctx context.Context, userID uint) (*Settings, error) {
	var settings Settings
	res := c.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&settings)
	if res.Error != nil {
		log.Error("failed to get settings", "error", res.Error)
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &settings, nil
}

func (c *Client) CreateSettings(ctx context.Context, userID uint, background Background) (*Settings, error) {
	settings := Settings{
		UserID:     userID,
		Background: background,
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Settings{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		return tx.Create(&settings).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) || isDuplicate(err) {
			return nil, fmt.Errorf("settings of user %d: %w", userID, ErrDuplicate)
		}
		log.Error("failed to create settings", "error", err)
		return nil, err
	}
	return &settings, nil
}

// UpsertSettings updates the background of a user, creating the settings row on first use.
func (c *Client) UpsertSettings(ctx context.Context, userID uint, background Background) (*Settings, error) {
	var settings Settings
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Limit(1).Find(&settings)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			settings = Settings{UserID: userID, Background: background}
			return tx.Create(&settings).Error
		}
		// an update always stamps last_updated, even if the value did not change
		if err := tx.Model(&settings).Update("background", background).Error; err != nil {
			return err
		}
		return tx.First(&settings, settings.ID).Error
	})
	if err != nil {
		log.Error("failed to update settings", "error", err)
		return nil, err
	}
	return &settings, nil
}
