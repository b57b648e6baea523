package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Token is an API token presented as "Authorization: Token <key>".
type Token struct {
	Key       string     `gorm:"column:token;primaryKey;size:40"`
	UserID    uint       `gorm:"index;not null"`
	User      *User      `gorm:"constraint:OnDelete:CASCADE;"`
	CreatedAt time.Time  `gorm:"column:created"`
	ExpiresAt *time.Time `gorm:"index"`
}

// Expired reports whether the token is no longer valid at now.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

func (c *Client) CreateToken(ctx context.Context, token *Token) error {
	if err := c.db.WithContext(ctx).Create(token).Error; err != nil {
		log.Error("failed to create token", "error", err)
		return err
	}
	return nil
}

func (c *Client) GetToken(ctx context.Context, key string) (*Token, error) {
	var token Token
	if err := c.db.WithContext(ctx).Where("token = ?", key).First(&token).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get token", "error", err)
		}
		return nil, err
	}
	return &token, nil
}

func (c *Client) DeleteToken(ctx context.Context, key string) error {
	if err := c.db.WithContext(ctx).Where("token = ?", key).Delete(&Token{}).Error; err != nil {
		log.Error("failed to delete token", "error", err)
		return err
	}
	return nil
}

// DeleteExpiredTokens removes every token that expired before now and returns how many were removed.
func (c *Client) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result := c.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&Token{})
	if result.Error != nil {
		log.Error("failed to delete expired tokens", "error", result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
