package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Link is a bookmark owned by a user.
// Deleting a link removes the row, Archived is a user flag and not a deletion marker.
type Link struct {
	ID          uint      `gorm:"primarykey"`
	UserID      uint      `gorm:"index;not null"`
	User        *User     `gorm:"constraint:OnDelete:CASCADE;"`
	Title       string    `gorm:"size:200;not null"`
	URL         string    `gorm:"size:2048;not null"`
	Description string    `gorm:"size:200;not null"`
	Archived    bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created"`
	UpdatedAt   time.Time `gorm:"column:last_updated"`
}

func (c *Client) GetLinksByUserID(ctx context.Context, userID uint) ([]Link, error) {
	var links []Link
	if err := c.db.WithContext(ctx).Where("user_id = ?", userID).Order("id desc").Find(&links).Error; err != nil {
		log.Error("failed to get links", "error", err)
		return nil, err
	}
	return links, nil
}

func (c *Client) GetAllLinks(ctx context.Context) ([]Link, error) {
	var links []Link
	if err := c.db.WithContext(ctx).Order("id desc").Find(&links).Error; err != nil {
		log.Error("failed to get all links", "error", err)
		return nil, err
	}
	return links, nil
}

// GetLinkForUser returns the link only if it is owned by the given user.
func (c *Client) GetLinkForUser(ctx context.Context, userID, id uint) (*Link, error) {
	var link Link
	if err := c.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&link).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get link", "error", err)
		}
		return nil, err
	}
	return &link, nil
}

func (c *Client) CreateLink(ctx context.Context, link *Link) error {
	if err := c.db.WithContext(ctx).Create(link).Error; err != nil {
		log.Error("failed to create link", "error", err)
		return err
	}
	return nil
}

// UpdateLinkForUser applies fields (keyed by column name) to a link owned by userID.
// The ownership check, the update and the last_updated stamp happen in one transaction.
func (c *Client) UpdateLinkForUser(ctx context.Context, userID, id uint, fields map[string]any) (*Link, error) {
	var link Link
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&link).Error; err != nil {
			return err
		}
		var err error
		if len(fields) == 0 {
			err = tx.Model(&link).Update("last_updated", tx.NowFunc()).Error
		} else {
			err = tx.Model(&link).Updates(fields).Error
		}
		if err != nil {
			return err
		}
		return tx.First(&link, link.ID).Error
	})
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to update link", "error", err)
		}
		return nil, err
	}
	return &link, nil
}

// DeleteLinkForUser permanently removes a link owned by userID.
func (c *Client) DeleteLinkForUser(ctx context.Context, userID, id uint) error {
	result := c.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&Link{})
	if result.Error != nil {
		log.Error("failed to delete link", "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
