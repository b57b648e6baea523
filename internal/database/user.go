package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// User represents an account in the database.
// The email address is the login key. The links of a user are never stored on
// the user, they are always queried by user id.
type User struct {
	ID          uint      `gorm:"primarykey"`
	Email       string    `gorm:"uniqueIndex;size:254;not null"`
	Password    string    `gorm:"not null"`
	IsActive    bool      `gorm:"not null;default:true"`
	IsAdmin     bool      `gorm:"not null;default:false"`
	IsSuperuser bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created"`
	UpdatedAt   time.Time `gorm:"column:last_updated"`
}

// IsStaff reports whether the user may access administrative functionality.
func (u *User) IsStaff() bool {
	return u.IsAdmin || u.IsSuperuser
}

// UserFlags holds the user flags an administrator may change. Nil fields are left untouched.
type UserFlags struct {
	IsActive *bool
	IsAdmin  *bool
}

func (c *Client) CreateUser(ctx context.Context, email, password string, superuser bool) (*User, error) {
	user := User{
		Email:       email,
		Password:    password,
		IsActive:    true,
		IsAdmin:     superuser,
		IsSuperuser: superuser,
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) || isDuplicate(err) {
			return nil, fmt.Errorf("user %s: %w", email, ErrDuplicate)
		}
		log.Error("failed to create user", "error", err)
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get user by ID", "error", err)
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get user by email", "error", err)
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetAllUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		log.Error("failed to get all users", "error", err)
		return nil, err
	}
	return users, nil
}

func (c *Client) UpdateUserFlags(ctx context.Context, id uint, flags UserFlags) (*User, error) {
	var user User
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		updates := map[string]any{}
		if flags.IsActive != nil {
			updates["is_active"] = *flags.IsActive
		}
		if flags.IsAdmin != nil {
			updates["is_admin"] = *flags.IsAdmin
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to update user flags", "error", err)
		}
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user together with its settings, links and tokens.
func (c *Client) DeleteUser(ctx context.Context, id uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&Token{}, &Link{}, &Settings{}} {
			if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(&User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil && err != gorm.ErrRecordNotFound {
		log.Error("failed to delete user", "error", err)
	}
	return err
}
