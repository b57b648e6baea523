package database

import (
	"context"
	"time"
)

// DB defines the persistence operations used by the account and bookmark components.
type DB interface {
	// Users
	CreateUser(ctx context.Context, email, password string, superuser bool) (*User, error)
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	UpdateUserFlags(ctx context.Context, id uint, flags UserFlags) (*User, error)
	DeleteUser(ctx context.Context, id uint) error

	// Settings
	GetSettingsByUserID(ctx context.Context, userID uint) (*Settings, error)
	CreateSettings(ctx context.Context, userID uint, background Background) (*Settings, error)
	UpsertSettings(ctx context.Context, userID uint, background Background) (*Settings, error)

	// Links
	GetLinksByUserID(ctx context.Context, userID uint) ([]Link, error)
	GetAllLinks(ctx context.Context) ([]Link, error)
	GetLinkForUser(ctx context.Context, userID, id uint) (*Link, error)
	CreateLink(ctx context.Context, link *Link) error
	UpdateLinkForUser(ctx context.Context, userID, id uint, fields map[string]any) (*Link, error)
	DeleteLinkForUser(ctx context.Context, userID, id uint) error

	// Tokens
	CreateToken(ctx context.Context, token *Token) error
	GetToken(ctx context.Context, key string) (*Token, error)
	DeleteToken(ctx context.Context, key string) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// Utility
	GetStats(ctx context.Context) (*Stats, error)
	Ping() error
	Close() error
}
