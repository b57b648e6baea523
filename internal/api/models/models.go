package models

import (
	"time"

	"github.com/linkyapp/linky/internal/bookmarks"
)

// DateFormat is the format of the created and last_updated fields.
const DateFormat = "2006-01-02"

// User is the API representation of an account.
type User struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsAdmin     bool   `json:"is_admin"`
	IsSuperuser bool   `json:"is_superuser"`
	Created     string `json:"created"`
	LastUpdated string `json:"last_updated"`
	Links       []Link `json:"links"`
	Avatar      string `json:"avatar,omitempty"`
}

// Link is the API representation of a link: its id next to the public projection.
type Link struct {
	ID uint `json:"id"`
	bookmarks.LinkProjection
}

// Settings is the API representation of the settings of a user.
// The dates are empty while the user still has the default settings.
type Settings struct {
	Background  string `json:"background"`
	Created     string `json:"created,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`
}

type Credentials struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginResponse struct {
	Success   bool       `json:"success"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	User      User       `json:"user"`
}

type CreateLinkRequest struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// UpdateLinkRequest holds a partial link update. Absent fields stay unchanged.
type UpdateLinkRequest struct {
	Title       *string `json:"title"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	Archived    *bool   `json:"archived"`
}

type SettingsRequest struct {
	Background string `json:"background"`
}

// UpdateUserRequest holds the flags an administrator may change.
type UpdateUserRequest struct {
	IsActive *bool `json:"is_active"`
	IsAdmin  *bool `json:"is_admin"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Job is the API representation of a background job.
type Job struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Schedule   string     `json:"schedule"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	RunCount   int        `json:"run_count"`
	ErrorCount int        `json:"error_count"`
	LastError  string     `json:"last_error,omitempty"`
}

type CacheStats struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Hits   int    `json:"hits"`
	Misses int    `json:"misses"`
}

// ServerStatus is what administrators see about the running server.
type ServerStatus struct {
	AllowAllPermissions bool        `json:"allow_all_permissions"`
	LoginClients        int         `json:"login_clients"`
	TokenCache          *CacheStats `json:"token_cache,omitempty"`
	Jobs                []Job       `json:"jobs"`
}
