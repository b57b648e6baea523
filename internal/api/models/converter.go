package models

import (
	"errors"
	"net/http"
	"time"

	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/bookmarks"
	"github.com/linkyapp/linky/internal/cache"
	"github.com/linkyapp/linky/internal/database"
	"github.com/linkyapp/linky/internal/gravatar"
	"github.com/linkyapp/linky/internal/scheduler"
)

// ToUser converts a database.User with its links. The password is never part of it.
func ToUser(u *database.User, links []database.Link, avatars *gravatar.Resolver) User {
	return User{
		ID:          u.ID,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsAdmin:     u.IsAdmin,
		IsSuperuser: u.IsSuperuser,
		Created:     formatDate(u.CreatedAt),
		LastUpdated: formatDate(u.UpdatedAt),
		Links:       ToLinks(links),
		Avatar:      avatars.URL(u.Email),
	}
}

// ToUsers converts users, looking up the links of each user in linksByUser.
func ToUsers(users []database.User, linksByUser map[uint][]database.Link, avatars *gravatar.Resolver) []User {
	result := make([]User, len(users))
	for i := range users {
		result[i] = ToUser(&users[i], linksByUser[users[i].ID], avatars)
	}
	return result
}

func ToLink(l *database.Link) Link {
	return Link{
		ID:             l.ID,
		LinkProjection: bookmarks.Serialize(l),
	}
}

func ToLinks(links []database.Link) []Link {
	result := make([]Link, len(links))
	for i := range links {
		result[i] = ToLink(&links[i])
	}
	return result
}

func ToSettings(s *database.Settings) Settings {
	return Settings{
		Background:  string(s.Background),
		Created:     formatDate(s.CreatedAt),
		LastUpdated: formatDate(s.UpdatedAt),
	}
}

func ToJob(info scheduler.JobInfo) Job {
	return Job{
		ID:         info.ID,
		Name:       info.Name,
		Status:     string(info.Status),
		Schedule:   info.Schedule,
		LastRun:    optionalTime(info.LastRun),
		NextRun:    optionalTime(info.NextRun),
		RunCount:   info.RunCount,
		ErrorCount: info.ErrorCount,
		LastError:  info.LastError,
	}
}

func ToJobs(infos []scheduler.JobInfo) []Job {
	result := make([]Job, len(infos))
	for i, info := range infos {
		result[i] = ToJob(info)
	}
	return result
}

// ToCacheStats converts cache statistics. It returns nil for nil stats.
func ToCacheStats(stats *cache.Stats) *CacheStats {
	if stats == nil {
		return nil
	}
	result := &CacheStats{
		Name: stats.CacheName,
		Type: string(stats.Type),
	}
	if stats.Stats != nil {
		result.Hits = stats.Hits
		result.Misses = stats.Miss
	}
	return result
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ToError converts err to the status code and body returned to the client.
// Internal errors are not exposed.
func ToError(err error) (int, ErrorResponse) {
	resp := ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Code:    apperr.Code(err),
	}

	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Fields = verr.Fields
		return http.StatusBadRequest, resp
	case errors.Is(err, apperr.ErrAuthentication):
		resp.Error = "Invalid credentials"
		return http.StatusUnauthorized, resp
	case errors.Is(err, apperr.ErrPermission):
		resp.Error = "You do not have permission to perform this action"
		return http.StatusForbidden, resp
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, resp
	default:
		resp.Error = "Internal server error"
		return http.StatusInternalServerError, resp
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateFormat)
}
