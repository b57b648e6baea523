package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Stats provides overall statistics about the database content.
type Stats struct {
	Users         int64
	ActiveUsers   int64
	Admins        int64
	Links         int64
	ArchivedLinks int64
	Settings      int64
	Tokens        int64
	LastSignup    *time.Time
	LastLink      *time.Time
}

func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	db := c.db.WithContext(ctx)
	var stats Stats

	counts := []struct {
		dst   *int64
		model any
		where map[string]any
	}{
		{&stats.Users, &User{}, nil},
		{&stats.ActiveUsers, &User{}, map[string]any{"is_active": true}},
		{&stats.Admins, &User{}, map[string]any{"is_admin": true}},
		{&stats.Links, &Link{}, nil},
		{&stats.ArchivedLinks, &Link{}, map[string]any{"archived": true}},
		{&stats.Settings, &Settings{}, nil},
		{&stats.Tokens, &Token{}, nil},
	}
	for _, cnt := range counts {
		q := db.Model(cnt.model)
		if cnt.where != nil {
			q = q.Where(cnt.where)
		}
		if err := q.Count(cnt.dst).Error; err != nil {
			log.Error("failed to count records", "error", err)
			return nil, err
		}
	}

	var user User
	if res := db.Order("created desc").Limit(1).Find(&user); res.Error != nil {
		return nil, res.Error
	} else if res.RowsAffected > 0 {
		stats.LastSignup = &user.CreatedAt
	}

	var link Link
	if res := db.Order("created desc").Limit(1).Find(&link); res.Error != nil {
		return nil, res.Error
	} else if res.RowsAffected > 0 {
		stats.LastLink = &link.CreatedAt
	}

	return &stats, nil
}
