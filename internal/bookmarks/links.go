// Package bookmarks implements links and per-user settings.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/linkyapp/linky/internal/account"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/database"
	"gorm.io/gorm"
)

// Authorizer checks whether a user may perform an action.
type Authorizer interface {
	Authorize(user *database.User, action account.Action) error
}

// Service implements the link and settings operations of a user.
type Service struct {
	db    database.DB
	auth  Authorizer
	check *fieldValidator
}

// New creates a new bookmarks service.
func New(db database.DB, auth Authorizer) *Service {
	return &Service{
		db:    db,
		auth:  auth,
		check: newFieldValidator(),
	}
}

// LinkInput holds the fields of a new link.
type LinkInput struct {
	Title       string
	URL         string
	Description string
}

// LinkUpdate holds the fields to change on a link. Nil fields are left untouched.
type LinkUpdate struct {
	Title       *string
	URL         *string
	Description *string
	Archived    *bool
}

// LinkProjection is the public representation of a link.
type LinkProjection struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Archived bool   `json:"archived"`
}

// Serialize returns the public projection of a link.
// The description and timestamps are not part of it.
func Serialize(link *database.Link) LinkProjection {
	return LinkProjection{
		Title:    link.Title,
		URL:      link.URL,
		Archived: link.Archived,
	}
}

// authorize requires an authenticated user before asking the policy, which
// may be configured to let anyone through.
func (s *Service) authorize(user *database.User, action account.Action) error {
	if user == nil {
		return apperr.ErrAuthentication
	}
	return s.authorize(user, action)
}

// ListLinks returns the links owned by user, newest first.
func (s *Service) ListLinks(ctx context.Context, user *database.User) ([]database.Link, error) {
	if err := s.authorize(user, account.ActionViewLinks); err != nil {
		return nil, err
	}
	return s.db.GetLinksByUserID(ctx, user.ID)
}

// ListAllLinks returns the links of every user. Only administrators may do this.
func (s *Service) ListAllLinks(ctx context.Context, user *database.User) ([]database.Link, error) {
	if err := s.authorize(user, account.ActionListAllLinks); err != nil {
		return nil, err
	}
	return s.db.GetAllLinks(ctx)
}

func (s *Service) GetLink(ctx context.Context, user *database.User, id uint) (*database.Link, error) {
	if err := s.authorize(user, account.ActionViewLinks); err != nil {
		return nil, err
	}
	link, err := s.db.GetLinkForUser(ctx, user.ID, id)
	if err != nil {
		return nil, linkNotFound(err, id)
	}
	return link, nil
}

// CreateLink stores a new link for user.
// Title and description may not contain markup. An empty title defaults to the host of the URL.
func (s *Service) CreateLink(ctx context.Context, user *database.User, in LinkInput) (*database.Link, error) {
	if err := s.authorize(user, account.ActionAddLink); err != nil {
		return nil, err
	}

	link := &database.Link{
		UserID:      user.ID,
		Title:       strings.TrimSpace(in.Title),
		URL:         in.URL,
		Description: strings.TrimSpace(in.Description),
	}

	verr := &apperr.ValidationError{}
	s.check.checkText(verr, "title", link.Title)
	s.check.checkText(verr, "description", link.Description)
	s.check.checkURL(verr, link.URL)
	if link.Title == "" {
		link.Title = urlHost(link.URL)
	}
	s.check.checkLength(verr, "title", link.Title, maxTitleLength)
	s.check.checkLength(verr, "description", link.Description, maxDescriptionLength)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.db.CreateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	log.Debug("Created link", "id", link.ID, "user", user.ID)
	return link, nil
}

// UpdateLink applies a partial update to a link owned by user.
// Links of other users are reported as not found, whatever the input.
func (s *Service) UpdateLink(ctx context.Context, user *database.User, id uint, in LinkUpdate) (*database.Link, error) {
	if err := s.authorize(user, account.ActionChangeLink); err != nil {
		return nil, err
	}
	if _, err := s.db.GetLinkForUser(ctx, user.ID, id); err != nil {
		return nil, linkNotFound(err, id)
	}

	fields := make(map[string]any)
	verr := &apperr.ValidationError{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			verr.Add("title", "This field may not be blank.")
		}
		s.check.checkText(verr, "title", title)
		s.check.checkLength(verr, "title", title, maxTitleLength)
		fields["title"] = title
	}
	if in.URL != nil {
		s.check.checkURL(verr, *in.URL)
		fields["url"] = *in.URL
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		s.check.checkText(verr, "description", description)
		s.check.checkLength(verr, "description", description, maxDescriptionLength)
		fields["description"] = description
	}
	if in.Archived != nil {
		fields["archived"] = *in.Archived
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	// the update checks ownership again in its own transaction
	link, err := s.db.UpdateLinkForUser(ctx, user.ID, id, fields)
	if err != nil {
		return nil, linkNotFound(err, id)
	}
	return link, nil
}

// DeleteLink permanently removes a link owned by user.
func (s *Service) DeleteLink(ctx context.Context, user *database.User, id uint) error {
	if err := s.authorize(user, account.ActionDeleteLink); err != nil {
		return err
	}
	if err := s.db.DeleteLinkForUser(ctx, user.ID, id); err != nil {
		return linkNotFound(err, id)
	}
	log.Debug("Deleted link", "id", id, "user", user.ID)
	return nil
}

func linkNotFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("link", id)
	}
	return err
}
