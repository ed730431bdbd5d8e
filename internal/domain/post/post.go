// Package post defines the post entity kind and its input validation rules.
package post

import (
	"strings"
	"time"

	"github.com/stackmesh/entitybus/internal/domain"
)

// Events published after successful post mutations.
const (
	EventCreated = "post_created"
	EventUpdated = "post_updated"
	EventDeleted = "post_deleted"
)

// maxTitleLen bounds post titles; longer titles are rejected as invalid
// input rather than truncated.
const maxTitleLen = 200

// Post represents an authored document. The identifier is store-assigned
// and immutable once created. AuthorID references a user by identifier but
// carries no referential integrity: cross-entity consistency is out of
// scope for the pipeline.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New holds the creation fields for a post.
type New struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	AuthorID string `json:"author_id"`
}

// Validate checks the creation fields. Returns a *domain.ValidationError
// (wrapping domain.ErrValidation) with per-field details, or nil if all
// rules pass.
func (n *New) Validate() error {
	fields := make(map[string]string)

	switch {
	case strings.TrimSpace(n.Title) == "":
		fields["title"] = domain.MsgRequired
	case len(n.Title) > maxTitleLen:
		fields["title"] = "too long"
	}
	if strings.TrimSpace(n.Body) == "" {
		fields["body"] = domain.MsgRequired
	}
	if strings.TrimSpace(n.AuthorID) == "" {
		fields["author_id"] = domain.MsgRequired
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// Update holds the partial fields of an update command. Nil fields are
// left unchanged.
type Update struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// Validate checks the present fields of the update.
func (u *Update) Validate() error {
	fields := make(map[string]string)

	if u.Title != nil {
		switch {
		case strings.TrimSpace(*u.Title) == "":
			fields["title"] = "must not be blank"
		case len(*u.Title) > maxTitleLen:
			fields["title"] = "too long"
		}
	}
	if u.Body != nil && strings.TrimSpace(*u.Body) == "" {
		fields["body"] = "must not be blank"
	}
	if u.Title == nil && u.Body == nil {
		fields["_"] = "at least one field must be present"
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// Patch converts the update into a store patch.
func (u *Update) Patch() domain.Patch {
	patch := domain.Patch{}
	if u.Title != nil {
		patch["title"] = *u.Title
	}
	if u.Body != nil {
		patch["body"] = *u.Body
	}
	return patch
}
