// Package user defines the user entity kind and its input validation rules.
package user

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/stackmesh/entitybus/internal/domain"
)

// Events published after successful user mutations.
const (
	EventCreated = "user_created"
	EventUpdated = "user_updated"
	EventDeleted = "user_deleted"
)

// minPasswordLen is the minimum accepted plaintext password length.
const minPasswordLen = 8

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents a registered account. The identifier is store-assigned
// and immutable once created. Password holds the bcrypt hash at rest; the
// plaintext never reaches the store or the logs. Email is unique across
// all users, enforced both by the service's pre-check and by the store's
// unique index.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Password  string    `json:"password,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Redacted returns a copy of the user with the password hash cleared.
// Event payloads and response envelopes carry the redacted form only.
func (u User) Redacted() User {
	u.Password = ""
	return u
}

// New holds the creation fields for a user. Password is the plaintext
// credential; the service hashes it before the entity is stored.
type New struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate checks the creation fields. It is a pure function of the input:
// uniqueness is checked later against the store. Returns a
// *domain.ValidationError (wrapping domain.ErrValidation) with per-field
// details, or nil if all rules pass.
func (n *New) Validate() error {
	fields := make(map[string]string)

	switch {
	case strings.TrimSpace(n.Email) == "":
		fields["email"] = domain.MsgRequired
	case !emailPattern.MatchString(n.Email):
		fields["email"] = fmt.Sprintf("invalid email address: %q", n.Email)
	}
	if strings.TrimSpace(n.Name) == "" {
		fields["name"] = domain.MsgRequired
	}
	if len(n.Password) < minPasswordLen {
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLen)
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// Update holds the partial fields of an update command. Nil fields are
// left unchanged.
type Update struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Validate checks the present fields of the update.
func (u *Update) Validate() error {
	fields := make(map[string]string)

	if u.Email != nil && !emailPattern.MatchString(*u.Email) {
		fields["email"] = fmt.Sprintf("invalid email address: %q", *u.Email)
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		fields["name"] = "must not be blank"
	}
	if u.Password != nil && len(*u.Password) < minPasswordLen {
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLen)
	}
	if u.Email == nil && u.Name == nil && u.Password == nil {
		fields["_"] = "at least one field must be present"
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// Patch converts the update into a store patch. The password is excluded:
// the service hashes the plaintext and adds the hash itself.
func (u *Update) Patch() domain.Patch {
	patch := domain.Patch{}
	if u.Email != nil {
		patch["email"] = *u.Email
	}
	if u.Name != nil {
		patch["name"] = *u.Name
	}
	return patch
}
