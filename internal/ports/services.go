package ports

import (
	"context"

	"github.com/stackmesh/entitybus/internal/domain/post"
	"github.com/stackmesh/entitybus/internal/domain/user"
)

// UserService defines the service port for user entity commands.
// Implemented by the application layer; called by the command dispatcher.
// Mutations follow the command-to-mutation-to-event pipeline: validation,
// preconditions, store write, then a best-effort event publish that never
// fails the command.
type UserService interface {
	// List returns all users. Password hashes are redacted.
	List(ctx context.Context) ([]user.User, error)

	// Get returns a single user by identifier.
	// Returns domain.ErrNotFound if the user does not exist.
	Get(ctx context.Context, id string) (*user.User, error)

	// Create validates and persists a new user, hashing the credential
	// before the store write, and publishes user_created on success.
	// Returns domain.ErrValidation on invalid fields and domain.ErrConflict
	// if the email is already registered.
	Create(ctx context.Context, n user.New) (*user.User, error)

	// Update applies a partial update to an existing user and publishes
	// user_updated on success.
	// Returns domain.ErrNotFound if the user does not exist and
	// domain.ErrConflict if a changed email is already registered.
	Update(ctx context.Context, id string, u user.Update) (*user.User, error)

	// Delete removes a user and publishes user_deleted on success.
	// Returns domain.ErrNotFound if the user does not exist, including
	// repeated deletes of an already-deleted identifier.
	Delete(ctx context.Context, id string) error

	// ValidateCredentials checks an email/password pair. On success it
	// returns the redacted user. On failure it always returns
	// domain.ErrValidation, whether the email is unknown or the password
	// is wrong, so callers cannot probe for registered addresses.
	ValidateCredentials(ctx context.Context, email, password string) (*user.User, error)

	// Inbound event hooks, invoked by the dispatcher for events observed
	// on the bus. Extension points; must never panic out to the caller.
	OnUserCreated(ctx context.Context, payload []byte)
	OnUserUpdated(ctx context.Context, payload []byte)
	OnUserDeleted(ctx context.Context, payload []byte)
}

// PostService defines the service port for post entity commands.
// Implemented by the application layer; called by the command dispatcher.
type PostService interface {
	// List returns all posts.
	List(ctx context.Context) ([]post.Post, error)

	// Get returns a single post by identifier.
	// Returns domain.ErrNotFound if the post does not exist.
	Get(ctx context.Context, id string) (*post.Post, error)

	// Create validates and persists a new post and publishes post_created
	// on success. Returns domain.ErrValidation on invalid fields.
	Create(ctx context.Context, n post.New) (*post.Post, error)

	// Update applies a partial update to an existing post and publishes
	// post_updated on success.
	// Returns domain.ErrNotFound if the post does not exist.
	Update(ctx context.Context, id string, u post.Update) (*post.Post, error)

	// Delete removes a post and publishes post_deleted on success.
	// Returns domain.ErrNotFound if the post does not exist.
	Delete(ctx context.Context, id string) error

	// Inbound event hooks, invoked by the dispatcher for events observed
	// on the bus. Extension points; must never panic out to the caller.
	OnPostCreated(ctx context.Context, payload []byte)
	OnPostUpdated(ctx context.Context, payload []byte)
	OnPostDeleted(ctx context.Context, payload []byte)
}
