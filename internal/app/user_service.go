// Package app provides the entity services that execute the
// command-to-mutation-to-event pipeline: validate input, check
// preconditions against the store, apply the mutation, then announce the
// change with a best-effort event publish.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/stackmesh/entitybus/internal/domain"
	"github.com/stackmesh/entitybus/internal/domain/user"
	"github.com/stackmesh/entitybus/internal/ports"
)

// Compile-time check that UserService implements ports.UserService.
var _ ports.UserService = (*UserService)(nil)

// errBadCredentials is the single error returned for every credential
// failure. Unknown email and wrong password are indistinguishable to the
// caller.
var errBadCredentials = &domain.ValidationError{
	Fields: map[string]string{"credentials": "invalid email or password"},
}

// dummyCredentialHash is compared against on the unknown-email path so a
// lookup miss costs the same bcrypt work as a password mismatch. The cost
// matches the cost used when hashing stored passwords.
var dummyCredentialHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// UserService implements ports.UserService. Each instance is constructed
// with explicit references to its collection and publisher; the service
// owns no state between calls — all state lives in the store.
type UserService struct {
	users     ports.Collection[user.User]
	publisher ports.EventPublisher
	logger    *slog.Logger
}

// NewUserService creates a UserService. The collection provides document
// CRUD for the user kind; the publisher announces mutations on the bus.
func NewUserService(users ports.Collection[user.User], publisher ports.EventPublisher, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &UserService{
		users:     users,
		publisher: publisher,
		logger:    logger,
	}
}

// List returns all users with password hashes redacted.
func (s *UserService) List(ctx context.Context) ([]user.User, error) {
	s.logger.InfoContext(ctx, "listing users")

	users, err := s.users.Find(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list users",
			slog.String("operation", "List"),
			slog.Any("error", err),
		)
		return nil, err
	}

	for i := range users {
		users[i] = users[i].Redacted()
	}
	return users, nil
}

// Get returns a single user by identifier with the password hash redacted.
func (s *UserService) Get(ctx context.Context, id string) (*user.User, error) {
	s.logger.InfoContext(ctx, "fetching user", slog.String("id", id))

	u, err := s.users.FindOne(ctx, domain.ByID(id))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch user",
			slog.String("operation", "Get"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return nil, err
	}

	redacted := u.Redacted()
	return &redacted, nil
}

// Create validates and persists a new user, then publishes user_created.
// The email uniqueness pre-check and the credential hashing both happen
// before the store write; no event is published unless the write committed.
func (s *UserService) Create(ctx context.Context, n user.New) (*user.User, error) {
	s.logger.InfoContext(ctx, "creating user", slog.String("email", n.Email))

	if err := n.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkEmailFree(ctx, n.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(n.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.Unexpectedf(err, "hashing credential")
	}

	created, err := s.users.Create(ctx, &user.User{
		Email:    n.Email,
		Name:     n.Name,
		Password: string(hash),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create user",
			slog.String("operation", "Create"),
			slog.Any("error", err),
		)
		return nil, err
	}

	publishEvent(ctx, s.logger, s.publisher, user.EventCreated, created.ID, created.Redacted())

	redacted := created.Redacted()
	return &redacted, nil
}

// Update applies a partial update to an existing user and publishes
// user_updated. The existence precondition runs before any write so a
// misleading event is never emitted for an operation that never happened.
func (s *UserService) Update(ctx context.Context, id string, u user.Update) (*user.User, error) {
	s.logger.InfoContext(ctx, "updating user", slog.String("id", id))

	if err := u.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.users.FindOne(ctx, domain.ByID(id))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to verify user",
			slog.String("operation", "Update"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return nil, err
	}

	if u.Email != nil && *u.Email != existing.Email {
		if err := s.checkEmailFree(ctx, *u.Email); err != nil {
			return nil, err
		}
	}

	patch := u.Patch()
	if u.Password != nil {
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(*u.Password), bcrypt.DefaultCost)
		if hashErr != nil {
			return nil, domain.Unexpectedf(hashErr, "hashing credential")
		}
		patch["password"] = string(hash)
	}

	updated, err := s.users.UpdateOne(ctx, domain.ByID(id), patch)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update user",
			slog.String("operation", "Update"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return nil, err
	}

	publishEvent(ctx, s.logger, s.publisher, user.EventUpdated, updated.ID, updated.Redacted())

	redacted := updated.Redacted()
	return &redacted, nil
}

// Delete removes a user and publishes user_deleted with the identifier as
// payload. Deleting an already-deleted identifier reports NotFound.
func (s *UserService) Delete(ctx context.Context, id string) error {
	s.logger.InfoContext(ctx, "deleting user", slog.String("id", id))

	if _, err := s.users.FindOne(ctx, domain.ByID(id)); err != nil {
		s.logger.ErrorContext(ctx, "failed to verify user",
			slog.String("operation", "Delete"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return err
	}

	if err := s.users.DeleteOne(ctx, domain.ByID(id)); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete user",
			slog.String("operation", "Delete"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return err
	}

	publishEvent(ctx, s.logger, s.publisher, user.EventDeleted, id, deletedPayload{ID: id})

	return nil
}

// ValidateCredentials checks an email/password pair with a constant-time
// hash comparison. Every failure mode returns the same validation error so
// the response never reveals whether the email is registered.
func (s *UserService) ValidateCredentials(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.users.FindOne(ctx, domain.Filter{"email": email})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Burn the same bcrypt work as the mismatch path so the two
			// failures are not separable by latency either.
			_ = bcrypt.CompareHashAndPassword(dummyCredentialHash, []byte(password))
			return nil, errBadCredentials
		}
		s.logger.ErrorContext(ctx, "failed to look up credentials",
			slog.String("operation", "ValidateCredentials"),
			slog.Any("error", err),
		)
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, errBadCredentials
	}

	redacted := u.Redacted()
	return &redacted, nil
}

// checkEmailFree returns ErrConflict when another user already holds the
// email. Store lookup failures are passed through unchanged.
func (s *UserService) checkEmailFree(ctx context.Context, email string) error {
	_, err := s.users.FindOne(ctx, domain.Filter{"email": email})
	switch {
	case err == nil:
		return fmt.Errorf("email %q already registered: %w", email, domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		s.logger.ErrorContext(ctx, "failed to check email uniqueness",
			slog.String("operation", "checkEmailFree"),
			slog.Any("error", err),
		)
		return err
	}
}
