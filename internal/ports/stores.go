package ports

import (
	"context"

	"github.com/stackmesh/entitybus/internal/domain"
)

// Collection is the entity store adapter: uniform CRUD access to a single
// collection of documents of one entity kind, keyed by an opaque
// store-assigned identifier. All operations are single-document; no
// multi-document transactions are assumed, which is why callers treat
// store-write and event-publish as two separate, non-atomic steps.
//
// Implementations translate backend failures into the domain taxonomy:
// absence is domain.ErrNotFound, uniqueness violations are
// domain.ErrConflict, and everything else is a *domain.UnexpectedError.
type Collection[T any] interface {
	// Find returns all documents matching the filter. A filter that matches
	// nothing yields an empty slice, never an error.
	Find(ctx context.Context, filter domain.Filter) ([]T, error)

	// FindOne returns the first document matching the filter.
	// Returns domain.ErrNotFound when nothing matches; transport and
	// storage failures are reported distinctly as unexpected errors.
	FindOne(ctx context.Context, filter domain.Filter) (*T, error)

	// Create persists a new document, assigning its identifier and
	// timestamps, and returns the stored form.
	// Returns domain.ErrConflict when a uniqueness constraint is violated.
	Create(ctx context.Context, doc *T) (*T, error)

	// UpdateOne applies an atomic partial update to the document matching
	// the filter and returns the post-update document. Never silently
	// no-ops: returns domain.ErrNotFound when the filter matches nothing.
	UpdateOne(ctx context.Context, filter domain.Filter, patch domain.Patch) (*T, error)

	// DeleteOne removes the document matching the filter.
	// Returns domain.ErrNotFound when nothing matches, so repeated deletes
	// of the same identifier fail predictably rather than crash.
	DeleteOne(ctx context.Context, filter domain.Filter) error
}
