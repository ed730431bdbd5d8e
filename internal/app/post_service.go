package app

import (
	"context"
	"log/slog"

	"github.com/stackmesh/entitybus/internal/domain"
	"github.com/stackmesh/entitybus/internal/domain/post"
	"github.com/stackmesh/entitybus/internal/ports"
)

// Compile-time check that PostService implements ports.PostService.
var _ ports.PostService = (*PostService)(nil)

// PostService implements ports.PostService. Posts have no unique field, so
// the pipeline for them is validation, existence precondition, mutation,
// and event publish.
type PostService struct {
	posts     ports.Collection[post.Post]
	publisher ports.EventPublisher
	logger    *slog.Logger
}

// NewPostService creates a PostService. The collection provides document
// CRUD for the post kind; the publisher announces mutations on the bus.
func NewPostService(posts ports.Collection[post.Post], publisher ports.EventPublisher, logger *slog.Logger) *PostService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostService{
		posts:     posts,
		publisher: publisher,
		logger:    logger,
	}
}

// List returns all posts.
func (s *PostService) List(ctx context.Context) ([]post.Post, error) {
	s.logger.InfoContext(ctx, "listing posts")

	posts, err := s.posts.Find(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list posts",
			slog.String("operation", "List"),
			slog.Any("error", err),
		)
		return nil, err
	}

	return posts, nil
}

// Get returns a single post by identifier.
func (s *PostService) Get(ctx context.Context, id string) (*post.Post, error) {
	s.logger.InfoContext(ctx, "fetching post", slog.String("id", id))

	p, err := s.posts.FindOne(ctx, domain.ByID(id))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch post",
			slog.String("operation", "Get"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return nil, err
	}

	return p, nil
}

// Create validates and persists a new post, then publishes post_created.
func (s *PostService) Create(ctx context.Context, n post.New) (*post.Post, error) {
	s.logger.InfoContext(ctx, "creating post", slog.String("author_id", n.AuthorID))

	if err := n.Validate(); err != nil {
		return nil, err
	}

	created, err := s.posts.Create(ctx, &post.Post{
		Title:    n.Title,
		Body:     n.Body,
		AuthorID: n.AuthorID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create post",
			slog.String("operation", "Create"),
			slog.Any("error", err),
		)
		return nil, err
	}

	publishEvent(ctx, s.logger, s.publisher, post.EventCreated, created.ID, *created)

	return created, nil
}

// Update applies a partial update to an existing post and publishes
// post_updated. The existence precondition runs before any write.
func (s *PostService) Update(ctx context.Context, id string, u post.Update) (*post.Post, error) {
	s.logger.InfoContext(ctx, "updating post", slog.String("id", id))

	if err := u.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.posts.FindOne(ctx, domain.ByID(id)); err != nil {
		s.logger.ErrorContext(ctx, "failed to verify post",
			slog.String("operation", "Update"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return nil, err
	}

	updated, err := s.posts.UpdateOne(ctx, domain.ByID(id), u.Patch())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update post",
			slog.String("operation", "Update"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return nil, err
	}

	publishEvent(ctx, s.logger, s.publisher, post.EventUpdated, updated.ID, *updated)

	return updated, nil
}

// Delete removes a post and publishes post_deleted with the identifier as
// payload.
func (s *PostService) Delete(ctx context.Context, id string) error {
	s.logger.InfoContext(ctx, "deleting post", slog.String("id", id))

	if _, err := s.posts.FindOne(ctx, domain.ByID(id)); err != nil {
		s.logger.ErrorContext(ctx, "failed to verify post",
			slog.String("operation", "Delete"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return err
	}

	if err := s.posts.DeleteOne(ctx, domain.ByID(id)); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete post",
			slog.String("operation", "Delete"),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return err
	}

	publishEvent(ctx, s.logger, s.publisher, post.EventDeleted, id, deletedPayload{ID: id})

	return nil
}
