package app_test

import (
	"context"
	"sync"

	"github.com/stackmesh/entitybus/internal/domain"
)

// fakeCollection is a programmable in-test Collection. Unset functions
// report not-found so tests only stub what they exercise; every mutation
// attempt is counted regardless of outcome.
type fakeCollection[T any] struct {
	findFn    func(ctx context.Context, filter domain.Filter) ([]T, error)
	findOneFn func(ctx context.Context, filter domain.Filter) (*T, error)
	createFn  func(ctx context.Context, doc *T) (*T, error)
	updateFn  func(ctx context.Context, filter domain.Filter, patch domain.Patch) (*T, error)
	deleteFn  func(ctx context.Context, filter domain.Filter) error

	creates int
	updates int
	deletes int
}

func (f *fakeCollection[T]) Find(ctx context.Context, filter domain.Filter) ([]T, error) {
	if f.findFn != nil {
		return f.findFn(ctx, filter)
	}
	return []T{}, nil
}

func (f *fakeCollection[T]) FindOne(ctx context.Context, filter domain.Filter) (*T, error) {
	if f.findOneFn != nil {
		return f.findOneFn(ctx, filter)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCollection[T]) Create(ctx context.Context, doc *T) (*T, error) {
	f.creates++
	if f.createFn != nil {
		return f.createFn(ctx, doc)
	}
	return doc, nil
}

func (f *fakeCollection[T]) UpdateOne(ctx context.Context, filter domain.Filter, patch domain.Patch) (*T, error) {
	f.updates++
	if f.updateFn != nil {
		return f.updateFn(ctx, filter, patch)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCollection[T]) DeleteOne(ctx context.Context, filter domain.Filter) error {
	f.deletes++
	if f.deleteFn != nil {
		return f.deleteFn(ctx, filter)
	}
	return domain.ErrNotFound
}

// publishedEvent records a single Publish call.
type publishedEvent struct {
	event   string
	key     string
	payload any
}

// fakePublisher records every publish attempt and optionally fails them.
type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []publishedEvent
}

func (f *fakePublisher) Publish(_ context.Context, event, key string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{event: event, key: key, payload: payload})
	return f.err
}

func (f *fakePublisher) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.events...)
}
