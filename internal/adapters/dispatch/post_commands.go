package dispatch

import (
	"context"

	"github.com/stackmesh/entitybus/internal/domain/post"
	"github.com/stackmesh/entitybus/internal/ports"
)

// Post command patterns.
const (
	PatternPostCreate  = "post.create"
	PatternPostFindAll = "post.find_all"
	PatternPostFindOne = "post.find_one"
	PatternPostUpdate  = "post.update"
	PatternPostDelete  = "post.delete"
)

type updatePostRequest struct {
	ID string `json:"id"`
	post.Update
}

// RegisterPost binds the post command surface and the post event hooks
// onto the dispatcher.
func RegisterPost(d *Dispatcher, svc ports.PostService) {
	d.Command(PatternPostCreate, func(ctx context.Context, payload []byte) (any, error) {
		req, err := decode[post.New](payload)
		if err != nil {
			return nil, err
		}
		return svc.Create(ctx, *req)
	})

	d.Command(PatternPostFindAll, func(ctx context.Context, _ []byte) (any, error) {
		return svc.List(ctx)
	})

	d.Command(PatternPostFindOne, func(ctx context.Context, payload []byte) (any, error) {
		req, err := decodeID(payload)
		if err != nil {
			return nil, err
		}
		return svc.Get(ctx, req.ID)
	})

	d.Command(PatternPostUpdate, func(ctx context.Context, payload []byte) (any, error) {
		req, err := decode[updatePostRequest](payload)
		if err != nil {
			return nil, err
		}
		if err := requireID(req.ID); err != nil {
			return nil, err
		}
		return svc.Update(ctx, req.ID, req.Update)
	})

	d.Command(PatternPostDelete, func(ctx context.Context, payload []byte) (any, error) {
		req, err := decodeID(payload)
		if err != nil {
			return nil, err
		}
		return nil, svc.Delete(ctx, req.ID)
	})

	d.Event(post.EventCreated, svc.OnPostCreated)
	d.Event(post.EventUpdated, svc.OnPostUpdated)
	d.Event(post.EventDeleted, svc.OnPostDeleted)
}
