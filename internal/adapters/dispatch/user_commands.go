package dispatch

import (
	"context"

	"github.com/stackmesh/entitybus/internal/domain/user"
	"github.com/stackmesh/entitybus/internal/ports"
)

// User command patterns and the event names routed to user hooks.
const (
	PatternUserCreate   = "user.create"
	PatternUserFindAll  = "user.find_all"
	PatternUserFindOne  = "user.find_one"
	PatternUserUpdate   = "user.update"
	PatternUserDelete   = "user.delete"
	PatternUserValidate = "user.validate"
)

type updateUserRequest struct {
	ID string `json:"id"`
	user.Update
}

type validateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterUser binds the user command surface and the user event hooks
// onto the dispatcher.
func RegisterUser(d *Dispatcher, svc ports.UserService) {
	d.Command(PatternUserCreate, func(ctx context.Context, payload []byte) (any, error) {
		req, err := decode[user.New](payload)
		if err != nil {
			return nil, err
		}
		return svc.Create(ctx, *req)
	})

	d.Command(PatternUserFindAll, func(ctx context.Context, _ []byte) (any, error) {
		return svc.List(ctx)
	})

	d.Command(PatternUserFindOne, func(ctx context.Context, payload []byte) (any, error) {
		req, err := decodeID(payload)
		if err != nil {
			return nil, err
		}
		return svc.Get(ctx, req.ID)
	})

	d.Command(PatternUserUpdate, func(ctx context.Context, payload []byte) (any, error) {
		req, err := decode[updateUserRequest](payload)
		if err != nil {
			return nil, err
		}
		if err := requireID(req.ID); err != nil {
			return nil, err
		}
		return svc.Update(ctx, req.ID, req.Update)
	})

	d.Command(PatternUserDelete, func(ctx context.Context, payload []byte) (any, error) {
		req, err := decodeID(payload)
		if err != nil {
			return nil, err
		}
		return nil, svc.Delete(ctx, req.ID)
	})

	d.Command(PatternUserValidate, func(ctx context.Context, payload []byte) (any, error) {
		req, err := decode[validateUserRequest](payload)
		if err != nil {
			return nil, err
		}
		return svc.ValidateCredentials(ctx, req.Email, req.Password)
	})

	d.Event(user.EventCreated, svc.OnUserCreated)
	d.Event(user.EventUpdated, svc.OnUserUpdated)
	d.Event(user.EventDeleted, svc.OnUserDeleted)
}
