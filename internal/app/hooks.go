package app

import "context"

// Inbound event hooks. The bus consumer routes events observed on the
// events topic (our own, or a peer replica's) to these methods. They are
// extension points reserved for cache invalidation or derived-state
// recomputation; none of that is configured yet, so every hook is a no-op.
// The dispatcher contains hook panics so a misbehaving hook can never
// destabilize the consumption loop.

// OnUserCreated is invoked for each observed user_created event.
func (s *UserService) OnUserCreated(_ context.Context, _ []byte) {}

// OnUserUpdated is invoked for each observed user_updated event.
func (s *UserService) OnUserUpdated(_ context.Context, _ []byte) {}

// OnUserDeleted is invoked for each observed user_deleted event.
func (s *UserService) OnUserDeleted(_ context.Context, _ []byte) {}

// OnPostCreated is invoked for each observed post_created event.
func (s *PostService) OnPostCreated(_ context.Context, _ []byte) {}

// OnPostUpdated is invoked for each observed post_updated event.
func (s *PostService) OnPostUpdated(_ context.Context, _ []byte) {}

// OnPostDeleted is invoked for each observed post_deleted event.
func (s *PostService) OnPostDeleted(_ context.Context, _ []byte) {}
