// Package triggers reacts to document changes with compensating writes:
// denormalized counters, notification creation and cascading cleanup. Every
// handler treats the triggering change as committed fact; effects are
// best-effort and failures are logged, never propagated upstream.
package triggers

import (
	"context"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/stream"
	"github.com/sparklet/backend/uploads"
)

type Triggers struct {
	store   store.Accessor
	uploads uploads.Store
}

func New(s store.Accessor, up uploads.Store) *Triggers {
	return &Triggers{store: s, uploads: up}
}

// Run subscribes every trigger to its collection's stream. Call once at
// process start; handlers keep running until ctx is cancelled.
func (t *Triggers) Run(ctx context.Context, router *stream.Router) {
	go loop(ctx, router.Cheers, t.HandleCheer)
	go loop(ctx, router.Comments, t.HandleComment)
	go loop(ctx, router.Votes, t.HandleVote)
	go loop(ctx, router.Ideas, t.HandleIdea)
}

func loop[T any](ctx context.Context, topic *stream.Topic[T], handle func(context.Context, model.Change[T])) {
	ch, cancel := topic.Subscribe()
	defer cancel()
	for {
		select {
		case change, ok := <-ch:
			if !ok {
				return
			}
			handle(ctx, change)
		case <-ctx.Done():
			return
		}
	}
}
