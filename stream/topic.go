// Package stream fans document change feeds out to in-process subscribers.
// One Topic per watched collection; every change is revived once, then
// delivered to all current subscribers in subscription order.
package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/utils/log"
)

// subscriberBuffer bounds how far a slow subscriber may lag before events
// are dropped for it. Delivery to siblings is never blocked.
const subscriberBuffer = 64

type subscriber[T any] struct {
	id string
	ch chan model.Change[T]
}

// Topic is one collection's broadcast channel. The upstream feed starts
// lazily on the first subscriber and stays up for the process lifetime; the
// watched set is static and small, so it is never torn down on zero
// subscribers.
type Topic[T any] struct {
	name string

	mu   sync.RWMutex
	subs []*subscriber[T]

	start func(*Topic[T])
	once  sync.Once
}

func newTopic[T any](name string, start func(*Topic[T])) *Topic[T] {
	return &Topic[T]{name: name, start: start}
}

// Subscribe registers a consumer and returns its channel plus a cancellation
// handle. Cancelling removes exactly this subscriber and is idempotent.
func (t *Topic[T]) Subscribe() (<-chan model.Change[T], func()) {
	t.once.Do(func() {
		if t.start != nil {
			go t.start(t)
		}
	})

	sub := &subscriber[T]{
		id: uuid.NewString(),
		ch: make(chan model.Change[T], subscriberBuffer),
	}
	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, other := range t.subs {
			if other.id == sub.id {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				// publishes hold the read lock while sending, so nothing
				// can write to the channel once the subscriber is gone
				close(sub.ch)
				return
			}
		}
	}
	return sub.ch, cancel
}

// Publish delivers a change to all current subscribers in subscription
// order. A subscriber whose buffer is full drops the event (logged) rather
// than stalling its siblings.
func (t *Topic[T]) Publish(change model.Change[T]) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, sub := range t.subs {
		select {
		case sub.ch <- change:
		default:
			log.Log.WithField("collection", t.name).
				Warnf("subscriber %s lagging, dropped %s change %s", sub.id, change.Type, change.DocID)
		}
	}
}

// SubscriberCount reports how many subscribers are currently registered.
func (t *Topic[T]) SubscriberCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// pump feeds a topic from a raw collection feed, reviving each change
// exactly once. A feed error is fatal to the topic: it is logged and the
// pump stops, reconnect policy belongs to the operational layer.
func pump[T any](ctx context.Context, t *Topic[T], feed *store.Feed, revive func(context.Context, model.Change[model.Doc]) (model.Change[T], error)) {
	for raw := range feed.C {
		change, err := revive(ctx, raw)
		if err != nil {
			log.Log.WithField("collection", t.name).
				Errorf("failed to revive %s change %s: %v", raw.Type, raw.DocID, err)
			continue
		}
		t.Publish(change)
	}
	if err := feed.Err(); err != nil {
		log.Log.WithField("collection", t.name).Errorf("change feed terminated: %v", err)
	}
}
