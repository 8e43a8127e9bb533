package live

import (
	"context"
	"time"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/stream"
)

// heartbeatInterval paces SSE keepalive pings. Intermediaries (nginx) drop
// idle connections after 60s otherwise.
const heartbeatInterval = 30 * time.Second

// Sender is the push side of a live session.
type Sender interface {
	Send(payload interface{}) error
}

// ServeSSE pushes a snapshot, then streams live changes filtered by keep
// until ctx is done. The router subscription and the heartbeat timer are
// both released on return; leaking either would pin the session forever.
func ServeSSE[T any](
	ctx context.Context,
	out Sender,
	topic *stream.Topic[T],
	snapshot func(context.Context) (interface{}, error),
	keep func(model.Change[T]) bool,
) error {
	docs, err := snapshot(ctx)
	if err != nil {
		return err
	}
	if err := out.Send(docs); err != nil {
		return err
	}

	ch, cancel := topic.Subscribe()
	defer cancel()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if err := out.Send(model.PingPayload); err != nil {
				return err
			}
		case change, ok := <-ch:
			if !ok {
				return nil
			}
			if keep != nil && !keep(change) {
				continue
			}
			if err := out.Send(change); err != nil {
				return err
			}
		}
	}
}
