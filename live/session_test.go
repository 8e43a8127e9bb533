package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/revive"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/stream"
)

type fakeSender struct {
	sent chan interface{}
}

func (s *fakeSender) Send(payload interface{}) error {
	s.sent <- payload
	return nil
}

func (s *fakeSender) next(t *testing.T) interface{} {
	t.Helper()
	select {
	case v := <-s.sent:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a send")
		return nil
	}
}

func TestServeSSESnapshotThenFilteredChanges(t *testing.T) {
	fs := store.NewFakeStore()
	router := stream.NewRouter(fs, revive.New(fs))
	out := &fakeSender{sent: make(chan interface{}, 16)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- ServeSSE(ctx, out, router.Ideas,
			func(context.Context) (interface{}, error) {
				return []string{"snapshot"}, nil
			},
			func(change model.Change[model.DbIdea]) bool {
				return change.DocAfter != nil && change.DocAfter.AuthorID == "u1"
			})
	}()

	// The snapshot always goes out before any change.
	assert.Equal(t, []string{"snapshot"}, out.next(t))

	require.Eventually(t, func() bool { return fs.FeedCount("ideas") == 1 },
		time.Second, 10*time.Millisecond)
	_, err := fs.Insert(ctx, "ideas", model.DbIdea{Title: "filtered out", AuthorID: "u2"})
	require.NoError(t, err)
	_, err = fs.Insert(ctx, "ideas", model.DbIdea{Title: "kept", AuthorID: "u1"})
	require.NoError(t, err)

	change := out.next(t).(model.Change[model.DbIdea])
	require.NotNil(t, change.DocAfter)
	assert.Equal(t, "kept", change.DocAfter.Title, "changes the keep filter rejects are not sent")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("serve did not return on context cancellation")
	}
}
