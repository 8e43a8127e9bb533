package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/revive"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/stream"
)

// fakeConn stands in for a websocket connection: reads are scripted through
// a channel, writes are recorded and signalled.
type fakeConn struct {
	reads  chan []byte
	writes chan interface{}

	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 16),
		writes: make(chan interface{}, 16),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	payload, ok := <-c.reads
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, payload, nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.writes <- v
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) nextWrite(t *testing.T) interface{} {
	t.Helper()
	select {
	case v := <-c.writes:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a write")
		return nil
	}
}

func newChatFixture() (*store.FakeStore, *Manager, *stream.Router) {
	fs := store.NewFakeStore()
	fs.Seed("users", model.Doc{"id": "u1", "name": "ada", "bio": "", "date": time.Now().UTC()})
	fs.Seed("users", model.Doc{"id": "u2", "name": "grace", "bio": "", "date": time.Now().UTC()})
	fs.Seed("discussions", model.Doc{
		"id": "d1", "userIds": []string{"u1", "u2"},
		"readByIds": []string{}, "date": time.Now().UTC(),
	})
	reviver := revive.New(fs)
	router := stream.NewRouter(fs, reviver)
	return fs, NewManager(fs, reviver, router), router
}

func seedMessage(fs *store.FakeStore, id, authorID, content string, date time.Time) {
	fs.Seed("messages", model.Doc{
		"id": id, "discussionId": "d1", "authorId": authorID,
		"content": content, "date": date, "deleted": false,
	})
}

func TestChatSelfEchoRemap(t *testing.T) {
	fs, m, _ := newChatFixture()
	ctx := context.Background()

	connA, connB := newFakeConn(), newFakeConn()
	roomA, err := m.Join(ctx, "d1", "u1", connA)
	require.NoError(t, err)
	defer m.Leave(roomA, "u1")
	roomB, err := m.Join(ctx, "d1", "u2", connB)
	require.NoError(t, err)
	defer m.Leave(roomB, "u2")

	// Both joins replay the (empty) history first.
	assert.Len(t, connA.nextWrite(t).([]model.Message), 0)
	assert.Len(t, connB.nextWrite(t).([]model.Message), 0)

	require.Eventually(t, func() bool { return fs.FeedCount("messages") == 1 },
		time.Second, 10*time.Millisecond)
	messageID, err := m.PostMessage(ctx, "d1", "u1", "hello")
	require.NoError(t, err)

	// The author sees their own insert as an update against the placeholder
	// id, so their client swaps in the confirmed copy.
	echo := connA.nextWrite(t).(model.Change[model.Message])
	assert.Equal(t, model.ChangeUpdate, echo.Type)
	assert.Equal(t, model.PlaceholderMessageID, echo.DocID)
	require.NotNil(t, echo.DocAfter)
	assert.Equal(t, "hello", echo.DocAfter.Content)
	assert.Equal(t, "ada", echo.DocAfter.Author.Name)

	// Everyone else sees the genuine insert.
	got := connB.nextWrite(t).(model.Change[model.Message])
	assert.Equal(t, model.ChangeInsert, got.Type)
	assert.Equal(t, messageID, got.DocID)
}

func TestChatRoomTeardownAndRebuild(t *testing.T) {
	fs, m, router := newChatFixture()
	ctx := context.Background()

	connA, connB := newFakeConn(), newFakeConn()
	roomA, err := m.Join(ctx, "d1", "u1", connA)
	require.NoError(t, err)
	roomB, err := m.Join(ctx, "d1", "u2", connB)
	require.NoError(t, err)

	// One room, one shared stream subscription for both members.
	assert.Equal(t, 1, m.RoomCount())
	assert.Equal(t, 1, router.Messages.SubscriberCount())

	m.Leave(roomA, "u1")
	assert.Equal(t, 1, m.RoomCount(), "room survives while members remain")

	m.Leave(roomB, "u2")
	assert.Equal(t, 0, m.RoomCount())
	assert.Equal(t, 0, router.Messages.SubscriberCount(), "last member out releases the subscription")

	// A message posted while nobody is connected is only in the store.
	seedMessage(fs, "m1", "u2", "anyone there?", time.Now().UTC())

	// Rejoining rebuilds the room from the store: the history replay carries
	// the missed message.
	connC := newFakeConn()
	roomC, err := m.Join(ctx, "d1", "u1", connC)
	require.NoError(t, err)
	defer m.Leave(roomC, "u1")

	history := connC.nextWrite(t).([]model.Message)
	require.Len(t, history, 1)
	assert.Equal(t, "anyone there?", history[0].Content)
	assert.Equal(t, "grace", history[0].Author.Name)
	assert.Equal(t, 1, router.Messages.SubscriberCount())
}

func TestChatHistoryIsOldestFirst(t *testing.T) {
	fs, m, _ := newChatFixture()
	base := time.Now().UTC()
	seedMessage(fs, "m1", "u1", "first", base)
	seedMessage(fs, "m2", "u2", "second", base.Add(time.Minute))
	seedMessage(fs, "m3", "u1", "third", base.Add(2*time.Minute))

	conn := newFakeConn()
	room, err := m.Join(context.Background(), "d1", "u1", conn)
	require.NoError(t, err)
	defer m.Leave(room, "u1")

	history := conn.nextWrite(t).([]model.Message)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "second", history[1].Content)
	assert.Equal(t, "third", history[2].Content)
}

func TestDeleteMessage(t *testing.T) {
	fs, m, _ := newChatFixture()
	seedMessage(fs, "m1", "u1", "regrettable", time.Now().UTC())
	ctx := context.Background()

	err := m.DeleteMessage(ctx, "u2", "m1")
	require.ErrorIs(t, err, ErrNotMessageAuthor)

	require.NoError(t, m.DeleteMessage(ctx, "u1", "m1"))
	doc := fs.Get("messages", "m1")
	assert.Equal(t, model.DeletedMessageContent, doc["content"])
	assert.Equal(t, true, doc["deleted"], "soft delete keeps the document")
}

func TestServeHandlesPayloads(t *testing.T) {
	fs, m, _ := newChatFixture()
	seedMessage(fs, "m1", "u1", "oops", time.Now().UTC())
	conn := newFakeConn()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Serve(context.Background(), "d1", "u1", conn)
	}()

	// Drain the history replay, then script one post and one delete.
	conn.nextWrite(t)
	conn.reads <- []byte("a new message")
	conn.reads <- []byte(model.DeleteMessagePrefix + "m1")

	require.Eventually(t, func() bool {
		if fs.Count("messages") != 2 {
			return false
		}
		return fs.Get("messages", "m1")["content"] == model.DeletedMessageContent
	}, time.Second, 10*time.Millisecond)

	close(conn.reads)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve did not return on disconnect")
	}
	assert.True(t, conn.closed)
	assert.Equal(t, 0, m.RoomCount(), "disconnect of the only member drops the room")
}
