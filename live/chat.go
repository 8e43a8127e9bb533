package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/revive"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/stream"
	"github.com/sparklet/backend/utils/log"
)

// historyLimit caps how many recent messages a joiner is replayed.
const historyLimit = 100

// ErrNotMessageAuthor is returned when a member tries to delete someone
// else's message.
var ErrNotMessageAuthor = errors.New("only the author can delete a message")

// Conn is the slice of a websocket connection chat rooms need.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Manager owns every active chat room, keyed by discussion id. Rooms are
// created on first join and discarded when their member set empties; a later
// join rebuilds room state from the document store only.
type Manager struct {
	store   store.Accessor
	reviver *revive.Reviver
	router  *stream.Router

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewManager(s store.Accessor, reviver *revive.Reviver, router *stream.Router) *Manager {
	return &Manager{
		store:   s,
		reviver: reviver,
		router:  router,
		rooms:   map[string]*Room{},
	}
}

// Room holds the live member connections of one discussion plus a single
// subscription to the messages stream, shared by all members.
type Room struct {
	discussionID string

	mu      sync.Mutex
	members map[string]Conn
	cancel  func()
}

func (r *Room) DiscussionID() string {
	return r.discussionID
}

// Join replays the discussion's recent history to the connection, then
// registers it for live relay. The first join creates the room and its
// stream subscription.
func (m *Manager) Join(ctx context.Context, discussionID, userID string, conn Conn) (*Room, error) {
	m.mu.Lock()
	room, ok := m.rooms[discussionID]
	if !ok {
		room = &Room{discussionID: discussionID, members: map[string]Conn{}}
		ch, cancel := m.router.Messages.Subscribe()
		room.cancel = cancel
		go room.relay(ch)
		m.rooms[discussionID] = room
	}
	m.mu.Unlock()

	history, err := m.history(ctx, discussionID)
	if err != nil {
		m.dropIfEmpty(room)
		return nil, err
	}
	if err := conn.WriteJSON(history); err != nil {
		m.dropIfEmpty(room)
		return nil, errors.Wrap(err, "failed to send history")
	}

	room.mu.Lock()
	room.members[userID] = conn
	room.mu.Unlock()
	return room, nil
}

// Leave removes the member; the last member out tears the room down,
// releasing its stream subscription.
func (m *Manager) Leave(room *Room, userID string) {
	room.mu.Lock()
	delete(room.members, userID)
	room.mu.Unlock()
	m.dropIfEmpty(room)
}

func (m *Manager) dropIfEmpty(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.mu.Lock()
	empty := len(room.members) == 0
	room.mu.Unlock()
	if empty && m.rooms[room.discussionID] == room {
		room.cancel()
		delete(m.rooms, room.discussionID)
	}
}

// RoomCount reports how many rooms are live.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// history fetches the most recent messages. The query is newest-first to
// honor the cap, but replay goes out oldest-first.
func (m *Manager) history(ctx context.Context, discussionID string) ([]model.Message, error) {
	dbMessages, err := store.GetDocuments[model.DbMessage](
		ctx, m.store, "messages",
		&store.Order{Field: "date", Desc: true},
		store.Filter{Field: "discussionId", Operator: store.FilterEq, Value: discussionID},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch history")
	}
	if len(dbMessages) > historyLimit {
		dbMessages = dbMessages[:historyLimit]
	}
	messages, err := m.reviver.Messages(ctx, dbMessages)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// relay pushes the discussion's message changes to every member. A member's
// own insert is echoed back as an update against the placeholder id so their
// client replaces its optimistic local copy; everyone else gets the genuine
// insert.
func (r *Room) relay(ch <-chan model.Change[model.Message]) {
	for change := range ch {
		message := change.Doc()
		if message == nil || message.DiscussionID != r.discussionID {
			continue
		}
		r.mu.Lock()
		for userID, conn := range r.members {
			outgoing := change
			if change.Type == model.ChangeInsert && change.DocAfter.Author.ID == userID {
				outgoing.Type = model.ChangeUpdate
				outgoing.DocID = model.PlaceholderMessageID
			}
			if err := conn.WriteJSON(outgoing); err != nil {
				log.Log.Warnf("room %s: failed to push to %s: %v", r.discussionID, userID, err)
			}
		}
		r.mu.Unlock()
	}
}

// Serve runs a member's session: join, pump incoming payloads, leave on
// disconnect. A plain-text payload is a new message; a payload prefixed with
// the delete sentinel soft-deletes the referenced message.
func (m *Manager) Serve(ctx context.Context, discussionID, userID string, conn Conn) {
	defer conn.Close()
	room, err := m.Join(ctx, discussionID, userID, conn)
	if err != nil {
		log.Log.Errorf("failed to join room %s: %v", discussionID, err)
		return
	}
	defer m.Leave(room, userID)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		text := string(payload)
		if messageID, ok := strings.CutPrefix(text, model.DeleteMessagePrefix); ok {
			if err := m.DeleteMessage(ctx, userID, strings.TrimSpace(messageID)); err != nil {
				log.Log.Warnf("room %s: failed to delete message: %v", discussionID, err)
			}
			continue
		}
		if _, err := m.PostMessage(ctx, discussionID, userID, text); err != nil {
			log.Log.Errorf("room %s: failed to post message: %v", discussionID, err)
		}
	}
}

// PostMessage stores a new message and refreshes the discussion's cached
// last-message pointer and read state.
func (m *Manager) PostMessage(ctx context.Context, discussionID, authorID, content string) (string, error) {
	now := time.Now().UTC()
	messageID, err := m.store.Insert(ctx, "messages", model.DbMessage{
		DiscussionID: discussionID,
		AuthorID:     authorID,
		Content:      content,
		Date:         now,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to insert message")
	}
	err = m.store.Patch(ctx, "discussions/"+discussionID,
		store.Patch{Field: "lastMessageId", Operator: store.PatchSet, Value: messageID},
		store.Patch{Field: "date", Operator: store.PatchSet, Value: now},
		store.Patch{Field: "readByIds", Operator: store.PatchSet, Value: []string{authorID}},
	)
	return messageID, errors.Wrap(err, "failed to update discussion")
}

// DeleteMessage soft-deletes: the content is replaced with a tombstone, the
// document stays.
func (m *Manager) DeleteMessage(ctx context.Context, userID, messageID string) error {
	message, err := store.GetDocument[model.DbMessage](ctx, m.store, "messages/"+messageID)
	if err != nil {
		return err
	}
	if message.AuthorID != userID {
		return errors.Wrapf(ErrNotMessageAuthor, "message %s", messageID)
	}
	return m.store.Patch(ctx, "messages/"+messageID,
		store.Patch{Field: "content", Operator: store.PatchSet, Value: model.DeletedMessageContent},
		store.Patch{Field: "deleted", Operator: store.PatchSet, Value: true},
	)
}
