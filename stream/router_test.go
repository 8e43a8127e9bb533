package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/revive"
	"github.com/sparklet/backend/store"
)

func TestRouterDecodesRawChanges(t *testing.T) {
	fs := store.NewFakeStore()
	router := NewRouter(fs, revive.New(fs))

	ch, cancel := router.Ideas.Subscribe()
	defer cancel()
	require.Eventually(t, func() bool { return fs.FeedCount("ideas") == 1 },
		time.Second, 10*time.Millisecond, "subscribing should open the upstream feed")

	_, err := fs.Insert(context.Background(), "ideas", model.DbIdea{
		Title: "solar kiosks", AuthorID: "u1", GoalIDs: []string{"g1"},
	})
	require.NoError(t, err)

	select {
	case change := <-ch:
		assert.Equal(t, model.ChangeInsert, change.Type)
		require.NotNil(t, change.DocAfter)
		assert.Equal(t, "solar kiosks", change.DocAfter.Title)
		assert.Equal(t, []string{"g1"}, change.DocAfter.GoalIDs)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the idea change")
	}
}

func TestRouterRevivesBeforeFanOut(t *testing.T) {
	fs := store.NewFakeStore()
	fs.Seed("users", model.Doc{"id": "u1", "name": "ada", "bio": "", "date": time.Now().UTC()})
	router := NewRouter(fs, revive.New(fs))

	ch, cancel := router.Messages.Subscribe()
	defer cancel()
	require.Eventually(t, func() bool { return fs.FeedCount("messages") == 1 },
		time.Second, 10*time.Millisecond)

	_, err := fs.Insert(context.Background(), "messages", model.DbMessage{
		DiscussionID: "d1", AuthorID: "u1", Content: "hi", Date: time.Now().UTC(),
	})
	require.NoError(t, err)

	select {
	case change := <-ch:
		require.NotNil(t, change.DocAfter)
		assert.Equal(t, "ada", change.DocAfter.Author.Name, "author resolved before fan-out")
		assert.Equal(t, "hi", change.DocAfter.Content)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the message change")
	}
}
