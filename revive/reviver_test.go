package revive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
)

func seedUser(fs *store.FakeStore, id, name string) {
	fs.Seed("users", model.Doc{"id": id, "name": name, "bio": "", "date": time.Now().UTC()})
}

func seedGoal(fs *store.FakeStore, id, name string, order int) {
	fs.Seed("goals", model.Doc{"id": id, "name": name, "order": order})
}

func TestIdeasBatchLookups(t *testing.T) {
	fs := store.NewFakeStore()
	seedUser(fs, "u1", "ada")
	seedUser(fs, "u2", "grace")
	seedGoal(fs, "g1", "no poverty", 1)
	seedGoal(fs, "g2", "quality education", 2)
	r := New(fs)

	dbIdeas := []model.DbIdea{
		{ID: "i1", Title: "one", AuthorID: "u1", GoalIDs: []string{"g1", "g2"}},
		{ID: "i2", Title: "two", AuthorID: "u2", GoalIDs: []string{"g1"}},
		{ID: "i3", Title: "three", AuthorID: "u1", GoalIDs: []string{"g2"}},
	}
	ideas, err := r.Ideas(context.Background(), dbIdeas, "")
	require.NoError(t, err)
	require.Len(t, ideas, 3)

	// One query per referenced collection, no matter how many documents.
	assert.Equal(t, 1, fs.Queries["users"])
	assert.Equal(t, 1, fs.Queries["goals"])
	assert.Equal(t, 0, fs.Queries["cheers"], "no viewer, no cheers lookup")

	assert.Equal(t, "ada", ideas[0].Author.Name)
	assert.Equal(t, "grace", ideas[1].Author.Name)
	require.Len(t, ideas[0].Goals, 2)
	assert.Equal(t, "no poverty", ideas[0].Goals[0].Name)
}

func TestIdeasViewerState(t *testing.T) {
	fs := store.NewFakeStore()
	seedUser(fs, "u1", "ada")
	seedUser(fs, "u2", "grace")
	cheerID := model.MakeCheerID("i1", "u2")
	fs.Seed("cheers", model.Doc{"id": cheerID, "ideaId": "i1", "authorId": "u2"})
	r := New(fs)

	dbIdeas := []model.DbIdea{
		{ID: "i1", AuthorID: "u1"},
		{ID: "i2", AuthorID: "u2"},
	}
	ideas, err := r.Ideas(context.Background(), dbIdeas, "u2")
	require.NoError(t, err)

	assert.Equal(t, 1, fs.Queries["cheers"])
	assert.True(t, ideas[0].UserHasCheered)
	assert.False(t, ideas[1].UserHasCheered)
	assert.False(t, ideas[0].Author.IsUser)
	assert.True(t, ideas[1].Author.IsUser, "viewer is the author of i2")
}

func TestMissingUserMarker(t *testing.T) {
	fs := store.NewFakeStore()
	r := New(fs)

	ideas, err := r.Ideas(context.Background(), []model.DbIdea{{ID: "i1", AuthorID: "gone"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "gone", ideas[0].Author.ID)
	assert.Equal(t, model.MissingUserName, ideas[0].Author.Name)
}

func TestCommentsUserVote(t *testing.T) {
	fs := store.NewFakeStore()
	seedUser(fs, "u1", "ada")
	voteID := model.MakeVoteID("c1", "u2")
	fs.Seed("votes", model.Doc{"id": voteID, "commentId": "c1", "authorId": "u2", "value": -1})
	r := New(fs)

	dbComments := []model.DbComment{
		{ID: "c1", AuthorID: "u1", Content: "first"},
		{ID: "c2", AuthorID: "u1", Content: "second"},
	}
	comments, err := r.Comments(context.Background(), dbComments, "u2")
	require.NoError(t, err)

	require.NotNil(t, comments[0].UserVote)
	assert.Equal(t, -1, *comments[0].UserVote)
	assert.Nil(t, comments[1].UserVote)
}

func TestDiscussionsLastMessage(t *testing.T) {
	fs := store.NewFakeStore()
	seedUser(fs, "u1", "ada")
	seedUser(fs, "u2", "grace")
	fs.Seed("messages", model.Doc{
		"id": "m1", "discussionId": "d1", "authorId": "u2",
		"content": "hello", "date": time.Now().UTC(), "deleted": false,
	})
	r := New(fs)

	discussions, err := r.Discussions(context.Background(), []model.DbDiscussion{
		{ID: "d1", UserIDs: []string{"u1", "u2"}, LastMessageID: "m1"},
	})
	require.NoError(t, err)

	// Member users and message authors resolve in a single users query.
	assert.Equal(t, 1, fs.Queries["users"])
	assert.Equal(t, 1, fs.Queries["messages"])

	d := discussions[0]
	require.Len(t, d.Users, 2)
	assert.Equal(t, "ada", d.Users[0].Name)
	require.NotNil(t, d.LastMessage)
	assert.Equal(t, "hello", d.LastMessage.Content)
	assert.Equal(t, "grace", d.LastMessage.Author.Name)
}

func TestNotificationFromName(t *testing.T) {
	fs := store.NewFakeStore()
	seedUser(fs, "u1", "ada")
	r := New(fs)

	content := model.FromNamePlaceholder + " cheers for your idea"
	notifications, err := r.Notifications(context.Background(), []model.DbNotification{
		{ID: "n1", ToIDs: []string{"u2"}, FromID: "u1", Content: content},
		{ID: "n2", ToIDs: []string{"u2"}, FromID: "gone", Content: content},
	})
	require.NoError(t, err)

	assert.Equal(t, "ada cheers for your idea", notifications[0].Content)
	assert.Equal(t, model.MissingUserName+" cheers for your idea", notifications[1].Content,
		"a dangling sender substitutes the missing marker, not an error")
}

func TestMapChangeRevivesPresentSidesOnly(t *testing.T) {
	double := func(_ context.Context, n int) (int, error) { return n * 2, nil }

	before := 3
	out, err := MapChange(context.Background(), model.Change[int]{
		Type: model.ChangeDelete, DocID: "x", DocBefore: &before,
	}, double)
	require.NoError(t, err)
	require.NotNil(t, out.DocBefore)
	assert.Equal(t, 6, *out.DocBefore)
	assert.Nil(t, out.DocAfter)

	after := 5
	out, err = MapChange(context.Background(), model.Change[int]{
		Type: model.ChangeInsert, DocID: "y", DocAfter: &after,
	}, double)
	require.NoError(t, err)
	assert.Nil(t, out.DocBefore)
	require.NotNil(t, out.DocAfter)
	assert.Equal(t, 10, *out.DocAfter)
}
