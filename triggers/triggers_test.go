package triggers

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/revive"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/stream"
)

// recordingUploads remembers deletions so cascade tests can assert on them.
type recordingUploads struct {
	mu      sync.Mutex
	deleted []string
}

func (r *recordingUploads) Save(context.Context, string, string, io.Reader) error { return nil }

func (r *recordingUploads) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, name)
	return nil
}

func (r *recordingUploads) Deleted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.deleted...)
}

func seedIdea(fs *store.FakeStore, id, authorID, title string) {
	fs.Seed("ideas", model.Doc{
		"id": id, "title": title, "authorId": authorID,
		"goalIds": []string{"g1"}, "content": "some content",
		"date": time.Now().UTC(), "supports": 0,
	})
}

func insertCheer(ideaID, authorID string) model.Change[model.Cheer] {
	cheer := model.Cheer{ID: model.MakeCheerID(ideaID, authorID), IdeaID: ideaID, AuthorID: authorID}
	return model.Change[model.Cheer]{Type: model.ChangeInsert, DocID: cheer.ID, DocAfter: &cheer}
}

func TestCheerInsertIncrementsAndNotifies(t *testing.T) {
	fs := store.NewFakeStore()
	seedIdea(fs, "i1", "u1", "solar kiosks")
	tr := New(fs, &recordingUploads{})

	tr.HandleCheer(context.Background(), insertCheer("i1", "u2"))

	idea := fs.Get("ideas", "i1")
	assert.EqualValues(t, 1, idea["supports"])

	notifications, err := fs.GetMany(context.Background(), "notifications", nil)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, model.FromNamePlaceholder+" cheers for solar kiosks", notifications[0]["content"])
}

func TestCheerInsertByAuthorSkipsNotification(t *testing.T) {
	fs := store.NewFakeStore()
	seedIdea(fs, "i1", "u1", "solar kiosks")
	tr := New(fs, &recordingUploads{})

	tr.HandleCheer(context.Background(), insertCheer("i1", "u1"))

	idea := fs.Get("ideas", "i1")
	assert.EqualValues(t, 1, idea["supports"], "the counter still moves")
	assert.Equal(t, 0, fs.Count("notifications"), "no self-notification")
}

func TestCheerDeleteDecrements(t *testing.T) {
	fs := store.NewFakeStore()
	seedIdea(fs, "i1", "u1", "solar kiosks")
	tr := New(fs, &recordingUploads{})

	cheer := model.Cheer{ID: model.MakeCheerID("i1", "u2"), IdeaID: "i1", AuthorID: "u2"}
	tr.HandleCheer(context.Background(), model.Change[model.Cheer]{
		Type: model.ChangeDelete, DocID: cheer.ID, DocBefore: &cheer,
	})

	idea := fs.Get("ideas", "i1")
	assert.EqualValues(t, -1, idea["supports"])
	assert.Equal(t, 0, fs.Count("notifications"))
}

func TestCommentInsertNotifiesWithExcerpt(t *testing.T) {
	fs := store.NewFakeStore()
	seedIdea(fs, "i1", "u1", "solar kiosks")
	tr := New(fs, &recordingUploads{})

	comment := model.DbComment{ID: "c1", IdeaID: "i1", AuthorID: "u2", Content: "love it"}
	tr.HandleComment(context.Background(), model.Change[model.DbComment]{
		Type: model.ChangeInsert, DocID: "c1", DocAfter: &comment,
	})

	notifications, err := fs.GetMany(context.Background(), "notifications", nil)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, model.FromNamePlaceholder+` has commented on solar kiosks: "love it"`,
		notifications[0]["content"])
	assert.Equal(t, []interface{}{"u1"}, notifications[0]["toIds"])
}

func TestCommentDeleteCascadesToItsVotesOnly(t *testing.T) {
	fs := store.NewFakeStore()
	fs.Seed("votes", model.Doc{"id": "v1", "commentId": "c1", "authorId": "u1", "value": 1})
	fs.Seed("votes", model.Doc{"id": "v2", "commentId": "c1", "authorId": "u2", "value": -1})
	fs.Seed("votes", model.Doc{"id": "v3", "commentId": "c2", "authorId": "u1", "value": 1})
	tr := New(fs, &recordingUploads{})

	before := model.DbComment{ID: "c1", IdeaID: "i1", AuthorID: "u2"}
	tr.HandleComment(context.Background(), model.Change[model.DbComment]{
		Type: model.ChangeDelete, DocID: "c1", DocBefore: &before,
	})

	assert.Equal(t, 1, fs.Count("votes"))
	assert.NotNil(t, fs.Get("votes", "v3"), "votes of other comments survive")
}

func TestVoteChangesAdjustRating(t *testing.T) {
	newStore := func() *store.FakeStore {
		fs := store.NewFakeStore()
		fs.Seed("comments", model.Doc{"id": "c1", "ideaId": "i1", "authorId": "u1", "rating": 0})
		return fs
	}
	up := model.Vote{ID: "v1", CommentID: "c1", AuthorID: "u2", Value: 1}
	down := model.Vote{ID: "v1", CommentID: "c1", AuthorID: "u2", Value: -1}

	fs := newStore()
	tr := New(fs, &recordingUploads{})
	tr.HandleVote(context.Background(), model.Change[model.Vote]{
		Type: model.ChangeInsert, DocID: "v1", DocAfter: &up,
	})
	assert.EqualValues(t, 1, fs.Get("comments", "c1")["rating"])

	// Flipping the vote applies the net delta, not two separate steps.
	tr.HandleVote(context.Background(), model.Change[model.Vote]{
		Type: model.ChangeUpdate, DocID: "v1", DocBefore: &up, DocAfter: &down,
	})
	assert.EqualValues(t, -1, fs.Get("comments", "c1")["rating"])

	tr.HandleVote(context.Background(), model.Change[model.Vote]{
		Type: model.ChangeDelete, DocID: "v1", DocBefore: &down,
	})
	assert.EqualValues(t, 0, fs.Get("comments", "c1")["rating"])

	// An update that does not change the value leaves the rating alone.
	tr.HandleVote(context.Background(), model.Change[model.Vote]{
		Type: model.ChangeUpdate, DocID: "v1", DocBefore: &up, DocAfter: &up,
	})
	assert.EqualValues(t, 0, fs.Get("comments", "c1")["rating"])
}

func TestIdeaDeleteCleansUploadsAndCascades(t *testing.T) {
	fs := store.NewFakeStore()
	fs.Seed("comments", model.Doc{"id": "c1", "ideaId": "i1", "authorId": "u2", "rating": 0})
	fs.Seed("comments", model.Doc{"id": "c2", "ideaId": "i2", "authorId": "u2", "rating": 0})
	recorder := &recordingUploads{}
	tr := New(fs, recorder)

	before := model.DbIdea{
		ID:       "i1",
		Title:    "solar kiosks",
		AuthorID: "u1",
		Cover:    "cover123",
		Content:  `intro <img src="img1"> middle <img src="img2"> end`,
	}
	tr.HandleIdea(context.Background(), model.Change[model.DbIdea]{
		Type: model.ChangeDelete, DocID: "i1", DocBefore: &before,
	})

	assert.ElementsMatch(t, []string{"cover123", "img1", "img2"}, recorder.Deleted())
	assert.Equal(t, 1, fs.Count("comments"))
	assert.NotNil(t, fs.Get("comments", "c2"), "other ideas' comments survive")
}

func TestRunDrivesHandlersFromTopics(t *testing.T) {
	fs := store.NewFakeStore()
	seedIdea(fs, "i1", "u1", "solar kiosks")
	tr := New(fs, &recordingUploads{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Run(ctx, stream.NewRouter(fs, revive.New(fs)))

	// Wait for the cheers feed to open before writing, then cheer.
	require.Eventually(t, func() bool { return fs.FeedCount("cheers") == 1 },
		time.Second, 10*time.Millisecond)
	cheer := model.Cheer{ID: model.MakeCheerID("i1", "u2"), IdeaID: "i1", AuthorID: "u2"}
	require.NoError(t, fs.Put(context.Background(), "cheers/"+cheer.ID, cheer, true))

	require.Eventually(t, func() bool {
		idea := fs.Get("ideas", "i1")
		supports, _ := idea["supports"].(int)
		return supports == 1 && fs.Count("notifications") == 1
	}, time.Second, 10*time.Millisecond)
}
