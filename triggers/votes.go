package triggers

import (
	"context"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/utils/log"
)

// HandleVote keeps the referenced comment's rating in sync with the net
// value delta of the vote change.
func (t *Triggers) HandleVote(ctx context.Context, change model.Change[model.Vote]) {
	var commentID string
	var delta int
	switch change.Type {
	case model.ChangeInsert:
		commentID = change.DocAfter.CommentID
		delta = change.DocAfter.Value
	case model.ChangeDelete:
		commentID = change.DocBefore.CommentID
		delta = -change.DocBefore.Value
	case model.ChangeUpdate:
		commentID = change.DocAfter.CommentID
		delta = change.DocAfter.Value - change.DocBefore.Value
	}
	if delta == 0 {
		return
	}
	if err := t.store.Patch(ctx, "comments/"+commentID,
		store.Patch{Field: "rating", Operator: store.PatchInc, Value: delta},
	); err != nil {
		log.Log.Errorf("vote %s: failed to adjust comment rating: %v", change.DocID, err)
	}
}
