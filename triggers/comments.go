package triggers

import (
	"context"
	"time"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/utils"
	"github.com/sparklet/backend/utils/log"
)

// notificationExcerptLen caps how much comment text is quoted in a
// notification.
const notificationExcerptLen = 140

// HandleComment notifies the idea author on insert (unless they commented on
// their own idea) and cascades vote cleanup on delete.
func (t *Triggers) HandleComment(ctx context.Context, change model.Change[model.DbComment]) {
	switch change.Type {
	case model.ChangeInsert:
		comment := *change.DocAfter
		if err := t.notifyComment(ctx, comment); err != nil {
			log.Log.Errorf("comment %s: failed to notify idea author: %v", comment.ID, err)
		}
	case model.ChangeDelete:
		if _, err := t.store.DeleteMany(ctx, "votes",
			store.Filter{Field: "commentId", Operator: store.FilterEq, Value: change.DocID},
		); err != nil {
			log.Log.Errorf("comment %s: failed to cascade vote deletion: %v", change.DocID, err)
		}
	}
}

func (t *Triggers) notifyComment(ctx context.Context, comment model.DbComment) error {
	idea, err := store.GetDocument[model.DbIdea](ctx, t.store, "ideas/"+comment.IdeaID)
	if err != nil {
		return err
	}
	if comment.AuthorID == idea.AuthorID {
		return nil
	}
	excerpt := utils.TruncateString(comment.Content, notificationExcerptLen)
	_, err = t.store.Insert(ctx, "notifications", model.DbNotification{
		ToIDs:     []string{idea.AuthorID},
		FromID:    comment.AuthorID,
		Date:      time.Now().UTC(),
		ReadByIDs: []string{},
		Content:   model.FromNamePlaceholder + " has commented on " + idea.Title + `: "` + excerpt + `"`,
	})
	return err
}
