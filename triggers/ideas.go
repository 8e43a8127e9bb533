package triggers

import (
	"context"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/uploads"
	"github.com/sparklet/backend/utils/log"
)

// HandleIdea cleans up after a deleted idea: its cover, the images embedded
// in its content, and its comments (which in turn cascades to their votes
// through the comment trigger).
func (t *Triggers) HandleIdea(ctx context.Context, change model.Change[model.DbIdea]) {
	if change.Type != model.ChangeDelete {
		return
	}
	idea := *change.DocBefore

	if idea.Cover != "" {
		if err := t.uploads.Delete(ctx, idea.Cover); err != nil {
			log.Log.Errorf("idea %s: failed to delete cover %s: %v", idea.ID, idea.Cover, err)
		}
	}
	for _, match := range uploads.ImageSrcRe.FindAllStringSubmatch(idea.Content, -1) {
		if err := t.uploads.Delete(ctx, match[1]); err != nil {
			log.Log.Errorf("idea %s: failed to delete image %s: %v", idea.ID, match[1], err)
		}
	}

	if _, err := t.store.DeleteMany(ctx, "comments",
		store.Filter{Field: "ideaId", Operator: store.FilterEq, Value: idea.ID},
	); err != nil {
		log.Log.Errorf("idea %s: failed to cascade comment deletion: %v", idea.ID, err)
	}
}
