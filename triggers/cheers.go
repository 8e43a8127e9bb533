package triggers

import (
	"context"
	"sync"
	"time"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/utils/log"
)

// HandleCheer maintains the idea supports counter and notifies the idea
// author. The two insert effects are independent: one failing must not block
// the other, so they run concurrently.
func (t *Triggers) HandleCheer(ctx context.Context, change model.Change[model.Cheer]) {
	switch change.Type {
	case model.ChangeInsert:
		cheer := *change.DocAfter
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := t.notifyCheer(ctx, cheer); err != nil {
				log.Log.Errorf("cheer %s: failed to notify idea author: %v", cheer.ID, err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := t.incrementSupports(ctx, cheer.IdeaID, 1); err != nil {
				log.Log.Errorf("cheer %s: failed to increment supports: %v", cheer.ID, err)
			}
		}()
		wg.Wait()
	case model.ChangeDelete:
		cheer := *change.DocBefore
		if err := t.incrementSupports(ctx, cheer.IdeaID, -1); err != nil {
			log.Log.Errorf("cheer %s: failed to decrement supports: %v", cheer.ID, err)
		}
	}
}

func (t *Triggers) notifyCheer(ctx context.Context, cheer model.Cheer) error {
	idea, err := store.GetDocument[model.DbIdea](ctx, t.store, "ideas/"+cheer.IdeaID)
	if err != nil {
		return err
	}
	if cheer.AuthorID == idea.AuthorID {
		// no self-notification
		return nil
	}
	_, err = t.store.Insert(ctx, "notifications", model.DbNotification{
		ToIDs:     []string{idea.AuthorID},
		FromID:    cheer.AuthorID,
		Date:      time.Now().UTC(),
		ReadByIDs: []string{},
		Content:   model.FromNamePlaceholder + " cheers for " + idea.Title,
	})
	return err
}

func (t *Triggers) incrementSupports(ctx context.Context, ideaID string, value int) error {
	return t.store.Patch(ctx, "ideas/"+ideaID,
		store.Patch{Field: "supports", Operator: store.PatchInc, Value: value})
}
