package stream

import (
	"context"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/revive"
	"github.com/sparklet/backend/store"
	"github.com/sparklet/backend/utils/log"
)

// Router is the process-wide table of per-collection broadcast topics. It
// exclusively owns one upstream feed per collection, shared by all
// consumers. Construct it once at startup and pass it to whatever needs it.
type Router struct {
	Ideas         *Topic[model.DbIdea]
	Comments      *Topic[model.DbComment]
	Cheers        *Topic[model.Cheer]
	Votes         *Topic[model.Vote]
	Discussions   *Topic[model.Discussion]
	Notifications *Topic[model.Notification]
	Messages      *Topic[model.Message]
}

func NewRouter(src store.Source, reviver *revive.Reviver) *Router {
	return &Router{
		Ideas:    rawTopic[model.DbIdea](src, "ideas"),
		Comments: rawTopic[model.DbComment](src, "comments"),
		Cheers:   rawTopic[model.Cheer](src, "cheers"),
		Votes:    rawTopic[model.Vote](src, "votes"),
		Discussions: revivedTopic(src, "discussions",
			func(ctx context.Context, db model.DbDiscussion) (model.Discussion, error) {
				return reviver.Discussion(ctx, db)
			}),
		Notifications: revivedTopic(src, "notifications",
			func(ctx context.Context, db model.DbNotification) (model.Notification, error) {
				return reviver.Notification(ctx, db)
			}),
		Messages: revivedTopic(src, "messages",
			func(ctx context.Context, db model.DbMessage) (model.Message, error) {
				return reviver.Message(ctx, db)
			}),
	}
}

// rawTopic republishes a collection's changes decoded to their stored type,
// with no reference resolution.
func rawTopic[T any](src store.Source, collection string) *Topic[T] {
	return newTopic[T](collection, func(t *Topic[T]) {
		feed, err := src.Watch(context.Background(), collection)
		if err != nil {
			log.Log.WithField("collection", collection).Errorf("failed to watch: %v", err)
			return
		}
		pump(context.Background(), t, feed, func(ctx context.Context, raw model.Change[model.Doc]) (model.Change[T], error) {
			return revive.MapChange(ctx, raw, func(_ context.Context, doc model.Doc) (T, error) {
				return store.Decode[T](doc)
			})
		})
	})
}

// revivedTopic decodes then revives each side of a change exactly once
// before fan-out.
func revivedTopic[Db, Out any](src store.Source, collection string, reviveFn func(context.Context, Db) (Out, error)) *Topic[Out] {
	return newTopic[Out](collection, func(t *Topic[Out]) {
		feed, err := src.Watch(context.Background(), collection)
		if err != nil {
			log.Log.WithField("collection", collection).Errorf("failed to watch: %v", err)
			return
		}
		pump(context.Background(), t, feed, func(ctx context.Context, raw model.Change[model.Doc]) (model.Change[Out], error) {
			return revive.MapChange(ctx, raw, func(ctx context.Context, doc model.Doc) (Out, error) {
				db, err := store.Decode[Db](doc)
				if err != nil {
					var zero Out
					return zero, err
				}
				return reviveFn(ctx, db)
			})
		})
	})
}
