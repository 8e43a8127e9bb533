package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sparklet/backend/model"
)

// Feed is a normalized change feed for one collection. C closes when the
// feed terminates; Err reports why, nil meaning a clean Close. There is no
// automatic reconnect, supervising a dropped feed belongs to the caller.
type Feed struct {
	C <-chan model.Change[model.Doc]

	cancel context.CancelFunc
	mu     sync.Mutex
	err    error
}

func newFeed(ch <-chan model.Change[model.Doc], cancel context.CancelFunc) *Feed {
	return &Feed{C: ch, cancel: cancel}
}

func (f *Feed) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close releases the underlying watch resource. Idempotent.
func (f *Feed) Close() {
	f.cancel()
}

// changeEvent is the raw change stream document we care about.
type changeEvent struct {
	OperationType            string `bson:"operationType"`
	FullDocument             bson.M `bson:"fullDocument"`
	FullDocumentBeforeChange bson.M `bson:"fullDocumentBeforeChange"`
	DocumentKey              struct {
		ID interface{} `bson:"_id"`
	} `bson:"documentKey"`
}

// Watch emits one Change per accepted mutation on the collection, in the
// store's total order. Filters are evaluated on the post-image. Replace
// events collapse to updates. On stream error the feed closes and Err
// reports the cause; the native cursor is released unconditionally.
func (s *Store) Watch(ctx context.Context, collection string, filters ...Filter) (*Feed, error) {
	matchObj, err := filtersToBson(filters, true)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{{{Key: "$match", Value: matchObj}}}
	opts := mongooptions.ChangeStream().
		SetFullDocument(mongooptions.UpdateLookup).
		SetFullDocumentBeforeChange(mongooptions.WhenAvailable)
	cs, err := s.db.Collection(collection).Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to watch %s", collection)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	ch := make(chan model.Change[model.Doc])
	feed := newFeed(ch, cancel)

	go func() {
		defer close(ch)
		defer cs.Close(context.Background())
		for cs.Next(feedCtx) {
			var event changeEvent
			if err := cs.Decode(&event); err != nil {
				feed.setErr(errors.Wrapf(err, "failed to decode %s change", collection))
				return
			}
			change, ok := normalizeEvent(event)
			if !ok {
				continue
			}
			select {
			case ch <- change:
			case <-feedCtx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && feedCtx.Err() == nil {
			feed.setErr(errors.Wrapf(err, "%s change stream failed", collection))
		}
	}()

	return feed, nil
}

func normalizeEvent(event changeEvent) (model.Change[model.Doc], bool) {
	switch event.OperationType {
	case "insert":
		after := bsonToDoc(event.FullDocument)
		return model.Change[model.Doc]{
			Type:     model.ChangeInsert,
			DocID:    after.ID(),
			DocAfter: &after,
		}, true
	case "delete":
		before := bsonToDoc(event.FullDocumentBeforeChange)
		docID := before.ID()
		if docID == "" {
			docID, _ = objectIDToHex(event.DocumentKey.ID).(string)
		}
		return model.Change[model.Doc]{
			Type:      model.ChangeDelete,
			DocID:     docID,
			DocBefore: &before,
		}, true
	case "update", "replace":
		before := bsonToDoc(event.FullDocumentBeforeChange)
		after := bsonToDoc(event.FullDocument)
		return model.Change[model.Doc]{
			Type:      model.ChangeUpdate,
			DocID:     after.ID(),
			DocBefore: &before,
			DocAfter:  &after,
		}, true
	default:
		return model.Change[model.Doc]{}, false
	}
}
