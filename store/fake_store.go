package store

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sparklet/backend/model"
)

// FakeStore is an in-memory Accessor + Source for tests. Mutations synthesize
// the same normalized changes a mongo change stream would emit, so feed
// consumers can be exercised without a database.
type FakeStore struct {
	mu    sync.Mutex
	colls map[string]map[string]model.Doc
	feeds map[string][]*fakeFeed

	// Queries counts GetMany calls per collection, for asserting batching.
	Queries map[string]int
}

type fakeFeed struct {
	feed    *Feed
	ch      chan model.Change[model.Doc]
	filters []Filter
	done    <-chan struct{}
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		colls:   map[string]map[string]model.Doc{},
		feeds:   map[string][]*fakeFeed{},
		Queries: map[string]int{},
	}
}

// Seed inserts a document with a fixed id, without emitting a change.
func (f *FakeStore) Seed(collection string, doc model.Doc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coll(collection)[doc.ID()] = copyDoc(doc)
}

// Get returns the stored document, or nil.
func (f *FakeStore) Get(collection, id string) model.Doc {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.coll(collection)[id]
	if !ok {
		return nil
	}
	return copyDoc(doc)
}

// Count returns the number of documents in a collection.
func (f *FakeStore) Count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.coll(collection))
}

func (f *FakeStore) coll(name string) map[string]model.Doc {
	c, ok := f.colls[name]
	if !ok {
		c = map[string]model.Doc{}
		f.colls[name] = c
	}
	return c
}

func (f *FakeStore) GetOne(ctx context.Context, path string) (model.Doc, error) {
	collection, docID, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.coll(collection)[docID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	}
	return copyDoc(doc), nil
}

func (f *FakeStore) GetMany(ctx context.Context, collection string, order *Order, filters ...Filter) ([]model.Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries[collection]++
	docs := []model.Doc{}
	for _, doc := range f.coll(collection) {
		if matchesAll(doc, filters) {
			docs = append(docs, copyDoc(doc))
		}
	}
	sortDocs(docs, order)
	return docs, nil
}

func (f *FakeStore) Insert(ctx context.Context, collection string, payload interface{}) (string, error) {
	doc, err := toFakeDoc(payload)
	if err != nil {
		return "", err
	}
	if doc.ID() != "" {
		return "", errors.New("id in insert payload is not allowed: use Put instead")
	}
	id := model.StableID(uuid.NewString())
	doc["id"] = id

	f.mu.Lock()
	f.coll(collection)[id] = doc
	after := copyDoc(doc)
	f.emitLocked(collection, model.Change[model.Doc]{Type: model.ChangeInsert, DocID: id, DocAfter: &after})
	f.mu.Unlock()
	return id, nil
}

func (f *FakeStore) Put(ctx context.Context, path string, payload interface{}, upsert bool) error {
	collection, docID, err := parsePath(path)
	if err != nil {
		return err
	}
	doc, err := toFakeDoc(payload)
	if err != nil {
		return err
	}
	doc["id"] = docID

	f.mu.Lock()
	defer f.mu.Unlock()
	previous, exists := f.coll(collection)[docID]
	if exists && !upsert {
		return errors.Errorf("%s already exists", path)
	}
	f.coll(collection)[docID] = doc
	after := copyDoc(doc)
	if exists {
		before := copyDoc(previous)
		f.emitLocked(collection, model.Change[model.Doc]{Type: model.ChangeUpdate, DocID: docID, DocBefore: &before, DocAfter: &after})
	} else {
		f.emitLocked(collection, model.Change[model.Doc]{Type: model.ChangeInsert, DocID: docID, DocAfter: &after})
	}
	return nil
}

func (f *FakeStore) Patch(ctx context.Context, path string, patches ...Patch) error {
	collection, docID, err := parsePath(path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.coll(collection)[docID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%s", path)
	}
	before := copyDoc(doc)
	for _, p := range patches {
		if err := applyPatch(doc, p); err != nil {
			return err
		}
	}
	after := copyDoc(doc)
	f.emitLocked(collection, model.Change[model.Doc]{Type: model.ChangeUpdate, DocID: docID, DocBefore: &before, DocAfter: &after})
	return nil
}

func (f *FakeStore) Delete(ctx context.Context, path string) error {
	collection, docID, err := parsePath(path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.coll(collection)[docID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%s", path)
	}
	delete(f.coll(collection), docID)
	before := copyDoc(doc)
	f.emitLocked(collection, model.Change[model.Doc]{Type: model.ChangeDelete, DocID: docID, DocBefore: &before})
	return nil
}

func (f *FakeStore) DeleteMany(ctx context.Context, collection string, filters ...Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, doc := range f.coll(collection) {
		if matchesAll(doc, filters) {
			delete(f.coll(collection), id)
			before := copyDoc(doc)
			f.emitLocked(collection, model.Change[model.Doc]{Type: model.ChangeDelete, DocID: id, DocBefore: &before})
			deleted++
		}
	}
	return deleted, nil
}

func (f *FakeStore) Watch(ctx context.Context, collection string, filters ...Filter) (*Feed, error) {
	feedCtx, cancel := context.WithCancel(ctx)
	ch := make(chan model.Change[model.Doc], 256)
	feed := newFeed(ch, cancel)
	ff := &fakeFeed{feed: feed, ch: ch, filters: filters, done: feedCtx.Done()}

	f.mu.Lock()
	f.feeds[collection] = append(f.feeds[collection], ff)
	f.mu.Unlock()

	go func() {
		<-feedCtx.Done()
		f.mu.Lock()
		feeds := f.feeds[collection]
		for i, other := range feeds {
			if other == ff {
				f.feeds[collection] = append(feeds[:i], feeds[i+1:]...)
				break
			}
		}
		f.mu.Unlock()
		close(ch)
	}()

	return feed, nil
}

// FeedCount reports how many feeds are open on a collection.
func (f *FakeStore) FeedCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feeds[collection])
}

// Emit injects a change directly, bypassing document state.
func (f *FakeStore) Emit(collection string, change model.Change[model.Doc]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitLocked(collection, change)
}

func (f *FakeStore) emitLocked(collection string, change model.Change[model.Doc]) {
	for _, ff := range f.feeds[collection] {
		if len(ff.filters) > 0 {
			image := change.Doc()
			if image == nil || !matchesAll(*image, ff.filters) {
				continue
			}
		}
		select {
		case ff.ch <- change:
		case <-ff.done:
		default:
		}
	}
}

// toFakeDoc round-trips structs through the same bson tags the real store
// uses, but keeps ids as plain strings.
func toFakeDoc(payload interface{}) (model.Doc, error) {
	if doc, ok := payload.(model.Doc); ok {
		return copyDoc(doc), nil
	}
	if m, ok := payload.(map[string]interface{}); ok {
		return copyDoc(model.Doc(m)), nil
	}
	m, err := docToBsonPlain(payload)
	if err != nil {
		return nil, err
	}
	return model.Doc(m), nil
}

func copyDoc(doc model.Doc) model.Doc {
	out := model.Doc{}
	for key, value := range doc {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case model.Doc:
		return map[string]interface{}(copyDoc(v))
	case map[string]interface{}:
		return map[string]interface{}(copyDoc(model.Doc(v)))
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, item := range v {
			out = append(out, copyValue(item))
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return value
	}
}

func matchesAll(doc model.Doc, filters []Filter) bool {
	for _, f := range filters {
		if !matches(doc, f) {
			return false
		}
	}
	return true
}

func matches(doc model.Doc, f Filter) bool {
	field := f.Field
	if field == "_id" {
		field = "id"
	}
	value := doc[field]
	switch f.Operator {
	case FilterEq:
		return anyEqual(value, f.Value)
	case FilterIn:
		return anyOverlap(value, f.Value)
	case FilterNin:
		return !anyOverlap(value, f.Value)
	case FilterRegex:
		s, ok := value.(string)
		if !ok {
			return false
		}
		pattern, ok := f.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	default:
		return false
	}
}

func anyEqual(value, want interface{}) bool {
	return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", want)
}

// anyOverlap mirrors mongo's $in: true if the field value, or any element of
// an array field value, equals any candidate.
func anyOverlap(value, candidates interface{}) bool {
	for _, candidate := range asSlice(candidates) {
		for _, item := range asSlice(value) {
			if anyEqual(item, candidate) {
				return true
			}
		}
	}
	return false
}

func asSlice(value interface{}) []interface{} {
	switch v := value.(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, 0, len(v))
		for _, s := range v {
			out = append(out, s)
		}
		return out
	case nil:
		return nil
	default:
		return []interface{}{v}
	}
}

func applyPatch(doc model.Doc, p Patch) error {
	switch p.Operator {
	case PatchSet:
		doc[p.Field] = copyValue(p.Value)
	case PatchInc:
		doc[p.Field] = toInt(doc[p.Field]) + toInt(p.Value)
	case PatchAddToSet:
		current := asSlice(doc[p.Field])
		for _, item := range current {
			if anyEqual(item, p.Value) {
				return nil
			}
		}
		doc[p.Field] = append(current, copyValue(p.Value))
	case PatchPull:
		kept := []interface{}{}
		for _, item := range asSlice(doc[p.Field]) {
			if !pullMatches(item, p.Value) {
				kept = append(kept, item)
			}
		}
		doc[p.Field] = kept
	default:
		return errors.Errorf("unsupported patch operator %q", p.Operator)
	}
	return nil
}

// pullMatches treats a map value as a partial match, like mongo's $pull with
// a condition document.
func pullMatches(item, condition interface{}) bool {
	condMap, ok := toMap(condition)
	if !ok {
		return anyEqual(item, condition)
	}
	itemMap, ok := toMap(item)
	if !ok {
		return false
	}
	for key, want := range condMap {
		if !anyEqual(itemMap[key], want) {
			return false
		}
	}
	return true
}

func toMap(value interface{}) (map[string]interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, true
	case model.Doc:
		return v, true
	default:
		if reflect.ValueOf(value).Kind() != reflect.Struct {
			return nil, false
		}
		m, err := docToBsonPlain(value)
		if err != nil || len(m) == 0 {
			return nil, false
		}
		return m, true
	}
}

func toInt(value interface{}) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func sortDocs(docs []model.Doc, order *Order) {
	if order == nil {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		less := lessValue(docs[i][order.Field], docs[j][order.Field])
		if order.Desc {
			return !less && !anyEqual(docs[i][order.Field], docs[j][order.Field])
		}
		return less
	})
}

func lessValue(a, b interface{}) bool {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv) < 0
		}
	default:
		return float64(toInt(a)) < float64(toInt(b))
	}
	return false
}
