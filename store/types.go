package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sparklet/backend/model"
)

// ErrNotFound is returned when a path points at no document. Callers doing
// relational lookups usually treat it as "absent" rather than as a failure.
var ErrNotFound = errors.New("document not found")

type FilterOp string

const (
	FilterEq    FilterOp = "eq"
	FilterIn    FilterOp = "in"
	FilterNin   FilterOp = "nin"
	FilterRegex FilterOp = "regex"
)

type Filter struct {
	Field    string
	Operator FilterOp
	Value    interface{}
}

type Order struct {
	Field string
	Desc  bool
}

type PatchOp string

const (
	PatchSet      PatchOp = "set"
	PatchInc      PatchOp = "inc"
	PatchAddToSet PatchOp = "addToSet"
	PatchPull     PatchOp = "pull"
)

type Patch struct {
	Field    string
	Operator PatchOp
	Value    interface{}
}

// Accessor is the generic document CRUD surface. Paths are
// "collection/docId" pairs; bare collection names address the whole
// collection.
type Accessor interface {
	GetOne(ctx context.Context, path string) (model.Doc, error)
	GetMany(ctx context.Context, collection string, order *Order, filters ...Filter) ([]model.Doc, error)
	Insert(ctx context.Context, collection string, payload interface{}) (string, error)
	Put(ctx context.Context, path string, payload interface{}, upsert bool) error
	Patch(ctx context.Context, path string, patches ...Patch) error
	Delete(ctx context.Context, path string) error
	DeleteMany(ctx context.Context, collection string, filters ...Filter) (int64, error)
}

// Source produces normalized change feeds for collections.
type Source interface {
	Watch(ctx context.Context, collection string, filters ...Filter) (*Feed, error)
}
