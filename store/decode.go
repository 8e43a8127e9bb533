package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sparklet/backend/model"
)

// Decode maps a raw document onto a typed struct via its bson tags.
func Decode[T any](doc model.Doc) (T, error) {
	var out T
	raw, err := bson.Marshal(bson.M(doc))
	if err != nil {
		return out, errors.Wrap(err, "failed to encode doc")
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return out, errors.Wrap(err, "failed to decode doc")
	}
	return out, nil
}

// GetDocument fetches one document and decodes it.
func GetDocument[T any](ctx context.Context, a Accessor, path string) (T, error) {
	doc, err := a.GetOne(ctx, path)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](doc)
}

// GetDocuments fetches a filtered, ordered collection and decodes it.
func GetDocuments[T any](ctx context.Context, a Accessor, collection string, order *Order, filters ...Filter) ([]T, error) {
	docs, err := a.GetMany(ctx, collection, order, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		decoded, err := Decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}
