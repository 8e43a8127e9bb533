package revive

import (
	"context"

	"github.com/sparklet/backend/model"
)

// MapChange revives the present side(s) of a change, leaving the absent side
// absent. A delete never resolves an after image.
func MapChange[In, Out any](ctx context.Context, c model.Change[In], fn func(context.Context, In) (Out, error)) (model.Change[Out], error) {
	out := model.Change[Out]{Type: c.Type, DocID: c.DocID}
	if c.DocBefore != nil {
		before, err := fn(ctx, *c.DocBefore)
		if err != nil {
			return out, err
		}
		out.DocBefore = &before
	}
	if c.DocAfter != nil {
		after, err := fn(ctx, *c.DocAfter)
		if err != nil {
			return out, err
		}
		out.DocAfter = &after
	}
	return out, nil
}
