// Package revive enriches stored documents into their API-facing form by
// resolving foreign-key references against the document store. Resolution is
// batched: reviving N documents referencing K distinct ids issues one lookup
// per referenced collection, never N.
package revive

import (
	"context"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/sparklet/backend/model"
	"github.com/sparklet/backend/store"
)

type Reviver struct {
	store store.Accessor
}

func New(s store.Accessor) *Reviver {
	return &Reviver{store: s}
}

// lookupUsers resolves a set of user ids in one query. Ids that no longer
// resolve map to an explicit missing marker instead of failing the batch:
// references can dangle transiently under concurrent deletion.
func (r *Reviver) lookupUsers(ctx context.Context, ids []string, viewerID string) (map[string]model.User, error) {
	users := map[string]model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	dbUsers, err := store.GetDocuments[model.DbUser](
		ctx, r.store, "users", nil,
		store.Filter{Field: "id", Operator: store.FilterIn, Value: ids},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve users")
	}
	for _, dbUser := range dbUsers {
		user, err := reviveUser(dbUser, viewerID)
		if err != nil {
			return nil, err
		}
		users[dbUser.ID] = user
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			users[id] = model.MissingUser(id)
		}
	}
	return users, nil
}

func reviveUser(db model.DbUser, viewerID string) (model.User, error) {
	var user model.User
	if err := copier.Copy(&user, &db); err != nil {
		return user, errors.Wrap(err, "failed to copy user")
	}
	user.IsUser = viewerID != "" && db.ID == viewerID
	return user, nil
}

func (r *Reviver) User(ctx context.Context, db model.DbUser, viewerID string) (model.User, error) {
	return reviveUser(db, viewerID)
}

func (r *Reviver) Users(ctx context.Context, dbs []model.DbUser, viewerID string) ([]model.User, error) {
	users := make([]model.User, 0, len(dbs))
	for _, db := range dbs {
		user, err := reviveUser(db, viewerID)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// uniqueIDs dedupes non-empty ids, preserving first-seen order.
func uniqueIDs(ids []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func replaceFromName(content string, from model.User) string {
	return strings.ReplaceAll(content, model.FromNamePlaceholder, from.Name)
}
