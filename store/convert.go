package store

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sparklet/backend/model"
)

var idFieldRe = regexp.MustCompile(`[Ii]ds?$`)

// isIDField reports whether a field holds an id or an array of ids,
// e.g. authorId, goalIds. The suffix convention governs both id encoding on
// write and reference resolution on read.
func isIDField(field string) bool {
	return field != "id" && idFieldRe.MatchString(field)
}

// MakeObjectID converts an opaque string id into a mongo ObjectID. Ids that
// already look like ObjectIDs are used as-is, anything else (identity
// provider subjects, deterministic combo ids) is hashed into one.
// This cannot be changed recklessly: already inserted documents would not be
// fetchable anymore.
func MakeObjectID(id string) (primitive.ObjectID, error) {
	if len(id) != 24 {
		id = model.StableID(id)
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(err, "failed to convert %q into an ObjectID", id)
	}
	return oid, nil
}

// parsePath splits "collection/docId" into its two parts.
func parsePath(path string) (string, string, error) {
	parts := []string{}
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 2 {
		return "", "", errors.Errorf("path %q should yield 2 non-empty elements when split on '/'", path)
	}
	return parts[0], parts[1], nil
}

func idsToObjectIDs(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case []string:
		oids := make([]primitive.ObjectID, 0, len(v))
		for _, s := range v {
			oid, err := MakeObjectID(s)
			if err != nil {
				return nil, err
			}
			oids = append(oids, oid)
		}
		return oids, nil
	case []interface{}:
		oids := make([]interface{}, 0, len(v))
		for _, item := range v {
			oid, err := idsToObjectIDs(item)
			if err != nil {
				return nil, err
			}
			oids = append(oids, oid)
		}
		return oids, nil
	case string:
		return MakeObjectID(v)
	default:
		return nil, errors.Errorf("id field value %v is neither a string nor a string array", value)
	}
}

// docToBson converts a payload (struct or map) into the stored shape:
// "id" becomes "_id" (when withID is set), id-suffixed fields become
// ObjectIDs.
func docToBson(payload interface{}, withID bool) (bson.M, error) {
	raw, err := bson.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode payload")
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode payload")
	}
	out := bson.M{}
	for key, value := range m {
		if key == "id" || key == "_id" {
			if !withID {
				continue
			}
			s, ok := value.(string)
			if !ok {
				return nil, errors.Errorf("document id %v is not a string", value)
			}
			oid, err := MakeObjectID(s)
			if err != nil {
				return nil, err
			}
			out["_id"] = oid
			continue
		}
		if isIDField(key) && value != nil {
			converted, err := idsToObjectIDs(normalizeValue(value))
			if err != nil {
				return nil, err
			}
			out[key] = converted
			continue
		}
		out[key] = value
	}
	return out, nil
}

// bsonToDoc converts a stored document into a model.Doc: "_id" becomes a hex
// "id" string and id-suffixed fields become hex strings again.
func bsonToDoc(dbDoc bson.M) model.Doc {
	doc := model.Doc{}
	for key, value := range dbDoc {
		value = normalizeValue(value)
		if key == "_id" {
			doc["id"] = objectIDToHex(value)
			continue
		}
		if isIDField(key) {
			doc[key] = idsToHex(value)
			continue
		}
		doc[key] = value
	}
	return doc
}

func objectIDToHex(value interface{}) interface{} {
	if oid, ok := value.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return value
}

func idsToHex(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, item := range v {
			out = append(out, idsToHex(item))
		}
		return out
	default:
		return value
	}
}

// normalizeValue flattens the bson primitive container types into plain maps
// and slices so model.Doc values look the same regardless of decode path.
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.D:
		m := bson.M{}
		for _, e := range v {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.M:
		m := bson.M{}
		for key, item := range v {
			m[key] = normalizeValue(item)
		}
		return m
	case primitive.A:
		out := make([]interface{}, 0, len(v))
		for _, item := range v {
			out = append(out, normalizeValue(item))
		}
		return out
	case primitive.DateTime:
		return v.Time().UTC()
	default:
		return value
	}
}

func filtersToBson(filters []Filter, onFullDocument bool) (bson.M, error) {
	out := bson.M{}
	for _, f := range filters {
		field := f.Field
		value := f.Value
		if field == "id" {
			field = "_id"
		}
		if field == "_id" || isIDField(f.Field) {
			converted, err := idsToObjectIDs(value)
			if err != nil {
				return nil, err
			}
			value = converted
		}
		if onFullDocument {
			field = "fullDocument." + field
		}
		cond := bson.M{"$" + string(f.Operator): value}
		if f.Operator == FilterRegex {
			cond["$options"] = "i"
		}
		out[field] = cond
	}
	return out, nil
}

// docToBsonPlain converts a payload through its bson tags without any
// ObjectID encoding. Used by the in-memory fake.
func docToBsonPlain(payload interface{}) (map[string]interface{}, error) {
	raw, err := bson.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode payload")
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode payload")
	}
	out := map[string]interface{}{}
	for key, value := range m {
		out[key] = normalizeValue(value)
	}
	return out, nil
}

func orderToBson(order *Order) bson.M {
	if order == nil {
		return bson.M{}
	}
	direction := 1
	if order.Desc {
		direction = -1
	}
	return bson.M{order.Field: direction}
}

func patchesToBson(patches []Patch) (bson.M, error) {
	out := bson.M{}
	for _, p := range patches {
		if p.Field == "id" {
			return nil, errors.New("id field can't be patched")
		}
		value := p.Value
		if isIDField(p.Field) {
			converted, err := idsToObjectIDs(value)
			if err != nil {
				return nil, err
			}
			value = converted
		}
		key := "$" + string(p.Operator)
		ops, ok := out[key].(bson.M)
		if !ok {
			ops = bson.M{}
			out[key] = ops
		}
		ops[p.Field] = value
	}
	return out, nil
}
