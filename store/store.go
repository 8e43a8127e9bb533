package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sparklet/backend/model"
)

// Store is the mongo-backed document accessor. It is safe for concurrent
// use; all id conversion follows the Id/Ids field suffix convention.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func New(ctx context.Context, uri string, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "failed to ping mongo")
	}
	return &Store{client: client, db: client.Database(dbName)}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) GetOne(ctx context.Context, path string) (model.Doc, error) {
	collection, docID, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	oid, err := MakeObjectID(docID)
	if err != nil {
		return nil, err
	}
	var dbDoc bson.M
	err = s.db.Collection(collection).FindOne(ctx, bson.M{"_id": oid}).Decode(&dbDoc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s", path)
	}
	return bsonToDoc(dbDoc), nil
}

func (s *Store) GetMany(ctx context.Context, collection string, order *Order, filters ...Filter) ([]model.Doc, error) {
	filterObj, err := filtersToBson(filters, false)
	if err != nil {
		return nil, err
	}
	opts := mongooptions.Find().SetSort(orderToBson(order))
	cursor, err := s.db.Collection(collection).Find(ctx, filterObj, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", collection)
	}
	var dbDocs []bson.M
	if err := cursor.All(ctx, &dbDocs); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s cursor", collection)
	}
	docs := make([]model.Doc, 0, len(dbDocs))
	for _, dbDoc := range dbDocs {
		docs = append(docs, bsonToDoc(dbDoc))
	}
	return docs, nil
}

// Insert adds a new document and returns its generated id. The payload must
// not carry an id: use Put for client-chosen ids.
func (s *Store) Insert(ctx context.Context, collection string, payload interface{}) (string, error) {
	dbDoc, err := docToBson(payload, false)
	if err != nil {
		return "", err
	}
	if _, ok := dbDoc["_id"]; ok {
		return "", errors.New("id in insert payload is not allowed: use Put instead")
	}
	result, err := s.db.Collection(collection).InsertOne(ctx, dbDoc)
	if err != nil {
		return "", errors.Wrapf(err, "failed to insert into %s", collection)
	}
	return objectIDToHex(result.InsertedID).(string), nil
}

// Put writes a document under the id carried by the path. When upsert is
// false the document must not exist yet.
func (s *Store) Put(ctx context.Context, path string, payload interface{}, upsert bool) error {
	collection, docID, err := parsePath(path)
	if err != nil {
		return err
	}
	dbDoc, err := docToBson(payload, true)
	if err != nil {
		return err
	}
	oid, err := MakeObjectID(docID)
	if err != nil {
		return err
	}
	if existing, ok := dbDoc["_id"]; ok && existing != oid {
		return errors.Errorf("payload id does not match endpoint id: %v != %v", existing, oid)
	}
	dbDoc["_id"] = oid
	coll := s.db.Collection(collection)
	if upsert {
		_, err = coll.ReplaceOne(ctx, bson.M{"_id": oid}, dbDoc, mongooptions.Replace().SetUpsert(true))
	} else {
		_, err = coll.InsertOne(ctx, dbDoc)
	}
	return errors.Wrapf(err, "failed to put %s", path)
}

func (s *Store) Patch(ctx context.Context, path string, patches ...Patch) error {
	collection, docID, err := parsePath(path)
	if err != nil {
		return err
	}
	patchObj, err := patchesToBson(patches)
	if err != nil {
		return err
	}
	oid, err := MakeObjectID(docID)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": oid}, patchObj)
	return errors.Wrapf(err, "failed to patch %s", path)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	collection, docID, err := parsePath(path)
	if err != nil {
		return err
	}
	oid, err := MakeObjectID(docID)
	if err != nil {
		return err
	}
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrapf(err, "failed to delete %s", path)
	}
	if result.DeletedCount == 0 {
		return errors.Wrapf(ErrNotFound, "%s", path)
	}
	return nil
}

// DeleteMany removes every matching document and returns how many went.
func (s *Store) DeleteMany(ctx context.Context, collection string, filters ...Filter) (int64, error) {
	filterObj, err := filtersToBson(filters, false)
	if err != nil {
		return 0, err
	}
	result, err := s.db.Collection(collection).DeleteMany(ctx, filterObj)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to delete from %s", collection)
	}
	return result.DeletedCount, nil
}
