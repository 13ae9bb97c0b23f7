package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const metaField = "_meta"

// Mongo stores each document as a BSON document keyed by _id. Timestamps live
// under _meta so they never collide with body fields.
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
	now      func() time.Time
}

// OpenMongo connects to uri and pings the primary.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, fmt.Errorf("docstore: mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("docstore: mongo ping: %w", err)
	}
	return &Mongo{
		client:   client,
		database: client.Database(database),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Create(ctx context.Context, collection string, doc Document) (string, error) {
	if err := validBody(doc.Body); err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	var fields bson.D
	if err := bson.UnmarshalExtJSON(doc.Body, false, &fields); err != nil {
		return "", fmt.Errorf("docstore: convert body: %w", err)
	}
	now := m.now()
	record := append(bson.D{{Key: "_id", Value: doc.ID}}, fields...)
	record = append(record, bson.E{Key: metaField, Value: bson.D{
		{Key: "created_at", Value: now},
		{Key: "updated_at", Value: now},
	}})
	if _, err := m.database.Collection(collection).InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrConflict
		}
		return "", fmt.Errorf("docstore: insert %s/%s: %w", collection, doc.ID, err)
	}
	return doc.ID, nil
}

func (m *Mongo) Update(ctx context.Context, collection, id string, patch json.RawMessage) error {
	var fields bson.D
	if err := bson.UnmarshalExtJSON(patch, false, &fields); err != nil {
		return fmt.Errorf("docstore: convert patch: %w", err)
	}
	set := append(bson.D{}, fields...)
	set = append(set, bson.E{Key: metaField + ".updated_at", Value: m.now()})
	res, err := m.database.Collection(collection).UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("docstore: update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	res, err := m.database.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (Document, error) {
	raw, err := m.database.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	return decodeMongo(raw)
}

func (m *Mongo) List(ctx context.Context, collection string, opts ListOptions) ([]Document, error) {
	find := options.Find()
	dir := 1
	if opts.Descending {
		dir = -1
	}
	if opts.OrderBy != "" {
		find.SetSort(bson.D{{Key: opts.OrderBy, Value: dir}, {Key: metaField + ".created_at", Value: 1}})
	} else {
		find.SetSort(bson.D{{Key: metaField + ".created_at", Value: 1}, {Key: "_id", Value: 1}})
	}
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}
	cur, err := m.database.Collection(collection).Find(ctx, bson.D{}, find)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	defer func() {
		_ = cur.Close(ctx)
	}()

	var docs []Document
	for cur.Next(ctx) {
		doc, err := decodeMongo(cur.Current)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, cur.Err()
}

func decodeMongo(raw bson.Raw) (Document, error) {
	var record bson.D
	if err := bson.Unmarshal(raw, &record); err != nil {
		return Document{}, fmt.Errorf("docstore: decode bson: %w", err)
	}
	var doc Document
	body := make(bson.D, 0, len(record))
	for _, elem := range record {
		switch elem.Key {
		case "_id":
			doc.ID = fmt.Sprint(elem.Value)
		case metaField:
			if meta, ok := elem.Value.(bson.D); ok {
				for _, m := range meta {
					switch m.Key {
					case "created_at":
						doc.CreatedAt = bsonTime(m.Value)
					case "updated_at":
						doc.UpdatedAt = bsonTime(m.Value)
					}
				}
			}
		default:
			body = append(body, elem)
		}
	}
	out, err := bson.MarshalExtJSON(body, false, false)
	if err != nil {
		return Document{}, fmt.Errorf("docstore: encode body: %w", err)
	}
	doc.Body = out
	return doc, nil
}

func bsonTime(v any) time.Time {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	}
	return time.Time{}
}
