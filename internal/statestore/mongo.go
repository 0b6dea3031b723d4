package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/restsync/pkg/database"
	"github.com/BartekS5/restsync/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultCollection = "sync_state"

// MongoStore keeps one document per stream. The cursor mapping is stored as
// JSON text so values come back exactly as they were saved.
type MongoStore struct {
	coll       *mongo.Collection
	client     *mongo.Client
	ownsClient bool
}

type stateDoc struct {
	Stream    string    `bson:"_id"`
	State     string    `bson:"state"`
	SyncID    string    `bson:"sync_id"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{coll: client.Database(database).Collection(collection), client: client}
}

func (m *MongoStore) Load(ctx context.Context) (models.SyncState, error) {
	cursor, err := m.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer cursor.Close(ctx)

	state := models.SyncState{}
	for cursor.Next(ctx) {
		var doc stateDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
		st, err := decodeStream(doc.State)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", doc.Stream, err)
		}
		state[doc.Stream] = st
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return state, nil
}

func (m *MongoStore) Save(ctx context.Context, msg models.CheckpointMessage) error {
	var writes []mongo.WriteModel
	at := msg.EmittedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	for stream, st := range msg.Data {
		raw, err := encodeStream(st)
		if err != nil {
			return err
		}
		doc := stateDoc{Stream: stream, State: raw, SyncID: msg.SyncID, UpdatedAt: at}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": stream}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	if len(writes) == 0 {
		return nil
	}
	if _, err := m.coll.BulkWrite(ctx, writes); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (m *MongoStore) Reset(ctx context.Context, stream string) error {
	var err error
	if stream == "" {
		_, err = m.coll.DeleteMany(ctx, bson.M{})
	} else {
		_, err = m.coll.DeleteOne(ctx, bson.M{"_id": stream})
	}
	if err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}

func (m *MongoStore) Close() error {
	if !m.ownsClient {
		return nil
	}
	return database.DisconnectMongo(m.client)
}
