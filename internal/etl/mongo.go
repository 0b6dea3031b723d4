package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/restsync/pkg/logger"
	"github.com/BartekS5/restsync/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSink upserts records into one collection per stream, keyed by primary key.
// Records of streams without a primary key are inserted.
type MongoSink struct {
	Client      *mongo.Client
	Database    string
	Prefix      string
	Transformer *Transformer

	streams map[string]*StreamDefinition
}

func NewMongoSink(client *mongo.Client, database, prefix, syncID string, defs []*StreamDefinition) *MongoSink {
	m := &MongoSink{
		Client:      client,
		Database:    database,
		Prefix:      prefix,
		Transformer: NewTransformer(syncID),
		streams:     make(map[string]*StreamDefinition, len(defs)),
	}
	for _, d := range defs {
		m.streams[d.Name] = d
	}
	return m
}

func (m *MongoSink) Write(ctx context.Context, stream string, records []models.Record) error {
	def := m.streams[stream]

	var pk string
	var dateFields []string
	if def != nil {
		pk = def.PrimaryKey
		if def.Incremental() && def.StateKey != "" {
			dateFields = append(dateFields, def.StateKey)
		}
	}
	writes, err := m.writeModels(records, pk, dateFields)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	coll := m.Client.Database(m.Database).Collection(m.Prefix + stream)

	wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	res, err := coll.BulkWrite(wctx, writes)
	if err != nil {
		return err
	}
	logger.Infof("stream=%s Mongo BulkWrite: Insert %d, Match %d, Mod %d, Upsert %d",
		stream, res.InsertedCount, res.MatchedCount, res.ModifiedCount, res.UpsertedCount)
	return nil
}

// writeModels fails the whole batch on the first record that cannot be keyed,
// so the page is not acknowledged and the cursor stays put.
func (m *MongoSink) writeModels(records []models.Record, pk string, dateFields []string) ([]mongo.WriteModel, error) {
	var writes []mongo.WriteModel
	for i, rec := range records {
		doc, err := m.Transformer.ToDocument(rec, pk, dateFields...)
		if err != nil {
			// cursor fields that are not datetimes are stored as they came
			doc, err = m.Transformer.ToDocument(rec, pk)
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if pk == "" {
			writes = append(writes, mongo.NewInsertOneModel().SetDocument(doc))
			continue
		}
		filter := bson.M{"_id": doc["_id"]}
		update := bson.M{"$set": doc}
		writes = append(writes, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}
	return writes, nil
}
