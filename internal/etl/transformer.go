package etl

import (
	"fmt"
	"time"

	"github.com/BartekS5/restsync/pkg/models"
	"github.com/BartekS5/restsync/pkg/utils"
)

// Transformer shapes records for the sinks.
type Transformer struct {
	SyncID string
	now    func() time.Time
}

func NewTransformer(syncID string) *Transformer {
	return &Transformer{SyncID: syncID, now: func() time.Time { return time.Now().UTC() }}
}

// ToRecordMessage wraps a record for the JSON lines output.
func (t *Transformer) ToRecordMessage(stream string, rec models.Record) models.RecordMessage {
	return models.RecordMessage{
		Type:      models.MessageTypeRecord,
		SyncID:    t.SyncID,
		Stream:    stream,
		Data:      rec,
		EmittedAt: t.now(),
	}
}

// ToDocument converts a record into a Mongo document keyed by its primary key.
// Fields that look like datetimes listed in dateFields are stored as dates.
func (t *Transformer) ToDocument(rec models.Record, primaryKey string, dateFields ...string) (map[string]any, error) {
	doc := make(map[string]any, len(rec)+2)
	for k, v := range rec {
		doc[k] = v
	}
	for _, f := range dateFields {
		val, ok := doc[f]
		if !ok || val == nil {
			continue
		}
		ts, err := utils.ConvertDateTime(val)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f, err)
		}
		doc[f] = ts
	}
	if primaryKey != "" {
		id, ok := rec[primaryKey]
		if !ok || id == nil {
			return nil, fmt.Errorf("missing primary key field: %s", primaryKey)
		}
		doc["_id"] = id
	}
	doc["_synced_at"] = t.now()
	if t.SyncID != "" {
		doc["_sync_id"] = t.SyncID
	}
	return doc, nil
}
