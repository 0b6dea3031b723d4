package etl

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/BartekS5/restsync/pkg/models"
)

// JSONLinesSink writes RECORD and STATE messages, one JSON object per line.
// It is an Emitter too, so checkpoints interleave with the records they cover.
type JSONLinesSink struct {
	mu          sync.Mutex
	enc         *json.Encoder
	transformer *Transformer
}

func NewJSONLinesSink(w io.Writer, syncID string) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w), transformer: NewTransformer(syncID)}
}

func (j *JSONLinesSink) Write(ctx context.Context, stream string, records []models.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.enc.Encode(j.transformer.ToRecordMessage(stream, rec)); err != nil {
			return err
		}
	}
	return nil
}

func (j *JSONLinesSink) EmitCheckpoint(msg models.CheckpointMessage) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(msg)
}
