// Package statestore persists checkpoints between syncs. Every backend stores
// the same layout: stream name to that stream's cursor mapping.
package statestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/BartekS5/restsync/internal/config"
	"github.com/BartekS5/restsync/pkg/database"
	"github.com/BartekS5/restsync/pkg/models"
)

// Store loads the state a sync starts from and saves the checkpoints it emits.
type Store interface {
	// Load returns the saved state, empty when nothing was saved yet.
	Load(ctx context.Context) (models.SyncState, error)
	// Save persists every stream entry of msg.
	Save(ctx context.Context, msg models.CheckpointMessage) error
	// Reset forgets one stream's state, or all of it when stream is empty.
	Reset(ctx context.Context, stream string) error
	Close() error
}

// Open returns the backend selected by cfg.StateBackend, schema initialized.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StateBackend {
	case config.BackendFile:
		return NewFileStore(cfg.StatePath), nil
	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.StatePath)
		if err != nil {
			return nil, err
		}
		return initSQL(ctx, NewSQLStore(db, SQLite))
	case config.BackendSQLServer:
		db, err := database.ConnectSQL(cfg.SQLConnString)
		if err != nil {
			return nil, err
		}
		return initSQL(ctx, NewSQLStore(db, SQLServer))
	case config.BackendMongo:
		client, err := database.ConnectMongo(cfg.MongoConnString)
		if err != nil {
			return nil, err
		}
		s := NewMongoStore(client, cfg.MongoDatabase, DefaultCollection)
		s.ownsClient = true
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

func initSQL(ctx context.Context, s *SQLStore) (Store, error) {
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func encodeStream(state models.StreamState) (string, error) {
	if state == nil {
		state = models.StreamState{}
	}
	b, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode stream state: %w", err)
	}
	return string(b), nil
}

// decodeStream keeps numbers as json.Number so they round-trip unchanged.
func decodeStream(raw string) (models.StreamState, error) {
	state := models.StreamState{}
	if err := decodeJSON([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode stream state: %w", err)
	}
	return state, nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
