package statestore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BartekS5/restsync/internal/config"
	"github.com/BartekS5/restsync/pkg/database"
	"github.com/BartekS5/restsync/pkg/logger"
	"github.com/BartekS5/restsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	store := NewSQLStore(db, SQLite)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGO_CONNECTION_STRING")
	if uri == "" {
		t.Skip("MONGO_CONNECTION_STRING not set")
	}
	client, err := database.ConnectMongo(uri)
	require.NoError(t, err)
	store := NewMongoStore(client, "restsync_test", "sync_state_"+time.Now().Format("150405.000000"))
	store.ownsClient = true
	t.Cleanup(func() {
		_ = store.coll.Drop(context.Background())
		_ = store.Close()
	})
	return store
}

func newSQLServerStore(t *testing.T) *SQLStore {
	t.Helper()
	conn := os.Getenv("SQL_CONNECTION_STRING")
	if conn == "" {
		t.Skip("SQL_CONNECTION_STRING not set")
	}
	db, err := database.ConnectSQL(conn)
	require.NoError(t, err)
	store := NewSQLStore(db, SQLServer)
	require.NoError(t, store.Init(context.Background()))
	require.NoError(t, store.Reset(context.Background(), ""))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "state.json"))
		},
		"sqlite":    func(t *testing.T) Store { return newSQLiteStore(t) },
		"mongo":     func(t *testing.T) Store { return newMongoStore(t) },
		"sqlserver": func(t *testing.T) Store { return newSQLServerStore(t) },
	}
}

func checkpoint(data models.SyncState) models.CheckpointMessage {
	return models.CheckpointMessage{
		Type:      models.MessageTypeState,
		SyncID:    "sync-1",
		Data:      data,
		EmittedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			empty, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			saved := models.SyncState{
				"automations": {"create_time": "2023-01-31T23:59:59.001Z"},
				"campaigns":   {"create_time": "2220-11-23T05:42:11+00:00"},
			}
			require.NoError(t, store.Save(ctx, checkpoint(saved)))

			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, saved, loaded)

			// saving what was loaded changes nothing
			require.NoError(t, store.Save(ctx, checkpoint(loaded)))
			again, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, saved, again)
		})
	}
}

func TestStoreMergesAndResets(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, checkpoint(models.SyncState{"a": {"id": "1"}, "b": {"id": "2"}})))
			require.NoError(t, store.Save(ctx, checkpoint(models.SyncState{"b": {"id": "3"}})))

			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, models.SyncState{"a": {"id": "1"}, "b": {"id": "3"}}, loaded)

			require.NoError(t, store.Reset(ctx, "a"))
			loaded, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, models.SyncState{"b": {"id": "3"}}, loaded)

			require.NoError(t, store.Reset(ctx, ""))
			loaded, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, loaded)
		})
	}
}

func TestNumericCursorKeepsItsText(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, checkpoint(models.SyncState{"events": {"seq": 12345678901234567}})))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567"), loaded["events"]["seq"])
}

func TestFileStoreLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(context.Background(), checkpoint(models.SyncState{
		"automations": {"create_time": "2023-01-31T23:59:59.001Z"},
	})))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"automations": {"create_time": "2023-01-31T23:59:59.001Z"}}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), &config.Config{StateBackend: config.BackendFile, StatePath: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(context.Background(), &config.Config{StateBackend: config.BackendSQLite, StatePath: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), &config.Config{StateBackend: "etcd"})
	assert.Error(t, err)
}
