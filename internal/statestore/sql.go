package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BartekS5/restsync/pkg/models"
)

// Dialect holds the statements that differ between SQL backends.
type Dialect struct {
	Name      string
	Schema    string
	Upsert    string
	SelectAll string
	DeleteOne string
	DeleteAll string
	stamp     func(time.Time) any
}

var SQLite = Dialect{
	Name: "sqlite",
	Schema: `
CREATE TABLE IF NOT EXISTS sync_state (
	stream TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	sync_id TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
`,
	Upsert: `
		INSERT INTO sync_state (stream, state, sync_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(stream) DO UPDATE SET
			state = excluded.state,
			sync_id = excluded.sync_id,
			updated_at = excluded.updated_at
	`,
	SelectAll: `SELECT stream, state FROM sync_state ORDER BY stream`,
	DeleteOne: `DELETE FROM sync_state WHERE stream = ?`,
	DeleteAll: `DELETE FROM sync_state`,
	stamp:     func(t time.Time) any { return t.UnixMilli() },
}

var SQLServer = Dialect{
	Name: "sqlserver",
	Schema: `
IF OBJECT_ID(N'dbo.sync_state', N'U') IS NULL
CREATE TABLE dbo.sync_state (
	stream NVARCHAR(255) NOT NULL PRIMARY KEY,
	state NVARCHAR(MAX) NOT NULL,
	sync_id NVARCHAR(64) NOT NULL DEFAULT '',
	updated_at DATETIME2 NOT NULL
);
`,
	Upsert: `
		MERGE dbo.sync_state WITH (HOLDLOCK) AS t
		USING (SELECT @p1 AS stream, @p2 AS state, @p3 AS sync_id, @p4 AS updated_at) AS s
		ON t.stream = s.stream
		WHEN MATCHED THEN
			UPDATE SET state = s.state, sync_id = s.sync_id, updated_at = s.updated_at
		WHEN NOT MATCHED THEN
			INSERT (stream, state, sync_id, updated_at) VALUES (s.stream, s.state, s.sync_id, s.updated_at);
	`,
	SelectAll: `SELECT stream, state FROM dbo.sync_state ORDER BY stream`,
	DeleteOne: `DELETE FROM dbo.sync_state WHERE stream = @p1`,
	DeleteAll: `DELETE FROM dbo.sync_state`,
	stamp:     func(t time.Time) any { return t.UTC() },
}

// SQLStore keeps one row per stream with the cursor mapping as JSON text.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Init(ctx context.Context) error {
	if s.dialect.Name == SQLite.Name {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			return fmt.Errorf("enable wal: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (models.SyncState, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.SelectAll)
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	state := models.SyncState{}
	for rows.Next() {
		var stream, raw string
		if err := rows.Scan(&stream, &raw); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		st, err := decodeStream(raw)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", stream, err)
		}
		state[stream] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return state, nil
}

func (s *SQLStore) Save(ctx context.Context, msg models.CheckpointMessage) error {
	if len(msg.Data) == 0 {
		return nil
	}
	transaction, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := transaction.PrepareContext(ctx, s.dialect.Upsert)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	at := msg.EmittedAt
	if at.IsZero() {
		at = time.Now()
	}
	for stream, st := range msg.Data {
		raw, err := encodeStream(st)
		if err != nil {
			_ = transaction.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, stream, raw, msg.SyncID, s.dialect.stamp(at)); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("upsert stream %s: %w", stream, err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

func (s *SQLStore) Reset(ctx context.Context, stream string) error {
	var err error
	if stream == "" {
		_, err = s.db.ExecContext(ctx, s.dialect.DeleteAll)
	} else {
		_, err = s.db.ExecContext(ctx, s.dialect.DeleteOne, stream)
	}
	if err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
