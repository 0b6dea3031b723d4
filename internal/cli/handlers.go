package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BartekS5/restsync/internal/config"
	"github.com/BartekS5/restsync/internal/etl"
	"github.com/BartekS5/restsync/internal/statestore"
	"github.com/BartekS5/restsync/internal/transport"
	"github.com/BartekS5/restsync/pkg/database"
	"github.com/BartekS5/restsync/pkg/logger"
	"github.com/BartekS5/restsync/pkg/models"
	"github.com/google/uuid"
)

// compile loads the definition and user config and compiles the selected streams.
// Nothing is sent before this succeeds.
func compile(opts *SyncOptions) (*models.ConnectorConfig, []*etl.StreamDefinition, error) {
	conn, err := config.LoadConnector(opts.DefinitionFile)
	if err != nil {
		return nil, nil, err
	}
	userCfg, err := config.LoadUserConfig(opts.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	defs, err := etl.CompileAll(conn, userCfg, opts.Streams)
	if err != nil {
		return nil, nil, err
	}
	return conn, defs, nil
}

func runCheck(opts *SyncOptions, out io.Writer) error {
	_, defs, err := compile(opts)
	if err != nil {
		return err
	}
	for _, d := range defs {
		cursor := "-"
		if d.Incremental() {
			cursor = d.StateKey
		}
		fmt.Fprintf(out, "%s\tmode=%s\tcursor=%s\tdecoder=%s\n", d.Name, d.SyncMode, cursor, d.Decoder.Format())
	}
	fmt.Fprintf(out, "OK: %d streams\n", len(defs))
	return nil
}

func runSync(ctx context.Context, opts *SyncOptions, out io.Writer) error {
	conn, defs, err := compile(opts)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, opts.StateFile)
	if err != nil {
		return err
	}
	defer store.Close()

	prior, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	syncID := uuid.NewString()
	logger.Infof("Sync %s: %d streams from %s", syncID, len(defs), opts.DefinitionFile)

	var sink etl.Sink
	var emitters []etl.Emitter
	switch opts.Output {
	case OutputJSONL, "":
		jsonl := etl.NewJSONLinesSink(out, syncID)
		sink = jsonl
		emitters = append(emitters, jsonl)
	case OutputMongo:
		if cfg.MongoConnString == "" {
			return errors.New("MONGO_CONNECTION_STRING environment variable not set")
		}
		client, err := database.ConnectMongo(cfg.MongoConnString)
		if err != nil {
			return err
		}
		defer database.DisconnectMongo(client)
		sink = etl.NewMongoSink(client, cfg.MongoDatabase, "", syncID, defs)
	default:
		return fmt.Errorf("unsupported output %q: expected jsonl or mongo", opts.Output)
	}

	if !opts.DryRun {
		// checkpoints are saved even after the sync context is cancelled
		saveCtx := context.WithoutCancel(ctx)
		emitters = append(emitters, etl.EmitterFunc(func(msg models.CheckpointMessage) error {
			return store.Save(saveCtx, msg)
		}))
	} else {
		emitters = nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = cfg.Workers
	}
	httpClient := transport.NewHTTPClient(cfg.HTTPTimeout, retryPolicy(conn, cfg))
	agg := etl.NewAggregator(syncID, prior, emitters...)
	pipeline := etl.NewPipeline(defs, httpClient, sink, agg, workers, opts.DryRun)

	results := pipeline.Run(ctx)

	var firstErr error
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		logger.Infof("stream=%s ok: %d records in %s, state %v", r.Stream, r.Stats.Records, r.Duration.Round(time.Millisecond), r.State)
	}
	if err := agg.Err(); err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	if firstErr != nil {
		return fmt.Errorf("%d of %d streams failed: %w", failed, len(results), firstErr)
	}
	return nil
}

// retryPolicy takes the connector's retry settings; MAX_RETRIES and RETRY_FACTOR override them.
func retryPolicy(conn *models.ConnectorConfig, cfg *config.Config) transport.RetryPolicy {
	p := transport.DefaultRetryPolicy()
	if conn.MaxRetries != nil {
		p.MaxRetries = *conn.MaxRetries
	}
	if conn.RetryFactor != nil {
		p.RetryFactor = *conn.RetryFactor
	}
	if cfg.MaxRetries >= 0 {
		p.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryFactor >= 0 {
		p.RetryFactor = cfg.RetryFactor
	}
	return p
}

func openStore(ctx context.Context, cfg *config.Config, stateFile string) (statestore.Store, error) {
	if stateFile != "" {
		return statestore.NewFileStore(stateFile), nil
	}
	return statestore.Open(ctx, cfg)
}

func openStateOnly(ctx context.Context, stateFile string) (statestore.Store, error) {
	if stateFile != "" {
		return statestore.NewFileStore(stateFile), nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return statestore.Open(ctx, cfg)
}

func runStateShow(ctx context.Context, opts *StateOptions, out io.Writer) error {
	store, err := openStateOnly(ctx, opts.StateFile)
	if err != nil {
		return err
	}
	defer store.Close()

	state, err := store.Load(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

func runStateReset(ctx context.Context, opts *StateOptions, out io.Writer) error {
	store, err := openStateOnly(ctx, opts.StateFile)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(ctx, opts.Stream); err != nil {
		return err
	}
	if opts.Stream == "" {
		fmt.Fprintln(out, "State reset for all streams.")
	} else {
		fmt.Fprintf(out, "State reset for stream %s.\n", opts.Stream)
	}
	return nil
}
