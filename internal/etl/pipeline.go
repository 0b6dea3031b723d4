package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/restsync/internal/transport"
	"github.com/BartekS5/restsync/pkg/logger"
	"github.com/BartekS5/restsync/pkg/models"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

type Pipeline struct {
	Streams    []*StreamDefinition
	Transport  transport.Transport
	Sink       Sink
	Aggregator *Aggregator
	Workers    int
	DryRun     bool
	// Now is the window snapshot shared by every stream; zero means the start of Run.
	Now time.Time
}

// StreamResult is the outcome of one stream.
type StreamResult struct {
	Stream   string
	State    models.StreamState
	Stats    Stats
	Err      error
	Duration time.Duration
}

func NewPipeline(defs []*StreamDefinition, t transport.Transport, sink Sink, agg *Aggregator, workers int, dryRun bool) *Pipeline {
	return &Pipeline{
		Streams:    defs,
		Transport:  t,
		Sink:       sink,
		Aggregator: agg,
		Workers:    workers,
		DryRun:     dryRun,
	}
}

// Run syncs every stream concurrently. A failed stream does not stop the others;
// each gets its own StreamResult, in the order of p.Streams.
func (p *Pipeline) Run(ctx context.Context) []StreamResult {
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if p.Aggregator == nil {
		p.Aggregator = NewAggregator("", nil)
	}
	prior := p.Aggregator.State()

	logger.Infof("Starting sync of %d streams. Workers: %d, Now: %s, DryRun: %v", len(p.Streams), workers, now.Format(time.RFC3339), p.DryRun)

	results := make([]StreamResult, len(p.Streams))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, def := range p.Streams {
		g.Go(func() error {
			results[i] = p.runStream(ctx, def, prior[def.Name], now)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Infof("Sync finished: %d streams ok, %d failed.", len(results)-failed, failed)
	return results
}

func (p *Pipeline) runStream(ctx context.Context, def *StreamDefinition, prior models.StreamState, now time.Time) StreamResult {
	start := time.Now()
	s := NewStream(def, p.Transport, prior, StreamOptions{Now: now, Checkpointer: p.Aggregator})
	res := StreamResult{Stream: def.Name}

	total := 0
	for page, err := range s.Pages(ctx) {
		if err != nil {
			res.Err = err
			break
		}
		count := len(page.Records)
		if p.DryRun {
			logger.Infof("[DRY RUN] stream=%s would write %d records", def.Name, count)
		} else if p.Sink != nil && count > 0 {
			if err := p.Sink.Write(ctx, def.Name, page.Records); err != nil {
				logger.Errorf("stream=%s writing page %d failed: %v", def.Name, page.Number, err)
				res.Err = &StreamError{Stream: def.Name, Phase: s.Phase(), Page: page.Number, Err: fmt.Errorf("sink: %w", err)}
				break
			}
		}

		total += count
		rate := 0.0
		if d := time.Since(start); d.Seconds() > 0 {
			rate = float64(total) / d.Seconds()
		}
		logger.Infof("stream=%s page %d done. Total: %d. Rate: %.2f records/sec.", def.Name, page.Number, total, rate)
	}

	res.State = s.State()
	res.Stats = s.Stats()
	res.Duration = time.Since(start)
	if res.Err != nil {
		logger.Errorf("stream=%s failed after %d records: %v", def.Name, total, res.Err)
	}
	return res
}
