package etl

import (
	"sync"
	"time"

	"github.com/BartekS5/restsync/pkg/models"
)

// Emitter receives every checkpoint the aggregator produces.
type Emitter interface {
	EmitCheckpoint(msg models.CheckpointMessage) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(msg models.CheckpointMessage) error

func (f EmitterFunc) EmitCheckpoint(msg models.CheckpointMessage) error { return f(msg) }

// Aggregator merges per-stream cursors into one SyncState. Each emission is a
// full snapshot; updating one stream never drops another stream's entry.
type Aggregator struct {
	mu       sync.Mutex
	syncID   string
	state    models.SyncState
	emitters []Emitter
	now      func() time.Time
	last     *models.CheckpointMessage
	emitErr  error
}

// NewAggregator starts from prior, which is copied.
func NewAggregator(syncID string, prior models.SyncState, emitters ...Emitter) *Aggregator {
	if prior == nil {
		prior = models.SyncState{}
	}
	return &Aggregator{
		syncID:   syncID,
		state:    prior.Clone(),
		emitters: emitters,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Emit merges one stream's state and notifies the emitters. The returned
// message owns its data.
func (a *Aggregator) Emit(stream string, state models.StreamState) models.CheckpointMessage {
	a.mu.Lock()
	defer a.mu.Unlock()

	if state != nil {
		a.state[stream] = state.Clone()
	} else if _, ok := a.state[stream]; !ok {
		a.state[stream] = models.StreamState{}
	}
	msg := a.snapshot()
	a.last = &msg
	for _, e := range a.emitters {
		if err := e.EmitCheckpoint(a.copyOf(msg)); err != nil && a.emitErr == nil {
			a.emitErr = err
		}
	}
	return a.copyOf(msg)
}

// Checkpoint returns the merged snapshot. Two calls with no Emit in between
// return identical messages.
func (a *Aggregator) Checkpoint() models.CheckpointMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		msg := a.snapshot()
		a.last = &msg
	}
	return a.copyOf(*a.last)
}

// State returns a copy of the merged state.
func (a *Aggregator) State() models.SyncState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Err returns the first emitter failure, if any.
func (a *Aggregator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.emitErr
}

func (a *Aggregator) snapshot() models.CheckpointMessage {
	return models.CheckpointMessage{
		Type:      models.MessageTypeState,
		SyncID:    a.syncID,
		Data:      a.state.Clone(),
		EmittedAt: a.now(),
	}
}

func (a *Aggregator) copyOf(msg models.CheckpointMessage) models.CheckpointMessage {
	msg.Data = msg.Data.Clone()
	return msg
}
