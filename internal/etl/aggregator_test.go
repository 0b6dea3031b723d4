package etl

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/BartekS5/restsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorMergesWithoutDropping(t *testing.T) {
	agg := NewAggregator("sync-1", models.SyncState{
		"automations": {"create_time": "2023-01-31T23:59:59.001Z"},
	})

	msg := agg.Emit("campaigns", models.StreamState{"create_time": "2023-02-01T00:00:00Z"})
	assert.Equal(t, models.MessageTypeState, msg.Type)
	assert.Equal(t, "sync-1", msg.SyncID)
	assert.Equal(t, models.SyncState{
		"automations": {"create_time": "2023-01-31T23:59:59.001Z"},
		"campaigns":   {"create_time": "2023-02-01T00:00:00Z"},
	}, msg.Data)

	msg = agg.Emit("automations", models.StreamState{"create_time": "2023-03-01T00:00:00Z"})
	assert.Equal(t, "2023-02-01T00:00:00Z", msg.Data["campaigns"]["create_time"])
	assert.Equal(t, "2023-03-01T00:00:00Z", msg.Data["automations"]["create_time"])
}

func TestCheckpointIsIdempotent(t *testing.T) {
	agg := NewAggregator("", models.SyncState{"lists": {"date_created": "2023-01-01"}})
	agg.Emit("lists", models.StreamState{"date_created": "2023-01-02"})

	first := agg.Checkpoint()
	second := agg.Checkpoint()
	assert.Equal(t, first, second)

	// mutating a returned message must not leak into the aggregator
	first.Data["lists"]["date_created"] = "tampered"
	assert.Equal(t, "2023-01-02", agg.Checkpoint().Data["lists"]["date_created"])
}

func TestCheckpointBeforeAnyEmit(t *testing.T) {
	prior := models.SyncState{"automations": {"create_time": "2220-11-23T05:42:11+00:00"}}
	agg := NewAggregator("", prior)
	assert.Equal(t, prior, agg.Checkpoint().Data)

	prior["automations"]["create_time"] = "changed"
	assert.Equal(t, "2220-11-23T05:42:11+00:00", agg.Checkpoint().Data["automations"]["create_time"])
}

func TestAggregatorConcurrentEmit(t *testing.T) {
	var mu sync.Mutex
	emitted := 0
	agg := NewAggregator("", nil, EmitterFunc(func(models.CheckpointMessage) error {
		mu.Lock()
		emitted++
		mu.Unlock()
		return nil
	}))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				agg.Emit(fmt.Sprintf("stream-%d", i), models.StreamState{"cursor": j})
			}
		}()
	}
	wg.Wait()

	state := agg.State()
	require.Len(t, state, 20)
	for i := range 20 {
		assert.Equal(t, 49, state[fmt.Sprintf("stream-%d", i)]["cursor"])
	}
	assert.Equal(t, 1000, emitted)
}

func TestAggregatorRecordsEmitterFailure(t *testing.T) {
	boom := errors.New("disk full")
	agg := NewAggregator("", nil, EmitterFunc(func(models.CheckpointMessage) error { return boom }))
	agg.Emit("a", models.StreamState{"id": 1})
	assert.ErrorIs(t, agg.Err(), boom)
}
