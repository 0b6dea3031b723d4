package models

import "time"

// Record is one extracted entity.
type Record = map[string]any

// StreamState is the persisted cursor of one stream, e.g. {"create_time": "2023-01-31T23:59:59Z"}.
type StreamState map[string]any

// SyncState maps stream name to its StreamState. It is the only externally visible state artifact.
type SyncState map[string]StreamState

// Message types written by the JSON lines sink.
const (
	MessageTypeRecord = "RECORD"
	MessageTypeState  = "STATE"
)

// CheckpointMessage is the merged snapshot of every stream's cursor.
type CheckpointMessage struct {
	Type      string    `json:"type"`
	SyncID    string    `json:"sync_id,omitempty"`
	Data      SyncState `json:"data"`
	EmittedAt time.Time `json:"emitted_at"`
}

// RecordMessage wraps one record with its stream name.
type RecordMessage struct {
	Type      string    `json:"type"`
	SyncID    string    `json:"sync_id,omitempty"`
	Stream    string    `json:"stream"`
	Data      Record    `json:"record"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Clone returns a deep copy of the stream state.
func (s StreamState) Clone() StreamState {
	if s == nil {
		return nil
	}
	out := make(StreamState, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

// Clone returns a deep copy of the sync state.
func (s SyncState) Clone() SyncState {
	out := make(SyncState, len(s))
	for name, st := range s {
		out[name] = st.Clone()
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case StreamState:
		return t.Clone()
	case []any:
		a := make([]any, len(t))
		for i, inner := range t {
			a[i] = cloneValue(inner)
		}
		return a
	default:
		return v
	}
}
