package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BartekS5/restsync/pkg/models"
)

// FileStore keeps the state as one JSON document on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(_ context.Context) (models.SyncState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileStore) load() (models.SyncState, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.SyncState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", f.path, err)
	}
	state := models.SyncState{}
	if len(data) == 0 {
		return state, nil
	}
	if err := decodeJSON(data, &state); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", f.path, err)
	}
	return state, nil
}

// Save merges msg into the file. Streams absent from msg keep their entries.
func (f *FileStore) Save(_ context.Context, msg models.CheckpointMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, err := f.load()
	if err != nil {
		return err
	}
	for name, st := range msg.Data {
		state[name] = st
	}
	return f.write(state)
}

func (f *FileStore) Reset(_ context.Context, stream string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stream == "" {
		return f.write(models.SyncState{})
	}
	state, err := f.load()
	if err != nil {
		return err
	}
	delete(state, stream)
	return f.write(state)
}

func (f *FileStore) Close() error { return nil }

// write replaces the file atomically so a crash never leaves half a state.
func (f *FileStore) write(state models.SyncState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
