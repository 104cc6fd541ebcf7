// Package state persists the watch state between runs as a small JSON
// document.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"restockwatch/internal/watch"
)

// ErrIO marks a state file read or write failure. Corrupt contents are not
// IO errors; they degrade to the initial state instead.
var ErrIO = errors.New("state file io")

// FileStore implements watch.Store on a single JSON file. The file is owned
// by one scheduled run at a time; there is no locking.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// Load reads the persisted state. An absent file yields the initial UNKNOWN
// state. A corrupt file is logged and also degrades to UNKNOWN rather than
// aborting the run.
func (s *FileStore) Load(_ context.Context) (watch.State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return initialState(), nil
	}
	if err != nil {
		return watch.State{}, fmt.Errorf("%w: read %s: %w", ErrIO, s.path, err)
	}

	var st watch.State
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("state file is corrupt; starting over",
			zap.String("path", s.path), zap.Error(err))
		return initialState(), nil
	}
	if st.LastStatus == "" {
		st.LastStatus = watch.StatusUnknown
	}
	return st, nil
}

// Save writes the state atomically: the document lands in a temp file first
// and is renamed into place, so a crash never leaves a half-written state.
func (s *FileStore) Save(ctx context.Context, st watch.State) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	payload, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: create dir %s: %w", ErrIO, dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrIO, s.path, err)
	}
	return nil
}

func initialState() watch.State {
	return watch.State{LastStatus: watch.StatusUnknown}
}
