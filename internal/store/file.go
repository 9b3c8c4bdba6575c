package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps each resource in <dir>/<name>.json.  It is the default
// driver: the application assumes a single server process with a single
// writable filesystem.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed and returns a store
// rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Read returns the document's content, or absent when the file does not
// exist or holds unparseable JSON (e.g. a write interrupted by a crash
// before this store used atomic renames).
func (s *FileStore) Read(name string) (json.RawMessage, bool, error) {
	b, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	if !json.Valid(b) {
		return nil, false, nil
	}
	return json.RawMessage(b), true, nil
}

// Write replaces the document.  The value is written to a temporary file
// and renamed into place so readers never see a torn document.
func (s *FileStore) Write(name string, value json.RawMessage) error {
	tmp := s.path(name) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
