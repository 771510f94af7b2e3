// Package blobs is the report file store: a flat directory of files keyed by
// opaque UUID names. The report builder finishes writing before it signals
// completion, so concurrent readers that wait for the signal never observe a
// partial file.
package blobs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store hands out blob names and resolves them to paths under its root.
type Store struct {
	root string
}

// NewStore creates the storage directory if needed and returns a store
// rooted there.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob storage root: %w", err)
	}
	return &Store{root: root}, nil
}

// GenerateFilename returns a fresh `<uuid>.<ext>` name and eagerly creates
// the empty file, so the name is claimed from the moment it is handed out.
func (s *Store) GenerateFilename(ext string) (string, error) {
	for {
		name := uuid.NewString()
		if ext != "" {
			name = name + "." + ext
		}

		f, err := os.OpenFile(s.Path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to claim blob file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close blob file: %w", err)
		}

		return name, nil
	}
}

// Path returns the absolute path of a blob inside the store.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Create opens a blob for writing, truncating any previous content. Rebuilds
// of an existing report reuse its blob name.
func (s *Store) Create(name string) (*os.File, error) {
	f, err := os.Create(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open blob for writing: %w", err)
	}
	return f, nil
}

// Open opens a blob for reading.
func (s *Store) Open(name string) (*os.File, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open blob for reading: %w", err)
	}
	return f, nil
}

// Size returns the byte size of a stored blob.
func (s *Store) Size(name string) (int64, error) {
	info, err := os.Stat(s.Path(name))
	if err != nil {
		return 0, fmt.Errorf("failed to stat blob: %w", err)
	}
	return info.Size(), nil
}
