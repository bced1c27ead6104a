// Package scratch stages audio bytes on disk between normalization
// stages. Every artifact gets a per-request unique name; two concurrent
// uploads must never touch the same file.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store writes transient audio artifacts under a single directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the scratch directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Put writes data to a uniquely named file and returns its path plus a
// cleanup func. Callers must defer cleanup so the artifact is removed on
// every exit path, error paths included.
func (s *Store) Put(prefix string, data []byte) (string, func(), error) {
	name := fmt.Sprintf("%s_%s.wav", prefix, uuid.NewString())
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to write scratch file: %w", err)
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove scratch file",
				zap.String("path", path),
				zap.Error(err))
		}
	}
	return path, cleanup, nil
}
