package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

const fileFormatVersion = 1

type fileDocument struct {
	Version      int                  `json:"version"`
	Fingerprints []domain.Fingerprint `json:"fingerprints"`
}

// FileStore keeps the published fingerprints in a JSON file that is replaced
// atomically on every save.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns an empty history when the file does not exist yet.
func (s *FileStore) Load(_ context.Context) ([]domain.Fingerprint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fingerprints: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode fingerprints %s: %w", s.path, err)
	}
	if doc.Version > fileFormatVersion {
		return nil, fmt.Errorf("fingerprints %s: unsupported version %d", s.path, doc.Version)
	}
	return doc.Fingerprints, nil
}

// Save writes to a sibling temp file, syncs it and renames it over the target.
func (s *FileStore) Save(_ context.Context, fingerprints []domain.Fingerprint) error {
	if fingerprints == nil {
		fingerprints = []domain.Fingerprint{}
	}
	data, err := json.Marshal(fileDocument{Version: fileFormatVersion, Fingerprints: fingerprints})
	if err != nil {
		return fmt.Errorf("encode fingerprints: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write fingerprints: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync fingerprints: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace fingerprints: %w", err)
	}
	return nil
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	fps, err := s.Load(ctx)
	return len(fps), err
}
