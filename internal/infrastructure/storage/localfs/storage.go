// Package localfs reads evidence bytes from a directory tree. Uploads are
// owned by the ingestion service; the pipeline only ever opens existing
// objects, so this adapter is read-only.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "storage.open", fmt.Errorf("object %s not found", key))
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

// resolve joins the key under basePath and rejects keys that escape it.
func (s *Storage) resolve(key string) (string, error) {
	if key == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "storage.open", errors.New("empty storage key"))
	}
	path := filepath.Join(s.basePath, filepath.FromSlash(key))
	base, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve object path: %w", err)
	}
	if abs != base && !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return "", domain.WrapError(domain.ErrInvalidInput, "storage.open", fmt.Errorf("key %s escapes storage root", key))
	}
	return abs, nil
}
