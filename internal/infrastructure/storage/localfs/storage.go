package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage keeps recorded clips on the local filesystem until the sync
// pipeline ships them upstream.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/clips"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create clip dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	f, err := os.Create(filepath.Join(s.basePath, filepath.Base(key)))
	if err != nil {
		return fmt.Errorf("create clip file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write clip file: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, filepath.Base(key)))
	if err != nil {
		return nil, fmt.Errorf("open clip file: %w", err)
	}
	return f, nil
}

// Remove deletes a clip, tolerating one that was never fully written.
func (s *Storage) Remove(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.basePath, filepath.Base(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove clip file: %w", err)
	}
	return nil
}
