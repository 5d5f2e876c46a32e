package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes page snapshots under a directory on disk.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Archive writes data to root/path and returns the absolute file path.
func (s *LocalStore) Archive(_ context.Context, path, _ string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return full, nil
}
