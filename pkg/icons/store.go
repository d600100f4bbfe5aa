// Package icons persists one PNG icon per bundle identifier.
package icons

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store is where resolved icons end up
type Store interface {
	Put(ctx context.Context, bundleID string, data []byte) error
}

// FileName is the icon name for a bundle identifier
func FileName(bundleID string) string {
	return bundleID + ".png"
}

// DirStore writes icons to <dir>/<bundleID>.png
type DirStore struct {
	dir string
}

// NewDirStore returns a store rooted at dir. The directory is created on
// first write.
func NewDirStore(dir string) *DirStore {
	if dir == "" {
		dir = "icons"
	}
	return &DirStore{dir: dir}
}

// Path returns the file an icon is written to
func (s *DirStore) Path(bundleID string) string {
	return filepath.Join(s.dir, FileName(bundleID))
}

// Put writes the icon, replacing any existing file
func (s *DirStore) Put(_ context.Context, bundleID string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create icon directory: %w", err)
	}
	if err := os.WriteFile(s.Path(bundleID), data, 0644); err != nil {
		return fmt.Errorf("failed to write icon: %w", err)
	}
	return nil
}
