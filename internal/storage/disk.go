// Package storage provides disk helpers for uploaded blobs and storage paths.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/manabu/internal/apperr"
)

// BlobStore keeps the raw bytes of uploaded documents.
type BlobStore interface {
	Put(ctx context.Context, name string, content []byte) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// DiskBlobStore writes blobs as files under a single directory.
type DiskBlobStore struct {
	dir string
}

// NewDiskBlobStore creates dir if needed and returns a store rooted there.
func NewDiskBlobStore(dir string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DiskBlobStore{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *DiskBlobStore) Dir() string {
	return s.dir
}

// Put writes content under name and returns the reference to read it back.
// Existing blobs with the same name are overwritten.
func (s *DiskBlobStore) Put(ctx context.Context, name string, content []byte) (string, error) {
	ref, err := cleanRef(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, ref)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	return ref, nil
}

// Get reads the blob stored under ref.
func (s *DiskBlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	ref, err := cleanRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if os.IsNotExist(err) {
		return nil, apperr.NotFound("blob", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// cleanRef keeps refs flat inside the store directory.
func cleanRef(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || base == "." || base == ".." || base == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return base, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing or inaccessible paths are skipped (contribute 0); errors during walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
