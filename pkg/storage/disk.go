// Package storage is a small filesystem abstraction with a local driver and
// an S3-compatible driver (AWS S3, MinIO, R2, Spaces).
//
//	m, err := storage.NewFromConfig(ctx)
//	err = m.Default().Put(ctx, "receipts/2026/10/order-7.json", data)
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Get when path is absent.
var ErrNotExist = errors.New("storage: file does not exist")

// Disk is the filesystem driver interface. Paths are slash-separated and
// relative to the disk root.
type Disk interface {
	// Put writes content to path, replacing any existing file.
	Put(ctx context.Context, path string, content []byte) error

	// Get returns the full content of the file at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes a file. Returns nil if the file did not exist.
	Delete(ctx context.Context, path string) error

	// Files lists all files below directory, recursively.
	Files(ctx context.Context, directory string) ([]string, error)

	// URL returns the public URL for path.
	URL(path string) string
}
