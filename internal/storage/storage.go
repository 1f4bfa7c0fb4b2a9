// Package storage holds train files until their recipient fetches them.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	ErrInvalidName      = errors.New("invalid blob name")
	ErrInvalidSignature = errors.New("invalid or expired blob signature")
	ErrBlobNotFound     = errors.New("blob not found")
)

// BlobStore stores train files by name. Putting an existing name replaces it.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	// URL returns a time-limited link the recipient can fetch the blob from
	URL(ctx context.Context, name string) (string, error)
}

// ValidateName rejects names that could escape a flat namespace
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	return nil
}
