// Package content stores and serves per-book assets: narration scripts,
// cover images, downloadable ebook text, and looping audio layers.
//
// Two implementations exist: a PostgreSQL store on pgx for deployments and
// an in-memory store for tests and storeless development runs.
package content

import (
	"context"
	"errors"
)

// Asset kinds. Kind is free-form in the schema; these are the kinds the
// storefront reads and writes.
const (
	KindScript = "script"
	KindCover  = "cover"
	KindEbook  = "ebook"
	KindAudio  = "audio"
)

// ErrNotFound is returned when no asset exists for the requested book and kind.
var ErrNotFound = errors.New("content: asset not found")

// Store is the abstraction over the asset backend.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Asset returns the payload stored for the given book and kind.
	// Returns ErrNotFound if nothing is stored.
	Asset(ctx context.Context, bookID, kind string) ([]byte, error)

	// PutAsset stores payload for the given book and kind, replacing any
	// existing payload.
	PutAsset(ctx context.Context, bookID, kind string, data []byte) error
}

// Script returns the stored narration script for a book.
func Script(ctx context.Context, s Store, bookID string) (string, error) {
	data, err := s.Asset(ctx, bookID, KindScript)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Cover returns the stored cover image for a book.
func Cover(ctx context.Context, s Store, bookID string) ([]byte, error) {
	return s.Asset(ctx, bookID, KindCover)
}

// Ebook returns the downloadable story text for a book.
func Ebook(ctx context.Context, s Store, bookID string) ([]byte, error) {
	return s.Asset(ctx, bookID, KindEbook)
}
