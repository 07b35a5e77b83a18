// Package storage defines the document persistence backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/OCAP2/sitac/pkg/core"
)

var (
	// ErrNotFound is returned by Load when no document has been saved.
	ErrNotFound = errors.New("document not found")
	// ErrUnsupported is returned by write-only backends.
	ErrUnsupported = errors.New("operation not supported by backend")
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	Init(ctx context.Context) error
	Close() error

	// Save stores doc under doc.Name, replacing any earlier version.
	Save(ctx context.Context, doc core.Document) error
	// Load returns the document saved under name. Features that no longer
	// validate are dropped and reported.
	Load(ctx context.Context, name string) (core.Document, []error, error)
}

// Summary describes a stored document without decoding it.
type Summary struct {
	Name     string
	Features int
	SavedAt  time.Time
}

// Catalog is implemented by backends that hold several documents.
type Catalog interface {
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, name string) error
}
