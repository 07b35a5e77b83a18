// Package file stores a single document as (optionally gzipped) JSON.
package file

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/OCAP2/sitac/internal/codec"
	"github.com/OCAP2/sitac/internal/storage"
	"github.com/OCAP2/sitac/pkg/core"
	"github.com/rs/zerolog"
)

// Config holds file backend settings.
type Config struct {
	Path string
	// Compress gzips the file. Paths ending in .gz are always compressed.
	Compress bool
}

// Backend implements storage.Backend on one file.
type Backend struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger
}

// New creates a file backend.
func New(cfg Config, log zerolog.Logger) *Backend {
	if strings.HasSuffix(cfg.Path, ".gz") {
		cfg.Compress = true
	}
	return &Backend{cfg: cfg, log: log}
}

// Path returns the document path.
func (b *Backend) Path() string { return b.cfg.Path }

// Init ensures the parent directory exists.
func (b *Backend) Init(ctx context.Context) error {
	if b.cfg.Path == "" {
		return errors.New("file backend: path not set")
	}
	if err := os.MkdirAll(filepath.Dir(b.cfg.Path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error { return nil }

// Save writes the document to a temporary file and renames it into place.
func (b *Backend) Save(ctx context.Context, doc core.Document) error {
	data, err := codec.MarshalDocument(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(b.cfg.Path), ".sitac-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if b.cfg.Compress {
		err = writeGzip(tmp, data)
	} else {
		_, err = tmp.Write(data)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", b.cfg.Path, err)
	}

	if err := os.Rename(tmp.Name(), b.cfg.Path); err != nil {
		return fmt.Errorf("replacing %s: %w", b.cfg.Path, err)
	}
	b.log.Debug().Str("path", b.cfg.Path).Int("features", doc.Features.Len()).Msg("Document saved")
	return nil
}

func writeGzip(w io.Writer, data []byte) error {
	gz := gzip.NewWriter(w)
	if _, err := gz.Write(data); err != nil {
		return err
	}
	return gz.Close()
}

// Load reads the document. The file holds a single document, so name is
// only used to fill in a missing name.
func (b *Backend) Load(ctx context.Context, name string) (core.Document, []error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := ReadFile(b.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Document{}, nil, fmt.Errorf("%s: %w", b.cfg.Path, storage.ErrNotFound)
	}
	if err != nil {
		return core.Document{}, nil, err
	}

	doc, dropped, err := codec.UnmarshalDocument(data)
	if err != nil {
		return core.Document{}, nil, fmt.Errorf("decoding %s: %w", b.cfg.Path, err)
	}
	if doc.Name == "" {
		doc.Name = name
	}
	for _, d := range dropped {
		b.log.Warn().Err(d).Str("path", b.cfg.Path).Msg("Dropped invalid feature")
	}
	return doc, dropped, nil
}

// ReadFile returns the contents of path, transparently gunzipping it when
// it starts with the gzip magic bytes.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [2]byte
	n, _ := io.ReadFull(f, magic[:])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if n == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip %s: %w", path, err)
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}
	return io.ReadAll(f)
}
