// Package sqlitestorage stores documents in SQLite. With no database path
// the database lives in memory and is dumped to disk periodically via
// VACUUM INTO and once more on Close.
package sqlitestorage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/sitac/internal/database"
	gormstorage "github.com/OCAP2/sitac/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	// Path is the database file; empty keeps the database in memory
	Path         string
	DumpPath     string
	DumpInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg Config
	log zerolog.Logger

	stop chan struct{}
	done sync.WaitGroup
}

// New opens the database.
func New(cfg Config, log zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSQLite(cfg.Path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}
	return &Backend{
		Backend: gormstorage.New(db, log),
		cfg:     cfg,
		log:     log,
		stop:    make(chan struct{}),
	}, nil
}

func (b *Backend) inMemory() bool {
	return b.cfg.Path == "" && b.cfg.DumpPath != ""
}

// Init migrates the schema and starts the dump loop for in-memory databases.
func (b *Backend) Init(ctx context.Context) error {
	if err := b.Backend.Init(ctx); err != nil {
		return err
	}
	if b.inMemory() && b.cfg.DumpInterval > 0 {
		b.done.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump loop, writes a final dump and closes the database.
func (b *Backend) Close() error {
	close(b.stop)
	b.done.Wait()
	if b.inMemory() {
		if err := b.Dump(); err != nil {
			b.log.Error().Err(err).Msg("Final dump failed")
		}
	}
	return b.Backend.Close()
}

// Dump writes the database to DumpPath now.
func (b *Backend) Dump() error {
	start := time.Now()
	if err := database.DumpToDisk(b.DB(), b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug().Str("path", b.cfg.DumpPath).Dur("duration", time.Since(start)).Msg("Dumped to disk")
	return nil
}

func (b *Backend) dumpLoop() {
	defer b.done.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			}
		}
	}
}
