// Package gormstorage implements storage.Backend on any gorm dialect. The
// sqlite and postgres backends embed it and only differ in how they connect.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/sitac/internal/database"
	"github.com/OCAP2/sitac/internal/model"
	"github.com/OCAP2/sitac/internal/model/convert"
	"github.com/OCAP2/sitac/internal/storage"
	"github.com/OCAP2/sitac/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Backend stores documents in the documents/features/snapshots tables.
type Backend struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New wraps an open connection. Init migrates the schema.
func New(db *gorm.DB, log zerolog.Logger) *Backend {
	return &Backend{db: db, log: log}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB { return b.db }

// Init migrates the schema.
func (b *Backend) Init(ctx context.Context) error {
	return database.Migrate(b.db.WithContext(ctx), b.log)
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save upserts the document row and rewrites its features and snapshots in
// one transaction.
func (b *Backend) Save(ctx context.Context, doc core.Document) error {
	rec, err := convert.ToRecord(doc)
	if err != nil {
		return err
	}
	features, snapshots := rec.Features, rec.Snapshots
	rec.Features, rec.Snapshots = nil, nil

	start := time.Now()
	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Document
		err := tx.Where("name = ?", rec.Name).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("creating document: %w", err)
			}
		case err != nil:
			return fmt.Errorf("finding document: %w", err)
		default:
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
			if err := tx.Save(&rec).Error; err != nil {
				return fmt.Errorf("updating document: %w", err)
			}
			if err := tx.Where("document_id = ?", rec.ID).Delete(&model.Feature{}).Error; err != nil {
				return fmt.Errorf("clearing features: %w", err)
			}
			if err := tx.Where("document_id = ?", rec.ID).Delete(&model.Snapshot{}).Error; err != nil {
				return fmt.Errorf("clearing snapshots: %w", err)
			}
		}

		for i := range features {
			features[i].DocumentID = rec.ID
		}
		for i := range snapshots {
			snapshots[i].DocumentID = rec.ID
		}
		if len(features) > 0 {
			if err := tx.CreateInBatches(&features, 500).Error; err != nil {
				return fmt.Errorf("writing features: %w", err)
			}
		}
		if len(snapshots) > 0 {
			if err := tx.Create(&snapshots).Error; err != nil {
				return fmt.Errorf("writing snapshots: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.log.Debug().
		Str("document", doc.Name).
		Int("features", len(features)).
		Dur("duration", time.Since(start)).
		Msg("Document saved")
	return nil
}

// Load implements storage.Backend.
func (b *Backend) Load(ctx context.Context, name string) (core.Document, []error, error) {
	var rec model.Document
	err := b.db.WithContext(ctx).Preload("Snapshots").Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Document{}, nil, fmt.Errorf("%q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return core.Document{}, nil, fmt.Errorf("loading %q: %w", name, err)
	}

	doc, dropped, err := convert.FromRecord(rec)
	if err != nil {
		return core.Document{}, nil, err
	}
	for _, d := range dropped {
		b.log.Warn().Err(d).Str("document", name).Msg("Dropped invalid feature")
	}
	return doc, dropped, nil
}

// List implements storage.Catalog.
func (b *Backend) List(ctx context.Context) ([]storage.Summary, error) {
	var rows []struct {
		Name     string
		SavedAt  time.Time
		Features int
	}
	err := b.db.WithContext(ctx).
		Model(&model.Document{}).
		Select("documents.name, documents.saved_at, COUNT(features.id) AS features").
		Joins("LEFT JOIN features ON features.document_id = documents.id").
		Group("documents.id, documents.name, documents.saved_at").
		Order("documents.name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	out := make([]storage.Summary, len(rows))
	for i, r := range rows {
		out[i] = storage.Summary{Name: r.Name, Features: r.Features, SavedAt: r.SavedAt}
	}
	return out, nil
}

// Delete implements storage.Catalog.
func (b *Backend) Delete(ctx context.Context, name string) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.Document
		err := tx.Where("name = ?", name).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%q: %w", name, storage.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", rec.ID).Delete(&model.Feature{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", rec.ID).Delete(&model.Snapshot{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&rec).Error
	})
}

// TypeCounts returns how many features of each type a document holds.
func (b *Backend) TypeCounts(ctx context.Context, name string) ([]model.TypeCount, error) {
	var counts []model.TypeCount
	err := b.db.WithContext(ctx).
		Model(&model.Feature{}).
		Select("features.type AS type, COUNT(*) AS count").
		Joins("JOIN documents ON documents.id = features.document_id").
		Where("documents.name = ? AND documents.deleted_at IS NULL", name).
		Group("features.type").
		Order("features.type").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("counting features of %q: %w", name, err)
	}
	return counts, nil
}
