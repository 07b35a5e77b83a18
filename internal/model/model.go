// Package model holds the gorm tables documents are persisted in.
package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every table, in migration order.
var DatabaseModels = []interface{}{
	&Document{},
	&Feature{},
	&Snapshot{},
}

// Document is one saved annotation sheet. Collection holds the full GeoJSON
// feature collection and is the source of truth on load.
type Document struct {
	gorm.Model
	Name       string         `json:"name" gorm:"size:127;uniqueIndex"`
	Collection datatypes.JSON `json:"collection"`
	CenterLng  float64        `json:"centerLng"`
	CenterLat  float64        `json:"centerLat"`
	Zoom       float64        `json:"zoom"`
	SavedAt    time.Time      `json:"savedAt"`

	Features  []Feature  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Snapshots []Snapshot `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Document) TableName() string {
	return "documents"
}

// Feature indexes one feature of a document for queries; rows are rewritten
// on every save.
type Feature struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	DocumentID uint           `json:"documentId" gorm:"index:idx_feature_document_id"`
	FeatureID  string         `json:"featureId" gorm:"size:64;index:idx_feature_feature_id"`
	Position   int            `json:"position"` // z-order
	Type       string         `json:"type" gorm:"size:16;index:idx_feature_type"`
	Color      string         `json:"color" gorm:"size:7"`
	Anchor     geom.Point     `json:"anchor"`
	Properties datatypes.JSON `json:"properties"`
}

func (*Feature) TableName() string {
	return "features"
}

// Snapshot is a saved view bookmark.
type Snapshot struct {
	ID         uint    `json:"id" gorm:"primarykey"`
	DocumentID uint    `json:"documentId" gorm:"index:idx_snapshot_document_id"`
	SnapshotID string  `json:"snapshotId" gorm:"size:64"`
	Position   int     `json:"position"`
	Lng        float64 `json:"lng"`
	Lat        float64 `json:"lat"`
	Zoom       float64 `json:"zoom"`
}

func (*Snapshot) TableName() string {
	return "snapshots"
}

// TypeCount is a row of the per-type feature histogram.
type TypeCount struct {
	Type  string
	Count int64
}
