// pkg/core/document.go
package core

import "time"

// Snapshot is a bookmarked map view
type Snapshot struct {
	ID     string  `json:"id"`
	Center LngLat  `json:"center"`
	Zoom   float64 `json:"zoom"`
}

// View is the map camera persisted with a document
type View struct {
	Center LngLat  `json:"center"`
	Zoom   float64 `json:"zoom"`
}

// Document is the unit of persistence: one local annotation sheet
type Document struct {
	Name      string
	Features  FeatureCollection
	Snapshots []Snapshot
	View      View
	SavedAt   time.Time
}
