// Package convert maps documents to and from their gorm rows.
package convert

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/OCAP2/sitac/internal/codec"
	"github.com/OCAP2/sitac/internal/model"
	"github.com/OCAP2/sitac/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// ToRecord builds the document row with its feature index and snapshots.
// The returned rows carry no ids; the caller links them.
func ToRecord(doc core.Document) (model.Document, error) {
	collection, err := codec.Marshal(doc.Features)
	if err != nil {
		return model.Document{}, fmt.Errorf("encoding collection: %w", err)
	}

	rec := model.Document{
		Name:       doc.Name,
		Collection: datatypes.JSON(collection),
		CenterLng:  doc.View.Center.Lng,
		CenterLat:  doc.View.Center.Lat,
		Zoom:       doc.View.Zoom,
		SavedAt:    doc.SavedAt,
	}

	for i, f := range doc.Features.Features {
		row, err := ToFeatureRow(f)
		if err != nil {
			return model.Document{}, err
		}
		row.Position = i
		rec.Features = append(rec.Features, row)
	}

	for i, s := range doc.Snapshots {
		rec.Snapshots = append(rec.Snapshots, model.Snapshot{
			SnapshotID: s.ID,
			Position:   i,
			Lng:        s.Center.Lng,
			Lat:        s.Center.Lat,
			Zoom:       s.Zoom,
		})
	}
	return rec, nil
}

// ToFeatureRow indexes a single feature.
func ToFeatureRow(f core.Feature) (model.Feature, error) {
	gf, err := codec.EncodeFeature(f)
	if err != nil {
		return model.Feature{}, err
	}
	props, err := json.Marshal(gf.Properties)
	if err != nil {
		return model.Feature{}, fmt.Errorf("encoding properties of %s: %w", f.ID, err)
	}
	anchor, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: f.Anchor.Lng, Y: f.Anchor.Lat},
		Type: geom.DimXY,
	})
	if err != nil {
		return model.Feature{}, fmt.Errorf("anchor of %s: %w", f.ID, err)
	}
	return model.Feature{
		FeatureID:  f.ID,
		Type:       string(f.Type()),
		Color:      f.Style.Color,
		Anchor:     anchor,
		Properties: datatypes.JSON(props),
	}, nil
}

// FromRecord rebuilds a document. Features that fail validation are dropped
// and reported; snapshots are restored in saved order.
func FromRecord(rec model.Document) (core.Document, []error, error) {
	doc := core.Document{
		Name:    rec.Name,
		View:    core.View{Center: core.LngLat{Lng: rec.CenterLng, Lat: rec.CenterLat}, Zoom: rec.Zoom},
		SavedAt: rec.SavedAt,
	}

	var dropped []error
	if len(rec.Collection) > 0 {
		fc, bad, err := codec.Unmarshal(rec.Collection)
		if err != nil {
			return core.Document{}, nil, fmt.Errorf("decoding collection of %q: %w", rec.Name, err)
		}
		doc.Features = fc
		dropped = bad
	}

	snaps := make([]model.Snapshot, len(rec.Snapshots))
	copy(snaps, rec.Snapshots)
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].Position < snaps[j].Position })
	for _, s := range snaps {
		doc.Snapshots = append(doc.Snapshots, core.Snapshot{
			ID:     s.SnapshotID,
			Center: core.LngLat{Lng: s.Lng, Lat: s.Lat},
			Zoom:   s.Zoom,
		})
	}
	return doc, dropped, nil
}
