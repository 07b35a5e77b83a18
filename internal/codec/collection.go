package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb/geojson"
)

// Marshal encodes a collection as a GeoJSON FeatureCollection.
func Marshal(fc core.FeatureCollection) ([]byte, error) {
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		gf, err := EncodeFeature(f)
		if err != nil {
			return nil, err
		}
		out.Append(gf)
	}
	return json.Marshal(out)
}

// Unmarshal decodes a GeoJSON FeatureCollection. Features that fail to decode
// are dropped and reported in the returned slice; only a malformed top-level
// document is an error.
func Unmarshal(data []byte) (core.FeatureCollection, []error, error) {
	var top struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &top); err != nil {
		return core.FeatureCollection{}, nil, fmt.Errorf("%w: %v", ErrNotFeatureCollection, err)
	}
	if top.Type != "FeatureCollection" {
		return core.FeatureCollection{}, nil, fmt.Errorf("%w: type %q", ErrNotFeatureCollection, top.Type)
	}

	fc := core.FeatureCollection{Features: make([]core.Feature, 0, len(top.Features))}
	var dropped []error
	for i, raw := range top.Features {
		gf, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			dropped = append(dropped, fmt.Errorf("feature %d: %w", i, err))
			continue
		}
		f, err := DecodeFeature(gf)
		if err != nil {
			dropped = append(dropped, fmt.Errorf("feature %d: %w", i, err))
			continue
		}
		fc.Features = append(fc.Features, f)
	}
	return fc, dropped, nil
}

// Clone deep-copies a collection by a full serialization round trip.
func Clone(fc core.FeatureCollection) (core.FeatureCollection, error) {
	data, err := Marshal(fc)
	if err != nil {
		return core.FeatureCollection{}, err
	}
	out, dropped, err := Unmarshal(data)
	if err != nil {
		return core.FeatureCollection{}, err
	}
	if len(dropped) > 0 {
		return core.FeatureCollection{}, dropped[0]
	}
	return out, nil
}

// Equal reports whether two collections serialize identically.
func Equal(a, b core.FeatureCollection) bool {
	da, errA := Marshal(a)
	db, errB := Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(da, db)
}

// documentJSON is the on-disk layout of a document.
type documentJSON struct {
	Name      string          `json:"name"`
	Features  json.RawMessage `json:"features"`
	Snapshots []core.Snapshot `json:"snapshots"`
	View      core.View       `json:"view"`
	SavedAt   time.Time       `json:"savedAt"`
}

// MarshalDocument encodes a whole document.
func MarshalDocument(doc core.Document) ([]byte, error) {
	features, err := Marshal(doc.Features)
	if err != nil {
		return nil, err
	}
	snapshots := doc.Snapshots
	if snapshots == nil {
		snapshots = []core.Snapshot{}
	}
	return json.Marshal(documentJSON{
		Name:      doc.Name,
		Features:  features,
		Snapshots: snapshots,
		View:      doc.View,
		SavedAt:   doc.SavedAt,
	})
}

// UnmarshalDocument decodes a document, pruning invalid features.
func UnmarshalDocument(data []byte) (core.Document, []error, error) {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.Document{}, nil, fmt.Errorf("unmarshal document: %w", err)
	}

	doc := core.Document{
		Name:      raw.Name,
		Snapshots: raw.Snapshots,
		View:      raw.View,
		SavedAt:   raw.SavedAt,
	}
	if len(raw.Features) == 0 {
		return doc, nil, nil
	}

	fc, dropped, err := Unmarshal(raw.Features)
	if err != nil {
		return core.Document{}, nil, err
	}
	doc.Features = fc
	return doc, dropped, nil
}
