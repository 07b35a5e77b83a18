package convert

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/OCAP2/sitac/internal/codec"
	"github.com/OCAP2/sitac/internal/model"
	"github.com/OCAP2/sitac/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func sampleDocument() core.Document {
	style := core.Style{Color: "#00ff00", LineStyle: core.LineSolid, StrokeWidth: 3, BaseZoom: 12}
	return core.Document{
		Name: "Op Alpha",
		Features: core.FeatureCollection{Features: []core.Feature{
			{ID: "sym", Anchor: core.LngLat{Lng: 2.35, Lat: 48.85}, Style: style, Shape: &core.Symbol{IconName: "infantry", Colorizable: true, ScaleX: 1, ScaleY: 1}},
			{ID: "rect", Anchor: core.LngLat{Lng: 2.36, Lat: 48.86}, Style: style, Shape: &core.Rect{Width: 40, Height: 20}},
		}},
		Snapshots: []core.Snapshot{
			{ID: "a", Center: core.LngLat{Lng: 2.3, Lat: 48.8}, Zoom: 11},
			{ID: "b", Center: core.LngLat{Lng: 2.4, Lat: 48.9}, Zoom: 14},
		},
		View:    core.View{Center: core.LngLat{Lng: 2.35, Lat: 48.85}, Zoom: 12},
		SavedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestToRecord(t *testing.T) {
	rec, err := ToRecord(sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, "Op Alpha", rec.Name)
	assert.Equal(t, 12.0, rec.Zoom)
	require.Len(t, rec.Features, 2)
	assert.Equal(t, "sym", rec.Features[0].FeatureID)
	assert.Equal(t, "symbol", rec.Features[0].Type)
	assert.Equal(t, 1, rec.Features[1].Position)

	coord, ok := rec.Features[1].Anchor.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 2.36, coord.XY.X)
	assert.Equal(t, 48.86, coord.XY.Y)

	var props map[string]any
	require.NoError(t, json.Unmarshal(rec.Features[1].Properties, &props))
	assert.Equal(t, float64(40), props["width"])

	require.Len(t, rec.Snapshots, 2)
	assert.Equal(t, "b", rec.Snapshots[1].SnapshotID)
}

func TestToRecord_InvalidFeature(t *testing.T) {
	doc := sampleDocument()
	doc.Features.Features[0].Shape = &core.Rect{Width: -1, Height: 2}
	_, err := ToRecord(doc)
	assert.Error(t, err)
}

func TestFromRecord_RoundTrip(t *testing.T) {
	doc := sampleDocument()
	rec, err := ToRecord(doc)
	require.NoError(t, err)

	// rows come back from the database in arbitrary order
	rec.Snapshots[0], rec.Snapshots[1] = rec.Snapshots[1], rec.Snapshots[0]

	back, dropped, err := FromRecord(rec)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.True(t, codec.Equal(doc.Features, back.Features))
	assert.Equal(t, doc.Snapshots, back.Snapshots)
	assert.Equal(t, doc.View, back.View)
	assert.Equal(t, doc.Name, back.Name)
}

func TestFromRecord_DropsBadFeatures(t *testing.T) {
	rec := model.Document{
		Name: "broken",
		Collection: datatypes.JSON(`{"type":"FeatureCollection","features":[
			{"type":"Feature","id":"ok","geometry":{"type":"Point","coordinates":[2,48]},"properties":{"type":"circle","radius":10}},
			{"type":"Feature","id":"bad","geometry":{"type":"Point","coordinates":[2,48]},"properties":{"type":"hexagon"}}
		]}`),
	}
	doc, dropped, err := FromRecord(rec)
	require.NoError(t, err)
	assert.Len(t, dropped, 1)
	require.Equal(t, 1, doc.Features.Len())
	assert.Equal(t, "ok", doc.Features.Features[0].ID)
}

func TestFromRecord_NotACollection(t *testing.T) {
	_, _, err := FromRecord(model.Document{Collection: datatypes.JSON(`[1,2]`)})
	assert.Error(t, err)
}

func TestToFeatureRow_Anchor(t *testing.T) {
	f := sampleDocument().Features.Features[0]
	row, err := ToFeatureRow(f)
	require.NoError(t, err)
	coord, ok := row.Anchor.Coordinates()
	require.True(t, ok)
	assert.Equal(t, geom.XY{X: 2.35, Y: 48.85}, coord.XY)
	assert.Equal(t, geom.DimXY, coord.Type)

	f.Anchor.Lat = math.NaN()
	_, err = ToFeatureRow(f)
	assert.Error(t, err)
}
