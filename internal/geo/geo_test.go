package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLngLat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    core.LngLat
		wantErr bool
	}{
		{name: "valid", input: "2.35,48.85", want: core.LngLat{Lng: 2.35, Lat: 48.85}},
		{name: "spaces", input: " -1.5 , 10 ", want: core.LngLat{Lng: -1.5, Lat: 10}},
		{name: "missing lat", input: "2.35", wantErr: true},
		{name: "too many parts", input: "1,2,3", wantErr: true},
		{name: "not a number", input: "abc,1", wantErr: true},
		{name: "lat out of range", input: "0,91", wantErr: true},
		{name: "nan", input: "NaN,1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLngLat(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidCoordinates))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMercator_RoundTrip(t *testing.T) {
	in := core.LngLat{Lng: 2.3522, Lat: 48.8566}
	p := Mercator(in)
	assert.InDelta(t, 261845.7, p[0], 1)
	assert.InDelta(t, 6250564.3, p[1], 1)

	out := FromMercator(p)
	assert.InDelta(t, in.Lng, out.Lng, 1e-9)
	assert.InDelta(t, in.Lat, out.Lat, 1e-9)
}

func TestMetersToDegrees(t *testing.T) {
	dLng, dLat := MetersToDegrees(1000, 0)
	assert.InDelta(t, 0.008983, dLat, 1e-6)
	assert.InDelta(t, dLat, dLng, 1e-12, "at the equator both spans are equal")

	dLng60, dLat60 := MetersToDegrees(1000, 60)
	assert.InDelta(t, dLat, dLat60, 1e-12)
	assert.InDelta(t, 2*dLat, dLng60, 1e-9, "cos(60°) halves the circle of latitude")
}

func TestMetersPerPixel(t *testing.T) {
	// zoom 0 with 256 px tiles spans the equator in one tile
	assert.InDelta(t, 2*math.Pi*EarthRadius/256, MetersPerPixel(0, 0, 256), 1e-6)
	assert.InDelta(t, MetersPerPixel(0, 10, 512)/2, MetersPerPixel(0, 11, 512), 1e-9)
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite(orb.LineString{{0, 0}, {1, 1}}))
	assert.False(t, Finite(orb.LineString{{0, 0}, {math.NaN(), 1}}))
	assert.False(t, Finite(orb.Polygon{{{0, 0}, {math.Inf(1), 1}, {0, 1}, {0, 0}}}))
	assert.False(t, Finite(orb.Collection{orb.Point{0, 0}, orb.Point{math.Inf(-1), 0}}))
}
