package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// EarthRadius is the WGS84 semi-major axis in meters, as used by Web Mercator.
const EarthRadius = 6378137.0

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// EPSG:4326 <-> EPSG:3857
var (
	toMercator   = wgs84.EPSG().Transform(4326, 3857)
	fromMercator = wgs84.EPSG().Transform(3857, 4326)
)

// ParseLngLat parses a string in the format "lng,lat" into a core.LngLat.
func ParseLngLat(coords string) (core.LngLat, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.LngLat{}, ErrInvalidCoordinates
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.LngLat{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.LngLat{}, ErrInvalidCoordinates
	}
	ll := core.LngLat{Lng: lng, Lat: lat}
	if !ll.Finite() || lat < -90 || lat > 90 {
		return core.LngLat{}, ErrInvalidCoordinates
	}
	return ll, nil
}

// Mercator converts a WGS84 coordinate (EPSG:4326) to Web Mercator meters (EPSG:3857).
func Mercator(ll core.LngLat) orb.Point {
	x, y, _ := toMercator(ll.Lng, ll.Lat, 0)
	return orb.Point{x, y}
}

// FromMercator converts Web Mercator meters (EPSG:3857) back to WGS84.
func FromMercator(p orb.Point) core.LngLat {
	lng, lat, _ := fromMercator(p[0], p[1], 0)
	return core.LngLat{Lng: lng, Lat: lat}
}

// MetersToDegrees converts a distance in meters at the given latitude into
// the equivalent longitude and latitude spans.
func MetersToDegrees(meters, latitude float64) (dLng, dLat float64) {
	dLat = meters / EarthRadius * (180 / math.Pi)
	dLng = meters / (EarthRadius * math.Cos(latitude*math.Pi/180)) * (180 / math.Pi)
	return dLng, dLat
}

// MetersPerPixel returns the Web Mercator ground resolution at a latitude and zoom.
func MetersPerPixel(latitude, zoom, tileSize float64) float64 {
	return 2 * math.Pi * EarthRadius * math.Cos(latitude*math.Pi/180) / (tileSize * math.Exp2(zoom))
}

// Finite reports whether every coordinate of g is a finite number.
func Finite(g orb.Geometry) bool {
	ok := true
	each(g, func(p orb.Point) {
		if math.IsNaN(p[0]) || math.IsInf(p[0], 0) || math.IsNaN(p[1]) || math.IsInf(p[1], 0) {
			ok = false
		}
	})
	return ok
}
