package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// DefaultTolerance is the simplification tolerance in degrees (about 5 m).
const DefaultTolerance = 5e-5

// SimplifyLine reduces points with the Douglas-Peucker algorithm. A point is
// kept when its squared distance from the chord between the bracketing kept
// points exceeds tolerance². Endpoints are always retained and the input is
// left untouched.
func SimplifyLine(points []orb.Point, tolerance float64) []orb.Point {
	ls := orb.LineString(append([]orb.Point(nil), points...))
	if len(ls) <= 2 {
		return ls
	}
	return simplify.DouglasPeucker(tolerance).LineString(ls)
}
