package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Centroid returns the arithmetic mean of a line's points or a polygon's
// outer ring. A Point returns itself; other geometries average every coordinate.
func Centroid(g orb.Geometry) orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return v
	case orb.Polygon:
		if len(v) == 0 {
			return orb.Point{}
		}
		return mean(openRing(v[0]))
	case orb.Ring:
		return mean(openRing(v))
	case orb.LineString:
		return mean(v)
	}
	var pts []orb.Point
	each(g, func(p orb.Point) { pts = append(pts, p) })
	return mean(pts)
}

// Translate shifts every coordinate of g.
func Translate(g orb.Geometry, dLng, dLat float64) orb.Geometry {
	return apply(g, func(p orb.Point) orb.Point {
		return orb.Point{p[0] + dLng, p[1] + dLat}
	})
}

// Rotate turns g about its centroid by angleDeg, counter-clockwise in a y-up frame.
func Rotate(g orb.Geometry, angleDeg float64) orb.Geometry {
	c := Centroid(g)
	sin, cos := math.Sincos(angleDeg * math.Pi / 180)
	return apply(g, func(p orb.Point) orb.Point {
		dx, dy := p[0]-c[0], p[1]-c[1]
		return orb.Point{c[0] + dx*cos - dy*sin, c[1] + dx*sin + dy*cos}
	})
}

// Scale multiplies the distance of every coordinate from the centroid by factor.
func Scale(g orb.Geometry, factor float64) orb.Geometry {
	c := Centroid(g)
	return apply(g, func(p orb.Point) orb.Point {
		return orb.Point{c[0] + (p[0]-c[0])*factor, c[1] + (p[1]-c[1])*factor}
	})
}

// ArrowHead returns a closed triangle whose apex is tip, pointing away from tail.
func ArrowHead(tail, tip orb.Point, size float64) orb.Ring {
	angle := math.Atan2(tip[1]-tail[1], tip[0]-tail[0])
	const spread = math.Pi / 7
	left := orb.Point{
		tip[0] - size*math.Cos(angle-spread),
		tip[1] - size*math.Sin(angle-spread),
	}
	right := orb.Point{
		tip[0] - size*math.Cos(angle+spread),
		tip[1] - size*math.Sin(angle+spread),
	}
	return orb.Ring{tip, left, right, tip}
}

// apply maps fn over every coordinate, returning a new geometry of the same shape.
func apply(g orb.Geometry, fn func(orb.Point) orb.Point) orb.Geometry {
	switch v := g.(type) {
	case nil:
		return nil
	case orb.Point:
		return fn(v)
	case orb.MultiPoint:
		return orb.MultiPoint(points(v, fn))
	case orb.LineString:
		return orb.LineString(points(v, fn))
	case orb.Ring:
		return orb.Ring(points(v, fn))
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(v))
		for i, ls := range v {
			out[i] = points(ls, fn)
		}
		return out
	case orb.Polygon:
		return polygon(v, fn)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, p := range v {
			out[i] = polygon(p, fn)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(v))
		for i, child := range v {
			out[i] = apply(child, fn)
		}
		return out
	case orb.Bound:
		return orb.Bound{Min: fn(v.Min), Max: fn(v.Max)}
	}
	return g
}

func points(in []orb.Point, fn func(orb.Point) orb.Point) []orb.Point {
	out := make([]orb.Point, len(in))
	for i, p := range in {
		out[i] = fn(p)
	}
	return out
}

func polygon(in orb.Polygon, fn func(orb.Point) orb.Point) orb.Polygon {
	out := make(orb.Polygon, len(in))
	for i, r := range in {
		out[i] = points(r, fn)
	}
	return out
}

// each visits every coordinate of g.
func each(g orb.Geometry, fn func(orb.Point)) {
	apply(g, func(p orb.Point) orb.Point {
		fn(p)
		return p
	})
}

// openRing drops the closing point of a ring so it does not bias the mean.
func openRing(r []orb.Point) []orb.Point {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

func mean(pts []orb.Point) orb.Point {
	if len(pts) == 0 {
		return orb.Point{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(pts))
	return orb.Point{sx / n, sy / n}
}
