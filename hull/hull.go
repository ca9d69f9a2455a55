// Package hull computes convex hulls with Andrew's monotone chain.
package hull

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/royalcat/fieldgrid/polygon"
)

// Hull is a convex polygon in counter-clockwise order, starting at the
// lexicographically smallest point and not closed. Degenerate hulls hold one
// point or the two extremes of a segment.
type Hull []orb.Point

// Of returns the convex hull of points. Points lying on a hull edge between
// its two extremes are not part of the hull.
func Of(points []orb.Point) (Hull, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: convex hull of zero points", geomerr.ErrEmptyInput)
	}
	for i, p := range points {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return nil, fmt.Errorf("%w: point %d is not finite: %v", geomerr.ErrInvalidArgument, i, p)
		}
	}

	p := make([]orb.Point, len(points))
	copy(p, points)
	slices.SortFunc(p, comparePoints)
	p = slices.Compact(p)

	if len(p) <= 2 {
		return Hull(p), nil
	}

	lower := chain(p)
	slices.Reverse(p)
	upper := chain(p)

	// the last point of each chain is the first of the other
	h := make(Hull, 0, len(lower)+len(upper)-2)
	h = append(h, lower[:len(lower)-1]...)
	h = append(h, upper[:len(upper)-1]...)
	return h, nil
}

func comparePoints(a, b orb.Point) int {
	if c := cmp.Compare(a[0], b[0]); c != 0 {
		return c
	}
	return cmp.Compare(a[1], b[1])
}

func chain(sorted []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(sorted))
	for _, pt := range sorted {
		for len(out) >= 2 && cross(out[len(out)-2], out[len(out)-1], pt) <= 0 {
			out = out[:len(out)-1]
		}
		out = append(out, pt)
	}
	return out
}

// cross is positive when o->a->b turns left.
func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// Degenerate reports whether the hull is a point or a segment.
func (h Hull) Degenerate() bool {
	return len(h) < 3
}

// Ring returns the hull as a closed ring.
func (h Hull) Ring() orb.Ring {
	if len(h) == 0 {
		return nil
	}
	r := make(orb.Ring, 0, len(h)+1)
	r = append(r, h...)
	return append(r, h[0])
}

// Polygon converts a non-degenerate hull to a polygon.
func (h Hull) Polygon() (*polygon.Polygon, error) {
	if h.Degenerate() {
		return nil, fmt.Errorf("%w: hull has %d points", geomerr.ErrInvalidGeometry, len(h))
	}
	return polygon.FromRing(h)
}

// Area returns the enclosed area, zero for degenerate hulls.
func (h Hull) Area() float64 {
	if h.Degenerate() {
		return 0
	}
	area := 0.0
	for i := range h {
		area += cross(h[0], h[i], h[(i+1)%len(h)])
	}
	return area / 2
}
