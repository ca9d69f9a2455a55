package polygon

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/google/btree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/royalcat/fieldgrid/geomerr"
)

// Polygon is an immutable simple polygon with a single exterior ring.
// Holes are not supported.
type Polygon struct {
	ring orb.Ring // unclosed, no consecutive duplicates

	bound      orb.Bound
	centroid   orb.Point
	signedArea float64

	edges Edges
	index *btree.BTreeG[indexedEdge]
}

// FromRing builds a polygon from an exterior ring.
// A trailing copy of the first point is treated as the closure marker and dropped,
// consecutive duplicate points are collapsed.
func FromRing(points []orb.Point) (*Polygon, error) {
	for i, p := range points {
		if !finite(p) {
			return nil, fmt.Errorf("%w: point %d is not finite: %v", geomerr.ErrInvalidGeometry, i, p)
		}
	}

	ring := normalizeRing(points)
	if n := distinctPoints(ring); n < 3 {
		return nil, fmt.Errorf("%w: ring has %d distinct points, need at least 3", geomerr.ErrInvalidGeometry, n)
	}

	p := &Polygon{
		ring:  ring,
		bound: ring.Bound(),
	}
	p.signedArea = signedArea(ring)
	p.centroid = centroid(ring, p.signedArea)
	p.edges = makeEdges(ring)
	p.index = buildEdgeIndex(p.edges)

	return p, nil
}

func normalizeRing(points []orb.Point) orb.Ring {
	ring := make(orb.Ring, 0, len(points))
	for _, p := range points {
		if len(ring) > 0 && ring[len(ring)-1].Equal(p) {
			continue
		}
		ring = append(ring, p)
	}

	for len(ring) > 1 && ring[len(ring)-1].Equal(ring[0]) {
		ring = ring[:len(ring)-1]
	}

	return ring
}

func distinctPoints(ring orb.Ring) int {
	sorted := slices.Clone(ring)
	slices.SortFunc(sorted, func(a, b orb.Point) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})
	return len(slices.Compact(sorted))
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

// shoelace over the implicitly closed ring, offset to the first point to help with roundoff
func signedArea(ring orb.Ring) float64 {
	area := 0.0
	offset := ring[0]
	for i := range ring {
		a := ring[i]
		b := ring[(i+1)%len(ring)]
		area += (a[0]-offset[0])*(b[1]-offset[1]) - (b[0]-offset[0])*(a[1]-offset[1])
	}
	return area / 2
}

func centroid(ring orb.Ring, area float64) orb.Point {
	if area != 0 {
		c, _ := planar.CentroidArea(closed(ring))
		return c
	}

	// collinear ring, fall back to the vertex mean
	var x, y float64
	for _, p := range ring {
		x += p[0]
		y += p[1]
	}
	n := float64(len(ring))
	return orb.Point{x / n, y / n}
}

func closed(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(ring)+1)
	out = append(out, ring...)
	return append(out, ring[0])
}

// Ring returns a copy of the exterior ring without the closing point.
func (p *Polygon) Ring() []orb.Point {
	out := make([]orb.Point, len(p.ring))
	copy(out, p.ring)
	return out
}

// Closed returns a copy of the exterior ring with the first point repeated at the end.
func (p *Polygon) Closed() orb.Ring {
	return closed(p.ring)
}

// Vertices returns the number of distinct ring vertices.
func (p *Polygon) Vertices() int {
	return len(p.ring)
}

func (p *Polygon) Bound() orb.Bound {
	return p.bound
}

func (p *Polygon) Centroid() orb.Point {
	return p.centroid
}

// SignedArea is positive for counter-clockwise rings.
func (p *Polygon) SignedArea() float64 {
	return p.signedArea
}

func (p *Polygon) Area() float64 {
	return math.Abs(p.signedArea)
}

// Contains reports whether point lies strictly inside the polygon.
// Points on the boundary are outside.
func (p *Polygon) Contains(point orb.Point) bool {
	if !p.bound.Contains(point) {
		return false
	}
	return p.edges.Contains(point)
}

// ContainsBoundaryInclusive reports whether point lies inside or on the boundary.
func (p *Polygon) ContainsBoundaryInclusive(point orb.Point) bool {
	if !p.bound.Pad(boundaryEpsilon).Contains(point) {
		return false
	}
	return p.edges.ContainsBoundaryInclusive(point)
}

// OnBoundary reports whether point lies on one of the ring edges.
func (p *Polygon) OnBoundary(point orb.Point) bool {
	return p.edges.onBoundary(point)
}
