package polygon

import (
	"math"

	"github.com/google/btree"
	"github.com/paulmach/orb"
)

// boundaryEpsilon is the distance under which a point is treated as lying on an edge.
const boundaryEpsilon = 1e-9

// Edge is a directed ring segment from A to B.
type Edge struct {
	A, B orb.Point
}

func (e Edge) minY() float64 { return math.Min(e.A[1], e.B[1]) }
func (e Edge) maxY() float64 { return math.Max(e.A[1], e.B[1]) }

// crosses reports whether the horizontal ray from point towards +x crosses the edge.
func (e Edge) crosses(point orb.Point) bool {
	x, y := point[0], point[1]
	xi, yi := e.A[0], e.A[1]
	xj, yj := e.B[0], e.B[1]

	return ((yi > y) != (yj > y)) &&
		(x < (xj-xi)*(y-yi)/(yj-yi)+xi)
}

// contains reports whether point lies on the segment within boundaryEpsilon.
func (e Edge) contains(point orb.Point) bool {
	dx := e.B[0] - e.A[0]
	dy := e.B[1] - e.A[1]

	cross := dx*(point[1]-e.A[1]) - dy*(point[0]-e.A[0])
	if math.Abs(cross) > boundaryEpsilon*math.Hypot(dx, dy) {
		return false
	}

	return point[0] >= math.Min(e.A[0], e.B[0])-boundaryEpsilon &&
		point[0] <= math.Max(e.A[0], e.B[0])+boundaryEpsilon &&
		point[1] >= math.Min(e.A[1], e.B[1])-boundaryEpsilon &&
		point[1] <= math.Max(e.A[1], e.B[1])+boundaryEpsilon
}

// Edges is a set of ring edges. Containment over a subset of a polygon's edges
// is only meaningful for points whose y lies in the band the subset was taken for.
type Edges []Edge

func makeEdges(ring orb.Ring) Edges {
	edges := make(Edges, len(ring))
	for i := range ring {
		edges[i] = Edge{A: ring[i], B: ring[(i+1)%len(ring)]}
	}
	return edges
}

// Contains applies the odd-even rule, points on an edge are outside.
func (edges Edges) Contains(point orb.Point) bool {
	if edges.onBoundary(point) {
		return false
	}
	return edges.rayCast(point)
}

// ContainsBoundaryInclusive applies the odd-even rule, points on an edge are inside.
func (edges Edges) ContainsBoundaryInclusive(point orb.Point) bool {
	if edges.onBoundary(point) {
		return true
	}
	return edges.rayCast(point)
}

func (edges Edges) rayCast(point orb.Point) bool {
	inside := false
	for _, e := range edges {
		if e.crosses(point) {
			inside = !inside
		}
	}
	return inside
}

func (edges Edges) onBoundary(point orb.Point) bool {
	for _, e := range edges {
		if e.contains(point) {
			return true
		}
	}
	return false
}

type indexedEdge struct {
	Edge
	i int
}

func lessIndexedEdge(a, b indexedEdge) bool {
	if ay, by := a.minY(), b.minY(); ay != by {
		return ay < by
	}
	return a.i < b.i
}

func buildEdgeIndex(edges Edges) *btree.BTreeG[indexedEdge] {
	index := btree.NewG(16, lessIndexedEdge)
	for i, e := range edges {
		index.ReplaceOrInsert(indexedEdge{Edge: e, i: i})
	}
	return index
}

// Band returns the edges whose y-range intersects [minY, maxY], widened by the
// boundary tolerance. For points with y in the band, the returned set answers
// Contains and ContainsBoundaryInclusive exactly like the polygon.
func (p *Polygon) Band(minY, maxY float64) Edges {
	lo := minY - boundaryEpsilon
	hi := maxY + boundaryEpsilon

	out := Edges{}
	pivot := indexedEdge{Edge: Edge{A: orb.Point{0, hi}, B: orb.Point{0, hi}}, i: math.MaxInt}
	p.index.AscendLessThan(pivot, func(e indexedEdge) bool {
		if e.maxY() >= lo {
			out = append(out, e.Edge)
		}
		return true
	})
	return out
}

// Edges returns every ring edge in ring order.
func (p *Polygon) Edges() Edges {
	out := make(Edges, len(p.edges))
	copy(out, p.edges)
	return out
}
