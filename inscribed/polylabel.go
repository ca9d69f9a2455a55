package inscribed

import (
	"math"

	"github.com/google/btree"
	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/polygon"
)

// PoleOfInaccessibility returns the interior point farthest from the polygon
// boundary, to within precision. A non-positive precision defaults to a
// thousandth of the larger bound side.
func PoleOfInaccessibility(p *polygon.Polygon, precision float64) orb.Point {
	b := p.Bound()
	width := b.Max[0] - b.Min[0]
	height := b.Max[1] - b.Min[1]
	cellSize := math.Min(width, height)

	if cellSize == 0 {
		return p.Centroid()
	}
	if precision <= 0 || math.IsNaN(precision) {
		precision = math.Max(width, height) / 1000
	}

	edges := p.Edges()
	queue := newCellQueue()

	h := cellSize / 2
	for x := b.Min[0]; x < b.Max[0]; x += cellSize {
		for y := b.Min[1]; y < b.Max[1]; y += cellSize {
			queue.push(newProbe(x+h, y+h, h, p, edges))
		}
	}

	best := newProbe(p.Centroid()[0], p.Centroid()[1], 0, p, edges)
	if center := newProbe(b.Min[0]+width/2, b.Min[1]+height/2, 0, p, edges); center.d > best.d {
		best = center
	}

	for queue.Len() != 0 {
		cell := queue.pop()

		if cell.d > best.d {
			best = cell
		}

		// no chance of a better solution inside this cell
		if cell.max-best.d <= precision {
			continue
		}

		h = cell.h / 2
		queue.push(newProbe(cell.x-h, cell.y-h, h, p, edges))
		queue.push(newProbe(cell.x+h, cell.y-h, h, p, edges))
		queue.push(newProbe(cell.x-h, cell.y+h, h, p, edges))
		queue.push(newProbe(cell.x+h, cell.y+h, h, p, edges))
	}

	return orb.Point{best.x, best.y}
}

type probe struct {
	x, y float64
	h    float64 // half cell size
	d    float64 // signed distance from the center to the boundary
	max  float64 // upper bound of the distance within the cell
}

func newProbe(x, y, h float64, p *polygon.Polygon, edges polygon.Edges) probe {
	d := signedDistance(orb.Point{x, y}, p, edges)
	return probe{x: x, y: y, h: h, d: d, max: d + h*math.Sqrt2}
}

// signedDistance is positive inside the polygon and negative outside.
func signedDistance(pt orb.Point, p *polygon.Polygon, edges polygon.Edges) float64 {
	minDistSq := math.MaxFloat64
	for _, e := range edges {
		minDistSq = math.Min(minDistSq, segDistSq(pt, e.A, e.B))
	}
	if p.Contains(pt) {
		return math.Sqrt(minDistSq)
	}
	return -math.Sqrt(minDistSq)
}

func segDistSq(pt, a, b orb.Point) float64 {
	x, y := a[0], a[1]
	dx, dy := b[0]-x, b[1]-y

	if dx != 0 || dy != 0 {
		t := ((pt[0]-x)*dx + (pt[1]-y)*dy) / (dx*dx + dy*dy)
		if t > 1 {
			x, y = b[0], b[1]
		} else if t > 0 {
			x += dx * t
			y += dy * t
		}
	}

	dx = pt[0] - x
	dy = pt[1] - y
	return dx*dx + dy*dy
}

type queuedProbe struct {
	probe
	seq int
}

// cellQueue is a max priority queue of probes keyed by their distance bound.
type cellQueue struct {
	tree *btree.BTreeG[queuedProbe]
	seq  int
}

func newCellQueue() *cellQueue {
	return &cellQueue{
		tree: btree.NewG(8, func(a, b queuedProbe) bool {
			if a.max != b.max {
				return a.max < b.max
			}
			return a.seq < b.seq
		}),
	}
}

func (q *cellQueue) push(p probe) {
	q.tree.ReplaceOrInsert(queuedProbe{probe: p, seq: q.seq})
	q.seq++
}

func (q *cellQueue) pop() probe {
	item, _ := q.tree.DeleteMax()
	return item.probe
}

func (q *cellQueue) Len() int {
	return q.tree.Len()
}
