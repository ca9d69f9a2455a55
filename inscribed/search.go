// Package inscribed searches for a large rectangle inside a field polygon.
//
// The search is best effort: candidates come from quadruples of convex hull
// vertices and from the bounding box shrunk towards the pole of
// inaccessibility. A candidate is accepted only when all four of its corners
// lie inside the polygon or on its boundary.
package inscribed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/royalcat/fieldgrid/hull"
	"github.com/royalcat/fieldgrid/polygon"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/royalcat/fieldgrid/inscribed")

type Searcher struct {
	maxQuadrupleVertices int
	shrinkSteps          int
	threads              int
	progress             func(done int64)
	log                  *slog.Logger

	metricSearches   metric.Int64Counter
	metricQuadruples metric.Int64Counter
}

func NewSearcher(opts ...Option) *Searcher {
	options := loadOptions(opts...)

	s := &Searcher{
		maxQuadrupleVertices: options.maxQuadrupleVertices,
		shrinkSteps:          options.shrinkSteps,
		threads:              options.threads,
		progress:             options.progress,
		log:                  options.logger,
	}
	if s.threads <= 0 {
		s.threads = runtime.GOMAXPROCS(0)
	}

	var err error
	s.metricSearches, err = meter.Int64Counter("rectangle_searches_total")
	if err != nil {
		s.log.Error("failed to create counter", "error", err)
	}
	s.metricQuadruples, err = meter.Int64Counter("rectangle_quadruples_total")
	if err != nil {
		s.log.Error("failed to create counter", "error", err)
	}

	return s
}

// QuadrupleCount is the number of quadruples evaluated for a hull of n vertices.
func QuadrupleCount(n int) int64 {
	if n < 4 {
		return 0
	}
	k := int64(n)
	return k * (k - 1) * (k - 2) * (k - 3) / 24
}

// candidate orders equal areas by enumeration position.
type candidate struct {
	rect  Rectangle
	order [5]int
	ok    bool
}

func (c candidate) better(than candidate) bool {
	if !c.ok {
		return false
	}
	if !than.ok || c.rect.Area > than.rect.Area {
		return true
	}
	return c.rect.Area == than.rect.Area && slices.Compare(c.order[:], than.order[:]) < 0
}

// Search returns the largest validated candidate rectangle, or an error
// wrapping geomerr.ErrNoInscribedRectangleFound. A cancelled ctx aborts the
// quadruple enumeration with ctx.Err().
func (s *Searcher) Search(ctx context.Context, p *polygon.Polygon) (Rectangle, error) {
	h, err := hull.Of(p.Ring())
	if err != nil {
		return Rectangle{}, fmt.Errorf("building hull: %w", err)
	}

	var best candidate
	switch {
	case len(h) < 4:
		// nothing to enumerate
	case len(h) > s.maxQuadrupleVertices:
		s.log.Warn("hull too large for quadruple search, using shrink candidate only",
			"hull_vertices", len(h),
			"max_quadruple_vertices", s.maxQuadrupleVertices,
		)
	default:
		best, err = s.searchQuadruples(ctx, p, h)
		if err != nil {
			return Rectangle{}, err
		}
	}

	if shrunk := s.shrink(p, len(h)); shrunk.better(best) {
		best = shrunk
	}

	if !best.ok {
		s.recordSearch(ctx, "not_found")
		return Rectangle{}, fmt.Errorf("%w: no candidate among %d hull vertices has all corners inside",
			geomerr.ErrNoInscribedRectangleFound, len(h))
	}

	s.recordSearch(ctx, "found")
	s.log.Debug("inscribed rectangle found",
		"kind", best.rect.Kind.String(),
		"area", best.rect.Area,
		"hull_vertices", len(h),
	)
	return best.rect, nil
}

func (s *Searcher) searchQuadruples(ctx context.Context, p *polygon.Polygon, h hull.Hull) (candidate, error) {
	var done atomic.Int64

	workers := pool.NewWithResults[candidate]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(s.threads)
	for i := 0; i < len(h)-3; i++ {
		workers.Go(func(ctx context.Context) (candidate, error) {
			return s.bestFrom(ctx, p, h, i, &done)
		})
	}
	results, err := workers.Wait()
	if ctx.Err() != nil {
		return candidate{}, ctx.Err()
	}
	if err != nil {
		return candidate{}, err
	}

	s.recordQuadruples(ctx, done.Load())

	var best candidate
	for _, c := range results {
		if c.better(best) {
			best = c
		}
	}
	return best, nil
}

// bestFrom evaluates every quadruple starting at hull vertex i.
func (s *Searcher) bestFrom(ctx context.Context, p *polygon.Polygon, h hull.Hull, i int, done *atomic.Int64) (candidate, error) {
	n := len(h)
	var best candidate
	for j := i + 1; j < n-2; j++ {
		if err := ctx.Err(); err != nil {
			return candidate{}, err
		}

		evaluated := 0
		for k := j + 1; k < n-1; k++ {
			for l := k + 1; l < n; l++ {
				quad := [4]orb.Point{h[i], h[j], h[k], h[l]}

				c := candidate{rect: axisAligned(quad), order: [5]int{i, j, k, l, 0}}
				c.ok = valid(p, c.rect)
				if c.better(best) {
					best = c
				}

				c = candidate{order: [5]int{i, j, k, l, 1}}
				c.rect, c.ok = vertexAligned(quad)
				c.ok = c.ok && valid(p, c.rect)
				if c.better(best) {
					best = c
				}

				evaluated++
			}
		}

		total := done.Add(int64(evaluated))
		if s.progress != nil {
			s.progress(total)
		}
	}
	return best, nil
}

// axisAligned spans the second and third smallest coordinates on each axis.
func axisAligned(quad [4]orb.Point) Rectangle {
	xs := [4]float64{quad[0][0], quad[1][0], quad[2][0], quad[3][0]}
	ys := [4]float64{quad[0][1], quad[1][1], quad[2][1], quad[3][1]}
	slices.Sort(xs[:])
	slices.Sort(ys[:])

	r := axisRect(xs[1], ys[1], xs[2], ys[2])
	r.Kind = AxisAligned
	return r
}

// vertexAligned stands on the edge quad[0]->quad[1], its height is the
// smaller left side distance of the other two vertices.
func vertexAligned(quad [4]orb.Point) (Rectangle, bool) {
	a, b := quad[0], quad[1]
	dx, dy := b[0]-a[0], b[1]-a[1]
	base := math.Hypot(dx, dy)
	if base == 0 {
		return Rectangle{}, false
	}
	ux, uy := dx/base, dy/base
	nx, ny := -uy, ux

	height := -1.0
	for _, c := range quad[2:] {
		d := ux*(c[1]-a[1]) - uy*(c[0]-a[0])
		if height < 0 || d < height {
			height = d
		}
	}
	if height <= 0 {
		return Rectangle{}, false
	}

	return Rectangle{
		Corners: [4]orb.Point{
			a,
			b,
			{b[0] + height*nx, b[1] + height*ny},
			{a[0] + height*nx, a[1] + height*ny},
		},
		Area: base * height,
		Kind: VertexAligned,
	}, true
}

// shrink scales the bounding box about the pole of inaccessibility by
// 1, 1-1/N, ... and takes the first scale whose corners validate.
func (s *Searcher) shrink(p *polygon.Polygon, hullVertices int) candidate {
	b := p.Bound()
	pole := PoleOfInaccessibility(p, 0)

	for step := 0; step < s.shrinkSteps; step++ {
		t := 1 - float64(step)/float64(s.shrinkSteps)
		r := axisRect(
			pole[0]+t*(b.Min[0]-pole[0]),
			pole[1]+t*(b.Min[1]-pole[1]),
			pole[0]+t*(b.Max[0]-pole[0]),
			pole[1]+t*(b.Max[1]-pole[1]),
		)
		r.Kind = Shrunk
		if valid(p, r) {
			return candidate{rect: r, order: [5]int{hullVertices, 0, 0, 0, 2}, ok: true}
		}
	}
	return candidate{}
}

func valid(p *polygon.Polygon, r Rectangle) bool {
	if !(r.Area > 0) {
		return false
	}
	for _, c := range r.Corners {
		if !p.ContainsBoundaryInclusive(c) {
			return false
		}
	}
	return true
}

func (s *Searcher) recordSearch(ctx context.Context, result string) {
	if s.metricSearches != nil {
		s.metricSearches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}

func (s *Searcher) recordQuadruples(ctx context.Context, n int64) {
	if s.metricQuadruples != nil {
		s.metricQuadruples.Add(ctx, n)
	}
}
