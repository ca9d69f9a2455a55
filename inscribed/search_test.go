package inscribed_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/royalcat/fieldgrid/hull"
	"github.com/royalcat/fieldgrid/inscribed"
	"github.com/royalcat/fieldgrid/polygon"
	"github.com/thejerf/slogassert"
)

func mustPolygon(t testing.TB, ring []orb.Point) *polygon.Polygon {
	t.Helper()
	p, err := polygon.FromRing(ring)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func regular(n int, r float64) []orb.Point {
	ring := make([]orb.Point, 0, n)
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{r * math.Cos(a), r * math.Sin(a)})
	}
	return ring
}

func assertCornersInside(t *testing.T, p *polygon.Polygon, r inscribed.Rectangle) {
	t.Helper()
	for _, c := range r.Corners {
		if !p.ContainsBoundaryInclusive(c) {
			t.Fatalf("corner %v of %s rectangle is outside", c, r.Kind)
		}
	}
	if r.Area <= 0 {
		t.Fatalf("expected positive area, got %v", r.Area)
	}
}

func TestSquare(t *testing.T) {
	p := mustPolygon(t, []orb.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}})

	r, err := inscribed.NewSearcher().Search(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Area != 100 {
		t.Fatalf("expected area 100, got %v", r.Area)
	}
	if r.Kind != inscribed.AxisAligned {
		t.Fatalf("expected the earliest candidate on ties, got %s", r.Kind)
	}
	assertCornersInside(t, p, r)
}

func TestRotatedSquareIsVertexAligned(t *testing.T) {
	p := mustPolygon(t, []orb.Point{{5, 0}, {10, 5}, {5, 10}, {0, 5}})

	r, err := inscribed.NewSearcher().Search(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != inscribed.VertexAligned {
		t.Fatalf("expected vertex-aligned rectangle, got %s", r.Kind)
	}
	if math.Abs(r.Area-50) > 1e-9 {
		t.Fatalf("expected area 50, got %v", r.Area)
	}
	assertCornersInside(t, p, r)
}

func TestTriangleUsesShrink(t *testing.T) {
	p := mustPolygon(t, []orb.Point{{0, 0}, {10, 0}, {0, 10}})

	r, err := inscribed.NewSearcher().Search(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != inscribed.Shrunk {
		t.Fatalf("expected shrunk rectangle, got %s", r.Kind)
	}
	assertCornersInside(t, p, r)
}

func TestLShape(t *testing.T) {
	p := mustPolygon(t, []orb.Point{{0, 0}, {10, 0}, {10, 5}, {5, 5}, {5, 10}, {0, 10}})

	r, err := inscribed.NewSearcher().Search(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCornersInside(t, p, r)
}

func TestCollinearNotFound(t *testing.T) {
	p := mustPolygon(t, []orb.Point{{0, 0}, {5, 0}, {10, 0}})

	_, err := inscribed.NewSearcher().Search(context.Background(), p)
	if !errors.Is(err, geomerr.ErrNoInscribedRectangleFound) {
		t.Fatalf("expected ErrNoInscribedRectangleFound, got %v", err)
	}
}

func TestLargeHullWarns(t *testing.T) {
	handler := slogassert.New(t, slog.LevelWarn, nil)
	p := mustPolygon(t, regular(80, 100))

	r, err := inscribed.NewSearcher(inscribed.WithLogger(slog.New(handler))).Search(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != inscribed.Shrunk {
		t.Fatalf("expected shrunk rectangle, got %s", r.Kind)
	}
	assertCornersInside(t, p, r)

	handler.AssertMessage("hull too large for quadruple search, using shrink candidate only")
}

func TestCancelled(t *testing.T) {
	p := mustPolygon(t, regular(40, 100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inscribed.NewSearcher().Search(ctx, p)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProgress(t *testing.T) {
	p := mustPolygon(t, regular(12, 100))

	var last atomic.Int64
	_, err := inscribed.NewSearcher(inscribed.WithProgress(func(done int64) {
		for {
			cur := last.Load()
			if done <= cur || last.CompareAndSwap(cur, done) {
				return
			}
		}
	})).Search(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if last.Load() != inscribed.QuadrupleCount(12) {
		t.Fatalf("expected %d quadruples, got %d", inscribed.QuadrupleCount(12), last.Load())
	}
}

func TestQuadrupleCount(t *testing.T) {
	cases := map[int]int64{0: 0, 3: 0, 4: 1, 5: 5, 12: 495, 64: 635376}
	for n, expected := range cases {
		if got := inscribed.QuadrupleCount(n); got != expected {
			t.Errorf("n=%d: expected %d, got %d", n, expected, got)
		}
	}
}

func TestThreadsDeterministic(t *testing.T) {
	p := mustPolygon(t, regular(24, 50))

	expected, err := inscribed.NewSearcher(inscribed.WithThreads(1)).Search(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	for _, threads := range []int{2, 5, 16} {
		got, err := inscribed.NewSearcher(inscribed.WithThreads(threads)).Search(context.Background(), p)
		if err != nil {
			t.Fatal(err)
		}
		if got != expected {
			t.Fatalf("threads %d: expected %+v, got %+v", threads, expected, got)
		}
	}
}

func TestRandomCornersInside(t *testing.T) {
	searcher := inscribed.NewSearcher()
	for seed := int64(1); seed <= 10; seed++ {
		rnd := rand.New(rand.NewSource(seed))
		points := make([]orb.Point, 30)
		for i := range points {
			points[i] = orb.Point{rnd.Float64() * 1000, rnd.Float64() * 400}
		}
		h, err := hull.Of(points)
		if err != nil {
			t.Fatal(err)
		}
		p, err := h.Polygon()
		if err != nil {
			t.Fatal(err)
		}

		r, err := searcher.Search(context.Background(), p)
		if err != nil {
			t.Fatalf("seed %d: unexpected error: %v", seed, err)
		}
		assertCornersInside(t, p, r)
		if r.Area > p.Area()+1e-6 {
			t.Fatalf("seed %d: rectangle area %v exceeds polygon area %v", seed, r.Area, p.Area())
		}
	}
}

func TestPoleOfInaccessibility(t *testing.T) {
	square := mustPolygon(t, []orb.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
	pole := inscribed.PoleOfInaccessibility(square, 0.01)
	if math.Abs(pole[0]-5) > 0.05 || math.Abs(pole[1]-5) > 0.05 {
		t.Fatalf("expected pole near (5,5), got %v", pole)
	}

	l := mustPolygon(t, []orb.Point{{0, 0}, {10, 0}, {10, 2}, {2, 2}, {2, 10}, {0, 10}})
	pole = inscribed.PoleOfInaccessibility(l, 0)
	if !l.Contains(pole) {
		t.Fatalf("pole %v must be inside the L shape", pole)
	}
}

func BenchmarkSearch(b *testing.B) {
	p := mustPolygon(b, regular(32, 100))
	searcher := inscribed.NewSearcher()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := searcher.Search(context.Background(), p); err != nil {
			b.Fatal(err)
		}
	}
}
