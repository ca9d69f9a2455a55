package polygon_test

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/royalcat/fieldgrid/polygon"
)

func square(t testing.TB) *polygon.Polygon {
	t.Helper()
	p, err := polygon.FromRing([]orb.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestFromRingRejectsDegenerate(t *testing.T) {
	cases := map[string][]orb.Point{
		"empty":           nil,
		"two identical":   {{1, 1}, {1, 1}},
		"two distinct":    {{0, 0}, {1, 1}},
		"closed segment":  {{0, 0}, {1, 1}, {0, 0}},
		"repeated points": {{0, 0}, {0, 0}, {5, 5}, {5, 5}, {0, 0}},
		"alternating two": {{0, 0}, {1, 0}, {0, 0}, {1, 0}},
		"alternating six": {{0, 0}, {1, 0}, {0, 0}, {1, 0}, {0, 0}, {1, 0}},
		"nan":             {{0, 0}, {1, 0}, {math.NaN(), 1}},
		"inf":             {{0, 0}, {1, 0}, {1, math.Inf(1)}},
	}

	for name, ring := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := polygon.FromRing(ring)
			if !errors.Is(err, geomerr.ErrInvalidGeometry) {
				t.Fatalf("expected ErrInvalidGeometry, got %v", err)
			}
		})
	}
}

func TestFromRingNormalizesClosure(t *testing.T) {
	p, err := polygon.FromRing([]orb.Point{{0, 0}, {10, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}})
	if err != nil {
		t.Fatal(err)
	}

	if p.Vertices() != 4 {
		t.Fatalf("expected 4 vertices, got %d", p.Vertices())
	}
	ring := p.Closed()
	if !ring.Closed() || len(ring) != 5 {
		t.Fatalf("expected closed ring of 5 points, got %v", ring)
	}
}

func TestDerivedValues(t *testing.T) {
	p := square(t)

	if c := p.Centroid(); math.Abs(c[0]-5) > 1e-9 || math.Abs(c[1]-5) > 1e-9 {
		t.Fatalf("expected centroid (5,5), got %v", c)
	}
	if p.SignedArea() != 100 {
		t.Fatalf("expected signed area 100, got %v", p.SignedArea())
	}
	if b := p.Bound(); b.Min != (orb.Point{0, 0}) || b.Max != (orb.Point{10, 10}) {
		t.Fatalf("unexpected bound %v", b)
	}

	cw, err := polygon.FromRing([]orb.Point{{0, 0}, {0, 10}, {10, 10}, {10, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if cw.SignedArea() != -100 || cw.Area() != 100 {
		t.Fatalf("expected clockwise signed area -100, got %v", cw.SignedArea())
	}
}

func TestCollinearRingCentroid(t *testing.T) {
	p, err := polygon.FromRing([]orb.Point{{0, 0}, {5, 0}, {10, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Area() != 0 {
		t.Fatalf("expected zero area, got %v", p.Area())
	}
	if c := p.Centroid(); c != (orb.Point{5, 0}) {
		t.Fatalf("expected vertex mean (5,0), got %v", c)
	}
}

func TestContainsConvex(t *testing.T) {
	p := square(t)

	inside := []orb.Point{{5, 5}, {0.001, 0.001}, {9.999, 5}, {2.5, 7.5}}
	for _, pt := range inside {
		if !p.Contains(pt) {
			t.Errorf("expected %v inside", pt)
		}
		if !p.ContainsBoundaryInclusive(pt) {
			t.Errorf("expected %v inside (inclusive)", pt)
		}
	}

	outside := []orb.Point{{-1, 5}, {11, 5}, {5, -0.5}, {5, 10.5}, {100, 100}}
	for _, pt := range outside {
		if p.Contains(pt) || p.ContainsBoundaryInclusive(pt) {
			t.Errorf("expected %v outside", pt)
		}
	}
}

func TestBoundaryPoints(t *testing.T) {
	triangle, err := polygon.FromRing([]orb.Point{{0, 0}, {10, 0}, {0, 10}})
	if err != nil {
		t.Fatal(err)
	}

	onEdge := []orb.Point{{0, 0}, {5, 0}, {0, 5}, {5, 5}, {10, 0}, {2.5, 7.5}}
	for _, pt := range onEdge {
		if !triangle.ContainsBoundaryInclusive(pt) {
			t.Errorf("expected %v on boundary to be inside (inclusive)", pt)
		}
		if !triangle.OnBoundary(pt) {
			t.Errorf("expected %v on boundary", pt)
		}

		first := triangle.Contains(pt)
		for range 10 {
			if triangle.Contains(pt) != first {
				t.Fatalf("Contains is not deterministic for %v", pt)
			}
		}
		if first {
			t.Errorf("expected %v on boundary to be outside (exclusive)", pt)
		}
	}
}

func TestConcaveContains(t *testing.T) {
	// L shape, the notch is [5,10]x[5,10]
	l, err := polygon.FromRing([]orb.Point{{0, 0}, {10, 0}, {10, 5}, {5, 5}, {5, 10}, {0, 10}})
	if err != nil {
		t.Fatal(err)
	}

	if l.Contains(orb.Point{7.5, 7.5}) {
		t.Fatal("notch point must be outside")
	}
	if !l.Contains(orb.Point{2.5, 7.5}) || !l.Contains(orb.Point{7.5, 2.5}) {
		t.Fatal("arm points must be inside")
	}
	if !l.ContainsBoundaryInclusive(orb.Point{5, 7.5}) || l.Contains(orb.Point{5, 7.5}) {
		t.Fatal("inner notch edge must be boundary")
	}
}

func TestBandMatchesPolygon(t *testing.T) {
	l, err := polygon.FromRing([]orb.Point{{0, 0}, {10, 0}, {10, 5}, {5, 5}, {5, 10}, {0, 10}})
	if err != nil {
		t.Fatal(err)
	}

	for y0 := -1.0; y0 < 11; y0 += 0.5 {
		band := l.Band(y0, y0+0.5)
		if len(band) > l.Vertices() {
			t.Fatalf("band has more edges than the ring")
		}
		for y := y0; y <= y0+0.5; y += 0.25 {
			for x := -1.0; x <= 11; x += 0.25 {
				pt := orb.Point{x, y}
				if band.Contains(pt) != l.Contains(pt) {
					t.Fatalf("band Contains disagrees at %v", pt)
				}
				if band.ContainsBoundaryInclusive(pt) != l.ContainsBoundaryInclusive(pt) {
					t.Fatalf("band ContainsBoundaryInclusive disagrees at %v", pt)
				}
			}
		}
	}
}

func FuzzContainsMatchesPlanar(f *testing.F) {
	f.Add(0.0, 0.0, 1.0, 1.0, 0.5, 0.5)
	f.Add(0.0, 0.0, 1.0, 1.0, 1.5, 1.5)
	f.Add(-3.0, 2.0, 7.0, 4.0, 0.0, 3.0)

	f.Fuzz(func(t *testing.T, minX, minY, maxX, maxY, pointX, pointY float64) {
		for _, v := range []float64{minX, minY, maxX, maxY, pointX, pointY} {
			if math.IsNaN(v) || math.Abs(v) > 1e6 {
				t.Skip()
			}
		}
		// keep clear of the boundary tolerance band
		const gap = 1e-6
		if math.Abs(pointX-minX) < gap || math.Abs(pointX-maxX) < gap ||
			math.Abs(pointY-minY) < gap || math.Abs(pointY-maxY) < gap {
			t.Skip()
		}

		ring := orb.Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}
		p, err := polygon.FromRing(ring)
		if err != nil {
			t.Skip()
		}

		point := orb.Point{pointX, pointY}
		expected := planar.RingContains(ring, point)
		if got := p.ContainsBoundaryInclusive(point); got != expected {
			t.Fatalf("expected %v, got %v", expected, got)
		}
		if got := p.Contains(point); got != expected {
			t.Fatalf("expected %v, got %v", expected, got)
		}
	})
}

func BenchmarkContains(b *testing.B) {
	ring := make([]orb.Point, 0, 256)
	for i := range 256 {
		a := 2 * math.Pi * float64(i) / 256
		ring = append(ring, orb.Point{500 * math.Cos(a), 500 * math.Sin(a)})
	}
	p, err := polygon.FromRing(ring)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Contains(orb.Point{float64(i%1000) - 500, 12})
	}
}
