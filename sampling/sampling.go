// Package sampling places sample points over a field.
package sampling

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/fogleman/poissondisc"
	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/royalcat/fieldgrid/polygon"
)

// poissonAttempts is the number of candidates tried around each accepted point.
const poissonAttempts = 10

// MaxSamples bounds the number of lattice points of a single call.
const MaxSamples = 10_000_000

type Sample struct {
	Point  orb.Point
	Inside bool
}

// Lattice walks b in step increments from b.Min, row by row, and flags every
// lattice point against p.
func Lattice(p *polygon.Polygon, b orb.Bound, step float64) ([]Sample, error) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: sample step must be positive and finite, got %v", geomerr.ErrInvalidArgument, step)
	}

	if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
		return nil, fmt.Errorf("%w: bound min %v exceeds max %v", geomerr.ErrInvalidArgument, b.Min, b.Max)
	}

	fcols := math.Floor((b.Max[0]-b.Min[0])/step) + 1
	frows := math.Floor((b.Max[1]-b.Min[1])/step) + 1
	if !(fcols*frows <= MaxSamples) {
		return nil, fmt.Errorf("%w: sample step %v gives %v x %v points, more than %d",
			geomerr.ErrInvalidArgument, step, frows, fcols, MaxSamples)
	}
	cols, rows := int(fcols), int(frows)

	samples := make([]Sample, 0, rows*cols)
	for j := 0; j < rows; j++ {
		y := b.Min[1] + float64(j)*step
		for i := 0; i < cols; i++ {
			pt := orb.Point{b.Min[0] + float64(i)*step, y}
			samples = append(samples, Sample{Point: pt, Inside: p.Contains(pt)})
		}
	}
	return samples, nil
}

// Inside filters samples down to their points inside the field.
func Inside(samples []Sample) []orb.Point {
	out := []orb.Point{}
	for _, s := range samples {
		if s.Inside {
			out = append(out, s.Point)
		}
	}
	return out
}

// Poisson fills p with points at least distance apart. The same seed yields
// the same points.
func Poisson(p *polygon.Polygon, distance float64, seed int64) ([]orb.Point, error) {
	if distance <= 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		return nil, fmt.Errorf("%w: poisson distance must be positive and finite, got %v", geomerr.ErrInvalidArgument, distance)
	}

	bound := p.Bound()
	if bound.Max[0] == bound.Min[0] || bound.Max[1] == bound.Min[1] {
		return []orb.Point{}, nil
	}

	rnd := rand.New(rand.NewSource(seed))
	points := poissondisc.Sample(bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1], distance, poissonAttempts, rnd)

	inside := make([]orb.Point, 0, len(points))
	for _, pt := range points {
		point := orb.Point{pt.X, pt.Y}
		if p.Contains(point) {
			inside = append(inside, point)
		}
	}
	return inside, nil
}
