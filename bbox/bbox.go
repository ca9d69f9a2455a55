// Package bbox computes axis-aligned bounding boxes of point sets.
package bbox

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/royalcat/fieldgrid/polygon"
)

// Of returns the minimum bounding rectangle of points, padded by margin on every side.
func Of(points []orb.Point, margin float64) (orb.Bound, error) {
	if len(points) == 0 {
		return orb.Bound{}, fmt.Errorf("%w: bounding box of zero points", geomerr.ErrEmptyInput)
	}
	if err := checkMargin(margin); err != nil {
		return orb.Bound{}, err
	}

	return orb.MultiPoint(points).Bound().Pad(margin), nil
}

// OfPolygon returns the polygon bound padded by margin.
func OfPolygon(p *polygon.Polygon, margin float64) (orb.Bound, error) {
	if err := checkMargin(margin); err != nil {
		return orb.Bound{}, err
	}
	return p.Bound().Pad(margin), nil
}

func checkMargin(margin float64) error {
	if margin < 0 || math.IsNaN(margin) || math.IsInf(margin, 0) {
		return fmt.Errorf("%w: margin must be a finite value >= 0, got %v", geomerr.ErrInvalidArgument, margin)
	}
	return nil
}

// Corners returns the four corners of b counter-clockwise starting at Min.
func Corners(b orb.Bound) [4]orb.Point {
	return [4]orb.Point{
		b.Min,
		{b.Max[0], b.Min[1]},
		b.Max,
		{b.Min[0], b.Max[1]},
	}
}
