package analyzer

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/bbox"
	"github.com/royalcat/fieldgrid/sampling"
)

// GeoResult is a Result mapped back to (lon, lat) degrees for writers.
// Areas stay in square metres.
type GeoResult struct {
	Projection string

	Field     orb.Ring
	FieldArea float64

	Bound orb.Ring
	Hull  orb.Ring

	Rectangle     orb.Ring
	RectangleKind string
	RectangleArea float64

	// set when the search ran and found nothing
	RectangleError string

	CellSize float64
	Rows     int
	Cols     int
	Cells    []GeoCell

	Samples []orb.Point
}

type GeoCell struct {
	Row, Col int
	Ring     orb.Ring
	Inside   bool
}

func (r *Result) Geo() (*GeoResult, error) {
	unproject := func(what string, points []orb.Point) (orb.Ring, error) {
		out, err := r.Projector.Unproject(points)
		if err != nil {
			return nil, fmt.Errorf("unprojecting %s: %w", what, err)
		}
		return orb.Ring(out), nil
	}

	var err error
	geo := &GeoResult{
		Projection: r.Projector.String(),
		FieldArea:  r.Polygon.Area(),
		CellSize:   r.Grid.CellSize,
		Rows:       r.Grid.Rows,
		Cols:       r.Grid.Cols,
	}

	geo.Field, err = unproject("field", r.Polygon.Closed())
	if err != nil {
		return nil, err
	}

	corners := bbox.Corners(r.Bound)
	geo.Bound, err = unproject("bound", append(corners[:], corners[0]))
	if err != nil {
		return nil, err
	}

	geo.Hull, err = unproject("hull", r.Hull.Ring())
	if err != nil {
		return nil, err
	}

	if r.Rectangle != nil {
		geo.Rectangle, err = unproject("rectangle", r.Rectangle.Ring())
		if err != nil {
			return nil, err
		}
		geo.RectangleKind = r.Rectangle.Kind.String()
		geo.RectangleArea = r.Rectangle.Area
	}
	if r.RectangleErr != nil {
		geo.RectangleError = r.RectangleErr.Error()
	}

	cells := r.Grid.Cells()
	geo.Cells = make([]GeoCell, 0, len(cells))
	for _, c := range cells {
		corners := bbox.Corners(c.Bound)
		ring, err := unproject("cell", append(corners[:], corners[0]))
		if err != nil {
			return nil, err
		}
		geo.Cells = append(geo.Cells, GeoCell{Row: c.Row, Col: c.Col, Ring: ring, Inside: c.Inside})
	}

	samples := sampling.Inside(r.Samples)
	samples = append(samples, r.PoissonPoints...)
	if len(samples) > 0 {
		geo.Samples, err = unproject("samples", samples)
		if err != nil {
			return nil, err
		}
	}

	return geo, nil
}
