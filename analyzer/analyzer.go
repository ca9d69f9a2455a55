// Package analyzer runs a field boundary through projection, bounding box,
// hull, grid classification, rectangle search and sampling.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/bbox"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/royalcat/fieldgrid/grid"
	"github.com/royalcat/fieldgrid/hull"
	"github.com/royalcat/fieldgrid/inscribed"
	"github.com/royalcat/fieldgrid/polygon"
	"github.com/royalcat/fieldgrid/projection"
	"github.com/royalcat/fieldgrid/sampling"
)

type Analyzer struct {
	cfg Config
	log *slog.Logger

	classifier *grid.Classifier
	searcher   *inscribed.Searcher
}

func New(cfg Config, opts ...Option) *Analyzer {
	options := options{
		logger: slog.Default(),
	}
	for _, o := range opts {
		o.apply(&options)
	}

	searcherOpts := []inscribed.Option{
		inscribed.WithThreads(cfg.Threads),
		inscribed.WithMaxQuadrupleVertices(cfg.MaxQuadrupleVertices),
		inscribed.WithLogger(options.logger),
	}
	if options.progress != nil {
		searcherOpts = append(searcherOpts, inscribed.WithProgress(options.progress))
	}

	return &Analyzer{
		cfg: cfg,
		log: options.logger.With("component", "analyzer"),
		classifier: grid.NewClassifier(
			grid.WithMode(cfg.Mode),
			grid.WithBoundaryInclusive(cfg.BoundaryInclusive),
			grid.WithThreads(cfg.Threads),
			grid.WithLogger(options.logger),
		),
		searcher: inscribed.NewSearcher(searcherOpts...),
	}
}

func (a *Analyzer) Config() Config {
	return a.cfg
}

// Result holds planar outputs, all in the projector's metres.
type Result struct {
	Projector *projection.Projector

	Polygon *polygon.Polygon
	Bound   orb.Bound
	Hull    hull.Hull
	Grid    *grid.Grid

	// nil when the search is disabled or found nothing, RectangleErr tells which
	Rectangle    *inscribed.Rectangle
	RectangleErr error

	Samples       []sampling.Sample
	PoissonPoints []orb.Point
}

// Projector returns the projector the analyzer would use for geo.
func (a *Analyzer) Projector(geo []orb.Point) (*projection.Projector, error) {
	if len(geo) == 0 {
		return nil, fmt.Errorf("%w: no field coordinates", geomerr.ErrEmptyInput)
	}

	zone, south := a.cfg.Zone, a.cfg.South
	if zone == 0 {
		var lon, lat float64
		for _, p := range geo {
			lon += p[0]
			lat += p[1]
		}
		zone, south = projection.ZoneFor(lon/float64(len(geo)), lat/float64(len(geo)))
	}
	return projection.ForZone(zone, south)
}

// Analyze expects geo as (lon, lat) degrees. A failed rectangle search is
// reported through Result.RectangleErr, everything else fails the call.
func (a *Analyzer) Analyze(ctx context.Context, geo []orb.Point) (*Result, error) {
	start := time.Now()

	projector, err := a.Projector(geo)
	if err != nil {
		return nil, err
	}

	planarPoints, err := projector.Project(geo)
	if err != nil {
		return nil, err
	}

	p, err := polygon.FromRing(planarPoints)
	if err != nil {
		return nil, fmt.Errorf("building field polygon: %w", err)
	}

	res := &Result{
		Projector: projector,
		Polygon:   p,
	}

	res.Bound, err = bbox.OfPolygon(p, a.cfg.Margin)
	if err != nil {
		return nil, err
	}

	res.Hull, err = hull.Of(p.Ring())
	if err != nil {
		return nil, fmt.Errorf("building hull: %w", err)
	}

	g, err := grid.Build(res.Bound, a.cfg.CellSize)
	if err != nil {
		return nil, err
	}
	res.Grid = a.classifier.Classify(g, p)

	if a.cfg.Rectangle {
		rect, err := a.searcher.Search(ctx, p)
		switch {
		case err == nil:
			res.Rectangle = &rect
		case errors.Is(err, geomerr.ErrNoInscribedRectangleFound):
			res.RectangleErr = err
			a.log.Warn("no inscribed rectangle", "error", err)
		default:
			return nil, err
		}
	}

	if a.cfg.SampleStep > 0 {
		res.Samples, err = sampling.Lattice(p, res.Bound, a.cfg.SampleStep)
		if err != nil {
			return nil, err
		}
	}
	if a.cfg.PoissonDistance > 0 {
		res.PoissonPoints, err = sampling.Poisson(p, a.cfg.PoissonDistance, a.cfg.Seed)
		if err != nil {
			return nil, err
		}
	}

	a.log.Info("field analyzed",
		"projection", projector.String(),
		"vertices", p.Vertices(),
		"area_m2", p.Area(),
		"rows", res.Grid.Rows,
		"cols", res.Grid.Cols,
		"inside_cells", res.Grid.InsideCount(),
		"took", time.Since(start),
	)

	return res, nil
}
