package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/fieldgrid/analyzer"
	"github.com/royalcat/fieldgrid/bbox"
	"github.com/royalcat/fieldgrid/boundary"
	"github.com/royalcat/fieldgrid/hull"
	"github.com/royalcat/fieldgrid/inscribed"
	"github.com/royalcat/fieldgrid/internal/stats"
	"github.com/royalcat/fieldgrid/polygon"
	"github.com/royalcat/fieldgrid/projection"
	"github.com/royalcat/fieldgrid/server"
	"github.com/urfave/cli/v3"
)

func analyze(ctx *cli.Context) error {
	e, closeTelemetry, err := setup(ctx)
	if err != nil {
		return err
	}
	defer closeTelemetry()

	log := e.log.With("threads", e.analyzer.Threads)

	stopProfiling, err := startProfiling(ctx, log)
	if err != nil {
		return err
	}
	defer stopProfiling()

	var collector *stats.Collector
	if statsFile := ctx.String("stats"); statsFile != "" {
		collector, err = stats.NewCollector(100 * time.Millisecond)
		if err != nil {
			return err
		}
		collector.Start()
		defer func() {
			report := collector.Stop()
			if err := report.SaveToFile(statsFile); err != nil {
				log.Error("Error saving stats", "error", err)
			}
		}()
	}
	mark := func(phase string) {
		if collector != nil {
			collector.Mark(phase)
		}
	}

	mark("read")
	field, err := boundary.ReadFile(ctx.String("input"))
	if err != nil {
		return err
	}
	log = log.With("field", field.Name)

	opts := []analyzer.Option{analyzer.WithLogger(log)}
	var bar *pb.ProgressBar
	if e.analyzer.Rectangle {
		bar, err = rectangleProgress(e.analyzer, field.Ring)
		if err != nil {
			return err
		}
		if bar != nil {
			opts = append(opts, analyzer.WithProgress(func(done int64) {
				bar.SetCurrent(done)
			}))
		}
	}

	mark("analyze")
	res, err := analyzer.New(e.analyzer, opts...).Analyze(ctx.Context, field.Ring)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("error analyzing field %s: %w", field.Name, err)
	}

	if ctx.Bool("pprof.heap") {
		if err := writeHeapProfile("profile"); err != nil {
			return fmt.Errorf("error writing heap profile: %w", err)
		}
	}

	mark("write")
	geo, err := res.Geo()
	if err != nil {
		return err
	}
	output := ctx.String("output")
	if err := boundary.WriteFile(output, geo); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	fmt.Printf("Field %s: %.1f m2 in %s\n", field.Name, geo.FieldArea, geo.Projection)
	fmt.Printf("Grid %dx%d, %d cells inside\n", res.Grid.Rows, res.Grid.Cols, res.Grid.InsideCount())
	if res.Rectangle != nil {
		fmt.Printf("Rectangle %s: %.1f m2\n", res.Rectangle.Kind, res.Rectangle.Area)
	} else if res.RectangleErr != nil {
		fmt.Printf("Rectangle: %s\n", res.RectangleErr)
	}
	fmt.Printf("Saved to file: %s\n", output)

	return nil
}

// rectangleProgress returns nil when the quadruple search would not run.
func rectangleProgress(cfg analyzer.Config, geo []orb.Point) (*pb.ProgressBar, error) {
	_, p, err := planar(cfg, geo)
	if err != nil {
		return nil, err
	}
	h, err := hull.Of(p.Ring())
	if err != nil {
		return nil, err
	}
	if len(h) < 4 || len(h) > cfg.MaxQuadrupleVertices {
		return nil, nil
	}
	return pb.Full.Start64(inscribed.QuadrupleCount(len(h))), nil
}

func planar(cfg analyzer.Config, geo []orb.Point) (*projection.Projector, *polygon.Polygon, error) {
	projector, err := analyzer.New(cfg).Projector(geo)
	if err != nil {
		return nil, nil, err
	}
	points, err := projector.Project(geo)
	if err != nil {
		return nil, nil, err
	}
	p, err := polygon.FromRing(points)
	if err != nil {
		return nil, nil, err
	}
	return projector, p, nil
}

func readPlanar(ctx *cli.Context) (*env, func(), *projection.Projector, *polygon.Polygon, error) {
	e, closeTelemetry, err := setup(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	field, err := boundary.ReadFile(ctx.String("input"))
	if err != nil {
		closeTelemetry()
		return nil, nil, nil, nil, err
	}

	projector, p, err := planar(e.analyzer, field.Ring)
	if err != nil {
		closeTelemetry()
		return nil, nil, nil, nil, err
	}
	return e, closeTelemetry, projector, p, nil
}

func printHull(ctx *cli.Context) error {
	_, closeTelemetry, projector, p, err := readPlanar(ctx)
	if err != nil {
		return err
	}
	defer closeTelemetry()

	h, err := hull.Of(p.Ring())
	if err != nil {
		return err
	}

	return printFeature(projector, h.Ring(), geojson.Properties{
		"kind":       "hull",
		"vertices":   len(h),
		"area_m2":    h.Area(),
		"projection": projector.String(),
	})
}

func printBBox(ctx *cli.Context) error {
	e, closeTelemetry, projector, p, err := readPlanar(ctx)
	if err != nil {
		return err
	}
	defer closeTelemetry()

	b, err := bbox.OfPolygon(p, e.analyzer.Margin)
	if err != nil {
		return err
	}
	corners := bbox.Corners(b)

	return printFeature(projector, append(corners[:], corners[0]), geojson.Properties{
		"kind":       "bound",
		"margin_m":   e.analyzer.Margin,
		"width_m":    b.Max[0] - b.Min[0],
		"height_m":   b.Max[1] - b.Min[1],
		"projection": projector.String(),
	})
}

func printRectangle(ctx *cli.Context) error {
	e, closeTelemetry, projector, p, err := readPlanar(ctx)
	if err != nil {
		return err
	}
	defer closeTelemetry()

	opts := []inscribed.Option{
		inscribed.WithThreads(e.analyzer.Threads),
		inscribed.WithMaxQuadrupleVertices(e.analyzer.MaxQuadrupleVertices),
		inscribed.WithLogger(e.log),
	}

	h, err := hull.Of(p.Ring())
	if err != nil {
		return err
	}
	if len(h) >= 4 && len(h) <= e.analyzer.MaxQuadrupleVertices {
		bar := pb.Full.Start64(inscribed.QuadrupleCount(len(h)))
		defer bar.Finish()
		opts = append(opts, inscribed.WithProgress(func(done int64) {
			bar.SetCurrent(done)
		}))
	}

	rect, err := inscribed.NewSearcher(opts...).Search(ctx.Context, p)
	if err != nil {
		return err
	}

	return printFeature(projector, rect.Ring(), geojson.Properties{
		"kind":           "rectangle",
		"rectangle_kind": rect.Kind.String(),
		"area_m2":        rect.Area,
		"projection":     projector.String(),
	})
}

func printFeature(projector *projection.Projector, planarRing []orb.Point, props geojson.Properties) error {
	ring, err := projector.Unproject(planarRing)
	if err != nil {
		return err
	}

	f := geojson.NewFeature(orb.Polygon{orb.Ring(ring)})
	f.Properties = props

	data, err := f.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

func serve(ctx *cli.Context) error {
	e, closeTelemetry, err := setup(ctx)
	if err != nil {
		return err
	}
	defer closeTelemetry()

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e.log.Info("Starting server", "listen", e.cfg.Server.Listen)
	return server.Run(runCtx, e.cfg.Server.Listen, e.analyzer, e.log)
}
