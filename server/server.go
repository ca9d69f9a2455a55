package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/royalcat/fieldgrid/analyzer"
	"github.com/royalcat/fieldgrid/bbox"
	"github.com/royalcat/fieldgrid/boundary"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/royalcat/fieldgrid/grid"
	"github.com/royalcat/fieldgrid/hull"
	"github.com/royalcat/fieldgrid/inscribed"
	"github.com/royalcat/fieldgrid/polygon"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const MaxBodySize = 8 * 1000 * 1000 // 8MB

var meter = otel.Meter("github.com/royalcat/fieldgrid/server")

func Run(ctx context.Context, address string, cfg analyzer.Config, log *slog.Logger) error {
	s, err := newServer(cfg, log)
	if err != nil {
		return err
	}

	server := &fasthttp.Server{
		ReadTimeout:        5 * time.Second,
		MaxRequestBodySize: MaxBodySize,
		Handler:            s.router().Handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "address", address)
		errCh <- server.ListenAndServe(address)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

type server struct {
	cfg      analyzer.Config
	analyzer *analyzer.Analyzer
	log      *slog.Logger
	tracer   trace.Tracer

	metricRequests       metric.Int64Counter
	metricFailedRequests metric.Int64Counter
	metricFieldArea      metric.Float64Histogram
}

func newServer(cfg analyzer.Config, log *slog.Logger) (*server, error) {
	metricRequests, err := meter.Int64Counter("http_field_requests_total")
	if err != nil {
		return nil, err
	}
	metricFailedRequests, err := meter.Int64Counter("http_field_failed_requests_total")
	if err != nil {
		return nil, err
	}
	metricFieldArea, err := meter.Float64Histogram("field_area_m2")
	if err != nil {
		return nil, err
	}

	log = log.With("component", "server")
	return &server{
		cfg:      cfg,
		analyzer: analyzer.New(cfg, analyzer.WithLogger(log)),
		log:      log,
		tracer:   otel.Tracer("github.com/royalcat/fieldgrid/server"),

		metricRequests:       metricRequests,
		metricFailedRequests: metricFailedRequests,
		metricFieldArea:      metricFieldArea,
	}, nil
}

func (s *server) router() *router.Router {
	r := router.New()
	r.POST("/field/analyze", s.AnalyzeHandler)
	r.POST("/field/hull", s.HullHandler)
	r.POST("/field/bbox", s.BBoxHandler)
	r.POST("/field/rectangle", s.RectangleHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	return r
}

var reqPointsPool = sync.Pool{
	New: func() any {
		return []orb.Point{}
	},
}

var bufPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

type analyzeRequest struct {
	// [[lon, lat], ...], parsed by unmarshalPointsFast
	Coordinates       json.RawMessage `json:"coordinates"`
	CellSize          *float64        `json:"cell_size"`
	Margin            *float64        `json:"margin"`
	Mode              string          `json:"mode"`
	Zone              *int            `json:"zone"`
	South             *bool           `json:"south"`
	BoundaryInclusive *bool           `json:"boundary_inclusive"`
	Rectangle         *bool           `json:"rectangle"`
	SampleStep        *float64        `json:"sample_step"`
}

func (r analyzeRequest) points() ([]orb.Point, error) {
	if len(r.Coordinates) == 0 {
		return nil, fmt.Errorf("%w: no coordinates in request", geomerr.ErrEmptyInput)
	}
	points := []orb.Point{}
	if err := unmarshalPointsFast(r.Coordinates, &points); err != nil {
		return nil, fmt.Errorf("coordinates: %w", err)
	}
	return points, nil
}

func (r analyzeRequest) config(base analyzer.Config) (analyzer.Config, error) {
	cfg := base
	if r.CellSize != nil {
		cfg.CellSize = *r.CellSize
	}
	if r.Margin != nil {
		cfg.Margin = *r.Margin
	}
	if r.Mode != "" {
		mode, err := grid.ParseMode(r.Mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	if r.Zone != nil {
		cfg.Zone = *r.Zone
	}
	if r.South != nil {
		cfg.South = *r.South
	}
	if r.BoundaryInclusive != nil {
		cfg.BoundaryInclusive = *r.BoundaryInclusive
	}
	if r.Rectangle != nil {
		cfg.Rectangle = *r.Rectangle
	}
	if r.SampleStep != nil {
		cfg.SampleStep = *r.SampleStep
	}
	return cfg, nil
}

func (s *server) AnalyzeHandler(ctx *fasthttp.RequestCtx) {
	const endpoint = "analyze"
	spanCtx, span := s.start(ctx, endpoint)
	defer span.End()

	var req analyzeRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		s.fail(ctx, span, endpoint, http.StatusBadRequest, fmt.Errorf("failed to parse request: %w", err))
		return
	}
	points, err := req.points()
	if err != nil {
		s.fail(ctx, span, endpoint, statusOf(err), err)
		return
	}
	cfg, err := req.config(s.cfg)
	if err != nil {
		s.fail(ctx, span, endpoint, statusOf(err), err)
		return
	}

	a := s.analyzer
	if cfg != s.cfg {
		a = analyzer.New(cfg, analyzer.WithLogger(s.log))
	}
	res, err := a.Analyze(spanCtx, points)
	if err != nil {
		s.fail(ctx, span, endpoint, statusOf(err), err)
		return
	}
	s.metricFieldArea.Record(spanCtx, res.Polygon.Area())

	geo, err := res.Geo()
	if err != nil {
		s.fail(ctx, span, endpoint, http.StatusInternalServerError, err)
		return
	}

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if err := boundary.WriteGeoJSON(buf, geo); err != nil {
		s.fail(ctx, span, endpoint, http.StatusInternalServerError, err)
		return
	}

	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.Header.SetContentType("application/geo+json")
	ctx.Response.SetBody(buf.Bytes())
}

// HullHandler takes a bare [[lon, lat], ...] body.
func (s *server) HullHandler(ctx *fasthttp.RequestCtx) {
	const endpoint = "hull"
	_, span := s.start(ctx, endpoint)
	defer span.End()

	s.withPlanarPoints(ctx, span, endpoint, func(planar []orb.Point, unproject func([]orb.Point) ([]orb.Point, error)) (*geojson.Feature, error) {
		h, err := hull.Of(planar)
		if err != nil {
			return nil, err
		}
		geo, err := unproject(h.Ring())
		if err != nil {
			return nil, err
		}

		var f *geojson.Feature
		switch {
		case len(h) == 1:
			f = geojson.NewFeature(geo[0])
		case len(h) == 2:
			f = geojson.NewFeature(orb.LineString(geo[:2]))
		default:
			f = geojson.NewFeature(orb.Polygon{orb.Ring(geo)})
		}
		f.Properties["vertices"] = len(h)
		f.Properties["area_m2"] = h.Area()
		return f, nil
	})
}

// BBoxHandler takes a bare [[lon, lat], ...] body and an optional margin
// query argument in metres.
func (s *server) BBoxHandler(ctx *fasthttp.RequestCtx) {
	const endpoint = "bbox"
	_, span := s.start(ctx, endpoint)
	defer span.End()

	margin := 0.0
	if m := ctx.QueryArgs().Peek("margin"); len(m) > 0 {
		v, err := strconv.ParseFloat(string(m), 64)
		if err != nil {
			s.fail(ctx, span, endpoint, http.StatusBadRequest, fmt.Errorf("%w: margin: %w", geomerr.ErrInvalidArgument, err))
			return
		}
		margin = v
	}

	s.withPlanarPoints(ctx, span, endpoint, func(planar []orb.Point, unproject func([]orb.Point) ([]orb.Point, error)) (*geojson.Feature, error) {
		b, err := bbox.Of(planar, margin)
		if err != nil {
			return nil, err
		}
		corners := bbox.Corners(b)
		geo, err := unproject(append(corners[:], corners[0]))
		if err != nil {
			return nil, err
		}

		f := geojson.NewFeature(orb.Polygon{orb.Ring(geo)})
		f.Properties["width_m"] = b.Max[0] - b.Min[0]
		f.Properties["height_m"] = b.Max[1] - b.Min[1]
		return f, nil
	})
}

// RectangleHandler answers 422 when no rectangle validates.
func (s *server) RectangleHandler(ctx *fasthttp.RequestCtx) {
	const endpoint = "rectangle"
	spanCtx, span := s.start(ctx, endpoint)
	defer span.End()

	s.withPlanarPoints(ctx, span, endpoint, func(planar []orb.Point, unproject func([]orb.Point) ([]orb.Point, error)) (*geojson.Feature, error) {
		p, err := polygon.FromRing(planar)
		if err != nil {
			return nil, err
		}

		rect, err := inscribed.NewSearcher(
			inscribed.WithThreads(s.cfg.Threads),
			inscribed.WithMaxQuadrupleVertices(s.cfg.MaxQuadrupleVertices),
			inscribed.WithLogger(s.log),
		).Search(spanCtx, p)
		if err != nil {
			return nil, err
		}

		geo, err := unproject(rect.Ring())
		if err != nil {
			return nil, err
		}
		f := geojson.NewFeature(orb.Polygon{orb.Ring(geo)})
		f.Properties["kind"] = rect.Kind.String()
		f.Properties["area_m2"] = rect.Area
		return f, nil
	})
}

type planarFunc func(planar []orb.Point, unproject func([]orb.Point) ([]orb.Point, error)) (*geojson.Feature, error)

func (s *server) withPlanarPoints(ctx *fasthttp.RequestCtx, span trace.Span, endpoint string, fn planarFunc) {
	req := reqPointsPool.Get().([]orb.Point) // lon, lat
	req = req[:0]
	defer func() { reqPointsPool.Put(req[:0]) }()

	if err := unmarshalPointsFast(ctx.Request.Body(), &req); err != nil {
		s.fail(ctx, span, endpoint, http.StatusBadRequest, fmt.Errorf("failed to parse request: %w", err))
		return
	}

	projector, err := s.analyzer.Projector(req)
	if err != nil {
		s.fail(ctx, span, endpoint, statusOf(err), err)
		return
	}
	planar, err := projector.Project(req)
	if err != nil {
		s.fail(ctx, span, endpoint, statusOf(err), err)
		return
	}

	f, err := fn(planar, projector.Unproject)
	if err != nil {
		s.fail(ctx, span, endpoint, statusOf(err), err)
		return
	}
	f.Properties["projection"] = projector.String()

	data, err := f.MarshalJSON()
	if err != nil {
		s.fail(ctx, span, endpoint, http.StatusInternalServerError, err)
		return
	}

	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.Header.SetContentType("application/geo+json")
	ctx.Response.SetBody(data)
}

func (s *server) start(ctx *fasthttp.RequestCtx, endpoint string) (context.Context, trace.Span) {
	requestID := string(ctx.Request.Header.Peek("X-Request-Id"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx.Response.Header.Set("X-Request-Id", requestID)

	s.metricRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))

	return s.tracer.Start(ctx, endpoint, trace.WithAttributes(
		attribute.String("request_id", requestID),
	))
}

func (s *server) fail(ctx *fasthttp.RequestCtx, span trace.Span, endpoint string, status int, err error) {
	s.metricFailedRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Int("status", status),
	))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "endpoint", endpoint, "error", err)
	} else {
		s.log.Debug("request rejected", "endpoint", endpoint, "status", status, "error", err)
	}

	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyString(err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, geomerr.ErrNoInscribedRectangleFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, geomerr.ErrEmptyInput),
		errors.Is(err, geomerr.ErrInvalidGeometry),
		errors.Is(err, geomerr.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
