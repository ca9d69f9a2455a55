package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/fieldgrid/analyzer"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/valyala/fasthttp"
)

const fieldPoints = `[[37.600,55.750],[37.608,55.750],[37.608,55.7545],[37.600,55.7545],[37.600,55.750]]`

func newTestServer(t testing.TB) *server {
	t.Helper()
	s, err := newServer(analyzer.ConfigDefault(), slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func serve(s *server, method, uri, body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	s.router().Handler(ctx)
	return ctx
}

func TestAnalyzeHandler(t *testing.T) {
	s := newTestServer(t)

	ctx := serve(s, http.MethodPost, "/field/analyze",
		`{"coordinates":`+fieldPoints+`,"cell_size":50,"mode":"center"}`)
	if code := ctx.Response.StatusCode(); code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, ctx.Response.Body())
	}

	fc, err := geojson.UnmarshalFeatureCollection(ctx.Response.Body())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
	}
	for _, kind := range []string{"field", "bound", "hull", "rectangle", "cell"} {
		if kinds[kind] == 0 {
			t.Fatalf("response has no %s feature: %v", kind, kinds)
		}
	}
	if len(ctx.Response.Header.Peek("X-Request-Id")) == 0 {
		t.Fatal("expected request id header")
	}
}

func TestAnalyzeHandlerErrors(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]struct {
		body   string
		status int
	}{
		"malformed json":   {`{"coordinates":`, http.StatusBadRequest},
		"missing":          {`{"cell_size":10}`, http.StatusBadRequest},
		"empty":            {`{"coordinates":[]}`, http.StatusBadRequest},
		"degenerate ring":  {`{"coordinates":[[37.6,55.75],[37.6,55.75]]}`, http.StatusBadRequest},
		"short tuple":      {`{"coordinates":[[37.6],[37.608,55.75],[37.604,55.7545]]}`, http.StatusBadRequest},
		"long tuple":       {`{"coordinates":[[37.6,55.75],[37.608,55.75],[37.604,55.7545,7,9]]}`, http.StatusBadRequest},
		"cell size":        {`{"coordinates":` + fieldPoints + `,"cell_size":-1}`, http.StatusBadRequest},
		"tiny cell size":   {`{"coordinates":` + fieldPoints + `,"cell_size":1e-300}`, http.StatusBadRequest},
		"tiny sample step": {`{"coordinates":` + fieldPoints + `,"sample_step":1e-9}`, http.StatusBadRequest},
		"mode":             {`{"coordinates":` + fieldPoints + `,"mode":"corners"}`, http.StatusBadRequest},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := serve(s, http.MethodPost, "/field/analyze", tc.body)
			if code := ctx.Response.StatusCode(); code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, code, ctx.Response.Body())
			}
		})
	}
}

func TestHullHandler(t *testing.T) {
	s := newTestServer(t)

	// interior point is dropped
	ctx := serve(s, http.MethodPost, "/field/hull",
		`[[37.600,55.750],[37.608,55.750],[37.604,55.752],[37.608,55.7545],[37.600,55.7545]]`)
	if code := ctx.Response.StatusCode(); code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, ctx.Response.Body())
	}

	f, err := geojson.UnmarshalFeature(ctx.Response.Body())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := f.Properties.MustInt("vertices"); v != 4 {
		t.Fatalf("expected 4 hull vertices, got %d", v)
	}
	if _, ok := f.Geometry.(orb.Polygon); !ok {
		t.Fatalf("expected polygon geometry, got %T", f.Geometry)
	}
}

func TestBBoxHandler(t *testing.T) {
	s := newTestServer(t)

	plain := serve(s, http.MethodPost, "/field/bbox", fieldPoints)
	padded := serve(s, http.MethodPost, "/field/bbox?margin=10", fieldPoints)
	for _, ctx := range []*fasthttp.RequestCtx{plain, padded} {
		if code := ctx.Response.StatusCode(); code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", code, ctx.Response.Body())
		}
	}

	width := func(ctx *fasthttp.RequestCtx) float64 {
		var f struct {
			Properties struct {
				Width float64 `json:"width_m"`
			} `json:"properties"`
		}
		if err := json.Unmarshal(ctx.Response.Body(), &f); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return f.Properties.Width
	}
	if d := width(padded) - width(plain); d < 19.999 || d > 20.001 {
		t.Fatalf("margin must widen the box by 20 m, got %v", d)
	}

	ctx := serve(s, http.MethodPost, "/field/bbox?margin=-1", fieldPoints)
	if code := ctx.Response.StatusCode(); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative margin, got %d", code)
	}
}

func TestRectangleHandler(t *testing.T) {
	s := newTestServer(t)

	ctx := serve(s, http.MethodPost, "/field/rectangle", fieldPoints)
	if code := ctx.Response.StatusCode(); code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, ctx.Response.Body())
	}

	f, err := geojson.UnmarshalFeature(ctx.Response.Body())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Properties.MustFloat64("area_m2") <= 0 {
		t.Fatal("expected positive rectangle area")
	}

	ctx = serve(s, http.MethodPost, "/field/rectangle", `[[37.6,55.75],[37.7,55.8]]`)
	if code := ctx.Response.StatusCode(); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for two points, got %d", code)
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{geomerr.ErrNoInscribedRectangleFound, http.StatusUnprocessableEntity},
		{fmt.Errorf("search: %w", geomerr.ErrNoInscribedRectangleFound), http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", geomerr.ErrInvalidGeometry), http.StatusBadRequest},
		{geomerr.ErrEmptyInput, http.StatusBadRequest},
		{geomerr.ErrInvalidArgument, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusOf(tc.err); got != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, got)
		}
	}
}

func TestUnmarshalPointsFast(t *testing.T) {
	var points []orb.Point
	err := unmarshalPointsFast([]byte(" [ [1.5, -2] ,[3e2,4,100]]\n"), &points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []orb.Point{{1.5, -2}, {300, 4}}
	if len(points) != len(expected) || points[0] != expected[0] || points[1] != expected[1] {
		t.Fatalf("expected %v, got %v", expected, points)
	}

	points = points[:0]
	if err := unmarshalPointsFast([]byte("[]"), &points); err != nil || len(points) != 0 {
		t.Fatalf("expected empty list, got %v %v", points, err)
	}

	for _, bad := range []string{
		"",
		"{}",
		"[[1]]",
		"[[1,]]",
		"[[1,2,3,4]]",
		"[[1,2],]",
		"[[1,2]",
		"[[a,b]]",
		"[[1,2]] x",
	} {
		points = points[:0]
		if err := unmarshalPointsFast([]byte(bad), &points); !errors.Is(err, geomerr.ErrInvalidGeometry) {
			t.Errorf("%q: expected ErrInvalidGeometry, got %v", bad, err)
		}
	}
}

func BenchmarkHandlers(b *testing.B) {
	s := newTestServer(b)

	b.ResetTimer()

	b.Run("HullHandler-10", func(b *testing.B) {
		points := generatePoints(10)
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			serve(s, http.MethodPost, "/field/hull", points)
		}
	})

	b.Run("HullHandler-10_000", func(b *testing.B) {
		points := generatePoints(10_000)
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			serve(s, http.MethodPost, "/field/hull", points)
		}
	})

	b.Run("AnalyzeHandler", func(b *testing.B) {
		body := `{"coordinates":` + fieldPoints + `,"cell_size":25}`
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			serve(s, http.MethodPost, "/field/analyze", body)
		}
	})
}

func generatePoints(n int) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := range n {
		fmt.Fprintf(&sb, "[%f, %f]", 37.6+float64(i%100)*1e-4, 55.75+float64(i/100)*1e-4)
		if i != n-1 {
			sb.WriteString(",")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
