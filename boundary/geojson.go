package boundary

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/fieldgrid/analyzer"
	"github.com/royalcat/fieldgrid/geomerr"
)

func readGeoJSON(r io.Reader) (*Field, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading geojson: %w", err)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: decoding geojson: %w", geomerr.ErrInvalidGeometry, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding geojson: %w", geomerr.ErrInvalidGeometry, err)
	}
	if err := checkPositions(doc); err != nil {
		return nil, err
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding feature collection: %w", geomerr.ErrInvalidGeometry, err)
		}
		for _, f := range fc.Features {
			if ring, ok := exteriorRing(f.Geometry); ok {
				return &Field{Name: f.Properties.MustString("name", ""), Ring: ring}, nil
			}
		}
		return nil, fmt.Errorf("%w: feature collection has no polygon", geomerr.ErrInvalidGeometry)

	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding feature: %w", geomerr.ErrInvalidGeometry, err)
		}
		ring, ok := exteriorRing(f.Geometry)
		if !ok {
			return nil, fmt.Errorf("%w: feature geometry is %s, not a polygon", geomerr.ErrInvalidGeometry, geometryType(f.Geometry))
		}
		return &Field{Name: f.Properties.MustString("name", ""), Ring: ring}, nil
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding geometry: %w", geomerr.ErrInvalidGeometry, err)
	}
	ring, ok := exteriorRing(g.Geometry())
	if !ok {
		return nil, fmt.Errorf("%w: geometry is %s, not a polygon", geomerr.ErrInvalidGeometry, geometryType(g.Geometry()))
	}
	return &Field{Ring: ring}, nil
}

// checkPositions rejects positions orb would silently pad or truncate.
func checkPositions(v any) error {
	switch v := v.(type) {
	case map[string]any:
		for key, child := range v {
			switch key {
			case "properties":
			case "coordinates":
				if err := checkCoordinates(child); err != nil {
					return err
				}
			default:
				if err := checkPositions(child); err != nil {
					return err
				}
			}
		}
	case []any:
		for _, child := range v {
			if err := checkPositions(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkCoordinates(v any) error {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	if _, position := arr[0].(float64); position {
		if len(arr) != 2 && len(arr) != 3 {
			return fmt.Errorf("%w: position %v is not [lon, lat] or [lon, lat, alt]", geomerr.ErrInvalidGeometry, arr)
		}
		for _, c := range arr {
			if _, ok := c.(float64); !ok {
				return fmt.Errorf("%w: position %v holds a non number", geomerr.ErrInvalidGeometry, arr)
			}
		}
		return nil
	}
	for _, child := range arr {
		if err := checkCoordinates(child); err != nil {
			return err
		}
	}
	return nil
}

func exteriorRing(g orb.Geometry) ([]orb.Point, bool) {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) > 0 {
			return []orb.Point(g[0]), true
		}
	case orb.MultiPolygon:
		if len(g) > 0 && len(g[0]) > 0 {
			return []orb.Point(g[0][0]), true
		}
	}
	return nil, false
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "empty"
	}
	return g.GeoJSONType()
}

// WriteGeoJSON writes a FeatureCollection with the field, its bound, hull,
// rectangle, inside cells and samples, each tagged by a "kind" property.
func WriteGeoJSON(w io.Writer, g *analyzer.GeoResult) error {
	fc := geojson.NewFeatureCollection()

	field := geojson.NewFeature(orb.Polygon{g.Field})
	field.Properties["kind"] = "field"
	field.Properties["area_m2"] = g.FieldArea
	field.Properties["projection"] = g.Projection
	field.Properties["cell_size_m"] = g.CellSize
	if g.RectangleError != "" {
		field.Properties["rectangle_error"] = g.RectangleError
	}
	fc.Append(field)

	bound := geojson.NewFeature(orb.Polygon{g.Bound})
	bound.Properties["kind"] = "bound"
	fc.Append(bound)

	if len(g.Hull) >= 4 {
		hull := geojson.NewFeature(orb.Polygon{g.Hull})
		hull.Properties["kind"] = "hull"
		fc.Append(hull)
	}

	if g.Rectangle != nil {
		rect := geojson.NewFeature(orb.Polygon{g.Rectangle})
		rect.Properties["kind"] = "rectangle"
		rect.Properties["rectangle_kind"] = g.RectangleKind
		rect.Properties["area_m2"] = g.RectangleArea
		fc.Append(rect)
	}

	for _, c := range g.Cells {
		if !c.Inside {
			continue
		}
		cell := geojson.NewFeature(orb.Polygon{c.Ring})
		cell.Properties["kind"] = "cell"
		cell.Properties["row"] = c.Row
		cell.Properties["col"] = c.Col
		fc.Append(cell)
	}

	for _, s := range g.Samples {
		sample := geojson.NewFeature(s)
		sample.Properties["kind"] = "sample"
		fc.Append(sample)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing geojson: %w", err)
	}
	return nil
}
