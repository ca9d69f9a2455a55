package boundary

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/analyzer"
	"github.com/royalcat/fieldgrid/geomerr"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

type kmlPlacemark struct {
	Name          string        `xml:"name"`
	Polygon       *kmlPolygon   `xml:"Polygon"`
	MultiGeometry *kmlMultiGeom `xml:"MultiGeometry"`
}

type kmlMultiGeom struct {
	Polygons []kmlPolygon `xml:"Polygon"`
}

type kmlPolygon struct {
	Outer string `xml:"outerBoundaryIs>LinearRing>coordinates"`
}

func (p kmlPlacemark) outer() (string, bool) {
	if p.Polygon != nil {
		return p.Polygon.Outer, true
	}
	if p.MultiGeometry != nil && len(p.MultiGeometry.Polygons) > 0 {
		return p.MultiGeometry.Polygons[0].Outer, true
	}
	return "", false
}

// readKML takes the first Placemark holding a polygon, at any folder depth.
func readKML(r io.Reader) (*Field, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no placemark with a polygon", geomerr.ErrInvalidGeometry)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: decoding kml: %w", geomerr.ErrInvalidGeometry, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Placemark" {
			continue
		}

		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, fmt.Errorf("%w: decoding placemark: %w", geomerr.ErrInvalidGeometry, err)
		}
		coords, ok := pm.outer()
		if !ok {
			continue
		}

		ring, err := parseCoordinates(coords)
		if err != nil {
			return nil, fmt.Errorf("placemark %q: %w", pm.Name, err)
		}
		return &Field{Name: strings.TrimSpace(pm.Name), Ring: ring}, nil
	}
}

// parseCoordinates reads whitespace separated lon,lat[,alt] tuples.
func parseCoordinates(s string) ([]orb.Point, error) {
	tuples := strings.Fields(s)
	ring := make([]orb.Point, 0, len(tuples))
	for i, t := range tuples {
		parts := strings.Split(t, ",")
		if len(parts) != 2 && len(parts) != 3 {
			return nil, fmt.Errorf("%w: coordinate %d %q is not lon,lat[,alt]", geomerr.ErrInvalidGeometry, i, t)
		}

		var pt orb.Point
		for axis := 0; axis < 2; axis++ {
			v, err := strconv.ParseFloat(parts[axis], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: coordinate %d %q: %w", geomerr.ErrInvalidGeometry, i, t, err)
			}
			pt[axis] = v
		}
		if len(parts) == 3 {
			if _, err := strconv.ParseFloat(parts[2], 64); err != nil {
				return nil, fmt.Errorf("%w: coordinate %d %q: %w", geomerr.ErrInvalidGeometry, i, t, err)
			}
		}
		ring = append(ring, pt)
	}
	if len(ring) == 0 {
		return nil, fmt.Errorf("%w: empty coordinates", geomerr.ErrInvalidGeometry)
	}
	return ring, nil
}

func formatCoordinates(ring orb.Ring) string {
	var sb strings.Builder
	for i, p := range ring {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(p[0], 'f', -1, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(p[1], 'f', -1, 64))
	}
	return sb.String()
}

type kmlOut struct {
	XMLName  xml.Name  `xml:"kml"`
	Xmlns    string    `xml:"xmlns,attr"`
	Document kmlFolder `xml:"Document"`
}

type kmlFolder struct {
	Name       string            `xml:"name,omitempty"`
	Placemarks []kmlOutPlacemark `xml:"Placemark"`
	Folders    []kmlFolder       `xml:"Folder"`
}

type kmlOutPlacemark struct {
	Name        string          `xml:"name"`
	Description string          `xml:"description,omitempty"`
	Polygon     *kmlOutPolygon  `xml:"Polygon,omitempty"`
	Point       *kmlCoordinates `xml:"Point,omitempty"`
}

type kmlOutPolygon struct {
	Outer kmlLinearRing `xml:"outerBoundaryIs"`
}

type kmlLinearRing struct {
	Ring kmlCoordinates `xml:"LinearRing"`
}

type kmlCoordinates struct {
	Coordinates string `xml:"coordinates"`
}

func polygonPlacemark(name, description string, ring orb.Ring) kmlOutPlacemark {
	return kmlOutPlacemark{
		Name:        name,
		Description: description,
		Polygon: &kmlOutPolygon{
			Outer: kmlLinearRing{Ring: kmlCoordinates{Coordinates: formatCoordinates(ring)}},
		},
	}
}

// WriteKML writes one Document with the field, bound, hull and rectangle
// placemarks, plus folders for inside cells and samples.
func WriteKML(w io.Writer, g *analyzer.GeoResult) error {
	doc := kmlOut{
		Xmlns: kmlNamespace,
		Document: kmlFolder{
			Name: "field analysis",
		},
	}

	pms := &doc.Document.Placemarks
	*pms = append(*pms,
		polygonPlacemark("field", fmt.Sprintf("area %.1f m2, %s", g.FieldArea, g.Projection), g.Field),
		polygonPlacemark("bound", "", g.Bound),
	)
	if len(g.Hull) >= 4 {
		*pms = append(*pms, polygonPlacemark("hull", "", g.Hull))
	}
	if g.Rectangle != nil {
		*pms = append(*pms, polygonPlacemark("rectangle",
			fmt.Sprintf("%s, area %.1f m2", g.RectangleKind, g.RectangleArea), g.Rectangle))
	}

	cells := kmlFolder{Name: "cells"}
	for _, c := range g.Cells {
		if c.Inside {
			cells.Placemarks = append(cells.Placemarks,
				polygonPlacemark(fmt.Sprintf("cell %d,%d", c.Row, c.Col), "", c.Ring))
		}
	}
	doc.Document.Folders = append(doc.Document.Folders, cells)

	if len(g.Samples) > 0 {
		samples := kmlFolder{Name: "samples"}
		for i, s := range g.Samples {
			samples.Placemarks = append(samples.Placemarks, kmlOutPlacemark{
				Name:  fmt.Sprintf("sample %d", i),
				Point: &kmlCoordinates{Coordinates: formatCoordinates(orb.Ring{s})},
			})
		}
		doc.Document.Folders = append(doc.Document.Folders, samples)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("writing kml: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding kml: %w", err)
	}
	return enc.Close()
}
