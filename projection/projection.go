// Package projection converts geographic (longitude, latitude) degrees to a
// local planar UTM frame in metres and back.
package projection

import (
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/royalcat/fieldgrid/geomerr"
)

const geographicProj4 = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"

func utmProj4(zone int, south bool) string {
	s := fmt.Sprintf("+proj=utm +zone=%d", zone)
	if south {
		s += " +south"
	}
	return s + " +ellps=WGS84 +datum=WGS84 +units=m +no_defs"
}

// Projector maps points between geographic degrees and one UTM zone.
// It is safe for concurrent use.
type Projector struct {
	zone  int
	south bool

	forward proj.Transformer
	inverse proj.Transformer
}

// NewUTM returns a projector for the given UTM zone (1..60).
func NewUTM(zone int, south bool) (*Projector, error) {
	if zone < 1 || zone > 60 {
		return nil, fmt.Errorf("%w: utm zone must be in 1..60, got %d", geomerr.ErrInvalidArgument, zone)
	}

	geoSR, err := proj.Parse(geographicProj4)
	if err != nil {
		return nil, fmt.Errorf("parsing geographic reference: %w", err)
	}
	utmSR, err := proj.Parse(utmProj4(zone, south))
	if err != nil {
		return nil, fmt.Errorf("parsing utm zone %d reference: %w", zone, err)
	}

	forward, err := geoSR.NewTransform(utmSR)
	if err != nil {
		return nil, fmt.Errorf("building forward transform: %w", err)
	}
	inverse, err := utmSR.NewTransform(geoSR)
	if err != nil {
		return nil, fmt.Errorf("building inverse transform: %w", err)
	}

	return &Projector{
		zone:    zone,
		south:   south,
		forward: forward,
		inverse: inverse,
	}, nil
}

type zoneKey struct {
	zone  int
	south bool
}

type cachedProjector struct {
	p   *Projector
	err error
}

var cache = xsync.NewMapOf[zoneKey, cachedProjector]()

// ForZone is NewUTM backed by a process wide cache.
func ForZone(zone int, south bool) (*Projector, error) {
	v, _ := cache.LoadOrCompute(zoneKey{zone: zone, south: south}, func() cachedProjector {
		p, err := NewUTM(zone, south)
		return cachedProjector{p: p, err: err}
	})
	return v.p, v.err
}

// ZoneFor returns the standard 6 degree UTM zone for a longitude and the
// hemisphere of a latitude.
func ZoneFor(lon, lat float64) (zone int, south bool) {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	zone = int(lon/6) + 1
	if zone > 60 {
		zone = 60
	}
	return zone, lat < 0
}

func (p *Projector) Zone() int {
	return p.zone
}

func (p *Projector) South() bool {
	return p.south
}

func (p *Projector) String() string {
	hemisphere := "N"
	if p.south {
		hemisphere = "S"
	}
	return fmt.Sprintf("UTM %d%s", p.zone, hemisphere)
}

// Project maps (lon, lat) degrees to (east, north) metres.
func (p *Projector) Project(geo []orb.Point) ([]orb.Point, error) {
	out, err := transform(p.forward, geo)
	if err != nil {
		return nil, fmt.Errorf("projecting to %s: %w", p, err)
	}
	return out, nil
}

// Unproject maps (east, north) metres back to (lon, lat) degrees.
func (p *Projector) Unproject(planar []orb.Point) ([]orb.Point, error) {
	out, err := transform(p.inverse, planar)
	if err != nil {
		return nil, fmt.Errorf("unprojecting from %s: %w", p, err)
	}
	return out, nil
}

// ProjectPoint is Project for a single point.
func (p *Projector) ProjectPoint(geo orb.Point) (orb.Point, error) {
	out, err := p.Project([]orb.Point{geo})
	if err != nil {
		return orb.Point{}, err
	}
	return out[0], nil
}

// UnprojectPoint is Unproject for a single point.
func (p *Projector) UnprojectPoint(planar orb.Point) (orb.Point, error) {
	out, err := p.Unproject([]orb.Point{planar})
	if err != nil {
		return orb.Point{}, err
	}
	return out[0], nil
}

func transform(t proj.Transformer, in []orb.Point) ([]orb.Point, error) {
	out := make([]orb.Point, len(in))
	for i, pt := range in {
		if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
			return nil, fmt.Errorf("%w: point %d is not finite", geomerr.ErrInvalidArgument, i)
		}
		x, y, err := t(pt[0], pt[1])
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		out[i] = orb.Point{x, y}
	}
	return out, nil
}
