package analyzer

import (
	"runtime"

	"github.com/royalcat/fieldgrid/grid"
)

type Config struct {
	// UTM zone of the field, 0 picks the zone of the field's mean longitude.
	Zone  int
	South bool

	// planar units (metres)
	CellSize float64
	Margin   float64

	Mode              grid.Mode
	BoundaryInclusive bool
	Threads           int

	Rectangle bool
	// hulls above this size get the shrink candidate only, 0 always does
	MaxQuadrupleVertices int

	// 0 disables sampling
	SampleStep      float64
	PoissonDistance float64
	Seed            int64
}

func ConfigDefault() Config {
	return Config{
		CellSize:             100,
		Mode:                 grid.ModeCellCenter,
		Threads:              runtime.GOMAXPROCS(-1),
		Rectangle:            true,
		MaxQuadrupleVertices: 64,
		Seed:                 1,
	}
}
