package grid

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/geomerr"
	"github.com/royalcat/fieldgrid/polygon"
	"github.com/sourcegraph/conc/pool"
	"github.com/tidwall/qtree"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Mode selects how a cell is decided to be inside the field.
type Mode int

const (
	// ModeCellCenter marks a cell inside when its center is inside the polygon.
	ModeCellCenter Mode = iota
	// ModeBoundaryVertex marks a cell inside when any vertex of the polygon ring
	// falls into it, i.e. the cells the traced boundary passes through.
	ModeBoundaryVertex
)

func (m Mode) String() string {
	switch m {
	case ModeCellCenter:
		return "center"
	case ModeBoundaryVertex:
		return "boundary-vertex"
	}
	return "unknown"
}

// ParseMode accepts the names returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "center", "":
		return ModeCellCenter, nil
	case "boundary-vertex", "vertex":
		return ModeBoundaryVertex, nil
	}
	return 0, fmt.Errorf("%w: unknown classification mode %q", geomerr.ErrInvalidArgument, s)
}

var meter = otel.Meter("github.com/royalcat/fieldgrid/grid")

type Classifier struct {
	mode              Mode
	boundaryInclusive bool
	threads           int
	log               *slog.Logger

	metricCellsClassified metric.Int64Counter
	metricCellsInside     metric.Int64Counter
}

func NewClassifier(opts ...Option) *Classifier {
	options := loadOptions(opts...)

	c := &Classifier{
		mode:              options.mode,
		boundaryInclusive: options.boundaryInclusive,
		threads:           options.threads,
		log:               options.logger,
	}

	var err error
	c.metricCellsClassified, err = meter.Int64Counter("cells_classified_total")
	if err != nil {
		c.log.Error("failed to create counter", "error", err)
	}
	c.metricCellsInside, err = meter.Int64Counter("cells_inside_total")
	if err != nil {
		c.log.Error("failed to create counter", "error", err)
	}

	return c
}

func (c *Classifier) Mode() Mode {
	return c.mode
}

// Classify returns a copy of g with Inside flags set against p.
// Neither g nor p are modified.
func (c *Classifier) Classify(g *Grid, p *polygon.Polygon) *Grid {
	out := g.clone()

	var decide func(row []Cell)
	switch c.mode {
	case ModeBoundaryVertex:
		index := newVertexIndex(p.Ring())
		decide = func(row []Cell) {
			for i := range row {
				row[i].Inside = index.any(out, row[i])
			}
		}
	default:
		decide = func(row []Cell) {
			if len(row) == 0 {
				return
			}
			edges := p.Band(row[0].Bound.Min[1], row[0].Bound.Max[1])
			for i := range row {
				center := row[i].Center()
				if c.boundaryInclusive {
					row[i].Inside = edges.ContainsBoundaryInclusive(center)
				} else {
					row[i].Inside = edges.Contains(center)
				}
			}
		}
	}

	threads := c.threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	// every worker owns whole rows of out.cells
	workers := pool.New().WithMaxGoroutines(threads)
	for row := 0; row < out.Rows; row++ {
		cells := out.cells[row*out.Cols : (row+1)*out.Cols]
		workers.Go(func() {
			decide(cells)
		})
	}
	workers.Wait()

	inside := out.InsideCount()
	c.record(int64(out.Len()), int64(inside))
	c.log.Debug("grid classified",
		"mode", c.mode.String(),
		"rows", out.Rows,
		"cols", out.Cols,
		"inside", inside,
	)

	return out
}

func (c *Classifier) record(cells, inside int64) {
	ctx := context.Background()
	if c.metricCellsClassified != nil {
		c.metricCellsClassified.Add(ctx, cells, metric.WithAttributes(modeAttr(c.mode)))
	}
	if c.metricCellsInside != nil {
		c.metricCellsInside.Add(ctx, inside, metric.WithAttributes(modeAttr(c.mode)))
	}
}

// vertexIndex answers "is any ring vertex in this cell" without scanning the whole ring per cell.
type vertexIndex struct {
	qt qtree.QTree
}

func newVertexIndex(ring []orb.Point) *vertexIndex {
	vi := &vertexIndex{}
	for i, v := range ring {
		vi.qt.Insert(v, v, i)
	}
	return vi
}

func (vi *vertexIndex) any(g *Grid, c Cell) bool {
	found := false
	vi.qt.Search(c.Bound.Min, c.Bound.Max, func(vertex, _ [2]float64, _ interface{}) bool {
		if g.Contains(c, orb.Point(vertex)) {
			found = true
			return false
		}
		return true
	})
	return found
}
