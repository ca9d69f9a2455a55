// Package grid tiles a bounding rectangle into uniform cells and classifies
// them against a field polygon.
package grid

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/geomerr"
)

// quotients this close to an integer are not rounded up into a sliver cell
const sliverTolerance = 1e-9

// MaxCells bounds Rows*Cols of a single grid.
const MaxCells = 10_000_000

type Cell struct {
	Row, Col int
	Bound    orb.Bound
	Inside   bool
}

func (c Cell) Center() orb.Point {
	return c.Bound.Center()
}

func (c Cell) Width() float64 {
	return c.Bound.Max[0] - c.Bound.Min[0]
}

func (c Cell) Height() float64 {
	return c.Bound.Max[1] - c.Bound.Min[1]
}

type Grid struct {
	Bound    orb.Bound
	CellSize float64
	Rows     int
	Cols     int

	cells []Cell // row-major
}

// Build tiles b into cells of cellSize. Row 0 starts at b.Min.Y, column 0 at b.Min.X.
// The last row and column are clipped to b.
func Build(b orb.Bound, cellSize float64) (*Grid, error) {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("%w: cell size must be positive and finite, got %v", geomerr.ErrInvalidArgument, cellSize)
	}
	if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
		return nil, fmt.Errorf("%w: bound min %v exceeds max %v", geomerr.ErrInvalidArgument, b.Min, b.Max)
	}

	rows := divisions(b.Max[1]-b.Min[1], cellSize)
	cols := divisions(b.Max[0]-b.Min[0], cellSize)
	if !(rows*cols <= MaxCells) {
		return nil, fmt.Errorf("%w: cell size %v gives %v x %v cells, more than %d",
			geomerr.ErrInvalidArgument, cellSize, rows, cols, MaxCells)
	}

	g := &Grid{
		Bound:    b,
		CellSize: cellSize,
		Rows:     int(rows),
		Cols:     int(cols),
	}

	g.cells = make([]Cell, 0, g.Rows*g.Cols)
	for row := 0; row < g.Rows; row++ {
		minY, maxY := span(b.Min[1], b.Max[1], row, g.Rows, cellSize)
		for col := 0; col < g.Cols; col++ {
			minX, maxX := span(b.Min[0], b.Max[0], col, g.Cols, cellSize)
			g.cells = append(g.cells, Cell{
				Row: row,
				Col: col,
				Bound: orb.Bound{
					Min: orb.Point{minX, minY},
					Max: orb.Point{maxX, maxY},
				},
			})
		}
	}

	return g, nil
}

// divisions stays a float so callers can range check it before converting.
func divisions(extent, size float64) float64 {
	if extent == 0 {
		// degenerate axis, a single line of zero-extent cells
		return 1
	}

	q := extent / size
	n := math.Ceil(q)
	if n > 1 && q-(n-1) < sliverTolerance {
		n--
	}
	return n
}

func span(lo, hi float64, i, n int, size float64) (float64, float64) {
	start := lo + float64(i)*size
	if i == n-1 {
		return start, hi
	}
	return start, math.Min(lo+float64(i+1)*size, hi)
}

// At returns the cell at (row, col).
func (g *Grid) At(row, col int) Cell {
	return g.cells[row*g.Cols+col]
}

// Cells returns a copy of all cells in row-major order.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, len(g.cells))
	copy(out, g.cells)
	return out
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

func (g *Grid) InsideCells() []Cell {
	out := []Cell{}
	for _, c := range g.cells {
		if c.Inside {
			out = append(out, c)
		}
	}
	return out
}

func (g *Grid) InsideCount() int {
	n := 0
	for _, c := range g.cells {
		if c.Inside {
			n++
		}
	}
	return n
}

// Mask returns the inside flags as a row-major matrix.
func (g *Grid) Mask() [][]bool {
	mask := make([][]bool, g.Rows)
	for row := range mask {
		mask[row] = make([]bool, g.Cols)
		for col := range mask[row] {
			mask[row][col] = g.At(row, col).Inside
		}
	}
	return mask
}

// Contains reports whether point falls into cell c of g. Cells are half-open,
// except on the grid's maximum edges which belong to the last row and column.
func (g *Grid) Contains(c Cell, point orb.Point) bool {
	x, y := point[0], point[1]
	if x < c.Bound.Min[0] || y < c.Bound.Min[1] {
		return false
	}
	if x > c.Bound.Max[0] || y > c.Bound.Max[1] {
		return false
	}
	if x == c.Bound.Max[0] && c.Col != g.Cols-1 {
		return false
	}
	if y == c.Bound.Max[1] && c.Row != g.Rows-1 {
		return false
	}
	return true
}

func (g *Grid) clone() *Grid {
	out := *g
	out.cells = g.Cells()
	return &out
}
