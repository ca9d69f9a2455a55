package inscribed

import "github.com/paulmach/orb"

// Kind tells which candidate family produced a rectangle.
type Kind int

const (
	// AxisAligned rectangles span the inner order statistics of a hull vertex quadruple.
	AxisAligned Kind = iota
	// VertexAligned rectangles stand on a hull edge.
	VertexAligned
	// Shrunk is the bounding box scaled towards the pole of inaccessibility.
	Shrunk
)

func (k Kind) String() string {
	switch k {
	case AxisAligned:
		return "axis-aligned"
	case VertexAligned:
		return "vertex-aligned"
	case Shrunk:
		return "shrunk"
	}
	return "unknown"
}

// Rectangle corners are counter-clockwise.
type Rectangle struct {
	Corners [4]orb.Point
	Area    float64
	Kind    Kind
}

// Ring returns the closed corner ring.
func (r Rectangle) Ring() orb.Ring {
	return orb.Ring{r.Corners[0], r.Corners[1], r.Corners[2], r.Corners[3], r.Corners[0]}
}

func (r Rectangle) Bound() orb.Bound {
	return orb.MultiPoint(r.Corners[:]).Bound()
}

func axisRect(minX, minY, maxX, maxY float64) Rectangle {
	return Rectangle{
		Corners: [4]orb.Point{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}},
		Area:    (maxX - minX) * (maxY - minY),
	}
}
