package canvas

import "github.com/zeusync/indicator/internal/core/geom"

const DefaultArrowPool = 10

// ClampDirection names the screen edge an indicator was pinned to.
type ClampDirection int8

const (
	ClampNone ClampDirection = iota - 1
	ClampLeft
	ClampTop
	ClampRight
	ClampBottom
)

func (d ClampDirection) String() string {
	switch d {
	case ClampLeft:
		return "left"
	case ClampTop:
		return "top"
	case ClampRight:
		return "right"
	case ClampBottom:
		return "bottom"
	}
	return "none"
}

// arrowRotations are in degrees, clockwise from pointing up.
var arrowRotations = [...]float64{
	ClampLeft:   270,
	ClampTop:    0,
	ClampRight:  90,
	ClampBottom: 180,
}

var arrowOffsets = [...]geom.Vec2{
	ClampLeft:   {X: -1, Y: 0},
	ClampTop:    {X: 0, Y: -1},
	ClampRight:  {X: 1, Y: 0},
	ClampBottom: {X: 0, Y: 1},
}

// Arrow is a pre-allocated edge arrow. Unused arrows are hidden, never freed.
type Arrow struct {
	Index    int
	Rotation float64
	Visible  bool
}

func newArrowPool(n int) []*Arrow {
	pool := make([]*Arrow, n)
	for i := range pool {
		pool[i] = &Arrow{Index: i}
	}
	return pool
}
