package canvas

import "github.com/zeusync/indicator/internal/core/geom"

// Painter draws one arranged entry on layer and returns the highest layer it used.
type Painter interface {
	Paint(e Arranged, layer int) int
}

type PainterFunc func(e Arranged, layer int) int

func (f PainterFunc) Paint(e Arranged, layer int) int { return f(e, layer) }

// Paint arranges for viewport and draws the entries in order. Entries that
// miss the viewport are culled. With draw-in-order every entry starts on the
// highest layer used so far; otherwise all share layer. It returns the highest
// layer used.
func (c *Canvas) Paint(viewport geom.Vec2, p Painter, layer int) int {
	c.viewport = viewport
	entries := c.Arrange(viewport)
	maxLayer := layer
	frame := geom.Viewport(viewport)
	for _, e := range entries {
		if culled(frame, e) {
			continue
		}
		use := layer
		if c.drawInOrder {
			use = maxLayer
		}
		maxLayer = max(maxLayer, p.Paint(e, use))
	}
	c.needsPaint = false
	return maxLayer
}

func culled(frame geom.Rect, e Arranged) bool {
	end := geom.Add2(e.Position, e.Size)
	return end.X < frame.Min.X || end.Y < frame.Min.Y || e.Position.X > frame.Max.X || e.Position.Y > frame.Max.Y
}
