package canvas

import (
	"cmp"
	"slices"

	"github.com/zeusync/indicator/internal/core/geom"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/core/widget"
)

// edgePadding is kept between clamped indicators and the viewport edge, on top of the arrow size.
var edgePadding = geom.V2(10, 10)

type EntryKind uint8

const (
	EntryIndicator EntryKind = iota
	EntryArrow
)

// Arranged is one positioned element of a layout pass, in paint order.
type Arranged struct {
	Kind      EntryKind
	Indicator *indicator.Descriptor
	// Widget is nil for arrows.
	Widget widget.Widget
	// Arrow is nil for indicator boxes.
	Arrow *Arrow
	// Anchor is the (possibly clamped) projected point the box is aligned to.
	Anchor    geom.Vec2
	Position  geom.Vec2
	Size      geom.Vec2
	Rotation  float64
	Direction ClampDirection
}

// Arrange computes the layout for viewport. Slots are ordered by ascending
// priority, farther first on ties. Arrows come right before the box they decorate.
func (c *Canvas) Arrange(viewport geom.Vec2) []Arranged {
	c.viewport = viewport
	c.nextArrow = 0

	var out []Arranged
	if c.showAny {
		fixed := geom.Add2(edgePadding, c.arrowSize)
		center := geom.Scale2(viewport, 0.5)

		sorted := slices.Clone(c.slots)
		slices.SortStableFunc(sorted, func(a, b *slot) int {
			if a.priority == b.priority {
				return cmp.Compare(b.depth, a.depth)
			}
			return cmp.Compare(a.priority, b.priority)
		})

		for _, s := range sorted {
			if !s.shown() {
				s.setClamped(false)
				continue
			}
			d := s.desc
			pos := s.screen
			size, offset, padMin, padMax := offsetAndSize(d, s.widget)
			dir := ClampNone

			if d.ClampToScreen {
				rect := geom.NewRect(
					geom.Add2(padMin, fixed),
					geom.Sub2(geom.Sub2(viewport, padMax), fixed),
				)
				if !rect.Contains(pos) {
					pos, dir = clipToRect(center, pos, rect)
				} else if !s.inFront {
					pos, dir = pinToEdge(pos, rect)
				}

				if d.ShowClampArrow && dir != ClampNone {
					if c.nextArrow < len(c.arrows) {
						out = append(out, c.placeArrow(d, dir, pos, size))
					} else {
						c.logger.Debug("Arrow pool exhausted", log.Int("pool", len(c.arrows)))
					}
				}
			}

			s.setClamped(dir != ClampNone)
			out = append(out, Arranged{
				Kind:      EntryIndicator,
				Indicator: d,
				Widget:    s.widget,
				Anchor:    pos,
				Position:  geom.Add2(pos, offset),
				Size:      size,
				Direction: dir,
			})
		}
	}

	for i := c.nextArrow; i < c.lastArrow; i++ {
		c.arrows[i].Visible = false
	}
	c.lastArrow = c.nextArrow
	return out
}

func (c *Canvas) placeArrow(d *indicator.Descriptor, dir ClampDirection, pos, slotSize geom.Vec2) Arranged {
	a := c.arrows[c.nextArrow]
	c.nextArrow++
	a.Rotation = arrowRotations[dir]
	a.Visible = true

	magnitude := geom.Scale2(geom.Add2(slotSize, c.arrowSize), 0.5)
	centering := geom.Scale2(c.arrowSize, -0.5)
	var align geom.Vec2
	switch d.VAlign {
	case indicator.VAlignTop:
		align = geom.V2(0, slotSize.Y*0.5)
	case indicator.VAlignBottom:
		align = geom.V2(0, -slotSize.Y*0.5)
	}
	offset := geom.Add2(geom.Add2(geom.Mul2(magnitude, arrowOffsets[dir]), align), centering)

	return Arranged{
		Kind:      EntryArrow,
		Indicator: d,
		Arrow:     a,
		Anchor:    pos,
		Position:  geom.Add2(pos, offset),
		Size:      c.arrowSize,
		Rotation:  a.Rotation,
		Direction: dir,
	}
}

// offsetAndSize returns the widget size, the offset from the anchor point to
// the box origin, and how far the box reaches before and after the anchor.
func offsetAndSize(d *indicator.Descriptor, w widget.Widget) (size, offset, padMin, padMax geom.Vec2) {
	if w != nil {
		size = w.DesiredSize()
	}
	switch d.HAlign {
	case indicator.HAlignRight:
		offset.X, padMin.X, padMax.X = 0, 0, size.X
	case indicator.HAlignLeft:
		offset.X, padMin.X, padMax.X = -size.X, size.X, 0
	default:
		offset.X, padMin.X, padMax.X = -size.X/2, size.X/2, size.X/2
	}
	switch d.VAlign {
	case indicator.VAlignTop:
		offset.Y, padMin.Y, padMax.Y = 0, 0, size.Y
	case indicator.VAlignBottom:
		offset.Y, padMin.Y, padMax.Y = -size.Y, size.Y, 0
	default:
		offset.Y, padMin.Y, padMax.Y = -size.Y/2, size.Y/2, size.Y/2
	}
	return size, offset, padMin, padMax
}

// clipToRect moves pos onto the edge where the segment from center leaves
// rect. When two edges are crossed at the same point the later edge in
// Left, Top, Right, Bottom order wins.
func clipToRect(center, pos geom.Vec2, rect geom.Rect) (geom.Vec2, ClampDirection) {
	edges := [...]geom.Line2{
		ClampLeft:   {Normal: geom.V2(1, 0), W: rect.Min.X},
		ClampTop:    {Normal: geom.V2(0, 1), W: rect.Min.Y},
		ClampRight:  {Normal: geom.V2(-1, 0), W: -rect.Max.X},
		ClampBottom: {Normal: geom.V2(0, -1), W: -rect.Max.Y},
	}
	dir := ClampNone
	best := pos
	bestDist := 0.0
	for i, edge := range edges {
		p, ok := geom.SegmentLineIntersection(center, pos, edge)
		if !ok {
			continue
		}
		dist := geom.Len2(geom.Sub2(p, center))
		if dir != ClampNone && dist > bestDist+clipTolerance {
			continue
		}
		if dir == ClampNone || dist < bestDist {
			bestDist = dist
		}
		dir, best = ClampDirection(i), p
	}
	return best, dir
}

const clipTolerance = 1e-6

// pinToEdge pins a behind-camera point that still landed inside rect to the
// edge of the triangular screen region it falls in.
func pinToEdge(pos geom.Vec2, rect geom.Rect) (geom.Vec2, ClampDirection) {
	size := rect.Size()
	xn := pos.X / size.X
	yn := pos.Y / size.Y
	if xn < yn {
		if xn < -yn+1 {
			pos.X = rect.Min.X
			return pos, ClampLeft
		}
		pos.Y = rect.Max.Y
		return pos, ClampBottom
	}
	if xn < -yn+1 {
		pos.Y = rect.Min.Y
		return pos, ClampTop
	}
	pos.X = rect.Max.X
	return pos, ClampRight
}
