package geom

// Rect is a screen-space rectangle in pixels.
type Rect struct {
	Min, Max Vec2
}

func NewRect(min, max Vec2) Rect {
	return Rect{Min: min, Max: max}
}

// Viewport returns the rect spanning (0,0) to size.
func Viewport(size Vec2) Rect {
	return Rect{Max: size}
}

func (r Rect) Size() Vec2 {
	return Sub2(r.Max, r.Min)
}

func (r Rect) Center() Vec2 {
	return Scale2(Add2(r.Min, r.Max), 0.5)
}

// Contains reports whether p lies in the half-open rect [Min, Max).
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// StrictlyInside reports whether p lies in the open rect (Min, Max).
func (r Rect) StrictlyInside(p Vec2) bool {
	return p.X > r.Min.X && p.X < r.Max.X && p.Y > r.Min.Y && p.Y < r.Max.Y
}

func (r Rect) Empty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}

// Line2 is the boundary {p : Normal·p = W} of a half plane.
type Line2 struct {
	Normal Vec2
	W      float64
}

// SegmentLineIntersection intersects the segment start->end with l. It reports
// false when the segment is parallel to the line or misses it.
func SegmentLineIntersection(start, end Vec2, l Line2) (Vec2, bool) {
	dir := Sub2(end, start)
	denom := Dot2(dir, l.Normal)
	if denom > -Epsilon && denom < Epsilon {
		return Vec2{}, false
	}
	t := (l.W - Dot2(start, l.Normal)) / denom
	const slack = 1e-4
	if t < -slack || t > 1+slack {
		return Vec2{}, false
	}
	return Add2(start, Scale2(dir, t)), true
}
