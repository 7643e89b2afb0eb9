package geom

import stdmath "math"

// Box is an axis-aligned world-space bounding box. The zero Box is empty.
type Box struct {
	Min, Max Vec3
	Valid    bool
}

func NewBox(min, max Vec3) Box {
	return Box{Min: min, Max: max, Valid: true}
}

// BoxAround builds a box centred on c with the given half extents.
func BoxAround(c, extent Vec3) Box {
	return NewBox(Sub(c, extent), Add(c, extent))
}

func (b Box) Center() Vec3 {
	return Scale(Add(b.Min, b.Max), 0.5)
}

func (b Box) Size() Vec3 {
	return Sub(b.Max, b.Min)
}

// Union grows b to contain o. Empty boxes are ignored.
func (b Box) Union(o Box) Box {
	if !o.Valid {
		return b
	}
	if !b.Valid {
		return o
	}
	return NewBox(
		Vec3{stdmath.Min(b.Min.X, o.Min.X), stdmath.Min(b.Min.Y, o.Min.Y), stdmath.Min(b.Min.Z, o.Min.Z)},
		Vec3{stdmath.Max(b.Max.X, o.Max.X), stdmath.Max(b.Max.Y, o.Max.Y), stdmath.Max(b.Max.Z, o.Max.Z)},
	)
}

// Translate moves the box by d.
func (b Box) Translate(d Vec3) Box {
	if !b.Valid {
		return b
	}
	return NewBox(Add(b.Min, d), Add(b.Max, d))
}

// Corners returns the eight corners of the box.
func (b Box) Corners() [8]Vec3 {
	return [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}
}

// PointAt picks the point inside the box selected by a fractional anchor, where
// (0.5, 0.5, 0.5) is the centre.
func (b Box) PointAt(anchor Vec3) Vec3 {
	return Add(b.Center(), Mul(b.Size(), Sub(anchor, Vec3{0.5, 0.5, 0.5})))
}
