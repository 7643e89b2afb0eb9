// Package geom holds the small amount of vector math the projection and layout
// passes need. Screen-space values use donburi's Vec2 so they can be handed to
// ECS systems without conversion.
package geom

import (
	stdmath "math"

	"github.com/yohamta/donburi/features/math"
)

// Epsilon is the tolerance used for parallel/degenerate tests.
const Epsilon = 1e-8

// Vec2 is a screen-space point or size in pixels.
type Vec2 = math.Vec2

func V2(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

func Add2(a, b Vec2) Vec2 {
	return Vec2{X: a.X + b.X, Y: a.Y + b.Y}
}

func Sub2(a, b Vec2) Vec2 {
	return Vec2{X: a.X - b.X, Y: a.Y - b.Y}
}

func Scale2(v Vec2, s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Mul2 multiplies component-wise.
func Mul2(a, b Vec2) Vec2 {
	return Vec2{X: a.X * b.X, Y: a.Y * b.Y}
}

func Dot2(a, b Vec2) float64 {
	return a.X*b.X + a.Y*b.Y
}

func Len2(v Vec2) float64 {
	return stdmath.Sqrt(v.X*v.X + v.Y*v.Y)
}

// SafeNormal2 returns the unit vector of v, or the zero vector when v is too short.
func SafeNormal2(v Vec2) Vec2 {
	l := Len2(v)
	if l < Epsilon {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

func Near2(a, b Vec2, tol float64) bool {
	return stdmath.Abs(a.X-b.X) <= tol && stdmath.Abs(a.Y-b.Y) <= tol
}

// Vec3 is a world-space point or direction.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func V3(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func Add(a, b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func Sub(a, b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func Scale(v Vec3, s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Mul multiplies component-wise.
func Mul(a, b Vec3) Vec3 {
	return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z}
}

func Dot(a, b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func Cross(a, b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func Len(v Vec3) float64 {
	return stdmath.Sqrt(Dot(v, v))
}

func Dist(a, b Vec3) float64 {
	return Len(Sub(a, b))
}

func Normalize(v Vec3) Vec3 {
	l := Len(v)
	if l < Epsilon {
		return Vec3{}
	}
	return Scale(v, 1/l)
}

func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
