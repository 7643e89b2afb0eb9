// Package camera is a headless pinhole camera. World space is Z-up; the
// camera looks along Forward with screen X to the right and screen Y down.
package camera

import (
	stdmath "math"

	"github.com/zeusync/indicator/internal/core/geom"
)

const DefaultFOV = 90.0

var worldUp = geom.V3(0, 0, 1)

type Camera struct {
	Position geom.Vec3
	forward  geom.Vec3
	right    geom.Vec3
	up       geom.Vec3
	// FOV is the horizontal field of view in degrees.
	FOV float64
}

// New builds a camera at pos looking at target. Non-positive fov selects DefaultFOV.
func New(pos, target geom.Vec3, fov float64) *Camera {
	if fov <= 0 || fov >= 180 {
		fov = DefaultFOV
	}
	c := &Camera{Position: pos, FOV: fov}
	c.LookAt(target)
	return c
}

// LookAt re-aims the camera. A target equal to the position keeps the old basis.
func (c *Camera) LookAt(target geom.Vec3) {
	dir := geom.Sub(target, c.Position)
	if geom.Len(dir) < geom.Epsilon {
		if c.forward == (geom.Vec3{}) {
			c.setBasis(geom.V3(1, 0, 0))
		}
		return
	}
	c.setBasis(geom.Normalize(dir))
}

func (c *Camera) setBasis(forward geom.Vec3) {
	right := geom.Cross(worldUp, forward)
	if geom.Len(right) < geom.Epsilon {
		right = geom.V3(0, 1, 0)
	}
	c.forward = forward
	c.right = geom.Normalize(right)
	c.up = geom.Cross(forward, c.right)
}

func (c *Camera) Forward() geom.Vec3 { return c.forward }

// Origin is the view origin used for depth.
func (c *Camera) Origin() geom.Vec3 { return c.Position }

// WorldToPixel projects p into a viewport of the given pixel size. Points
// behind the camera are divided by |w| so they keep their lateral sign and are
// reported with inFront false. ok is false when the point lies on the camera
// plane or the viewport is empty.
func (c *Camera) WorldToPixel(p geom.Vec3, viewport geom.Vec2) (screen geom.Vec2, inFront bool, ok bool) {
	if viewport.X <= 0 || viewport.Y <= 0 {
		return geom.Vec2{}, false, false
	}
	d := geom.Sub(p, c.Position)
	w := geom.Dot(d, c.forward)
	if stdmath.Abs(w) < geom.Epsilon {
		return geom.Vec2{}, false, false
	}
	half := geom.Scale2(viewport, 0.5)
	focal := half.X / stdmath.Tan(c.FOV*stdmath.Pi/360)
	aw := stdmath.Abs(w)
	screen = geom.V2(
		half.X+geom.Dot(d, c.right)/aw*focal,
		half.Y-geom.Dot(d, c.up)/aw*focal,
	)
	return screen, w > 0, true
}
