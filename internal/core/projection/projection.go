// Package projection turns an indicator descriptor into a screen position and
// depth for one camera and viewport.
package projection

import (
	stdmath "math"

	"github.com/zeusync/indicator/internal/core/geom"
	"github.com/zeusync/indicator/internal/core/indicator"
)

// View is the camera side of a projection. camera.Camera implements it.
type View interface {
	Origin() geom.Vec3
	WorldToPixel(p geom.Vec3, viewport geom.Vec2) (screen geom.Vec2, inFront bool, ok bool)
}

type Result struct {
	Screen  geom.Vec2
	Depth   float64
	InFront bool
}

// target is the resolved projection input for one descriptor.
type target interface {
	target()
}

// worldPoint projects a single world position.
type worldPoint struct {
	at geom.Vec3
}

// screenBox interpolates inside the pixel rectangle covered by box.
type screenBox struct {
	box      geom.Box
	anchor   geom.Vec3
	depthRef geom.Vec3
}

func (worldPoint) target() {}
func (screenBox) target()  {}

// Project computes the screen position and depth of d. It fails when the
// anchor does not resolve, the view is nil or the viewport is empty.
func Project(d *indicator.Descriptor, s indicator.Scene, view View, viewport geom.Vec2) (Result, bool) {
	if d == nil || s == nil || view == nil || viewport.X <= 0 || viewport.Y <= 0 {
		return Result{}, false
	}
	t, ok := resolve(d, s)
	if !ok {
		return Result{}, false
	}

	var (
		screen  geom.Vec2
		inFront bool
		depth   float64
	)
	switch t := t.(type) {
	case worldPoint:
		screen, inFront, ok = view.WorldToPixel(t.at, viewport)
		depth = geom.Dist(view.Origin(), t.at)
	case screenBox:
		var ll, ur geom.Vec2
		ll, ur, inFront, ok = PixelBoundingBox(view, t.box, viewport)
		screen = geom.V2(geom.Lerp(ll.X, ur.X, t.anchor.X), geom.Lerp(ll.Y, ur.Y, t.anchor.Y))
		depth = geom.Dist(view.Origin(), t.depthRef)
	}
	if !ok {
		return Result{}, false
	}

	offset := d.ScreenSpaceOffset
	if !inFront {
		offset.X = -offset.X
	}
	screen = geom.Add2(screen, offset)
	if !inFront {
		screen = pushOutFromBehind(screen, viewport)
	}
	return Result{Screen: screen, Depth: depth, InFront: inFront}, true
}

func resolve(d *indicator.Descriptor, s indicator.Scene) (target, bool) {
	id := d.Anchor.Target
	if id == 0 || !s.Valid(id) {
		return nil, false
	}
	switch d.ProjectionMode {
	case indicator.ComponentPoint:
		loc, ok := s.Location(id, d.Anchor.Socket)
		if !ok {
			return nil, false
		}
		return worldPoint{at: geom.Add(loc, d.WorldPositionOffset)}, true
	case indicator.ComponentBoundingBox, indicator.ActorBoundingBox:
		box, ok := bounds(d, s)
		if !ok {
			return nil, false
		}
		return worldPoint{at: box.PointAt(d.BoundingBoxAnchor)}, true
	case indicator.ComponentScreenBoundingBox, indicator.ActorScreenBoundingBox:
		box, ok := bounds(d, s)
		if !ok {
			return nil, false
		}
		loc, ok := s.Location(id, d.Anchor.Socket)
		if !ok {
			return nil, false
		}
		return screenBox{box: box, anchor: d.BoundingBoxAnchor, depthRef: geom.Add(loc, d.WorldPositionOffset)}, true
	}
	return nil, false
}

func bounds(d *indicator.Descriptor, s indicator.Scene) (geom.Box, bool) {
	switch d.ProjectionMode {
	case indicator.ActorBoundingBox, indicator.ActorScreenBoundingBox:
		return s.ActorBounds(d.Anchor.Target)
	default:
		return s.ComponentBounds(d.Anchor.Target)
	}
}

// PixelBoundingBox projects the corners of box and returns the pixel extents.
// inFront holds only when every corner is in front of the camera.
func PixelBoundingBox(view View, box geom.Box, viewport geom.Vec2) (ll, ur geom.Vec2, inFront, ok bool) {
	if !box.Valid {
		return geom.Vec2{}, geom.Vec2{}, false, false
	}
	ll = geom.V2(stdmath.Inf(1), stdmath.Inf(1))
	ur = geom.V2(stdmath.Inf(-1), stdmath.Inf(-1))
	inFront = true
	for _, corner := range box.Corners() {
		p, front, projected := view.WorldToPixel(corner, viewport)
		if !projected {
			return geom.Vec2{}, geom.Vec2{}, false, false
		}
		inFront = inFront && front
		ll = geom.V2(stdmath.Min(ll.X, p.X), stdmath.Min(ll.Y, p.Y))
		ur = geom.V2(stdmath.Max(ur.X, p.X), stdmath.Max(ur.Y, p.Y))
	}
	return ll, ur, inFront, true
}

// pushOutFromBehind moves a behind-camera point that still lands inside the
// frame radially out past the viewport edge.
func pushOutFromBehind(p, viewport geom.Vec2) geom.Vec2 {
	if !geom.Viewport(viewport).StrictlyInside(p) {
		return p
	}
	center := geom.Scale2(viewport, 0.5)
	dir := geom.SafeNormal2(geom.Sub2(p, center))
	if dir == (geom.Vec2{}) {
		// dead behind the eye: no direction survives, push toward the bottom edge
		dir = geom.V2(0, 1)
	}
	return geom.Add2(center, geom.Mul2(dir, viewport))
}
