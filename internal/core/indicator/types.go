package indicator

import (
	"strings"

	"github.com/pkg/errors"
)

// ProjectionMode selects how an anchor is turned into a screen point.
type ProjectionMode uint8

const (
	// ComponentPoint projects the anchor location (or socket) plus the world offset.
	ComponentPoint ProjectionMode = iota
	// ComponentBoundingBox projects a point inside the anchor's own world bounds.
	ComponentBoundingBox
	// ComponentScreenBoundingBox interpolates inside the screen rectangle covered by the anchor's bounds.
	ComponentScreenBoundingBox
	// ActorBoundingBox projects a point inside the union of the owning actor's bounds.
	ActorBoundingBox
	// ActorScreenBoundingBox interpolates inside the screen rectangle covered by the actor's bounds.
	ActorScreenBoundingBox
)

var projectionModeNames = [...]string{
	ComponentPoint:             "component_point",
	ComponentBoundingBox:       "component_bounding_box",
	ComponentScreenBoundingBox: "component_screen_bounding_box",
	ActorBoundingBox:           "actor_bounding_box",
	ActorScreenBoundingBox:     "actor_screen_bounding_box",
}

func (m ProjectionMode) String() string {
	if int(m) < len(projectionModeNames) {
		return projectionModeNames[m]
	}
	return "unknown"
}

func (m ProjectionMode) MarshalText() ([]byte, error) {
	if int(m) >= len(projectionModeNames) {
		return nil, errors.Wrapf(ErrUnknownEnum, "projection mode %d", m)
	}
	return []byte(m.String()), nil
}

func (m *ProjectionMode) UnmarshalText(text []byte) error {
	idx, err := lookupName(projectionModeNames[:], string(text))
	if err != nil {
		return errors.Wrap(err, "projection mode")
	}
	*m = ProjectionMode(idx)
	return nil
}

// HAlign positions the widget horizontally relative to the projected point.
type HAlign uint8

const (
	HAlignCenter HAlign = iota
	HAlignLeft
	HAlignRight
	// HAlignFill lays out like HAlignCenter.
	HAlignFill
)

var hAlignNames = [...]string{
	HAlignCenter: "center",
	HAlignLeft:   "left",
	HAlignRight:  "right",
	HAlignFill:   "fill",
}

func (a HAlign) String() string {
	if int(a) < len(hAlignNames) {
		return hAlignNames[a]
	}
	return "unknown"
}

func (a HAlign) MarshalText() ([]byte, error) {
	if int(a) >= len(hAlignNames) {
		return nil, errors.Wrapf(ErrUnknownEnum, "horizontal alignment %d", a)
	}
	return []byte(a.String()), nil
}

func (a *HAlign) UnmarshalText(text []byte) error {
	idx, err := lookupName(hAlignNames[:], string(text))
	if err != nil {
		return errors.Wrap(err, "horizontal alignment")
	}
	*a = HAlign(idx)
	return nil
}

// VAlign positions the widget vertically relative to the projected point.
type VAlign uint8

const (
	VAlignCenter VAlign = iota
	VAlignTop
	VAlignBottom
	// VAlignFill lays out like VAlignCenter.
	VAlignFill
)

var vAlignNames = [...]string{
	VAlignCenter: "center",
	VAlignTop:    "top",
	VAlignBottom: "bottom",
	VAlignFill:   "fill",
}

func (a VAlign) String() string {
	if int(a) < len(vAlignNames) {
		return vAlignNames[a]
	}
	return "unknown"
}

func (a VAlign) MarshalText() ([]byte, error) {
	if int(a) >= len(vAlignNames) {
		return nil, errors.Wrapf(ErrUnknownEnum, "vertical alignment %d", a)
	}
	return []byte(a.String()), nil
}

func (a *VAlign) UnmarshalText(text []byte) error {
	idx, err := lookupName(vAlignNames[:], string(text))
	if err != nil {
		return errors.Wrap(err, "vertical alignment")
	}
	*a = VAlign(idx)
	return nil
}

func lookupName(names []string, s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name == s {
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownEnum, "%q", s)
}
