// Package indicator holds the indicator descriptor and the per-player registry
// that owns live descriptors.
package indicator

import (
	"sync/atomic"

	"github.com/zeusync/indicator/internal/core/geom"
	"github.com/zeusync/indicator/internal/core/scene"
)

// DefaultMaxDrawDistance is the hide distance used when HideAtDistance is set
// without an explicit limit.
const DefaultMaxDrawDistance = 1000.0

// ID identifies a descriptor within a process. IDs are never reused.
type ID uint64

// RegistryID identifies a registry within a process. Zero means "no owner".
type RegistryID uint64

var (
	lastID         atomic.Uint64
	lastRegistryID atomic.Uint64
)

func nextID() ID {
	return ID(lastID.Add(1))
}

func nextRegistryID() RegistryID {
	return RegistryID(lastRegistryID.Add(1))
}

// Anchor references a scene object by network id plus an optional socket.
type Anchor struct {
	Target scene.NetID `json:"target" yaml:"target"`
	Socket string      `json:"socket,omitempty" yaml:"socket,omitempty"`
}

// Scene resolves anchors. scene.World implements it.
type Scene interface {
	Valid(id scene.NetID) bool
	Location(id scene.NetID, socket string) (geom.Vec3, bool)
	ComponentBounds(id scene.NetID) (geom.Box, bool)
	ActorBounds(id scene.NetID) (geom.Box, bool)
}

// Descriptor describes one world-anchored indicator. It is mutated on the
// update thread only; registries and canvases hold pointers to it.
type Descriptor struct {
	id    ID
	owner RegistryID

	Anchor              Anchor
	WorldPositionOffset geom.Vec3
	ProjectionMode      ProjectionMode
	HAlign              HAlign
	VAlign              VAlign
	BoundingBoxAnchor   geom.Vec3
	ScreenSpaceOffset   geom.Vec2
	// Priority orders indicators; higher values are drawn later (on top).
	Priority       int
	ClampToScreen  bool
	ShowClampArrow bool
	Visible        bool
	// AutoRemoveWhenAnchorInvalid removes the indicator from its registry once its anchor is gone.
	AutoRemoveWhenAnchorInvalid bool
	HideAtDistance              bool
	MaxDrawDistance             float64
	// WidgetClass is the template key resolved by the widget factory.
	WidgetClass     string
	ShouldReplicate bool
	// Data is an opaque payload for widgets. It never leaves the process.
	Data any
}

// Option configures a descriptor built by New.
type Option func(*Descriptor)

// New creates a detached descriptor anchored to anchor.
func New(anchor Anchor, opts ...Option) *Descriptor {
	d := &Descriptor{
		id:                nextID(),
		Anchor:            anchor,
		BoundingBoxAnchor: geom.V3(0.5, 0.5, 0.5),
		Visible:           true,
		MaxDrawDistance:   DefaultMaxDrawDistance,
		ShouldReplicate:   true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func WithWorldOffset(offset geom.Vec3) Option {
	return func(d *Descriptor) { d.WorldPositionOffset = offset }
}

func WithProjectionMode(mode ProjectionMode) Option {
	return func(d *Descriptor) { d.ProjectionMode = mode }
}

func WithAlignment(h HAlign, v VAlign) Option {
	return func(d *Descriptor) {
		d.HAlign = h
		d.VAlign = v
	}
}

func WithBoundingBoxAnchor(anchor geom.Vec3) Option {
	return func(d *Descriptor) { d.BoundingBoxAnchor = anchor }
}

func WithScreenOffset(offset geom.Vec2) Option {
	return func(d *Descriptor) { d.ScreenSpaceOffset = offset }
}

func WithPriority(priority int) Option {
	return func(d *Descriptor) { d.Priority = priority }
}

// WithClamp pins the indicator to the screen edge when off screen, optionally with an arrow.
func WithClamp(clamp, arrow bool) Option {
	return func(d *Descriptor) {
		d.ClampToScreen = clamp
		d.ShowClampArrow = arrow
	}
}

func WithVisible(visible bool) Option {
	return func(d *Descriptor) { d.Visible = visible }
}

func WithAutoRemove() Option {
	return func(d *Descriptor) { d.AutoRemoveWhenAnchorInvalid = true }
}

// WithHideAtDistance hides the indicator beyond maxDistance. Non-positive
// values keep the default limit.
func WithHideAtDistance(maxDistance float64) Option {
	return func(d *Descriptor) {
		d.HideAtDistance = true
		if maxDistance > 0 {
			d.MaxDrawDistance = maxDistance
		}
	}
}

func WithWidgetClass(class string) Option {
	return func(d *Descriptor) { d.WidgetClass = class }
}

func WithData(data any) Option {
	return func(d *Descriptor) { d.Data = data }
}

func WithReplication(replicate bool) Option {
	return func(d *Descriptor) { d.ShouldReplicate = replicate }
}

func (d *Descriptor) ID() ID {
	return d.id
}

// Owner returns the owning registry id, or false while detached.
func (d *Descriptor) Owner() (RegistryID, bool) {
	return d.owner, d.owner != 0
}

// setOwner performs the one-time unset -> owner transition.
func (d *Descriptor) setOwner(owner RegistryID) error {
	switch d.owner {
	case 0:
		d.owner = owner
		return nil
	case owner:
		return nil
	default:
		return ErrOwnershipViolation
	}
}

// Clone returns a detached copy with a fresh id. Data is shared.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.id = nextID()
	c.owner = 0
	return &c
}

// State returns the replicated form of the descriptor.
func (d *Descriptor) State() State {
	return State{
		Anchor:                      d.Anchor,
		WorldPositionOffset:         d.WorldPositionOffset,
		ProjectionMode:              d.ProjectionMode,
		HAlign:                      d.HAlign,
		VAlign:                      d.VAlign,
		BoundingBoxAnchor:           d.BoundingBoxAnchor,
		ScreenSpaceOffset:           Vec2State{X: d.ScreenSpaceOffset.X, Y: d.ScreenSpaceOffset.Y},
		Priority:                    d.Priority,
		ClampToScreen:               d.ClampToScreen,
		ShowClampArrow:              d.ShowClampArrow,
		Visible:                     d.Visible,
		AutoRemoveWhenAnchorInvalid: d.AutoRemoveWhenAnchorInvalid,
		HideAtDistance:              d.HideAtDistance,
		MaxDrawDistance:             d.MaxDrawDistance,
		WidgetClass:                 d.WidgetClass,
	}
}

// Apply copies replicated fields from s. Identity, ownership and Data are kept.
func (d *Descriptor) Apply(s State) {
	d.Anchor = s.Anchor
	d.WorldPositionOffset = s.WorldPositionOffset
	d.ProjectionMode = s.ProjectionMode
	d.HAlign = s.HAlign
	d.VAlign = s.VAlign
	d.BoundingBoxAnchor = s.BoundingBoxAnchor
	d.ScreenSpaceOffset = geom.V2(s.ScreenSpaceOffset.X, s.ScreenSpaceOffset.Y)
	d.Priority = s.Priority
	d.ClampToScreen = s.ClampToScreen
	d.ShowClampArrow = s.ShowClampArrow
	d.Visible = s.Visible
	d.AutoRemoveWhenAnchorInvalid = s.AutoRemoveWhenAnchorInvalid
	d.HideAtDistance = s.HideAtDistance
	d.MaxDrawDistance = s.MaxDrawDistance
	d.WidgetClass = s.WidgetClass
}

// FromState builds a detached descriptor from its replicated form.
func FromState(s State) *Descriptor {
	d := New(s.Anchor)
	d.Apply(s)
	return d
}

// Vec2State is the wire form of a 2D vector.
type Vec2State struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// State is the serializable, replicated form of a descriptor. It doubles as
// the template format in configuration files.
type State struct {
	Anchor                      Anchor         `json:"anchor" yaml:"anchor"`
	WorldPositionOffset         geom.Vec3      `json:"world_offset" yaml:"world_offset"`
	ProjectionMode              ProjectionMode `json:"projection_mode" yaml:"projection_mode"`
	HAlign                      HAlign         `json:"h_align" yaml:"h_align"`
	VAlign                      VAlign         `json:"v_align" yaml:"v_align"`
	BoundingBoxAnchor           geom.Vec3      `json:"box_anchor" yaml:"box_anchor"`
	ScreenSpaceOffset           Vec2State      `json:"screen_offset" yaml:"screen_offset"`
	Priority                    int            `json:"priority" yaml:"priority"`
	ClampToScreen               bool           `json:"clamp_to_screen" yaml:"clamp_to_screen"`
	ShowClampArrow              bool           `json:"show_clamp_arrow" yaml:"show_clamp_arrow"`
	Visible                     bool           `json:"visible" yaml:"visible"`
	AutoRemoveWhenAnchorInvalid bool           `json:"auto_remove" yaml:"auto_remove"`
	HideAtDistance              bool           `json:"hide_at_distance" yaml:"hide_at_distance"`
	MaxDrawDistance             float64        `json:"max_draw_distance" yaml:"max_draw_distance"`
	WidgetClass                 string         `json:"widget_class,omitempty" yaml:"widget_class,omitempty"`
}

// DefaultState returns the state of a freshly created descriptor.
func DefaultState() State {
	return New(Anchor{}).State()
}
