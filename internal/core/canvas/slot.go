package canvas

import (
	"github.com/zeusync/indicator/internal/core/geom"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/widget"
)

// slot is the cached layout state of one indicator with a loaded widget.
// Setters flag the slot dirty only when the value changes.
type slot struct {
	desc   *indicator.Descriptor
	widget widget.Widget

	screen   geom.Vec2
	depth    float64
	priority int

	visible        bool
	inFront        bool
	validPosition  bool
	dirty          bool
	clamped        bool
	clampedChanged bool
	released       bool
}

func newSlot(d *indicator.Descriptor, w widget.Widget) *slot {
	return &slot{
		desc:     d,
		widget:   w,
		priority: d.Priority,
		visible:  true,
		inFront:  true,
		dirty:    true,
	}
}

// shown reports whether the slot takes part in arrangement.
func (s *slot) shown() bool {
	return s.visible && s.validPosition
}

func (s *slot) setVisible(v bool) {
	if s.visible != v {
		s.visible = v
		s.dirty = true
	}
}

func (s *slot) setScreen(p geom.Vec2) {
	if s.screen != p {
		s.screen = p
		s.dirty = true
	}
}

func (s *slot) setDepth(d float64) {
	if s.depth != d {
		s.depth = d
		s.dirty = true
	}
}

func (s *slot) setPriority(p int) {
	if s.priority != p {
		s.priority = p
		s.dirty = true
	}
}

func (s *slot) setInFront(v bool) {
	if s.inFront != v {
		s.inFront = v
		s.dirty = true
	}
}

func (s *slot) setValidPosition(v bool) {
	if s.validPosition != v {
		s.validPosition = v
		s.dirty = true
	}
}

// setClamped is written by arrangement and consumed by the next tick.
func (s *slot) setClamped(v bool) {
	if s.clamped != v {
		s.clamped = v
		s.clampedChanged = true
	}
}

// takeDirty returns and clears the dirty bit.
func (s *slot) takeDirty() bool {
	d := s.dirty
	s.dirty = false
	return d
}

// SlotState is a read-only view of a slot.
type SlotState struct {
	Screen        geom.Vec2
	Depth         float64
	Priority      int
	Visible       bool
	InFront       bool
	ValidPosition bool
	Clamped       bool
	Widget        widget.Widget
}

func (s *slot) state() SlotState {
	return SlotState{
		Screen:        s.screen,
		Depth:         s.depth,
		Priority:      s.priority,
		Visible:       s.visible,
		InFront:       s.inFront,
		ValidPosition: s.validPosition,
		Clamped:       s.clamped,
		Widget:        s.widget,
	}
}
