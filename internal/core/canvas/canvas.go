// Package canvas lays out indicator widgets over a viewport: it projects every
// tracked indicator once per tick, then sorts, clamps and decorates them with
// edge arrows when arranged.
package canvas

import (
	"context"
	"slices"
	"sync"

	"github.com/zeusync/indicator/internal/core/events/bus"
	"github.com/zeusync/indicator/internal/core/geom"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/core/projection"
	"github.com/zeusync/indicator/internal/core/widget"
)

// DefaultArrowSize is the arrow glyph size in pixels.
var DefaultArrowSize = geom.V2(24, 24)

// WidgetFactory resolves widget classes and pools instances. widget.Factory implements it.
type WidgetFactory interface {
	Load(ctx context.Context, class string, done func(widget.Template, error))
	Acquire(t widget.Template) widget.Widget
	Release(w widget.Widget)
}

type completion struct {
	desc     *indicator.Descriptor
	template widget.Template
	err      error
}

// Canvas is driven from the update thread. Only widget load completions may
// arrive from other goroutines; they are queued and applied by the next Tick.
type Canvas struct {
	registry *indicator.Registry
	scene    indicator.Scene
	view     projection.View
	factory  WidgetFactory
	logger   log.Log

	viewport     geom.Vec2
	defaultClass string
	drawInOrder  bool
	onClamp      func(d *indicator.Descriptor, clamped bool)

	slots    []*slot
	all      map[*indicator.Descriptor]struct{}
	inactive map[*indicator.Descriptor]struct{}

	arrows    []*Arrow
	arrowSize geom.Vec2
	nextArrow int
	lastArrow int

	showAny    bool
	ticking    bool
	ticks      uint64
	needsPaint bool

	mu      sync.Mutex
	pending []completion

	ctx    context.Context
	cancel context.CancelFunc
	subs   []bus.Subscription
}

type Option func(*Canvas)

// WithView sets the camera. Without one no indicator is shown.
func WithView(v projection.View) Option {
	return func(c *Canvas) { c.view = v }
}

func WithViewport(size geom.Vec2) Option {
	return func(c *Canvas) { c.viewport = size }
}

func WithArrowSize(size geom.Vec2) Option {
	return func(c *Canvas) { c.arrowSize = size }
}

func WithArrowPool(n int) Option {
	return func(c *Canvas) {
		if n >= 0 {
			c.arrows = newArrowPool(n)
		}
	}
}

// WithDrawInOrder paints every entry on its own layer.
func WithDrawInOrder(inOrder bool) Option {
	return func(c *Canvas) { c.drawInOrder = inOrder }
}

// WithDefaultWidgetClass is used for indicators that name no widget class.
func WithDefaultWidgetClass(class string) Option {
	return func(c *Canvas) { c.defaultClass = class }
}

// WithClampListener is told when an indicator starts or stops being pinned to the edge.
func WithClampListener(fn func(d *indicator.Descriptor, clamped bool)) Option {
	return func(c *Canvas) { c.onClamp = fn }
}

func WithLogger(l log.Log) Option {
	return func(c *Canvas) { c.logger = l }
}

// New attaches a canvas to registry and picks up the indicators it already holds.
func New(registry *indicator.Registry, scene indicator.Scene, factory WidgetFactory, opts ...Option) (*Canvas, error) {
	if registry == nil {
		return nil, ErrNoRegistry
	}
	if scene == nil {
		return nil, ErrNoScene
	}
	if factory == nil {
		return nil, ErrNoFactory
	}
	c := &Canvas{
		registry:  registry,
		scene:     scene,
		factory:   factory,
		all:       make(map[*indicator.Descriptor]struct{}),
		inactive:  make(map[*indicator.Descriptor]struct{}),
		arrows:    newArrowPool(DefaultArrowPool),
		arrowSize: DefaultArrowSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Provide()
	}
	c.logger = c.logger.Named("canvas").With(log.String("player", registry.Player()))
	c.ctx, c.cancel = context.WithCancel(context.Background())

	added, err := registry.OnAdded(c.onAdded)
	if err != nil {
		c.cancel()
		return nil, err
	}
	removed, err := registry.OnRemoved(c.onRemoved)
	if err != nil {
		_ = added.Cancel()
		c.cancel()
		return nil, err
	}
	c.subs = append(c.subs, added, removed)

	for _, d := range registry.Indicators() {
		c.onAdded(d)
	}
	c.updateActiveTimer()
	return c, nil
}

// Close detaches from the registry, abandons pending loads and returns every widget to the pool.
func (c *Canvas) Close() {
	for _, s := range c.subs {
		_ = s.Cancel()
	}
	c.subs = nil
	c.cancel()
	for len(c.slots) > 0 {
		c.releaseSlot(len(c.slots) - 1)
	}
	clear(c.all)
	clear(c.inactive)
	c.ticking = false
}

func (c *Canvas) SetView(v projection.View) { c.view = v }

func (c *Canvas) SetViewport(size geom.Vec2) { c.viewport = size }

func (c *Canvas) SetDrawInOrder(inOrder bool) { c.drawInOrder = inOrder }

// Ticking reports whether Tick will run a layout pass.
func (c *Canvas) Ticking() bool { return c.ticking }

// Ticks counts executed layout passes.
func (c *Canvas) Ticks() uint64 { return c.ticks }

// NeedsPaint reports whether a tick changed anything since the last Paint.
func (c *Canvas) NeedsPaint() bool { return c.needsPaint }

// Tracked returns how many indicators the canvas follows, with or without a widget.
func (c *Canvas) Tracked() int { return len(c.all) }

// Pending returns how many tracked indicators still wait for a widget.
func (c *Canvas) Pending() int { return len(c.inactive) }

// Slot returns the layout state of d when it has a widget.
func (c *Canvas) Slot(d *indicator.Descriptor) (SlotState, bool) {
	if i := c.slotIndex(d); i >= 0 {
		return c.slots[i].state(), true
	}
	return SlotState{}, false
}

// Arrows returns the arrow pool.
func (c *Canvas) Arrows() []Arrow {
	out := make([]Arrow, len(c.arrows))
	for i, a := range c.arrows {
		out[i] = *a
	}
	return out
}

// Tick applies finished widget loads and, while indicators are tracked,
// projects every slot. It returns whether the canvas keeps ticking.
func (c *Canvas) Tick() bool {
	c.drainCompletions()
	if !c.ticking {
		return false
	}
	c.ticks++

	if c.view == nil || c.viewport.X <= 0 || c.viewport.Y <= 0 {
		c.setShowAny(false)
	} else {
		c.setShowAny(true)
		if c.layoutSlots() {
			c.needsPaint = true
		}
	}

	if len(c.all) == 0 {
		c.ticking = false
	}
	return c.ticking
}

// layoutSlots projects every slot. Listeners may remove indicators while it
// runs; released slots are skipped and auto-removals are applied afterwards.
func (c *Canvas) layoutSlots() bool {
	changed := false
	var expired []*indicator.Descriptor
	for _, s := range slices.Clone(c.slots) {
		if s.released {
			continue
		}
		d := s.desc
		anchored := d.Anchor.Target != 0 && c.scene.Valid(d.Anchor.Target)

		if d.AutoRemoveWhenAnchorInvalid && !anchored {
			s.setVisible(false)
			changed = s.takeDirty() || changed
			expired = append(expired, d)
			continue
		}

		s.setVisible(d.Visible && anchored)
		if !s.visible {
			changed = s.takeDirty() || changed
			continue
		}

		if s.clampedChanged {
			s.clampedChanged = false
			changed = true
			if c.onClamp != nil {
				c.onClamp(d, s.clamped)
				if s.released {
					continue
				}
			}
		}

		r, ok := projection.Project(d, c.scene, c.view, c.viewport)
		if !ok {
			s.setValidPosition(false)
			s.setClamped(false)
			changed = s.takeDirty() || changed
			continue
		}

		s.setInFront(r.InFront)
		valid := r.InFront || d.ClampToScreen
		if valid && d.HideAtDistance && r.Depth > d.MaxDrawDistance {
			valid = false
		}
		s.setValidPosition(valid)
		if valid {
			s.setScreen(r.Screen)
			s.setDepth(r.Depth)
		}
		s.setPriority(d.Priority)
		changed = s.takeDirty() || changed
	}

	for _, d := range expired {
		c.expire(d)
	}
	return changed || len(expired) > 0
}

// expire deregisters an auto-remove indicator whose anchor is gone.
func (c *Canvas) expire(d *indicator.Descriptor) {
	if _, ok := c.all[d]; !ok {
		return
	}
	c.logger.Debug("Indicator anchor gone, removing", log.Uint64("indicator_id", uint64(d.ID())))
	if err := c.registry.Remove(d); err != nil {
		c.logger.Warn("Auto-remove failed", log.Uint64("indicator_id", uint64(d.ID())), log.Error(err))
		c.onRemoved(d)
	}
}

func (c *Canvas) setShowAny(show bool) {
	if c.showAny != show {
		c.showAny = show
		c.needsPaint = true
	}
}

func (c *Canvas) updateActiveTimer() {
	if len(c.all) > 0 {
		c.ticking = true
	}
}

func (c *Canvas) onAdded(d *indicator.Descriptor) {
	if _, ok := c.all[d]; ok {
		return
	}
	c.all[d] = struct{}{}
	c.inactive[d] = struct{}{}
	c.addForEntry(d)
	c.updateActiveTimer()
}

func (c *Canvas) onRemoved(d *indicator.Descriptor) {
	if i := c.slotIndex(d); i >= 0 {
		c.releaseSlot(i)
		c.needsPaint = true
	}
	delete(c.all, d)
	delete(c.inactive, d)
}

func (c *Canvas) addForEntry(d *indicator.Descriptor) {
	class := d.WidgetClass
	if class == "" {
		class = c.defaultClass
	}
	if class == "" {
		c.logger.Debug("Indicator has no widget class", log.Uint64("indicator_id", uint64(d.ID())))
		return
	}
	c.factory.Load(c.ctx, class, func(t widget.Template, err error) {
		c.mu.Lock()
		c.pending = append(c.pending, completion{desc: d, template: t, err: err})
		c.mu.Unlock()
	})
}

func (c *Canvas) drainCompletions() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, p := range pending {
		if p.err != nil {
			c.logger.Debug("Widget load failed", log.Uint64("indicator_id", uint64(p.desc.ID())), log.Error(p.err))
			continue
		}
		// the indicator may have been removed while its widget was loading
		if _, ok := c.all[p.desc]; !ok {
			c.logger.Debug("Discarding stale widget load", log.Uint64("indicator_id", uint64(p.desc.ID())))
			continue
		}
		if c.slotIndex(p.desc) >= 0 {
			continue
		}
		w := c.factory.Acquire(p.template)
		if w == nil {
			continue
		}
		if b, ok := w.(widget.Binder); ok {
			b.BindIndicator(p.desc)
		}
		delete(c.inactive, p.desc)
		c.slots = append(c.slots, newSlot(p.desc, w))
		c.needsPaint = true
	}
}

func (c *Canvas) releaseSlot(i int) {
	s := c.slots[i]
	if s.widget != nil {
		if b, ok := s.widget.(widget.Binder); ok {
			b.UnbindIndicator(s.desc)
		}
		c.factory.Release(s.widget)
	}
	s.released = true
	c.slots = append(c.slots[:i], c.slots[i+1:]...)
}

func (c *Canvas) slotIndex(d *indicator.Descriptor) int {
	for i, s := range c.slots {
		if s.desc == d {
			return i
		}
	}
	return -1
}
