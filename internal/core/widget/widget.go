// Package widget resolves widget templates asynchronously and pools the
// headless widget instances that the canvas lays out.
package widget

import (
	"context"

	"github.com/zeusync/indicator/internal/core/geom"
	"github.com/zeusync/indicator/internal/core/indicator"
)

// Template is a resolved widget class.
type Template struct {
	Class string    `yaml:"class" json:"class"`
	Size  geom.Vec2 `yaml:"size" json:"size"`
}

// Widget is a laid-out UI element.
type Widget interface {
	Class() string
	DesiredSize() geom.Vec2
}

// Binder is implemented by widgets that want to observe their indicator.
type Binder interface {
	BindIndicator(d *indicator.Descriptor)
	UnbindIndicator(d *indicator.Descriptor)
}

// Resolver turns a class key into a template. Implementations may block.
type Resolver interface {
	Resolve(ctx context.Context, class string) (Template, error)
}

type ResolverFunc func(ctx context.Context, class string) (Template, error)

func (f ResolverFunc) Resolve(ctx context.Context, class string) (Template, error) {
	return f(ctx, class)
}

// Catalog is a static resolver.
type Catalog map[string]Template

func (c Catalog) Resolve(_ context.Context, class string) (Template, error) {
	t, ok := c[class]
	if !ok {
		return Template{}, ErrUnknownClass
	}
	if t.Class == "" {
		t.Class = class
	}
	return t, nil
}

// Element is the widget instance handed out by Factory.
type Element struct {
	id    uint64
	class string
	size  geom.Vec2
	bound *indicator.Descriptor
	binds int
}

var (
	_ Widget = (*Element)(nil)
	_ Binder = (*Element)(nil)
)

func (e *Element) ID() uint64             { return e.id }
func (e *Element) Class() string          { return e.class }
func (e *Element) DesiredSize() geom.Vec2 { return e.size }

// Bound returns the indicator currently bound, if any.
func (e *Element) Bound() *indicator.Descriptor { return e.bound }

// Binds counts BindIndicator calls over the element's lifetime.
func (e *Element) Binds() int { return e.binds }

func (e *Element) BindIndicator(d *indicator.Descriptor) {
	e.bound = d
	e.binds++
}

func (e *Element) UnbindIndicator(d *indicator.Descriptor) {
	if e.bound == d {
		e.bound = nil
	}
}
