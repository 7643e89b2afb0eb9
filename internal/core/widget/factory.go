package widget

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/remeh/sizedwaitgroup"
	"github.com/zeusync/indicator/internal/core/observability/log"
)

const DefaultConcurrency = 4

type Stats struct {
	Loads   uint64
	Created uint64
	Reused  uint64
	Pooled  int
}

// Factory loads templates on background goroutines, bounded by a sized wait
// group, and recycles released elements per class.
type Factory struct {
	resolver Resolver
	swg      *sizedwaitgroup.SizedWaitGroup
	inflight sync.WaitGroup
	logger   log.Log

	mu     sync.Mutex
	cache  map[string]Template
	free   map[string][]*Element
	nextID uint64
	stats  Stats
}

type Option func(*Factory)

func WithConcurrency(n int) Option {
	return func(f *Factory) {
		if n > 0 {
			f.swg = newLimiter(n)
		}
	}
}

func WithLogger(l log.Log) Option {
	return func(f *Factory) { f.logger = l }
}

func NewFactory(resolver Resolver, opts ...Option) *Factory {
	f := &Factory{
		resolver: resolver,
		swg:      newLimiter(DefaultConcurrency),
		cache:    make(map[string]Template),
		free:     make(map[string][]*Element),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.Provide()
	}
	f.logger = f.logger.Named("widget")
	return f
}

// Load resolves class and reports the result through done. Cached templates
// complete synchronously; everything else completes on a loader goroutine.
func (f *Factory) Load(ctx context.Context, class string, done func(Template, error)) {
	if class == "" {
		done(Template{}, ErrEmptyClass)
		return
	}
	f.mu.Lock()
	t, cached := f.cache[class]
	f.mu.Unlock()
	if cached {
		done(t, nil)
		return
	}

	f.inflight.Add(1)
	go func() {
		defer f.inflight.Done()
		if err := f.swg.AddWithContext(ctx); err != nil {
			done(Template{}, errors.Wrapf(err, "load %q", class))
			return
		}
		defer f.swg.Done()

		t, err := f.resolver.Resolve(ctx, class)
		if err != nil {
			f.logger.Debug("Widget template load failed", log.String("class", class), log.Error(err))
			done(Template{}, errors.Wrapf(err, "load %q", class))
			return
		}
		if t.Class == "" {
			t.Class = class
		}
		f.mu.Lock()
		f.cache[class] = t
		f.stats.Loads++
		f.mu.Unlock()
		done(t, nil)
	}()
}

// Acquire returns a pooled element of t's class or creates one.
func (f *Factory) Acquire(t Template) Widget {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pool := f.free[t.Class]; len(pool) > 0 {
		e := pool[len(pool)-1]
		f.free[t.Class] = pool[:len(pool)-1]
		e.size = t.Size
		f.stats.Reused++
		return e
	}
	f.nextID++
	f.stats.Created++
	return &Element{id: f.nextID, class: t.Class, size: t.Size}
}

// Release returns an element to its class pool. Foreign widgets are ignored.
func (f *Factory) Release(w Widget) {
	e, ok := w.(*Element)
	if !ok || e == nil {
		return
	}
	e.bound = nil
	f.mu.Lock()
	f.free[e.class] = append(f.free[e.class], e)
	f.mu.Unlock()
}

func newLimiter(n int) *sizedwaitgroup.SizedWaitGroup {
	swg := sizedwaitgroup.New(n)
	return &swg
}

// Wait blocks until every load started so far has reported.
func (f *Factory) Wait() {
	f.inflight.Wait()
}

func (f *Factory) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats
	for _, pool := range f.free {
		s.Pooled += len(pool)
	}
	return s
}
