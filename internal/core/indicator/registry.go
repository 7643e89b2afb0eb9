package indicator

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/events/bus"
	"github.com/zeusync/indicator/internal/core/observability/log"
)

const (
	EventAdded   = "indicator.added"
	EventRemoved = "indicator.removed"
)

// Handle addresses a descriptor inside a registry's arena. A handle goes stale
// once the descriptor is removed.
type Handle struct {
	Registry RegistryID
	Slot     uint32
	Gen      uint32
}

type arenaSlot struct {
	desc *Descriptor
	gen  uint32
}

// Registry is the per-player owner of a live indicator set. It is driven from
// the update thread only.
type Registry struct {
	id     RegistryID
	player string
	local  bool

	slots []arenaSlot
	free  []uint32
	index map[*Descriptor]uint32
	order []*Descriptor

	bus    bus.EventBus
	topic  string
	logger log.Log
}

type RegistryOption func(*Registry)

// Local marks the registry as belonging to a locally controlled player.
func Local() RegistryOption {
	return func(r *Registry) { r.local = true }
}

func WithBus(b bus.EventBus) RegistryOption {
	return func(r *Registry) { r.bus = b }
}

func WithLogger(l log.Log) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

func NewRegistry(player string, opts ...RegistryOption) *Registry {
	r := &Registry{
		id:     nextRegistryID(),
		player: player,
		index:  make(map[*Descriptor]uint32),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.bus == nil {
		r.bus = bus.New()
	}
	if r.logger == nil {
		r.logger = log.Provide()
	}
	r.topic = fmt.Sprintf("registry/%d", r.id)
	r.logger = r.logger.Named("registry").With(log.Uint64("registry_id", uint64(r.id)), log.String("player", player))
	return r
}

func (r *Registry) ID() RegistryID { return r.id }
func (r *Registry) Player() string { return r.player }
func (r *Registry) Local() bool    { return r.local }
func (r *Registry) Len() int       { return len(r.order) }

// Indicators returns the active set in insertion order. The slice is a copy.
func (r *Registry) Indicators() []*Descriptor {
	out := make([]*Descriptor, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Contains(d *Descriptor) bool {
	_, ok := r.index[d]
	return ok
}

// Add takes ownership of d, notifies Added subscribers and appends it to the
// active set. A descriptor owned by another registry is rejected with
// ErrOwnershipViolation and the registry is left unchanged.
func (r *Registry) Add(d *Descriptor) (Handle, error) {
	if d == nil {
		return Handle{}, ErrNilDescriptor
	}
	if slot, ok := r.index[d]; ok {
		return Handle{Registry: r.id, Slot: slot, Gen: r.slots[slot].gen},
			errors.Wrapf(ErrAlreadyRegistered, "indicator %d", d.id)
	}
	if err := d.setOwner(r.id); err != nil {
		r.logger.Error("Indicator ownership violation",
			log.Uint64("indicator_id", uint64(d.id)),
			log.Uint64("owner_id", uint64(d.owner)))
		return Handle{}, errors.Wrapf(err, "indicator %d owned by registry %d", d.id, d.owner)
	}

	r.publish(EventAdded, d)

	var slot uint32
	if n := len(r.free); n > 0 {
		slot = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		slot = uint32(len(r.slots))
		r.slots = append(r.slots, arenaSlot{})
	}
	r.slots[slot].desc = d
	r.index[d] = slot
	r.order = append(r.order, d)

	r.logger.Debug("Indicator added", log.Uint64("indicator_id", uint64(d.id)))
	return Handle{Registry: r.id, Slot: slot, Gen: r.slots[slot].gen}, nil
}

// Remove notifies Removed subscribers and erases d from the active set. A nil
// descriptor or one this registry owns but no longer holds is a no-op.
func (r *Registry) Remove(d *Descriptor) error {
	if d == nil {
		return nil
	}
	if owner, _ := d.Owner(); owner != r.id {
		r.logger.Error("Remove of indicator owned elsewhere",
			log.Uint64("indicator_id", uint64(d.id)),
			log.Uint64("owner_id", uint64(owner)))
		return errors.Wrapf(ErrNotOwner, "indicator %d", d.id)
	}
	slot, ok := r.index[d]
	if !ok {
		return nil
	}

	r.publish(EventRemoved, d)

	delete(r.index, d)
	r.slots[slot].desc = nil
	r.slots[slot].gen++
	r.free = append(r.free, slot)
	for i, x := range r.order {
		if x == d {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Debug("Indicator removed", log.Uint64("indicator_id", uint64(d.id)))
	return nil
}

// Lookup resolves a handle. Handles from other registries or stale generations miss.
func (r *Registry) Lookup(h Handle) (*Descriptor, bool) {
	if h.Registry != r.id || int(h.Slot) >= len(r.slots) {
		return nil, false
	}
	s := r.slots[h.Slot]
	if s.gen != h.Gen || s.desc == nil {
		return nil, false
	}
	return s.desc, true
}

// OnAdded subscribes fn to additions. Delivery is synchronous, once per add.
func (r *Registry) OnAdded(fn func(*Descriptor)) (bus.Subscription, error) {
	return r.subscribe(EventAdded, fn)
}

// OnRemoved subscribes fn to removals. fn runs while d is still in the active set.
func (r *Registry) OnRemoved(fn func(*Descriptor)) (bus.Subscription, error) {
	return r.subscribe(EventRemoved, fn)
}

func (r *Registry) subscribe(eventType string, fn func(*Descriptor)) (bus.Subscription, error) {
	if fn == nil {
		return nil, bus.ErrNilHandler
	}
	return r.bus.SubscribeTopic(r.topic, eventType, func(e bus.Event) error {
		if d, ok := e.Data().(*Descriptor); ok {
			fn(d)
		}
		return nil
	})
}

func (r *Registry) publish(eventType string, d *Descriptor) {
	if err := r.bus.PublishToTopic(r.topic, bus.NewEvent(eventType, r.topic, d)); err != nil {
		r.logger.Warn("Indicator subscriber failed", log.String("event", eventType), log.Error(err))
	}
}
