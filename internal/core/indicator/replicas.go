package indicator

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Replicas tracks the per-registry instances of one logical indicator. The
// source descriptor goes to the first registry that can own it; every other
// registry receives a detached clone, so each instance keeps a single owner.
type Replicas struct {
	source     *Descriptor
	byRegistry map[RegistryID]*Descriptor
	registries map[RegistryID]*Registry
}

func NewReplicas(source *Descriptor) *Replicas {
	return &Replicas{
		source:     source,
		byRegistry: make(map[RegistryID]*Descriptor),
		registries: make(map[RegistryID]*Registry),
	}
}

func (r *Replicas) Source() *Descriptor { return r.source }

func (r *Replicas) Len() int { return len(r.byRegistry) }

// In returns the instance held by registry id.
func (r *Replicas) In(id RegistryID) (*Descriptor, bool) {
	d, ok := r.byRegistry[id]
	return d, ok
}

// AddTo places an instance into reg. Repeated calls for the same registry are no-ops.
func (r *Replicas) AddTo(reg *Registry) (*Descriptor, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if d, ok := r.byRegistry[reg.ID()]; ok {
		return d, nil
	}
	d := r.source
	if owner, owned := d.Owner(); owned && owner != reg.ID() {
		d = r.source.Clone()
	}
	if _, err := reg.Add(d); err != nil && !errors.Is(err, ErrAlreadyRegistered) {
		return nil, err
	}
	r.byRegistry[reg.ID()] = d
	r.registries[reg.ID()] = reg
	return d, nil
}

// RemoveFrom removes the instance held by reg, if any.
func (r *Replicas) RemoveFrom(reg *Registry) error {
	if reg == nil {
		return ErrNilRegistry
	}
	d, ok := r.byRegistry[reg.ID()]
	if !ok {
		return nil
	}
	delete(r.byRegistry, reg.ID())
	delete(r.registries, reg.ID())
	return reg.Remove(d)
}

// RemoveAll removes every instance and joins the errors.
func (r *Replicas) RemoveAll() error {
	var all error
	for id, reg := range r.registries {
		if err := r.RemoveFrom(reg); err != nil {
			all = stderrors.Join(all, errors.Wrapf(err, "registry %d", id))
		}
	}
	return all
}

// Sync copies the source's replicated state into every clone.
func (r *Replicas) Sync() {
	state := r.source.State()
	for _, d := range r.byRegistry {
		if d != r.source {
			d.Apply(state)
		}
	}
}
