// Package session holds the session-wide directory of player registries and
// the indicators broadcast to every player.
package session

import (
	stderrors "errors"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
)

// Multicaster replicates a broadcast indicator to connected clients.
// replication.Set implements it on the server.
type Multicaster interface {
	Multicast(d *indicator.Descriptor) error
	Revoke(d *indicator.Descriptor) error
}

var directory = struct {
	sync.Mutex
	sessions map[string]*Session
}{sessions: make(map[string]*Session)}

// Session is the single indicator subsystem of one game session. It is driven
// from the update thread.
type Session struct {
	id     string
	closed bool

	registries []*indicator.Registry
	byID       map[indicator.RegistryID]*indicator.Registry
	broadcasts []*indicator.Replicas

	multicaster Multicaster
	logger      log.Log
}

type Option func(*Session)

func WithMulticaster(m Multicaster) Option {
	return func(s *Session) { s.multicaster = m }
}

func WithLogger(l log.Log) Option {
	return func(s *Session) { s.logger = l }
}

// Open creates the session for id. An empty id gets a random one. Only one
// session may be open per id.
func Open(id string, opts ...Option) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	directory.Lock()
	defer directory.Unlock()
	if _, ok := directory.sessions[id]; ok {
		return nil, errors.Wrapf(ErrSessionExists, "session %s", id)
	}

	s := &Session{
		id:   id,
		byID: make(map[indicator.RegistryID]*indicator.Registry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Provide()
	}
	s.logger = s.logger.Named("session").With(log.String("session_id", id))
	directory.sessions[id] = s
	s.logger.Info("Session opened")
	return s, nil
}

// Get returns the open session for id.
func Get(id string) (*Session, error) {
	directory.Lock()
	defer directory.Unlock()
	s, ok := directory.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "session %s", id)
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Close strips broadcasts from every registry, drops all registrations and
// releases the session id.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	var all error
	for _, reg := range slices.Clone(s.registries) {
		if err := s.UnregisterRegistry(reg); err != nil {
			all = stderrors.Join(all, errors.Wrapf(err, "registry %d", reg.ID()))
		}
	}
	s.broadcasts = nil
	s.closed = true

	directory.Lock()
	if directory.sessions[s.id] == s {
		delete(directory.sessions, s.id)
	}
	directory.Unlock()
	s.logger.Info("Session closed")
	return all
}

// RegisterRegistry records reg. When fanOutPending is set and reg belongs to
// a locally controlled player, every current broadcast is added to it first.
func (s *Session) RegisterRegistry(reg *indicator.Registry, fanOutPending bool) error {
	if reg == nil {
		return indicator.ErrNilRegistry
	}
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.byID[reg.ID()]; ok {
		return nil
	}
	if fanOutPending && reg.Local() {
		for _, b := range s.broadcasts {
			if _, err := b.AddTo(reg); err != nil {
				return errors.Wrapf(err, "broadcast %d", b.Source().ID())
			}
		}
	}
	s.registries = append(s.registries, reg)
	s.byID[reg.ID()] = reg
	s.logger.Debug("Registry registered",
		log.Uint64("registry_id", uint64(reg.ID())),
		log.String("player", reg.Player()),
		log.Bool("local", reg.Local()))
	return nil
}

// UnregisterRegistry removes every broadcast from reg while it is still
// registered, then drops it.
func (s *Session) UnregisterRegistry(reg *indicator.Registry) error {
	if reg == nil {
		return indicator.ErrNilRegistry
	}
	if _, ok := s.byID[reg.ID()]; !ok {
		return nil
	}
	for _, b := range s.broadcasts {
		if err := b.RemoveFrom(reg); err != nil {
			return errors.Wrapf(err, "broadcast %d", b.Source().ID())
		}
	}
	s.registries = slices.DeleteFunc(s.registries, func(r *indicator.Registry) bool { return r == reg })
	delete(s.byID, reg.ID())
	s.logger.Debug("Registry unregistered", log.Uint64("registry_id", uint64(reg.ID())))
	return nil
}

// IsRegistered reports whether reg is in the directory.
func (s *Session) IsRegistered(reg *indicator.Registry) bool {
	if reg == nil {
		return false
	}
	_, ok := s.byID[reg.ID()]
	return ok
}

// BroadcastIndicator adds d to every registered local registry and to every
// registry that registers later. Repeated calls are no-ops.
func (s *Session) BroadcastIndicator(d *indicator.Descriptor) error {
	if d == nil {
		return nil
	}
	if s.closed {
		return ErrSessionClosed
	}
	if s.broadcastIndex(d) >= 0 {
		return nil
	}
	b := indicator.NewReplicas(d)
	s.broadcasts = append(s.broadcasts, b)
	for _, reg := range s.registries {
		if !reg.Local() {
			continue
		}
		if _, err := b.AddTo(reg); err != nil {
			return errors.Wrapf(err, "registry %d", reg.ID())
		}
	}
	if s.multicaster != nil {
		if err := s.multicaster.Multicast(d); err != nil {
			s.logger.Warn("Broadcast multicast failed", log.Uint64("indicator_id", uint64(d.ID())), log.Error(err))
		}
	}
	s.logger.Debug("Indicator broadcast", log.Uint64("indicator_id", uint64(d.ID())), log.Int("registries", b.Len()))
	return nil
}

// RemoveBroadcastIndicator removes d from every registry, then from the
// broadcast set. Unknown descriptors are ignored.
func (s *Session) RemoveBroadcastIndicator(d *indicator.Descriptor) error {
	idx := s.broadcastIndex(d)
	if idx < 0 {
		return nil
	}
	b := s.broadcasts[idx]
	if err := b.RemoveAll(); err != nil {
		return errors.Wrapf(err, "broadcast %d", d.ID())
	}
	s.broadcasts = slices.Delete(s.broadcasts, idx, idx+1)
	if s.multicaster != nil {
		if err := s.multicaster.Revoke(d); err != nil {
			s.logger.Warn("Broadcast revoke failed", log.Uint64("indicator_id", uint64(d.ID())), log.Error(err))
		}
	}
	return nil
}

// Unregister removes d from whichever registered registry owns it. Broadcast
// sources are withdrawn from every registry.
func (s *Session) Unregister(d *indicator.Descriptor) error {
	if d == nil {
		return nil
	}
	if s.broadcastIndex(d) >= 0 {
		return s.RemoveBroadcastIndicator(d)
	}
	owner, ok := d.Owner()
	if !ok {
		return nil
	}
	reg, ok := s.byID[owner]
	if !ok {
		return errors.Wrapf(ErrNotRegistered, "registry %d", owner)
	}
	return reg.Remove(d)
}

// Registries returns the registered registries in registration order.
func (s *Session) Registries() []*indicator.Registry {
	return slices.Clone(s.registries)
}

// Broadcasts returns the broadcast source descriptors in broadcast order.
func (s *Session) Broadcasts() []*indicator.Descriptor {
	out := make([]*indicator.Descriptor, len(s.broadcasts))
	for i, b := range s.broadcasts {
		out[i] = b.Source()
	}
	return out
}

func (s *Session) broadcastIndex(d *indicator.Descriptor) int {
	return slices.IndexFunc(s.broadcasts, func(b *indicator.Replicas) bool { return b.Source() == d })
}
