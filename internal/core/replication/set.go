package replication

import (
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
)

// DefaultLogRetention is how many ops the server keeps for incremental catch-up.
const DefaultLogRetention = 4096

type setEntry struct {
	id       EntryID
	desc     *indicator.Descriptor
	replicas *indicator.Replicas
	// replicated is false for host-local entries that never reach the op log.
	replicated bool
	// local is false for Multicast entries; their host copies belong to the session.
	local bool
}

// Set is the server's authoritative indicator set. Mutations happen on the
// update thread; transports read it from their own goroutines.
type Set struct {
	mu        sync.RWMutex
	seq       uint64
	nextEntry EntryID
	entries   map[EntryID]*setEntry
	byDesc    map[*indicator.Descriptor]EntryID
	ops       []Op
	retention int

	local []*indicator.Registry

	subMu   sync.RWMutex
	subs    map[int]func(Op)
	nextSub int

	logger log.Log
}

type SetOption func(*Set)

func WithRetention(n int) SetOption {
	return func(s *Set) {
		if n > 0 {
			s.retention = n
		}
	}
}

func WithSetLogger(l log.Log) SetOption {
	return func(s *Set) { s.logger = l }
}

func NewSet(opts ...SetOption) *Set {
	s := &Set{
		entries:   make(map[EntryID]*setEntry),
		byDesc:    make(map[*indicator.Descriptor]EntryID),
		retention: DefaultLogRetention,
		subs:      make(map[int]func(Op)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Provide()
	}
	s.logger = s.logger.Named("replication")
	return s
}

// AttachLocal registers a host-local player registry. Existing entries are
// fanned out to it immediately, except those added through Multicast.
func (s *Set) AttachLocal(reg *indicator.Registry) {
	if reg == nil || slices.Contains(s.local, reg) {
		return
	}
	s.local = append(s.local, reg)
	s.mu.RLock()
	entries := s.sortedEntries()
	s.mu.RUnlock()
	for _, e := range entries {
		if e.local {
			s.fanOut(e, reg)
		}
	}
}

// DetachLocal removes every entry instance from reg and forgets it.
func (s *Set) DetachLocal(reg *indicator.Registry) {
	idx := slices.Index(s.local, reg)
	if idx < 0 {
		return
	}
	s.mu.RLock()
	entries := s.sortedEntries()
	s.mu.RUnlock()
	for _, e := range entries {
		if !e.local {
			continue
		}
		if err := e.replicas.RemoveFrom(reg); err != nil {
			s.logger.Warn("Local registry detach failed", log.Uint64("entry", uint64(e.id)), log.Error(err))
		}
	}
	s.local = slices.Delete(s.local, idx, idx+1)
}

// AddAuthoritative appends d to the set, fans it out to host-local registries
// and, unless d opts out of replication, records an add op.
func (s *Set) AddAuthoritative(d *indicator.Descriptor) (EntryID, error) {
	return s.add(d, true)
}

// Multicast replicates d to clients without touching host-local registries.
func (s *Set) Multicast(d *indicator.Descriptor) error {
	_, err := s.add(d, false)
	return err
}

// Revoke removes an entry added by Multicast.
func (s *Set) Revoke(d *indicator.Descriptor) error {
	return s.RemoveAuthoritative(d)
}

func (s *Set) add(d *indicator.Descriptor, fanOut bool) (EntryID, error) {
	if d == nil {
		return 0, indicator.ErrNilDescriptor
	}
	s.mu.Lock()
	if id, ok := s.byDesc[d]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.nextEntry++
	e := &setEntry{
		id:         s.nextEntry,
		desc:       d,
		replicas:   indicator.NewReplicas(d),
		replicated: d.ShouldReplicate,
		local:      fanOut,
	}
	s.entries[e.id] = e
	s.byDesc[d] = e.id
	var op *Op
	if e.replicated {
		state := d.State()
		op = s.appendLocked(Op{Entry: e.id, Kind: OpAdd, State: &state})
	}
	s.mu.Unlock()

	if fanOut {
		for _, reg := range s.local {
			s.fanOut(e, reg)
		}
	}
	if op != nil {
		s.publish(*op)
	}
	s.logger.Debug("Indicator entry added",
		log.Uint64("entry", uint64(e.id)),
		log.Uint64("indicator_id", uint64(d.ID())),
		log.Bool("replicated", e.replicated))
	return e.id, nil
}

// RemoveAuthoritative drops d. Host-local registries see the removal before
// the entry leaves the set.
func (s *Set) RemoveAuthoritative(d *indicator.Descriptor) error {
	if d == nil {
		return nil
	}
	s.mu.RLock()
	id, ok := s.byDesc[d]
	var e *setEntry
	if ok {
		e = s.entries[id]
	}
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := e.replicas.RemoveAll(); err != nil {
		s.logger.Warn("Local registry removal failed", log.Uint64("entry", uint64(id)), log.Error(err))
	}

	s.mu.Lock()
	delete(s.entries, id)
	delete(s.byDesc, d)
	var op *Op
	if e.replicated {
		op = s.appendLocked(Op{Entry: id, Kind: OpRemove})
	}
	s.mu.Unlock()

	if op != nil {
		s.publish(*op)
	}
	s.logger.Debug("Indicator entry removed", log.Uint64("entry", uint64(id)))
	return nil
}

// Touch publishes the current state of d after the caller mutated it.
func (s *Set) Touch(d *indicator.Descriptor) error {
	if d == nil {
		return indicator.ErrNilDescriptor
	}
	s.mu.Lock()
	id, ok := s.byDesc[d]
	if !ok {
		s.mu.Unlock()
		return errors.Wrapf(ErrNotReplicated, "indicator %d", d.ID())
	}
	e := s.entries[id]
	var op *Op
	if e.replicated {
		state := d.State()
		op = s.appendLocked(Op{Entry: id, Kind: OpUpdate, State: &state})
	}
	s.mu.Unlock()

	e.replicas.Sync()
	if op != nil {
		s.publish(*op)
	}
	return nil
}

// Since returns the ops after seq. It fails with ErrCompacted when the log no
// longer reaches back that far.
func (s *Set) Since(seq uint64) ([]Op, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if seq >= s.seq {
		return nil, nil
	}
	if len(s.ops) == 0 || s.ops[0].Seq > seq+1 {
		return nil, errors.Wrapf(ErrCompacted, "since %d, oldest %d", seq, s.oldestLocked())
	}
	start := int(seq + 1 - s.ops[0].Seq)
	return slices.Clone(s.ops[start:]), nil
}

func (s *Set) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Seq: s.seq, Entries: make([]SnapshotEntry, 0, len(s.entries))}
	for _, e := range s.sortedEntries() {
		if e.replicated {
			snap.Entries = append(snap.Entries, SnapshotEntry{Entry: e.id, State: e.desc.State()})
		}
	}
	return snap
}

// Checksum hashes the replicated entries. A converged mirror reports the same value.
func (s *Set) Checksum() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make(map[EntryID]indicator.State, len(s.entries))
	for id, e := range s.entries {
		if e.replicated {
			states[id] = e.desc.State()
		}
	}
	return checksum(states)
}

func (s *Set) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry returns the entry id of d.
func (s *Set) Entry(d *indicator.Descriptor) (EntryID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDesc[d]
	return id, ok
}

// Subscribe registers fn for every recorded op. fn runs on the mutating
// goroutine and must not block. The returned func cancels the subscription.
func (s *Set) Subscribe(fn func(Op)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Set) publish(op Op) {
	s.subMu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Op), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.RUnlock()
	for _, fn := range fns {
		fn(op)
	}
}

func (s *Set) appendLocked(op Op) *Op {
	s.seq++
	op.Seq = s.seq
	s.ops = append(s.ops, op)
	if over := len(s.ops) - s.retention; over > 0 {
		s.ops = slices.Delete(s.ops, 0, over)
	}
	return &op
}

func (s *Set) oldestLocked() uint64 {
	if len(s.ops) == 0 {
		return s.seq + 1
	}
	return s.ops[0].Seq
}

func (s *Set) sortedEntries() []*setEntry {
	out := make([]*setEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *setEntry) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return out
}

func (s *Set) fanOut(e *setEntry, reg *indicator.Registry) {
	if _, err := e.replicas.AddTo(reg); err != nil {
		s.logger.Error("Local fan-out failed",
			log.Uint64("entry", uint64(e.id)),
			log.Uint64("registry_id", uint64(reg.ID())),
			log.Error(err))
	}
}
