package replication

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
)

type mirrorEntry struct {
	desc     *indicator.Descriptor
	replicas *indicator.Replicas
}

// Mirror is a client's copy of the authoritative set. Every attached registry
// receives exactly one instance per live entry. It runs on the update thread.
type Mirror struct {
	lastSeq    uint64
	entries    map[EntryID]*mirrorEntry
	registries []*indicator.Registry
	logger     log.Log
}

type MirrorOption func(*Mirror)

func WithMirrorLogger(l log.Log) MirrorOption {
	return func(m *Mirror) { m.logger = l }
}

func NewMirror(opts ...MirrorOption) *Mirror {
	m := &Mirror{entries: make(map[EntryID]*mirrorEntry)}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.Provide()
	}
	m.logger = m.logger.Named("mirror")
	return m
}

func (m *Mirror) LastSeq() uint64 { return m.lastSeq }

func (m *Mirror) Len() int { return len(m.entries) }

// Descriptor returns the mirror's source descriptor for an entry.
func (m *Mirror) Descriptor(id EntryID) (*indicator.Descriptor, bool) {
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.desc, true
}

// AttachRegistry fans every live entry out to reg and keeps it in sync.
func (m *Mirror) AttachRegistry(reg *indicator.Registry) error {
	if reg == nil {
		return indicator.ErrNilRegistry
	}
	if slices.Contains(m.registries, reg) {
		return nil
	}
	m.registries = append(m.registries, reg)
	for _, id := range m.sortedIDs() {
		if _, err := m.entries[id].replicas.AddTo(reg); err != nil {
			return errors.Wrapf(err, "entry %d", id)
		}
	}
	return nil
}

// DetachRegistry removes every mirrored instance from reg.
func (m *Mirror) DetachRegistry(reg *indicator.Registry) error {
	idx := slices.Index(m.registries, reg)
	if idx < 0 {
		return nil
	}
	m.registries = slices.Delete(m.registries, idx, idx+1)
	for _, id := range m.sortedIDs() {
		if err := m.entries[id].replicas.RemoveFrom(reg); err != nil {
			return errors.Wrapf(err, "entry %d", id)
		}
	}
	return nil
}

// Apply applies one op. Ops at or below LastSeq are replays and are ignored;
// an op that skips a sequence number fails with ErrGap and changes nothing.
func (m *Mirror) Apply(op Op) error {
	if op.Seq <= m.lastSeq {
		return nil
	}
	if op.Seq != m.lastSeq+1 {
		return errors.Wrapf(ErrGap, "have %d, got %d", m.lastSeq, op.Seq)
	}

	var err error
	switch op.Kind {
	case OpAdd:
		err = m.add(op)
	case OpUpdate:
		err = m.update(op)
	case OpRemove:
		err = m.remove(op.Entry)
	default:
		err = errors.Wrapf(ErrUnknownKind, "%d", op.Kind)
	}
	if err != nil {
		return errors.Wrapf(err, "op %d", op.Seq)
	}
	m.lastSeq = op.Seq
	return nil
}

// ApplyBatch applies ops in order and stops at the first failure.
func (m *Mirror) ApplyBatch(ops []Op) error {
	for _, op := range ops {
		if err := m.Apply(op); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot reconciles the mirror with snap: entries missing from snap are
// removed, new ones are added and surviving ones take the snapshot's state.
func (m *Mirror) LoadSnapshot(snap Snapshot) error {
	live := make(map[EntryID]indicator.State, len(snap.Entries))
	for _, e := range snap.Entries {
		live[e.Entry] = e.State
	}
	for _, id := range m.sortedIDs() {
		if _, ok := live[id]; !ok {
			if err := m.remove(id); err != nil {
				return err
			}
		}
	}
	for _, e := range snap.Entries {
		state := e.State
		if cur, ok := m.entries[e.Entry]; ok {
			cur.desc.Apply(state)
			cur.replicas.Sync()
			continue
		}
		if err := m.add(Op{Entry: e.Entry, Kind: OpAdd, State: &state}); err != nil {
			return err
		}
	}
	m.lastSeq = snap.Seq
	m.logger.Debug("Snapshot loaded", log.Uint64("seq", snap.Seq), log.Int("entries", len(snap.Entries)))
	return nil
}

func (m *Mirror) Checksum() uint64 {
	states := make(map[EntryID]indicator.State, len(m.entries))
	for id, e := range m.entries {
		states[id] = e.desc.State()
	}
	return checksum(states)
}

func (m *Mirror) add(op Op) error {
	if op.State == nil {
		return errors.Wrapf(ErrMissingState, "entry %d", op.Entry)
	}
	if cur, ok := m.entries[op.Entry]; ok {
		cur.desc.Apply(*op.State)
		cur.replicas.Sync()
		return nil
	}
	e := &mirrorEntry{desc: indicator.FromState(*op.State)}
	e.replicas = indicator.NewReplicas(e.desc)
	m.entries[op.Entry] = e
	for _, reg := range m.registries {
		if _, err := e.replicas.AddTo(reg); err != nil {
			return errors.Wrapf(err, "entry %d", op.Entry)
		}
	}
	return nil
}

func (m *Mirror) update(op Op) error {
	if op.State == nil {
		return errors.Wrapf(ErrMissingState, "entry %d", op.Entry)
	}
	e, ok := m.entries[op.Entry]
	if !ok {
		return m.add(op)
	}
	e.desc.Apply(*op.State)
	e.replicas.Sync()
	return nil
}

// remove takes the entry out of every registry before dropping it.
func (m *Mirror) remove(id EntryID) error {
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	err := e.replicas.RemoveAll()
	delete(m.entries, id)
	if err != nil {
		return errors.Wrapf(err, "entry %d", id)
	}
	return nil
}

func (m *Mirror) sortedIDs() []EntryID {
	ids := make([]EntryID, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
