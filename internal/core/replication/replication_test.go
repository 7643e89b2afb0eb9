package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
)

func newTestSet(opts ...SetOption) *Set {
	return NewSet(append([]SetOption{WithSetLogger(log.NewNop())}, opts...)...)
}

func newTestMirror() *Mirror {
	return NewMirror(WithMirrorLogger(log.NewNop()))
}

func newRegistry(player string, opts ...indicator.RegistryOption) *indicator.Registry {
	return indicator.NewRegistry(player, append([]indicator.RegistryOption{indicator.WithLogger(log.NewNop())}, opts...)...)
}

func collect(s *Set) *[]Op {
	var ops []Op
	s.Subscribe(func(op Op) { ops = append(ops, op) })
	return &ops
}

func TestSetAssignsMonotonicSequence(t *testing.T) {
	s := newTestSet()
	ops := collect(s)

	a := indicator.New(indicator.Anchor{Target: 1})
	b := indicator.New(indicator.Anchor{Target: 2})
	ea, err := s.AddAuthoritative(a)
	require.NoError(t, err)
	eb, err := s.AddAuthoritative(b)
	require.NoError(t, err)
	require.NoError(t, s.RemoveAuthoritative(a))

	require.Len(t, *ops, 3)
	for i, op := range *ops {
		assert.Equal(t, uint64(i+1), op.Seq)
	}
	assert.Equal(t, OpAdd, (*ops)[0].Kind)
	assert.Equal(t, ea, (*ops)[0].Entry)
	assert.Equal(t, eb, (*ops)[1].Entry)
	assert.Equal(t, OpRemove, (*ops)[2].Kind)
	assert.Nil(t, (*ops)[2].State)
	assert.Equal(t, 1, s.Len())
}

func TestSetAddIsIdempotent(t *testing.T) {
	s := newTestSet()
	d := indicator.New(indicator.Anchor{Target: 1})
	e1, err := s.AddAuthoritative(d)
	require.NoError(t, err)
	e2, err := s.AddAuthoritative(d)
	require.NoError(t, err)
	assert.Equal(t, e1, e2)
	assert.Equal(t, uint64(1), s.Seq())

	require.NoError(t, s.RemoveAuthoritative(d))
	require.NoError(t, s.RemoveAuthoritative(d))
	assert.Equal(t, uint64(2), s.Seq())

	_, err = s.AddAuthoritative(nil)
	require.ErrorIs(t, err, indicator.ErrNilDescriptor)
}

func TestSetSkipsHostLocalEntries(t *testing.T) {
	s := newTestSet()
	host := newRegistry("host", indicator.Local())
	s.AttachLocal(host)

	d := indicator.New(indicator.Anchor{Target: 1}, indicator.WithReplication(false))
	_, err := s.AddAuthoritative(d)
	require.NoError(t, err)

	assert.Zero(t, s.Seq())
	assert.Empty(t, s.Snapshot().Entries)
	assert.True(t, host.Contains(d))
}

func TestSetLocalFanOut(t *testing.T) {
	s := newTestSet()
	host := newRegistry("host", indicator.Local())
	split := newRegistry("split", indicator.Local())
	s.AttachLocal(host)

	d := indicator.New(indicator.Anchor{Target: 1})
	_, err := s.AddAuthoritative(d)
	require.NoError(t, err)
	assert.True(t, host.Contains(d))

	s.AttachLocal(split)
	require.Equal(t, 1, split.Len())
	assert.NotSame(t, d, split.Indicators()[0])

	var seenInHost bool
	_, err = host.OnRemoved(func(*indicator.Descriptor) {
		_, seenInHost = s.Entry(d)
	})
	require.NoError(t, err)
	require.NoError(t, s.RemoveAuthoritative(d))
	assert.True(t, seenInHost, "local removal precedes entry removal")
	assert.Zero(t, host.Len())
	assert.Zero(t, split.Len())
}

func TestSetMulticastSkipsLocalRegistries(t *testing.T) {
	s := newTestSet()
	host := newRegistry("host", indicator.Local())
	s.AttachLocal(host)

	d := indicator.New(indicator.Anchor{Target: 1})
	require.NoError(t, s.Multicast(d))
	assert.Zero(t, host.Len())
	assert.Equal(t, uint64(1), s.Seq())

	require.NoError(t, s.Revoke(d))
	assert.Zero(t, s.Len())
}

func TestAttachLocalSkipsMulticastEntries(t *testing.T) {
	s := newTestSet()
	host := newRegistry("host", indicator.Local())
	s.AttachLocal(host)

	d := indicator.New(indicator.Anchor{Target: 1})
	require.NoError(t, s.Multicast(d))

	split := newRegistry("split", indicator.Local())
	s.AttachLocal(split)
	assert.Zero(t, split.Len())

	s.DetachLocal(split)
	require.NoError(t, s.Revoke(d))
	assert.Zero(t, host.Len())
}

func TestSinceAndCompaction(t *testing.T) {
	s := newTestSet(WithRetention(2))
	for i := 0; i < 4; i++ {
		_, err := s.AddAuthoritative(indicator.New(indicator.Anchor{Target: 1}))
		require.NoError(t, err)
	}

	ops, err := s.Since(2)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, uint64(3), ops[0].Seq)

	ops, err = s.Since(4)
	require.NoError(t, err)
	assert.Empty(t, ops)

	_, err = s.Since(1)
	require.ErrorIs(t, err, ErrCompacted)
}

func TestTouchPublishesUpdate(t *testing.T) {
	s := newTestSet()
	ops := collect(s)
	host := newRegistry("host", indicator.Local())
	split := newRegistry("split", indicator.Local())
	s.AttachLocal(host)
	s.AttachLocal(split)

	d := indicator.New(indicator.Anchor{Target: 1})
	_, err := s.AddAuthoritative(d)
	require.NoError(t, err)

	d.Priority = 7
	require.NoError(t, s.Touch(d))
	require.Len(t, *ops, 2)
	assert.Equal(t, OpUpdate, (*ops)[1].Kind)
	assert.Equal(t, 7, (*ops)[1].State.Priority)
	assert.Equal(t, 7, split.Indicators()[0].Priority)

	err = s.Touch(indicator.New(indicator.Anchor{}))
	require.ErrorIs(t, err, ErrNotReplicated)
}

func TestMirrorReplayIsIdempotent(t *testing.T) {
	s := newTestSet()
	m := newTestMirror()
	reg := newRegistry("client", indicator.Local())
	require.NoError(t, m.AttachRegistry(reg))

	d := indicator.New(indicator.Anchor{Target: 9}, indicator.WithPriority(3))
	_, err := s.AddAuthoritative(d)
	require.NoError(t, err)

	added := 0
	_, err = reg.OnAdded(func(*indicator.Descriptor) { added++ })
	require.NoError(t, err)

	ops, err := s.Since(0)
	require.NoError(t, err)
	require.NoError(t, m.ApplyBatch(ops))
	require.NoError(t, m.ApplyBatch(ops))

	assert.Equal(t, 1, added)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 3, reg.Indicators()[0].Priority)
	assert.Equal(t, s.Seq(), m.LastSeq())
}

func TestMirrorDetectsGap(t *testing.T) {
	m := newTestMirror()
	state := indicator.DefaultState()
	err := m.Apply(Op{Seq: 2, Entry: 1, Kind: OpAdd, State: &state})
	require.ErrorIs(t, err, ErrGap)
	assert.Zero(t, m.LastSeq())
	assert.Zero(t, m.Len())
}

func TestMirrorRejectsAddWithoutState(t *testing.T) {
	m := newTestMirror()
	err := m.Apply(Op{Seq: 1, Entry: 1, Kind: OpAdd})
	require.ErrorIs(t, err, ErrMissingState)
	assert.Zero(t, m.LastSeq())
}

func TestChecksumConvergesAcrossArrivalPaths(t *testing.T) {
	s := newTestSet()
	incremental := newTestMirror()
	ops := collect(s)

	a := indicator.New(indicator.Anchor{Target: 1, Socket: "head"}, indicator.WithPriority(2))
	b := indicator.New(indicator.Anchor{Target: 2}, indicator.WithClamp(true, true))
	c := indicator.New(indicator.Anchor{Target: 3}, indicator.WithWidgetClass("ping"))
	for _, d := range []*indicator.Descriptor{a, b, c} {
		_, err := s.AddAuthoritative(d)
		require.NoError(t, err)
	}
	require.NoError(t, s.RemoveAuthoritative(b))
	a.Visible = false
	require.NoError(t, s.Touch(a))

	require.NoError(t, incremental.ApplyBatch(*ops))
	assert.Equal(t, s.Checksum(), incremental.Checksum())

	late := newTestMirror()
	require.NoError(t, late.LoadSnapshot(s.Snapshot()))
	assert.Equal(t, s.Checksum(), late.Checksum())
	assert.Equal(t, s.Seq(), late.LastSeq())
	assert.Equal(t, 2, late.Len())
}

func TestLoadSnapshotReconciles(t *testing.T) {
	s := newTestSet()
	m := newTestMirror()
	reg := newRegistry("client", indicator.Local())
	require.NoError(t, m.AttachRegistry(reg))

	a := indicator.New(indicator.Anchor{Target: 1})
	b := indicator.New(indicator.Anchor{Target: 2})
	_, err := s.AddAuthoritative(a)
	require.NoError(t, err)
	_, err = s.AddAuthoritative(b)
	require.NoError(t, err)
	ops, err := s.Since(0)
	require.NoError(t, err)
	require.NoError(t, m.ApplyBatch(ops))
	require.Equal(t, 2, reg.Len())

	require.NoError(t, s.RemoveAuthoritative(a))
	b.Priority = 5
	require.NoError(t, s.Touch(b))

	require.NoError(t, m.LoadSnapshot(s.Snapshot()))
	require.Equal(t, 1, reg.Len())
	assert.Equal(t, 5, reg.Indicators()[0].Priority)
	assert.Equal(t, s.Checksum(), m.Checksum())
}

func TestMirrorFansOutToEveryRegistry(t *testing.T) {
	m := newTestMirror()
	p1 := newRegistry("p1", indicator.Local())
	p2 := newRegistry("p2", indicator.Local())
	require.NoError(t, m.AttachRegistry(p1))

	state := indicator.DefaultState()
	require.NoError(t, m.Apply(Op{Seq: 1, Entry: 1, Kind: OpAdd, State: &state}))
	require.NoError(t, m.AttachRegistry(p2))
	assert.Equal(t, 1, p1.Len())
	assert.Equal(t, 1, p2.Len())

	require.NoError(t, m.DetachRegistry(p2))
	assert.Zero(t, p2.Len())

	require.NoError(t, m.Apply(Op{Seq: 2, Entry: 1, Kind: OpRemove}))
	assert.Zero(t, p1.Len())
	assert.Zero(t, m.Len())
}

func TestKindText(t *testing.T) {
	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("update")))
	assert.Equal(t, OpUpdate, k)
	require.ErrorIs(t, k.UnmarshalText([]byte("nope")), ErrUnknownKind)
	_, err := Kind(0).MarshalText()
	require.ErrorIs(t, err, ErrUnknownKind)
}
