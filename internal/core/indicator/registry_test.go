package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/indicator/internal/core/observability/log"
)

func newTestRegistry(player string, opts ...RegistryOption) *Registry {
	return NewRegistry(player, append([]RegistryOption{WithLogger(log.NewNop())}, opts...)...)
}

func TestAddRemoveFiresEachEventOnce(t *testing.T) {
	r := newTestRegistry("p1")
	var added, removed []*Descriptor
	_, err := r.OnAdded(func(d *Descriptor) { added = append(added, d) })
	require.NoError(t, err)
	_, err = r.OnRemoved(func(d *Descriptor) {
		assert.True(t, r.Contains(d), "removed fires before erase")
		removed = append(removed, d)
	})
	require.NoError(t, err)

	a := New(Anchor{Target: 1})
	b := New(Anchor{Target: 2})
	_, err = r.Add(a)
	require.NoError(t, err)
	_, err = r.Add(b)
	require.NoError(t, err)
	require.NoError(t, r.Remove(a))

	assert.Equal(t, []*Descriptor{a, b}, added)
	assert.Equal(t, []*Descriptor{a}, removed)
	assert.Equal(t, []*Descriptor{b}, r.Indicators())
}

func TestAddRejectsForeignOwner(t *testing.T) {
	a := newTestRegistry("a")
	b := newTestRegistry("b")
	d := New(Anchor{Target: 1})
	_, err := a.Add(d)
	require.NoError(t, err)

	addedToB := 0
	_, _ = b.OnAdded(func(*Descriptor) { addedToB++ })
	_, err = b.Add(d)
	require.ErrorIs(t, err, ErrOwnershipViolation)

	owner, ok := d.Owner()
	require.True(t, ok)
	assert.Equal(t, a.ID(), owner)
	assert.Equal(t, []*Descriptor{d}, a.Indicators())
	assert.Zero(t, b.Len())
	assert.Zero(t, addedToB)
}

func TestAddTwiceKeepsSingleEntry(t *testing.T) {
	r := newTestRegistry("p1")
	d := New(Anchor{Target: 1})
	h1, err := r.Add(d)
	require.NoError(t, err)
	h2, err := r.Add(d)
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, r.Len())
}

func TestRemoveEdgeCases(t *testing.T) {
	a := newTestRegistry("a")
	b := newTestRegistry("b")
	require.NoError(t, a.Remove(nil))

	d := New(Anchor{Target: 1})
	_, err := a.Add(d)
	require.NoError(t, err)
	require.ErrorIs(t, b.Remove(d), ErrNotOwner)
	assert.Equal(t, 1, a.Len())

	require.NoError(t, a.Remove(d))
	require.NoError(t, a.Remove(d), "removing an absent owned descriptor is a no-op")

	_, err = a.Add(d)
	require.NoError(t, err, "re-adding to the same owner is allowed")
}

func TestLookupGoesStaleAfterRemove(t *testing.T) {
	r := newTestRegistry("p1")
	d := New(Anchor{Target: 1})
	h, err := r.Add(d)
	require.NoError(t, err)

	got, ok := r.Lookup(h)
	require.True(t, ok)
	assert.Same(t, d, got)

	require.NoError(t, r.Remove(d))
	_, ok = r.Lookup(h)
	assert.False(t, ok)

	e := New(Anchor{Target: 2})
	h2, err := r.Add(e)
	require.NoError(t, err)
	assert.Equal(t, h.Slot, h2.Slot, "slot is reused")
	assert.NotEqual(t, h.Gen, h2.Gen)

	_, ok = newTestRegistry("other").Lookup(h2)
	assert.False(t, ok)
}

func TestCancelledSubscriptionStopsDelivery(t *testing.T) {
	r := newTestRegistry("p1")
	calls := 0
	sub, err := r.OnAdded(func(*Descriptor) { calls++ })
	require.NoError(t, err)
	_, _ = r.Add(New(Anchor{}))
	require.NoError(t, sub.Cancel())
	_, _ = r.Add(New(Anchor{}))
	assert.Equal(t, 1, calls)
}

func TestReplicasCloneForSecondRegistry(t *testing.T) {
	a := newTestRegistry("a", Local())
	b := newTestRegistry("b", Local())
	src := New(Anchor{Target: 7}, WithPriority(3))
	reps := NewReplicas(src)

	da, err := reps.AddTo(a)
	require.NoError(t, err)
	db, err := reps.AddTo(b)
	require.NoError(t, err)
	again, err := reps.AddTo(b)
	require.NoError(t, err)

	assert.Same(t, src, da)
	assert.NotSame(t, src, db)
	assert.Same(t, db, again)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())

	src.Priority = 9
	reps.Sync()
	assert.Equal(t, 9, db.Priority)

	require.NoError(t, reps.RemoveAll())
	assert.Zero(t, a.Len())
	assert.Zero(t, b.Len())
	assert.Zero(t, reps.Len())
}
