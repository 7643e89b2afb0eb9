package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/core/replication"
)

func openTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := Open("", append([]Option{WithLogger(log.NewNop())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRegistry(player string, opts ...indicator.RegistryOption) *indicator.Registry {
	return indicator.NewRegistry(player, append([]indicator.RegistryOption{indicator.WithLogger(log.NewNop())}, opts...)...)
}

type recordingMulticaster struct {
	sent, revoked []*indicator.Descriptor
}

func (m *recordingMulticaster) Multicast(d *indicator.Descriptor) error {
	m.sent = append(m.sent, d)
	return nil
}

func (m *recordingMulticaster) Revoke(d *indicator.Descriptor) error {
	m.revoked = append(m.revoked, d)
	return nil
}

func TestOpenRejectsSecondSession(t *testing.T) {
	s, err := Open("match-1", WithLogger(log.NewNop()))
	require.NoError(t, err)

	_, err = Open("match-1", WithLogger(log.NewNop()))
	require.ErrorIs(t, err, ErrSessionExists)

	got, err := Get("match-1")
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, s.Close())
	_, err = Get("match-1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	again, err := Open("match-1", WithLogger(log.NewNop()))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestBroadcastIsIdempotent(t *testing.T) {
	s := openTestSession(t)
	p1 := newRegistry("p1", indicator.Local())
	p2 := newRegistry("p2", indicator.Local())
	require.NoError(t, s.RegisterRegistry(p1, true))
	require.NoError(t, s.RegisterRegistry(p2, true))

	d := indicator.New(indicator.Anchor{Target: 1})
	require.NoError(t, s.BroadcastIndicator(d))
	require.NoError(t, s.BroadcastIndicator(d))

	assert.Equal(t, 1, p1.Len())
	assert.Equal(t, 1, p2.Len())
	assert.Equal(t, []*indicator.Descriptor{d}, s.Broadcasts())
}

func TestBroadcastOrderingConverges(t *testing.T) {
	indicatorFirst := openTestSession(t)
	registryFirst := openTestSession(t)

	a := newRegistry("a", indicator.Local())
	b := newRegistry("b", indicator.Local())
	d1 := indicator.New(indicator.Anchor{Target: 1})
	d2 := indicator.New(indicator.Anchor{Target: 2})

	require.NoError(t, indicatorFirst.BroadcastIndicator(d1))
	require.NoError(t, indicatorFirst.RegisterRegistry(a, true))

	require.NoError(t, registryFirst.RegisterRegistry(b, true))
	require.NoError(t, registryFirst.BroadcastIndicator(d2))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}

func TestRemoteRegistriesSkipFanOut(t *testing.T) {
	s := openTestSession(t)
	remote := newRegistry("remote")
	require.NoError(t, s.RegisterRegistry(remote, true))
	require.NoError(t, s.BroadcastIndicator(indicator.New(indicator.Anchor{Target: 1})))
	assert.Zero(t, remote.Len())

	late := newRegistry("late", indicator.Local())
	require.NoError(t, s.RegisterRegistry(late, false))
	assert.Zero(t, late.Len())
	assert.Len(t, s.Registries(), 2)
}

func TestRegisterTwiceIsNoop(t *testing.T) {
	s := openTestSession(t)
	r := newRegistry("p1", indicator.Local())
	require.NoError(t, s.RegisterRegistry(r, true))
	require.NoError(t, s.RegisterRegistry(r, true))
	assert.Len(t, s.Registries(), 1)
	require.ErrorIs(t, s.RegisterRegistry(nil, true), indicator.ErrNilRegistry)
}

func TestUnregisterStripsBroadcastsWhileRegistered(t *testing.T) {
	s := openTestSession(t)
	r := newRegistry("p1", indicator.Local())
	require.NoError(t, s.RegisterRegistry(r, true))

	own := indicator.New(indicator.Anchor{Target: 7})
	_, err := r.Add(own)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.BroadcastIndicator(indicator.New(indicator.Anchor{Target: 1})))
	}
	require.Equal(t, 4, r.Len())

	removals := 0
	_, err = r.OnRemoved(func(*indicator.Descriptor) {
		assert.True(t, s.IsRegistered(r))
		removals++
	})
	require.NoError(t, err)

	require.NoError(t, s.UnregisterRegistry(r))
	assert.Equal(t, 3, removals)
	assert.Equal(t, []*indicator.Descriptor{own}, r.Indicators())
	assert.False(t, s.IsRegistered(r))
	assert.Empty(t, s.Registries())
}

func TestBroadcastWithAttachedSetAddsOncePerRegistry(t *testing.T) {
	set := replication.NewSet(replication.WithSetLogger(log.NewNop()))
	s := openTestSession(t, WithMulticaster(set))

	host := newRegistry("host", indicator.Local())
	set.AttachLocal(host)
	require.NoError(t, s.RegisterRegistry(host, true))

	d := indicator.New(indicator.Anchor{Target: 1})
	require.NoError(t, s.BroadcastIndicator(d))
	require.NoError(t, s.BroadcastIndicator(d))

	late := newRegistry("late", indicator.Local())
	set.AttachLocal(late)
	require.NoError(t, s.RegisterRegistry(late, true))

	assert.Equal(t, 1, host.Len())
	assert.Equal(t, 1, late.Len())
	assert.Equal(t, 1, set.Len())

	require.NoError(t, s.RemoveBroadcastIndicator(d))
	assert.Zero(t, host.Len())
	assert.Zero(t, late.Len())
	assert.Zero(t, set.Len())
}

func TestRemoveBroadcastIndicator(t *testing.T) {
	m := &recordingMulticaster{}
	s := openTestSession(t, WithMulticaster(m))
	p1 := newRegistry("p1", indicator.Local())
	p2 := newRegistry("p2", indicator.Local())
	require.NoError(t, s.RegisterRegistry(p1, true))
	require.NoError(t, s.RegisterRegistry(p2, true))

	d := indicator.New(indicator.Anchor{Target: 1})
	require.NoError(t, s.BroadcastIndicator(d))
	require.NoError(t, s.RemoveBroadcastIndicator(d))
	require.NoError(t, s.RemoveBroadcastIndicator(d))

	assert.Zero(t, p1.Len())
	assert.Zero(t, p2.Len())
	assert.Empty(t, s.Broadcasts())
	assert.Equal(t, []*indicator.Descriptor{d}, m.sent)
	assert.Equal(t, []*indicator.Descriptor{d}, m.revoked)
}

func TestUnregisterRoutesThroughOwner(t *testing.T) {
	s := openTestSession(t)
	r := newRegistry("p1", indicator.Local())
	require.NoError(t, s.RegisterRegistry(r, true))

	d := indicator.New(indicator.Anchor{Target: 1})
	_, err := r.Add(d)
	require.NoError(t, err)
	require.NoError(t, s.Unregister(d))
	assert.Zero(t, r.Len())

	stray := newRegistry("stray")
	e := indicator.New(indicator.Anchor{Target: 2})
	_, err = stray.Add(e)
	require.NoError(t, err)
	require.ErrorIs(t, s.Unregister(e), ErrNotRegistered)

	require.NoError(t, s.Unregister(indicator.New(indicator.Anchor{})))
	require.NoError(t, s.Unregister(nil))
}

func TestClosedSessionRejectsWork(t *testing.T) {
	s, err := Open("", WithLogger(log.NewNop()))
	require.NoError(t, err)
	r := newRegistry("p1", indicator.Local())
	require.NoError(t, s.RegisterRegistry(r, true))
	require.NoError(t, s.BroadcastIndicator(indicator.New(indicator.Anchor{Target: 1})))

	require.NoError(t, s.Close())
	assert.Zero(t, r.Len())
	require.ErrorIs(t, s.RegisterRegistry(r, true), ErrSessionClosed)
	require.ErrorIs(t, s.BroadcastIndicator(indicator.New(indicator.Anchor{})), ErrSessionClosed)
}
