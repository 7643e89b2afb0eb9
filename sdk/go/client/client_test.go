package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/core/protocol"
	"github.com/zeusync/indicator/internal/core/replication"
	"github.com/zeusync/indicator/internal/server"
)

func startServer(t *testing.T, set *replication.Set) string {
	t.Helper()
	hub := server.NewHub(set, server.DefaultServerConfig(), log.NewNop())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Close(context.Background())
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connect(t *testing.T, url string) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.URL = url
	c := NewClient(cfg, log.NewNop())
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// drainUntil pumps frames into m until cond holds, as an update loop would.
func drainUntil(t *testing.T, c *Client, m *replication.Mirror, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if _, err := c.Drain(m); err != nil {
			return false
		}
		return cond()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestClientMirrorsServerSet(t *testing.T) {
	set := replication.NewSet(replication.WithSetLogger(log.NewNop()))
	a := indicator.New(indicator.Anchor{Target: 1}, indicator.WithPriority(1))
	_, err := set.AddAuthoritative(a)
	require.NoError(t, err)

	c := connect(t, startServer(t, set))
	m := replication.NewMirror(replication.WithMirrorLogger(log.NewNop()))
	reg := indicator.NewRegistry("local", indicator.Local(), indicator.WithLogger(log.NewNop()))
	require.NoError(t, m.AttachRegistry(reg))

	drainUntil(t, c, m, func() bool { return m.Len() == 1 })
	assert.Equal(t, 1, reg.Len())

	b := indicator.New(indicator.Anchor{Target: 2})
	_, err = set.AddAuthoritative(b)
	require.NoError(t, err)
	require.NoError(t, set.RemoveAuthoritative(a))
	b.Priority = 9
	require.NoError(t, set.Touch(b))

	drainUntil(t, c, m, func() bool { return m.LastSeq() == set.Seq() })
	assert.Equal(t, set.Checksum(), m.Checksum())
	require.Equal(t, 1, reg.Len())
	assert.Equal(t, 9, reg.Indicators()[0].Priority)
	assert.Positive(t, c.Stats().BytesReceived)
}

func TestClientRecoversFromGap(t *testing.T) {
	set := replication.NewSet(replication.WithSetLogger(log.NewNop()))
	for i := 0; i < 3; i++ {
		_, err := set.AddAuthoritative(indicator.New(indicator.Anchor{Target: 1}))
		require.NoError(t, err)
	}
	c := connect(t, startServer(t, set))
	m := replication.NewMirror(replication.WithMirrorLogger(log.NewNop()))

	// Skip the snapshot so the next op arrives with a gap.
	f := <-c.Frames()
	require.Equal(t, protocol.FrameSnapshot, f.Type)

	_, err := set.AddAuthoritative(indicator.New(indicator.Anchor{Target: 2}))
	require.NoError(t, err)

	drainUntil(t, c, m, func() bool { return m.LastSeq() == set.Seq() })
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, set.Checksum(), m.Checksum())
}

func TestClientLifecycleErrors(t *testing.T) {
	c := NewClient(DefaultClientConfig(), log.NewNop())
	require.ErrorIs(t, c.RequestResync(0), ErrNotConnected)
	_, err := c.Drain(nil)
	require.ErrorIs(t, err, ErrNilMirror)

	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)
}
