// Package client connects to an indicator server and feeds the replicated
// set into a local replication.Mirror.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/core/protocol"
	"github.com/zeusync/indicator/internal/core/replication"
	"golang.org/x/time/rate"
)

// Config holds configuration for the client
type Config struct {
	URL            string
	ConnectTimeout time.Duration
	FrameBuffer    int

	// ResyncRate bounds how often a client that detected a gap asks the
	// server for the missing ops.
	ResyncRate  rate.Limit
	ResyncBurst int

	Connection protocol.Config
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		URL:            "ws://localhost:8080/indicators",
		ConnectTimeout: 10 * time.Second,
		FrameBuffer:    256,
		ResyncRate:     rate.Every(500 * time.Millisecond),
		ResyncBurst:    1,
		Connection:     protocol.DefaultConfig(),
	}
}

// Client receives frames on its own goroutine. The update thread drains them
// with Drain; nothing here touches registries directly.
type Client struct {
	config Config
	conn   *protocol.Connection
	frames chan protocol.Frame
	resync *rate.Limiter

	connected int32
	closed    int32
	done      chan struct{}
	err       error
	errMu     sync.Mutex

	logger log.Log
}

func NewClient(config Config, logger log.Log) *Client {
	if logger == nil {
		logger = log.Provide()
	}
	if config.FrameBuffer < 1 {
		config.FrameBuffer = 1
	}
	return &Client{
		config: config,
		frames: make(chan protocol.Frame, config.FrameBuffer),
		resync: rate.NewLimiter(config.ResyncRate, config.ResyncBurst),
		done:   make(chan struct{}),
		logger: logger.With(log.String("component", "client")),
	}
}

// Connect dials the server and starts receiving.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		return errors.Wrapf(err, "dial %s", c.config.URL)
	}
	c.conn = protocol.NewConnection(ws, c.config.Connection)
	c.logger = c.logger.With(log.String("client_id", c.conn.ID()))
	c.logger.Info("Connected", log.String("url", c.config.URL))

	go c.receive()
	return nil
}

func (c *Client) receive() {
	defer close(c.frames)
	for {
		f, err := c.conn.Receive()
		if err != nil {
			if !c.conn.IsClosed() && !protocol.IsNormalClose(err) {
				c.logger.Warn("Receive failed", log.Error(err))
				c.setErr(err)
			}
			atomic.StoreInt32(&c.connected, 0)
			return
		}
		select {
		case c.frames <- f:
		case <-c.done:
			return
		}
	}
}

// Frames delivers every frame received from the server. It is closed when
// the connection ends.
func (c *Client) Frames() <-chan protocol.Frame { return c.frames }

// Drain applies every buffered frame to m without blocking and returns the
// number of frames applied. A gap triggers a throttled resync request.
func (c *Client) Drain(m *replication.Mirror) (int, error) {
	if m == nil {
		return 0, ErrNilMirror
	}
	applied := 0
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				return applied, c.Err()
			}
			if err := c.Apply(m, f); err != nil {
				return applied, err
			}
			applied++
		default:
			return applied, nil
		}
	}
}

// Apply applies one frame to m.
func (c *Client) Apply(m *replication.Mirror, f protocol.Frame) error {
	switch f.Type {
	case protocol.FrameSnapshot:
		return m.LoadSnapshot(*f.Snapshot)
	case protocol.FrameOps:
		err := m.ApplyBatch(f.Ops)
		if errors.Is(err, replication.ErrGap) {
			c.logger.Debug("Gap detected, requesting resync", log.Uint64("have", m.LastSeq()))
			if rerr := c.RequestResync(m.LastSeq()); rerr != nil && !errors.Is(rerr, ErrResyncThrottled) {
				return rerr
			}
			return nil
		}
		return err
	default:
		return errors.Wrapf(protocol.ErrUnknownFrame, "%q", f.Type)
	}
}

// RequestResync asks for every op after since.
func (c *Client) RequestResync(since uint64) error {
	if atomic.LoadInt32(&c.connected) == 0 || c.conn == nil {
		return ErrNotConnected
	}
	if !c.resync.Allow() {
		return ErrResyncThrottled
	}
	return c.conn.Send(protocol.ResyncFrame(since))
}

func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
}

func (c *Client) Stats() protocol.Stats {
	if c.conn == nil {
		return protocol.Stats{}
	}
	return c.conn.Stats()
}

func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	close(c.done)
	atomic.StoreInt32(&c.connected, 0)
	if c.conn == nil {
		return nil
	}
	c.logger.Info("Disconnecting")
	return c.conn.Close()
}
