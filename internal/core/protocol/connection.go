package protocol

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type Config struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 4 << 20,
	}
}

// Stats are the connection's traffic counters.
type Stats struct {
	FramesSent     uint64
	FramesReceived uint64
	BytesSent      uint64
	BytesReceived  uint64
}

// Connection carries frames over one websocket. Sends are serialized; a
// single goroutine may receive.
type Connection struct {
	id          string
	conn        *websocket.Conn
	config      Config
	connectedAt time.Time
	closed      int32

	framesSent     uint64
	framesReceived uint64
	bytesSent      uint64
	bytesReceived  uint64

	writeMu sync.Mutex
}

func NewConnection(conn *websocket.Conn, config Config) *Connection {
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}
	return &Connection{
		id:          uuid.NewString(),
		conn:        conn,
		config:      config,
		connectedAt: time.Now(),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

func (c *Connection) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// Send writes one frame.
func (c *Connection) Send(f Frame) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	if c.config.MaxMessageSize > 0 && int64(len(data)) > c.config.MaxMessageSize {
		return errors.Wrapf(ErrFrameTooLarge, "%d > %d", len(data), c.config.MaxMessageSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err = c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write frame")
	}
	atomic.AddUint64(&c.framesSent, 1)
	atomic.AddUint64(&c.bytesSent, uint64(len(data)))
	return nil
}

// Receive blocks for the next frame.
func (c *Connection) Receive() (Frame, error) {
	if c.IsClosed() {
		return Frame{}, ErrConnectionClosed
	}
	if c.config.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
	kind, data, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, errors.Wrap(err, "read frame")
	}
	if kind != websocket.TextMessage {
		return Frame{}, ErrUnexpectedBinary
	}
	atomic.AddUint64(&c.framesReceived, 1)
	atomic.AddUint64(&c.bytesReceived, uint64(len(data)))
	return Unmarshal(data)
}

func (c *Connection) Close() error {
	return c.CloseWithReason("connection closed")
}

// CloseWithReason sends a close frame before closing the socket.
func (c *Connection) CloseWithReason(reason string) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Connection) Stats() Stats {
	return Stats{
		FramesSent:     atomic.LoadUint64(&c.framesSent),
		FramesReceived: atomic.LoadUint64(&c.framesReceived),
		BytesSent:      atomic.LoadUint64(&c.bytesSent),
		BytesReceived:  atomic.LoadUint64(&c.bytesReceived),
	}
}

// IsNormalClose reports whether err is a peer's orderly shutdown.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(errors.Cause(err), websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
