package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/core/protocol"
	"github.com/zeusync/indicator/internal/core/replication"
	"github.com/zeusync/indicator/pkg/concurrent"
	"golang.org/x/time/rate"
)

// OpSource is the authoritative set the hub streams from.
type OpSource interface {
	Snapshot() replication.Snapshot
	Since(seq uint64) ([]replication.Op, error)
	Subscribe(fn func(replication.Op)) func()
}

// peer is one connected client. Frames are queued on send and written by the
// peer's own goroutine.
type peer struct {
	conn    *protocol.Connection
	send    chan protocol.Frame
	resync  *rate.Limiter
	lastSeq uint64
	logger  log.Log

	mu     sync.Mutex
	closed bool
}

func (p *peer) enqueue(f protocol.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return protocol.ErrConnectionClosed
	}
	select {
	case p.send <- f:
		return nil
	default:
		return errors.Wrapf(ErrSlowConsumer, "client %s", p.conn.ID())
	}
}

// Hub streams the replicated indicator set to websocket clients: a snapshot on
// connect, then every op as it is recorded.
type Hub struct {
	source   OpSource
	config   Config
	upgrader websocket.Upgrader
	logger   log.Log

	mu     sync.Mutex
	peers  map[string]*peer
	closed bool
	cancel func()
	wg     sync.WaitGroup
}

func NewHub(source OpSource, config Config, logger log.Log) *Hub {
	if logger == nil {
		logger = log.Provide()
	}
	if config.SendBuffer < 1 {
		config.SendBuffer = 1
	}
	h := &Hub{
		source: source,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Named("hub"),
		peers:  make(map[string]*peer),
	}
	h.cancel = source.Subscribe(h.broadcast)
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	full := h.config.MaxClients > 0 && len(h.peers) >= h.config.MaxClients
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if full {
		h.logger.Warn("Maximum clients reached, rejecting connection", log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}
	conn := protocol.NewConnection(ws, h.config.Connection)
	p := &peer{
		conn:   conn,
		send:   make(chan protocol.Frame, h.config.SendBuffer),
		resync: rate.NewLimiter(h.config.ResyncRate, h.config.ResyncBurst),
		logger: h.logger.With(log.String("client_id", conn.ID())),
	}

	if err = h.register(p); err != nil {
		_ = conn.CloseWithReason(err.Error())
		return
	}
	p.logger.Info("Client connected",
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Uint64("seq", p.lastSeq))

	h.wg.Add(2)
	go h.writeLoop(p)
	go h.readLoop(p)
}

// register snapshots the set and adds the peer under one lock so no op is
// both missed and not in the snapshot.
func (h *Hub) register(p *peer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	snap := h.source.Snapshot()
	p.lastSeq = snap.Seq
	if err := p.enqueue(protocol.SnapshotFrame(snap)); err != nil {
		return err
	}
	h.peers[p.conn.ID()] = p
	return nil
}

func (h *Hub) broadcast(op replication.Op) {
	h.mu.Lock()
	targets := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		if op.Seq > p.lastSeq {
			p.lastSeq = op.Seq
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()

	frame := protocol.OpsFrame(op)
	err := concurrent.Each(targets, h.config.FanOutLimit, func(p *peer) error {
		if err := p.enqueue(frame); err != nil {
			if errors.Is(err, ErrSlowConsumer) {
				p.logger.Warn("Dropping slow client", log.Uint64("seq", op.Seq))
				h.drop(p, "slow consumer")
			}
			return err
		}
		return nil
	})
	if err != nil {
		h.logger.Debug("Op fan-out incomplete", log.Uint64("seq", op.Seq), log.Error(err))
	}
}

func (h *Hub) writeLoop(p *peer) {
	defer h.wg.Done()
	for f := range p.send {
		if err := p.conn.Send(f); err != nil {
			if !p.conn.IsClosed() {
				p.logger.Warn("Failed to send frame", log.String("type", string(f.Type)), log.Error(err))
			}
			h.drop(p, "write failed")
			return
		}
	}
}

func (h *Hub) readLoop(p *peer) {
	defer h.wg.Done()
	defer h.drop(p, "read loop ended")
	for {
		f, err := p.conn.Receive()
		if err != nil {
			if !p.conn.IsClosed() && !protocol.IsNormalClose(err) {
				p.logger.Debug("Failed to receive frame", log.Error(err))
			}
			return
		}
		switch f.Type {
		case protocol.FrameResync:
			h.resync(p, f.Since)
		default:
			p.logger.Warn("Unexpected frame from client", log.String("type", string(f.Type)))
		}
	}
}

// resync answers with the ops after since, or a snapshot once they are gone.
func (h *Hub) resync(p *peer, since uint64) {
	if !p.resync.Allow() {
		p.logger.Warn("Resync throttled", log.Uint64("since", since))
		return
	}
	ops, err := h.source.Since(since)
	var frame protocol.Frame
	switch {
	case errors.Is(err, replication.ErrCompacted):
		frame = protocol.SnapshotFrame(h.source.Snapshot())
	case err != nil:
		p.logger.Error("Resync failed", log.Error(err))
		return
	default:
		frame = protocol.OpsFrame(ops...)
	}
	p.logger.Debug("Resync", log.Uint64("since", since), log.String("type", string(frame.Type)), log.Int("ops", len(ops)))
	if err = p.enqueue(frame); errors.Is(err, ErrSlowConsumer) {
		h.drop(p, "slow consumer")
	}
}

func (h *Hub) drop(p *peer, reason string) {
	h.mu.Lock()
	if _, ok := h.peers[p.conn.ID()]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.peers, p.conn.ID())
	h.mu.Unlock()

	p.mu.Lock()
	p.closed = true
	close(p.send)
	p.mu.Unlock()

	_ = p.conn.CloseWithReason(reason)
	stats := p.conn.Stats()
	p.logger.Info("Client disconnected",
		log.String("reason", reason),
		log.Duration("session", time.Since(p.conn.ConnectedAt())),
		log.String("sent", humanize.Bytes(stats.BytesSent)),
		log.String("received", humanize.Bytes(stats.BytesReceived)))
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close disconnects every client and waits for their goroutines.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	h.cancel()
	for _, p := range peers {
		h.drop(p, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
