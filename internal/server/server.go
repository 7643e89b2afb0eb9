// Package server hosts the websocket endpoint that replicates the
// authoritative indicator set to clients.
package server

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/core/protocol"
	"golang.org/x/time/rate"
)

// Config holds server configuration
type Config struct {
	ListenAddr string
	Path       string
	MaxClients int

	// SendBuffer is the per-client frame queue. A client that falls this far
	// behind is disconnected and must reconnect for a fresh snapshot.
	SendBuffer  int
	FanOutLimit int

	ResyncRate  rate.Limit
	ResyncBurst int

	Connection protocol.Config
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:  "127.0.0.1:8080",
		Path:        "/indicators",
		MaxClients:  1024,
		SendBuffer:  256,
		FanOutLimit: 64,
		ResyncRate:  rate.Every(250 * time.Millisecond),
		ResyncBurst: 4,
		Connection:  protocol.DefaultConfig(),
	}
}

// Stats contains server statistics
type Stats struct {
	Clients int
	Running bool
}

type Server struct {
	config Config
	hub    *Hub
	http   *http.Server
	addr   net.Addr

	running int32
	closed  int32

	logger log.Log
}

func NewServer(config Config, source OpSource, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	logger = logger.With(log.String("component", "server"))
	s := &Server{
		config: config,
		hub:    NewHub(source, config, logger),
		logger: logger,
	}
	mux := http.NewServeMux()
	mux.Handle(config.Path, s.hub)
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.String("path", config.Path),
		log.Int("max_clients", config.MaxClients))
	return s
}

// Start listens and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return errors.Wrapf(err, "listen %s", s.config.ListenAddr)
	}
	s.addr = ln.Addr()
	s.logger.Info("Server listening", log.String("addr", s.addr.String()))

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped unexpectedly", log.Error(err))
		}
	}()
	return nil
}

// Addr is the bound listen address once started.
func (s *Server) Addr() net.Addr { return s.addr }

func (s *Server) Hub() *Hub { return s.hub }

// Stop disconnects every client and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	s.logger.Info("Stopping server")
	hubErr := s.hub.Close(ctx)
	if err := s.http.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	s.logger.Info("Server stopped")
	return hubErr
}

// Close stops the server if needed and marks it unusable.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&s.running) == 1 {
		return s.Stop(context.Background())
	}
	return nil
}

func (s *Server) GetStats() Stats {
	return Stats{
		Clients: s.hub.Clients(),
		Running: atomic.LoadInt32(&s.running) == 1,
	}
}
