// Package server runs the chat line protocol: the accept loop, one handler
// goroutine per connection, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"linechat/internal/audit"
	"linechat/internal/config"
	"linechat/internal/hub"
	"linechat/pkg/chat"

	"golang.org/x/time/rate"
)

// Checker verifies a username and password. auth.Store implements it; the
// returned error only reaches the log, never the wire.
type Checker interface {
	Check(username, password string) error
}

type Server struct {
	cfg    config.Config
	hub    *hub.Hub
	auth   Checker
	audit  audit.Recorder
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	listener net.Listener
	clients  map[*Client]struct{}
	closing  bool
	wg       sync.WaitGroup
}

func New(cfg config.Config, h *hub.Hub, checker Checker, recorder audit.Recorder, logger *slog.Logger) *Server {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		hub:     h,
		auth:    checker,
		audit:   recorder,
		logger:  logger,
		now:     time.Now,
		clients: make(map[*Client]struct{}),
	}
}

// Listen binds the chat listener on the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr is the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or Close is called. It
// never delivers messages itself; every connection gets its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server: Serve called before Listen")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()

	s.logger.Info("chat server listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(backoff*2, time.Second)
			}
			s.logger.Warn("accept failed", "err", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		go s.ServeConn(NewTCPTransport(conn, s.cfg.MaxLineLength, s.cfg.WriteTimeout, s.cfg.IdleTimeout))
	}
}

// ServeConn runs the protocol on t until the peer goes away. It blocks, so
// transports with their own accept path (websocket) call it from the
// goroutine that owns the connection.
func (s *Server) ServeConn(t Transport) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RateLimit.PerSecond), s.cfg.RateLimit.Burst)
	c, err := NewClient(t, limiter)
	if err != nil {
		s.logger.Error("creating client", "remote", t.RemoteAddr(), "err", err)
		t.Close()
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		c.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		s.wg.Done()
	}()

	newHandler(s, c).run()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Close stops accepting, tells every live connection the server is going
// away, closes them and waits for their handlers to finish cleanup.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closing = true
	ln := s.listener
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, c := range clients {
		c.Send(chat.MsgShutdown)
		c.Close()
	}
	s.wg.Wait()
	s.logger.Info("chat server stopped", "closed_connections", len(clients))
	return err
}
