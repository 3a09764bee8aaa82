// Package server accepts line-protocol connections and serves each one in
// its own goroutine against a shared board.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/protocol"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
var ErrServerClosed = errors.New("server closed")

// Stats reports connection counters.
type Stats struct {
	ActiveConnections int64  `json:"active_connections"`
	TotalConnections  uint64 `json:"total_connections"`
}

// Server serves the corkboard protocol. Sessions share nothing but the board.
type Server struct {
	board  *board.Board
	exec   *protocol.Executor
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	sessions map[*session]struct{}
	shutdown bool
	wg       sync.WaitGroup

	active atomic.Int64
	total  atomic.Uint64
}

// New creates a server for b. A nil logger discards output.
func New(b *board.Board, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		board:    b,
		exec:     protocol.NewExecutor(b),
		logger:   logger,
		sessions: make(map[*session]struct{}),
	}
}

// Board returns the shared board.
func (s *Server) Board() *board.Board {
	return s.board
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called. It always
// closes ln before returning.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	if s.listener != nil {
		s.mu.Unlock()
		ln.Close()
		return fmt.Errorf("server is already serving on %s", s.listener.Addr())
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("server listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("failed to accept connection: %w", err)
			}
			// Running out of descriptors or an aborted handshake must not
			// take the server down.
			backoff = nextBackoff(backoff)
			s.logger.Warn("accept failed, retrying", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		sess := &session{
			id:     uuid.New().String(),
			conn:   conn,
			exec:   s.exec,
			logger: s.logger,
		}
		if !s.track(sess) {
			conn.Close()
			return ErrServerClosed
		}

		go func() {
			defer s.untrack(sess)
			sess.run()
		}()
	}
}

// Addr returns the listener address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting, closes every open connection, and waits for
// their sessions to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	var err error
	if s.listener != nil {
		if closeErr := s.listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = fmt.Errorf("failed to close listener: %w", closeErr)
		}
	}
	for sess := range s.sessions {
		sess.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown interrupted with %d sessions open: %w", s.active.Load(), ctx.Err())
	}
}

// Stats returns the current connection counters.
func (s *Server) Stats() Stats {
	return Stats{
		ActiveConnections: s.active.Load(),
		TotalConnections:  s.total.Load(),
	}
}

func (s *Server) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func (s *Server) track(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	s.active.Add(1)
	s.total.Add(1)
	return true
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.active.Add(-1)
	s.wg.Done()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		return time.Second
	}
	return d
}
