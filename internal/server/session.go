package server

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"runtime/debug"

	"github.com/dyluth/corkboard/pkg/protocol"
)

// session owns one client connection. All board state lives in the
// executor's board; the session keeps none of its own.
type session struct {
	id     string
	conn   net.Conn
	exec   *protocol.Executor
	logger *slog.Logger
}

func (s *session) run() {
	logger := s.logger.With("session_id", s.id, "remote", s.conn.RemoteAddr().String())
	defer s.conn.Close()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("session panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	logger.Info("client connected")

	r := bufio.NewReader(s.conn)
	w := bufio.NewWriter(s.conn)

	if err := writeLine(w, s.exec.Handshake().String()); err != nil {
		logger.Warn("failed to send handshake", "error", err)
		return
	}

	for {
		line, err := protocol.ReadLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Info("client disconnected")
			} else {
				logger.Warn("connection read failed", "error", err)
			}
			return
		}

		resp, disconnect := s.exec.ExecuteLine(line)
		if e, ok := resp.(*protocol.Error); ok {
			logger.Debug("request rejected", "request", line, "code", e.Code)
		} else {
			logger.Debug("request served", "request", line)
		}

		if err := protocol.WriteResponse(w, resp); err != nil {
			logger.Warn("connection write failed", "error", err)
			return
		}

		if disconnect {
			logger.Info("client disconnected", "reason", "DISCONNECT")
			return
		}
	}
}

func writeLine(w *bufio.Writer, line string) error {
	if _, err := w.WriteString(line + "\n"); err != nil {
		return err
	}
	return w.Flush()
}
