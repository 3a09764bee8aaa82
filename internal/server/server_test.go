package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/protocol"
)

// startServer runs a server on a loopback port and shuts it down on cleanup.
func startServer(t *testing.T, colours ...string) (*Server, string) {
	t.Helper()
	if len(colours) == 0 {
		colours = []string{"red"}
	}
	b, err := board.New(board.Config{Width: 200, Height: 100, NoteWidth: 20, NoteHeight: 10, Colours: colours})
	require.NoError(t, err)

	srv := New(b, logging.Nop())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		assert.ErrorIs(t, <-errCh, ErrServerClosed)
	})

	return srv, ln.Addr().String()
}

type testConn struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

// dial connects and consumes the HELLO line.
func dial(t *testing.T, addr string) (*testConn, string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	c := &testConn{t: t, conn: conn, r: bufio.NewReader(conn)}
	return c, c.readLine()
}

func (c *testConn) readLine() string {
	c.t.Helper()
	line, err := protocol.ReadLine(c.r)
	require.NoError(c.t, err)
	return line
}

// do sends one request and returns the full response: one line, or the
// OK <n> header plus n data lines and END.
func (c *testConn) do(request string) []string {
	c.t.Helper()
	_, err := fmt.Fprintf(c.conn, "%s\n", request)
	require.NoError(c.t, err)

	first := c.readLine()
	out := []string{first}
	if n, ok := listCount(first); ok {
		for i := 0; i < n+1; i++ {
			out = append(out, c.readLine())
		}
	}
	return out
}

func listCount(line string) (int, bool) {
	rest, ok := strings.CutPrefix(line, "OK ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

func TestServer_Handshake(t *testing.T) {
	_, addr := startServer(t, "red", "white")
	_, hello := dial(t, addr)
	assert.Equal(t, "HELLO 200 100 20 10 COLOURS 2 red white", hello)
}

func TestServer_EndToEndScript(t *testing.T) {
	_, addr := startServer(t)
	c, _ := dial(t, addr)

	steps := []struct {
		request string
		want    []string
	}{
		{"POST 0 0 red hi", []string{"OK NOTE 1"}},
		{"PIN 5 5", []string{"OK"}},
		{"GET", []string{"OK 1", "NOTE 1 0 0 red PINNED hi", "END"}},
		{"SHAKE", []string{"OK"}},
		{"GET", []string{"OK 1", "NOTE 1 0 0 red PINNED hi", "END"}},
		{"UNPIN 5 5", []string{"OK"}},
		{"SHAKE", []string{"OK"}},
		{"GET", []string{"OK 0", "END"}},
	}

	for _, step := range steps {
		assert.Equal(t, step.want, c.do(step.request), "request %q", step.request)
	}
}

func TestServer_ErrorsKeepConnectionOpen(t *testing.T) {
	_, addr := startServer(t)
	c, _ := dial(t, addr)

	assert.Equal(t, []string{"ERROR INVALID_FORMAT Unknown command: JUMP"}, c.do("jump"))
	assert.Equal(t, []string{"ERROR INVALID_FORMAT Empty command."}, c.do(""))
	assert.Equal(t, []string{"ERROR INVALID_INT 'x' is not a valid integer."}, c.do("PIN x 1"))
	assert.Equal(t, []string{"ERROR COLOUR_NOT_SUPPORTED Colour 'blue' is not supported."}, c.do("POST 0 0 blue"))
	assert.Equal(t, []string{"ERROR INVALID_FORMAT DISCONNECT takes no arguments."}, c.do("DISCONNECT now"))

	assert.Equal(t, []string{"OK NOTE 1"}, c.do("POST 0 0 red"))
}

func TestServer_CRLFRequests(t *testing.T) {
	_, addr := startServer(t)
	c, _ := dial(t, addr)

	assert.Equal(t, []string{"OK NOTE 1"}, c.do("POST 0 0 red hello\r"))
	assert.Equal(t, []string{"OK 1", "NOTE 1 0 0 red UNPINNED hello", "END"}, c.do("GET"))
}

func TestServer_Disconnect(t *testing.T) {
	srv, addr := startServer(t)
	c, _ := dial(t, addr)

	assert.Equal(t, []string{"OK"}, c.do("DISCONNECT"))

	_, err := c.r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)

	require.Eventually(t, func() bool { return srv.Stats().ActiveConnections == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), srv.Stats().TotalConnections)
}

func TestServer_SharedBoardAcrossSessions(t *testing.T) {
	_, addr := startServer(t)
	a, _ := dial(t, addr)
	b, _ := dial(t, addr)

	assert.Equal(t, []string{"OK NOTE 1"}, a.do("POST 0 0 red from a"))
	assert.Equal(t, []string{"OK"}, b.do("PIN 1 1"))
	assert.Equal(t, []string{"OK 1", "NOTE 1 0 0 red PINNED from a", "END"}, a.do("GET"))
	assert.Equal(t, []string{"OK 1", "PIN 1 1", "END"}, a.do("GET PINS"))
}

func TestServer_DroppedClientDoesNotAffectOthers(t *testing.T) {
	_, addr := startServer(t)
	survivor, _ := dial(t, addr)
	dropped, _ := dial(t, addr)

	// Abandon a request mid-line.
	_, err := dropped.conn.Write([]byte("POST 0 0 re"))
	require.NoError(t, err)
	require.NoError(t, dropped.conn.Close())

	assert.Equal(t, []string{"OK NOTE 1"}, survivor.do("POST 0 0 red"))
}

func TestServer_ConcurrentClients(t *testing.T) {
	srv, addr := startServer(t)

	const clients = 10
	const perClient = 10

	var wg sync.WaitGroup
	ids := make(chan int, clients*perClient)
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()
			r := bufio.NewReader(conn)
			if _, err := protocol.ReadLine(r); !assert.NoError(t, err) {
				return
			}

			for i := 0; i < perClient; i++ {
				// Distinct corners: column per client, row per request.
				fmt.Fprintf(conn, "POST %d %d red c%d-%d\n", c*18, i*9, c, i)
				line, err := protocol.ReadLine(r)
				if !assert.NoError(t, err) {
					return
				}
				id, err := strconv.Atoi(strings.TrimPrefix(line, "OK NOTE "))
				if assert.NoError(t, err, "response %q", line) {
					ids <- id
				}
			}
			fmt.Fprintf(conn, "DISCONNECT\n")
			protocol.ReadLine(r)
		}(c)
	}
	wg.Wait()
	close(ids)

	var got []int
	for id := range ids {
		got = append(got, id)
	}
	sort.Ints(got)

	want := make([]int, clients*perClient)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, got, "ids must be unique and gap-free")
	assert.Equal(t, clients*perClient, srv.Board().Stats().Notes)
}

func TestServer_ShutdownClosesSessions(t *testing.T) {
	b, err := board.New(board.Config{Width: 10, Height: 10, NoteWidth: 1, NoteHeight: 1, Colours: []string{"red"}})
	require.NoError(t, err)
	srv := New(b, logging.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	c, _ := dial(t, ln.Addr().String())
	require.Eventually(t, func() bool { return srv.Stats().ActiveConnections == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.True(t, errors.Is(<-errCh, ErrServerClosed))

	_, err = c.r.ReadString('\n')
	assert.Error(t, err)
	assert.Equal(t, int64(0), srv.Stats().ActiveConnections)

	// Serving again after shutdown is refused.
	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(ln2), ErrServerClosed)
}

func TestServer_Addr(t *testing.T) {
	b, err := board.New(board.Config{Width: 10, Height: 10, NoteWidth: 1, NoteHeight: 1, Colours: []string{"red"}})
	require.NoError(t, err)
	srv := New(b, logging.Nop())
	assert.Nil(t, srv.Addr())

	started, addr := startServer(t)
	require.Eventually(t, func() bool { return started.Addr() != nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, addr, started.Addr().String())
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Millisecond, nextBackoff(0))
	assert.Equal(t, 10*time.Millisecond, nextBackoff(5*time.Millisecond))
	assert.Equal(t, time.Second, nextBackoff(900*time.Millisecond))
}

// flakyListener fails the first failures calls to Accept with EMFILE.
type flakyListener struct {
	net.Listener
	failures atomic.Int32
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if l.failures.Add(-1) >= 0 {
		return nil, &net.OpError{Op: "accept", Net: "tcp", Addr: l.Addr(), Err: os.NewSyscallError("accept", syscall.EMFILE)}
	}
	return l.Listener.Accept()
}

func TestServer_AcceptErrorsAreRetried(t *testing.T) {
	b, err := board.New(board.Config{Width: 10, Height: 10, NoteWidth: 1, NoteHeight: 1, Colours: []string{"red"}})
	require.NoError(t, err)
	srv := New(b, logging.Nop())

	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln := &flakyListener{Listener: inner}
	ln.failures.Store(3)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	c, hello := dial(t, ln.Addr().String())
	assert.True(t, strings.HasPrefix(hello, "HELLO "), hello)
	assert.Equal(t, []string{"OK NOTE 1"}, c.do("POST 0 0 red still here"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.ErrorIs(t, <-errCh, ErrServerClosed)
}

func TestServer_ListenerClosedUnderneath(t *testing.T) {
	b, err := board.New(board.Config{Width: 10, Height: 10, NoteWidth: 1, NoteHeight: 1, Colours: []string{"red"}})
	require.NoError(t, err)
	srv := New(b, logging.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 10*time.Millisecond)
	require.NoError(t, ln.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, net.ErrClosed)
		assert.NotErrorIs(t, err, ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after its listener was closed")
	}
}

func TestNew_NilLogger(t *testing.T) {
	b, err := board.New(board.Config{Width: 10, Height: 10, NoteWidth: 1, NoteHeight: 1, Colours: []string{"red"}})
	require.NoError(t, err)
	srv := New(b, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	c, _ := dial(t, ln.Addr().String())
	assert.Equal(t, []string{"OK"}, c.do("DISCONNECT"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.ErrorIs(t, <-errCh, ErrServerClosed)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServer_SessionLogAttributes(t *testing.T) {
	b, err := board.New(board.Config{Width: 10, Height: 10, NoteWidth: 1, NoteHeight: 1, Colours: []string{"red"}})
	require.NoError(t, err)
	out := &lockedBuffer{}
	srv := New(b, logging.New(logging.Config{Level: slog.LevelInfo, Format: logging.FormatJSON, Output: out}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	c, _ := dial(t, ln.Addr().String())
	assert.Equal(t, []string{"OK"}, c.do("DISCONNECT"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.ErrorIs(t, <-errCh, ErrServerClosed)

	var connected map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if entry["msg"] == "client connected" {
			connected = entry
		}
	}
	require.NotNil(t, connected, "no client connected entry in %s", out.String())
	assert.NotEmpty(t, connected["session_id"])
	assert.NotContains(t, connected, "session")
	assert.NotEmpty(t, connected["remote"])
}
