// Package testutil starts in-process corkboard servers for tests in other
// packages.
package testutil

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/corkboard/internal/eventbus"
	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/internal/server"
	"github.com/dyluth/corkboard/pkg/board"
)

// Environment is a running server on a loopback port, optionally publishing
// board events to an in-memory Redis.
type Environment struct {
	T         *testing.T
	Board     *board.Board
	Server    *server.Server
	Addr      string
	Redis     *miniredis.Miniredis // nil unless events are enabled
	Bus       *eventbus.Client     // nil unless events are enabled
	Publisher *eventbus.Publisher  // nil unless events are enabled
	Instance  string
}

// DefaultBoard is the board every helper uses unless told otherwise:
// 200x100 with 20x10 notes.
func DefaultBoard(colours ...string) board.Config {
	if len(colours) == 0 {
		colours = []string{"red"}
	}
	return board.Config{Width: 200, Height: 100, NoteWidth: 20, NoteHeight: 10, Colours: colours}
}

// StartServer runs a server for DefaultBoard(colours...) and shuts it down
// on cleanup.
func StartServer(t *testing.T, colours ...string) *Environment {
	t.Helper()
	b, err := board.New(DefaultBoard(colours...))
	require.NoError(t, err)
	return start(t, &Environment{T: t, Board: b})
}

// StartServerWithEvents is StartServer with board events published to a
// miniredis instance under the given namespace.
func StartServerWithEvents(t *testing.T, instance string, colours ...string) *Environment {
	t.Helper()
	mr := miniredis.RunT(t)

	bus, err := eventbus.NewClient(&redis.Options{Addr: mr.Addr()}, instance)
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })

	publisher := eventbus.NewPublisher(bus, logging.Nop(), eventbus.DefaultQueueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		publisher.Run(context.Background())
	}()
	t.Cleanup(func() {
		publisher.Close()
		<-done
	})

	b, err := board.New(DefaultBoard(colours...), board.WithNotifier(publisher.Notify))
	require.NoError(t, err)

	return start(t, &Environment{
		T:         t,
		Board:     b,
		Redis:     mr,
		Bus:       bus,
		Publisher: publisher,
		Instance:  instance,
	})
}

// RedisURL returns the URL of the environment's Redis, or "" when events
// are disabled.
func (e *Environment) RedisURL() string {
	if e.Redis == nil {
		return ""
	}
	return "redis://" + e.Redis.Addr()
}

// WaitForPublished blocks until the publisher has delivered n events.
func (e *Environment) WaitForPublished(n uint64) {
	e.T.Helper()
	require.NotNil(e.T, e.Publisher, "events are not enabled")
	require.Eventually(e.T, func() bool {
		return e.Publisher.Stats().Published >= n
	}, 2*time.Second, 10*time.Millisecond, "publisher did not deliver %d events", n)
}

func start(t *testing.T, env *Environment) *Environment {
	t.Helper()
	env.Server = server.New(env.Board, logging.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	env.Addr = ln.Addr().String()

	errCh := make(chan error, 1)
	go func() { errCh <- env.Server.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		env.Server.Shutdown(ctx)
		<-errCh
	})
	return env
}
