package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/corkboard/internal/eventbus"
	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/pkg/board"
)

func newHealthTestServer(t *testing.T) *Server {
	t.Helper()
	b, err := board.New(board.Config{Width: 100, Height: 100, NoteWidth: 10, NoteHeight: 10, Colours: []string{"red"}})
	require.NoError(t, err)
	_, err = b.PostNote(0, 0, "red", "a")
	require.NoError(t, err)
	_, err = b.PostNote(50, 50, "red", "b")
	require.NoError(t, err)
	require.NoError(t, b.PlacePin(1, 1))
	return New(b, logging.Nop())
}

func getHealth(t *testing.T, h *HealthServer) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	h.healthCheckHandler(w, req)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return w, response
}

// TestHealthCheckEndpoint_MethodNotAllowed verifies non-GET requests are rejected.
func TestHealthCheckEndpoint_MethodNotAllowed(t *testing.T) {
	h := NewHealthServer(newHealthTestServer(t), nil, logging.Nop())

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()
	h.healthCheckHandler(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthCheckResponse(t *testing.T) {
	t.Run("healthy with events disabled", func(t *testing.T) {
		h := NewHealthServer(newHealthTestServer(t), nil, logging.Nop())

		w, response := getHealth(t, h)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, HealthResponse{
			Status:      "healthy",
			Notes:       2,
			PinnedNotes: 1,
			Pins:        1,
			Events:      EventsDisabled,
		}, response)
	})

	t.Run("healthy when Redis reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := eventbus.NewClient(&redis.Options{Addr: mr.Addr()}, "test")
		require.NoError(t, err)
		defer client.Close()

		h := NewHealthServer(newHealthTestServer(t), client, logging.Nop())
		w, response := getHealth(t, h)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, EventsConnected, response.Events)
	})

	t.Run("unhealthy when Redis unavailable", func(t *testing.T) {
		// Port 9 is the discard protocol - connections will fail immediately
		client, err := eventbus.NewClient(&redis.Options{
			Addr:         "localhost:9",
			DialTimeout:  50 * time.Millisecond,
			ReadTimeout:  50 * time.Millisecond,
			WriteTimeout: 50 * time.Millisecond,
			MaxRetries:   -1,
		}, "test")
		require.NoError(t, err)
		defer client.Close()

		h := NewHealthServer(newHealthTestServer(t), client, logging.Nop())
		w, response := getHealth(t, h)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, EventsDisconnected, response.Events)
		assert.NotEmpty(t, response.Error)
	})
}

func TestHealthServer_StartAndShutdown(t *testing.T) {
	h := NewHealthServer(newHealthTestServer(t), nil, logging.Nop())
	require.NoError(t, h.Start("127.0.0.1:0"))

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", h.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, h.Shutdown(ctx))
}

func TestHealthServer_ShutdownBeforeStart(t *testing.T) {
	h := NewHealthServer(newHealthTestServer(t), nil, logging.Nop())
	assert.NoError(t, h.Shutdown(context.Background()))
	assert.Nil(t, h.Addr())
}
