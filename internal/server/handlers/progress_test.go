package handlers

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djpapzin/papzincrew/internal/events"
)

func newProgressServer(t *testing.T) (events.EventBus, *httptest.Server) {
	t.Helper()

	bus := events.NewEventBus(16)
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Stop(ctx)
	})

	r := gin.New()
	handler := NewProgressHandler(bus)
	r.GET("/api/uploads/:id/progress", handler.Stream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return bus, srv
}

func progressEvent(uploadID string, percent int) events.Event {
	ev := events.NewEvent(events.EventUploadProgress, "upload", uploadID, "storing file")
	ev.Data = map[string]interface{}{"phase": "file_upload", "percent": percent}
	return ev
}

func TestProgressStream_DeliversUntilTerminalEvent(t *testing.T) {
	bus, srv := newProgressServer(t)

	resp, err := http.Get(srv.URL + "/api/uploads/u1/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, progressEvent("u1", 40)))
	require.NoError(t, bus.Publish(ctx, events.NewEvent(events.EventUploadCompleted, "upload", "u1", "upload complete")))

	// The completed event ends the stream, so the body drains
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "connected")
	assert.Contains(t, string(body), string(events.EventUploadProgress))
	assert.Contains(t, string(body), string(events.EventUploadCompleted))
}

func TestProgressStream_IgnoresOtherUploads(t *testing.T) {
	bus, srv := newProgressServer(t)

	resp, err := http.Get(srv.URL + "/api/uploads/u1/progress")
	require.NoError(t, err)
	defer resp.Body.Close()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, progressEvent("u2", 10)))
	require.NoError(t, bus.Publish(ctx, progressEvent("u1", 20)))
	require.NoError(t, bus.Publish(ctx, events.NewEvent(events.EventUploadFailed, "upload", "u1", "storage failed")))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), string(events.EventUploadFailed))
	assert.NotContains(t, string(body), `"percent":10`)
}

func TestProgressStream_BusSurvivesClientDisconnect(t *testing.T) {
	bus, srv := newProgressServer(t)

	reqCtx, disconnect := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/api/uploads/u1/progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Wait for the connected handshake so the subscription is live
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.Contains(line, "connected"))

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, progressEvent("u1", 10)))

	// Drop the client mid-stream, then keep publishing into the window
	// where the unsubscribe races in-flight dispatches
	disconnect()
	for i := 0; i < 50; i++ {
		bus.PublishAsync(progressEvent("u1", i))
	}

	// The dispatcher must still be alive and delivering
	received := make(chan events.Event, 1)
	_, err = bus.Subscribe(events.EventFilter{
		Types: []events.EventType{events.EventUploadStarted},
	}, func(ev events.Event) error {
		received <- ev
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, events.NewEvent(events.EventUploadStarted, "upload", "u2", "next upload")))
	select {
	case ev := <-received:
		assert.Equal(t, "u2", ev.Target)
	case <-time.After(2 * time.Second):
		t.Fatal("event bus stopped dispatching after client disconnect")
	}
}
