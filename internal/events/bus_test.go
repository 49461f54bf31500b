package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedBus(t *testing.T) EventBus {
	t.Helper()
	bus := NewEventBus(16)
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Stop(ctx)
	})
	return bus
}

func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := startedBus(t)

	received := make(chan Event, 1)
	_, err := bus.Subscribe(EventFilter{Types: []EventType{EventUploadStarted}}, func(ev Event) error {
		received <- ev
		return nil
	})
	require.NoError(t, err)

	ev := NewEvent(EventUploadStarted, "upload", "upload-1", "ingestion started")
	require.NoError(t, bus.Publish(context.Background(), ev))

	got := waitFor(t, received)
	assert.Equal(t, EventUploadStarted, got.Type)
	assert.Equal(t, "upload-1", got.Target)
	assert.NotEmpty(t, got.ID)
}

func TestFilterByTypeAndTarget(t *testing.T) {
	bus := startedBus(t)

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 8)
	_, err := bus.Subscribe(EventFilter{
		Types:  []EventType{EventUploadProgress},
		Target: "upload-1",
	}, func(ev Event) error {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewEvent(EventUploadProgress, "upload", "upload-2", "wrong target")))
	require.NoError(t, bus.Publish(ctx, NewEvent(EventUploadCompleted, "upload", "upload-1", "wrong type")))
	require.NoError(t, bus.Publish(ctx, NewEvent(EventUploadProgress, "upload", "upload-1", "match")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for matching event")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "match", got[0].Message)
}

func TestPublishRequiresRunningBus(t *testing.T) {
	bus := NewEventBus(4)

	err := bus.Publish(context.Background(), NewEvent(EventUploadStarted, "upload", "u", ""))
	assert.Error(t, err)
}

func TestPublishRejectsMissingType(t *testing.T) {
	bus := startedBus(t)

	err := bus.Publish(context.Background(), Event{Source: "upload"})
	assert.Error(t, err)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := startedBus(t)

	first := make(chan Event, 4)
	sub, err := bus.Subscribe(EventFilter{}, func(ev Event) error {
		first <- ev
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewEvent(EventUploadStarted, "upload", "u1", "")))
	waitFor(t, first)

	require.NoError(t, bus.Unsubscribe(sub.ID))

	// Second subscriber proves the bus still dispatches after the first left
	second := make(chan Event, 4)
	_, err = bus.Subscribe(EventFilter{}, func(ev Event) error {
		second <- ev
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, NewEvent(EventUploadStarted, "upload", "u2", "")))
	waitFor(t, second)

	select {
	case ev := <-first:
		t.Fatalf("unsubscribed handler received event %s", ev.ID)
	default:
	}
}

func TestUnsubscribeUnknownID(t *testing.T) {
	bus := startedBus(t)
	assert.Error(t, bus.Unsubscribe("nope"))
}

func TestPublishAsyncDropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	require.NoError(t, bus.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	defer bus.Stop(ctx)

	// Block the dispatcher so the buffer cannot drain
	blocked := make(chan struct{})
	release := make(chan struct{})
	_, err := bus.Subscribe(EventFilter{}, func(ev Event) error {
		close(blocked)
		<-release
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.PublishAsync(NewEvent(EventUploadProgress, "upload", "u", "first")))
	<-blocked

	// Fill the single-slot buffer, then overflow it
	require.NoError(t, bus.PublishAsync(NewEvent(EventUploadProgress, "upload", "u", "second")))
	err = bus.PublishAsync(NewEvent(EventUploadProgress, "upload", "u", "third"))
	assert.Error(t, err)

	close(release)
}

func TestEventFilterMatches(t *testing.T) {
	ev := NewEvent(EventStorageFallback, "storage", "key.mp3", "remote down")

	assert.True(t, EventFilter{}.Matches(ev))
	assert.True(t, EventFilter{Types: []EventType{EventStorageFallback}}.Matches(ev))
	assert.True(t, EventFilter{Target: "key.mp3"}.Matches(ev))
	assert.False(t, EventFilter{Types: []EventType{EventStorageMigrated}}.Matches(ev))
	assert.False(t, EventFilter{Target: "other"}.Matches(ev))
}
