package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/djpapzin/papzincrew/internal/logger"
)

// EventBus defines the interface for the event bus system
type EventBus interface {
	// Publish publishes an event, blocking until it is queued or ctx ends
	Publish(ctx context.Context, event Event) error

	// PublishAsync publishes an event without blocking; full buffers drop
	PublishAsync(event Event) error

	// Subscribe registers a handler for events matching the filter
	Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error)

	// Unsubscribe removes a subscription
	Unsubscribe(subscriptionID string) error

	// Start starts the event bus
	Start(ctx context.Context) error

	// Stop stops the event bus gracefully
	Stop(ctx context.Context) error
}

// eventBus implements the EventBus interface
type eventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventChannel  chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewEventBus creates a new event bus with the given buffer size
func NewEventBus(bufferSize int) EventBus {
	if bufferSize < 1 {
		bufferSize = 100
	}
	return &eventBus{
		subscriptions: make(map[string]*Subscription),
		eventChannel:  make(chan Event, bufferSize),
		stopCh:        make(chan struct{}),
	}
}

// Start starts the event bus
func (eb *eventBus) Start(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.running {
		return fmt.Errorf("event bus is already running")
	}

	eb.running = true
	eb.stopCh = make(chan struct{})

	eb.wg.Add(1)
	go eb.processEvents()

	logger.Info("Event bus started", logger.Int("buffer_size", cap(eb.eventChannel)))
	return nil
}

// Stop stops the event bus gracefully
func (eb *eventBus) Stop(ctx context.Context) error {
	eb.mu.Lock()
	if !eb.running {
		eb.mu.Unlock()
		return nil
	}
	eb.running = false
	eb.mu.Unlock()

	close(eb.stopCh)

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Event bus stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.Warn("Event bus stop timed out")
		return ctx.Err()
	}
}

// Publish publishes an event to the event bus
func (eb *eventBus) Publish(ctx context.Context, event Event) error {
	if err := eb.prepare(&event); err != nil {
		return err
	}

	select {
	case eb.eventChannel <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAsync publishes an event asynchronously (non-blocking)
func (eb *eventBus) PublishAsync(event Event) error {
	if err := eb.prepare(&event); err != nil {
		return err
	}

	select {
	case eb.eventChannel <- event:
		return nil
	default:
		// Channel is full, drop the event rather than block the publisher
		logger.Warn("Event channel full, dropping event",
			logger.String("event_type", string(event.Type)),
			logger.String("event_id", event.ID))
		return fmt.Errorf("event channel full")
	}
}

func (eb *eventBus) prepare(event *Event) error {
	eb.mu.RLock()
	running := eb.running
	eb.mu.RUnlock()

	if !running {
		return fmt.Errorf("event bus is not running")
	}

	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	return nil
}

// Subscribe subscribes to events matching the filter
func (eb *eventBus) Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscription := &Subscription{
		ID:      generateEventID(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}

	eb.subscriptions[subscription.ID] = subscription

	logger.Debug("New subscription created", logger.String("subscription_id", subscription.ID))
	return subscription, nil
}

// Unsubscribe removes a subscription
func (eb *eventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, exists := eb.subscriptions[subscriptionID]; !exists {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}

	delete(eb.subscriptions, subscriptionID)
	return nil
}

// processEvents dispatches queued events to matching subscribers
func (eb *eventBus) processEvents() {
	defer eb.wg.Done()

	for {
		select {
		case <-eb.stopCh:
			return
		case event := <-eb.eventChannel:
			eb.dispatch(event)
		}
	}
}

func (eb *eventBus) dispatch(event Event) {
	eb.mu.RLock()
	subs := make([]*Subscription, 0, len(eb.subscriptions))
	for _, sub := range eb.subscriptions {
		if sub.Filter.Matches(event) {
			subs = append(subs, sub)
		}
	}
	eb.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.Handler(event); err != nil {
			logger.Warn("Event handler failed",
				logger.String("subscription_id", sub.ID),
				logger.String("event_type", string(event.Type)),
				logger.Err(err))
		}
	}
}

func generateEventID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
