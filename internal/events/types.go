// Package events provides the in-process event bus used to broadcast upload
// lifecycle notifications. Progress streaming and the cover art worker both
// ride on it.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

// System-wide event types
const (
	// Upload lifecycle events
	EventUploadStarted   EventType = "upload.started"
	EventUploadProgress  EventType = "upload.progress"
	EventUploadCompleted EventType = "upload.completed"
	EventUploadFailed    EventType = "upload.failed"
	EventUploadCancelled EventType = "upload.cancelled"

	// Storage events
	EventStorageFallback EventType = "storage.fallback"
	EventStorageMigrated EventType = "storage.migrated"

	// Cover art events
	EventArtJobCreated   EventType = "art.job.created"
	EventArtJobCompleted EventType = "art.job.completed"
	EventArtJobFailed    EventType = "art.job.failed"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Target    string                 `json:"target"` // upload ID, job ID, storage key
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event) error

// EventFilter filters events by type and/or target
type EventFilter struct {
	Types  []EventType `json:"types,omitempty"`
	Target string      `json:"target,omitempty"`
}

// Matches reports whether the event passes the filter
func (f EventFilter) Matches(event Event) bool {
	if f.Target != "" && f.Target != event.Target {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == event.Type {
			return true
		}
	}
	return false
}

// Subscription represents an active event subscription
type Subscription struct {
	ID      string      `json:"id"`
	Filter  EventFilter `json:"filter"`
	Handler EventHandler `json:"-"`
	Created time.Time   `json:"created"`
}

// NewEvent creates a new event with the given type and descriptive fields
func NewEvent(eventType EventType, source, target, message string) Event {
	return Event{
		Type:      eventType,
		Source:    source,
		Target:    target,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewSystemEvent creates an event originating from the system itself
func NewSystemEvent(eventType EventType, title, message string) Event {
	return Event{
		Type:      eventType,
		Source:    "system",
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}
