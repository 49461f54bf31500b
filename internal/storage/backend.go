// Package storage persists uploaded audio bytes, preferring remote object
// storage and falling back to the local filesystem when the remote side is
// unreachable.
package storage

import (
	"context"
	"errors"
	"io"
)

// Backend names used in catalog rows and API responses.
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// ErrStorageUnavailable is returned when no backend could accept the bytes,
// or when remote-only enforcement is active and the remote store failed.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrObjectNotFound is returned by Retrieve and Delete for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// Backend stores and retrieves immutable audio objects by key.
type Backend interface {
	// Name reports the backend identity recorded in the catalog.
	Name() string
	// Store writes the object atomically. A key that already exists is an
	// error; callers disambiguate keys before retrying.
	Store(ctx context.Context, key string, data []byte) (location string, err error)
	// Retrieve opens the object for reading.
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting an unknown key returns
	// ErrObjectNotFound.
	Delete(ctx context.Context, key string) error
	// Exists reports whether the key is already taken.
	Exists(ctx context.Context, key string) (bool, error)
}

// Result describes where an upload ended up.
type Result struct {
	Backend      string `json:"backend"`
	Key          string `json:"key"`
	Location     string `json:"location"`
	FallbackUsed bool   `json:"fallback_used"`
}
