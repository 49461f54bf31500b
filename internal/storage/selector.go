package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/djpapzin/papzincrew/internal/config"
	"github.com/djpapzin/papzincrew/internal/logger"
	"github.com/djpapzin/papzincrew/internal/utils"
)

// Selector routes writes to the remote backend first, retrying per policy,
// and falls back to local storage when the remote side stays unreachable.
// With remote-only enforcement active it fails instead of falling back,
// leaving no local bytes behind.
type Selector struct {
	remote  Backend
	local   Backend
	retry   utils.RetryPolicy
	enforce bool
}

func NewSelector(remote Backend, local Backend, cfg *config.StorageConfig) *Selector {
	return &Selector{
		remote: remote,
		local:  local,
		retry: utils.RetryPolicy{
			MaxAttempts:       cfg.MaxAttempts,
			BaseDelay:         cfg.RetryBaseDelay,
			MaxDelay:          cfg.RetryMaxDelay,
			BackoffMultiplier: cfg.BackoffMultiplier,
			PerAttemptTimeout: cfg.AttemptTimeout,
		},
		enforce: cfg.EnforceRemoteOnly,
	}
}

// RemoteConfigured reports whether a remote backend is wired in at all.
func (s *Selector) RemoteConfigured() bool { return s.remote != nil }

// Remote exposes the remote backend for health checks and reconciliation.
func (s *Selector) Remote() Backend { return s.remote }

// Local exposes the local backend for the fallback migrator.
func (s *Selector) Local() Backend { return s.local }

// Store writes the object remote-first. The returned Result records which
// backend took the bytes and whether fallback was used. Context cancellation
// aborts between attempts and cleans up nothing, since each backend write is
// atomic.
func (s *Selector) Store(ctx context.Context, key string, data []byte) (*Result, error) {
	if s.remote != nil {
		var location string
		err := s.retry.Do(ctx, func(attemptCtx context.Context) error {
			var storeErr error
			location, storeErr = s.remote.Store(attemptCtx, key, data)
			return storeErr
		})
		if err == nil {
			return &Result{
				Backend:  s.remote.Name(),
				Key:      key,
				Location: location,
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("remote storage failed, considering fallback",
			logger.String("key", key), logger.Err(err))

		// A write that failed after the bytes landed would leave a remote
		// object the catalog never points at. Scrub the key best-effort
		// before moving on.
		if delErr := s.remote.Delete(ctx, key); delErr != nil && !errors.Is(delErr, ErrObjectNotFound) {
			logger.Debug("failed to scrub remote key after store failure",
				logger.String("key", key), logger.Err(delErr))
		}
	}

	if s.enforce {
		return nil, fmt.Errorf("%w: remote storage failed and local fallback is disabled", ErrStorageUnavailable)
	}
	if s.local == nil {
		return nil, fmt.Errorf("%w: no backend available", ErrStorageUnavailable)
	}

	location, err := s.local.Store(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("%w: local fallback failed: %v", ErrStorageUnavailable, err)
	}

	logger.Info("stored on local fallback", logger.String("key", key))
	return &Result{
		Backend:      s.local.Name(),
		Key:          key,
		Location:     location,
		FallbackUsed: s.remote != nil,
	}, nil
}

// Retrieve opens a stored object from the backend named in the catalog row.
func (s *Selector) Retrieve(ctx context.Context, backend, key string) (io.ReadCloser, error) {
	switch backend {
	case BackendRemote:
		if s.remote == nil {
			return nil, ErrStorageUnavailable
		}
		return s.remote.Retrieve(ctx, key)
	case BackendLocal:
		if s.local == nil {
			return nil, ErrStorageUnavailable
		}
		return s.local.Retrieve(ctx, key)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Cleanup removes a stored object after a later pipeline phase failed, so a
// cancelled or failed ingestion leaves no orphaned bytes.
func (s *Selector) Cleanup(ctx context.Context, res *Result) {
	if res == nil {
		return
	}
	var backend Backend
	switch res.Backend {
	case BackendRemote:
		backend = s.remote
	case BackendLocal:
		backend = s.local
	}
	if backend == nil {
		return
	}
	if err := backend.Delete(ctx, res.Key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		logger.Warn("failed to clean up stored object",
			logger.String("backend", res.Backend),
			logger.String("key", res.Key),
			logger.Err(err))
	}
}

// KeyTaken reports whether the key exists on either backend.
func (s *Selector) KeyTaken(ctx context.Context, key string) bool {
	if s.remote != nil {
		if taken, err := s.remote.Exists(ctx, key); err == nil && taken {
			return true
		}
	}
	if s.local != nil {
		if taken, err := s.local.Exists(ctx, key); err == nil && taken {
			return true
		}
	}
	return false
}
