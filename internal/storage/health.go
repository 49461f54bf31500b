package storage

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/djpapzin/papzincrew/internal/logger"
)

// HealthReport summarizes the state of both storage backends for the
// operational health endpoint.
type HealthReport struct {
	RemoteConfigured bool       `json:"remote_configured"`
	RemoteReachable  bool       `json:"remote_reachable"`
	RemoteCheckedAt  *time.Time `json:"remote_checked_at,omitempty"`
	LocalPath        string     `json:"local_path,omitempty"`
	LocalTotalBytes  uint64     `json:"local_total_bytes,omitempty"`
	LocalFreeBytes   uint64     `json:"local_free_bytes,omitempty"`
	LocalUsedPercent float64    `json:"local_used_percent,omitempty"`
	EnforceRemote    bool       `json:"enforce_remote_only"`
}

// CheckHealth probes the remote backend with a cheap existence call and reads
// disk usage for the local fallback directory.
func (s *Selector) CheckHealth(ctx context.Context) *HealthReport {
	report := &HealthReport{
		RemoteConfigured: s.remote != nil,
		EnforceRemote:    s.enforce,
	}

	if s.remote != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := s.remote.Exists(probeCtx, ".health-probe")
		cancel()
		now := time.Now().UTC()
		report.RemoteCheckedAt = &now
		report.RemoteReachable = err == nil
		if err != nil {
			logger.Debug("remote storage probe failed", logger.Err(err))
		}
	}

	if local, ok := s.local.(*LocalBackend); ok && local != nil {
		report.LocalPath = local.BaseDir()
		if usage, err := disk.UsageWithContext(ctx, local.BaseDir()); err == nil {
			report.LocalTotalBytes = usage.Total
			report.LocalFreeBytes = usage.Free
			report.LocalUsedPercent = usage.UsedPercent
		} else {
			logger.Debug("local disk usage probe failed", logger.Err(err))
		}
	}

	return report
}
