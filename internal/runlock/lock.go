// Package runlock guards scheduled jobs with leased mutual exclusion so a
// slow run and a freshly triggered run never process the same items at once.
package runlock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"contentpipe/internal/domain"
)

// Locker acquires run leases for this process against a LeaseStore.
type Locker struct {
	store  domain.LeaseStore
	holder string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewLocker creates a Locker identified by holder. Each lease it grants is
// valid for ttl and self-heals after a crash once ttl elapses.
func NewLocker(store domain.LeaseStore, holder string, ttl time.Duration, logger zerolog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Locker{store: store, holder: holder, ttl: ttl, logger: logger}
}

// Acquire takes the lease for jobName or fails with domain.ErrAlreadyRunning
// when another holder owns an unexpired lease.
func (l *Locker) Acquire(ctx context.Context, jobName string) (*Handle, error) {
	lease, err := l.store.Acquire(ctx, jobName, l.holder, l.ttl)
	if err != nil {
		return nil, err
	}
	l.logger.Info().Str("job", jobName).Str("holder", l.holder).Time("expires_at", lease.ExpiresAt).Msg("runlock: lease acquired")
	return &Handle{locker: l, lease: lease}, nil
}

// Handle is an owned lease. Release is safe to call more than once and on
// all exit paths; KeepAlive renews in the background while a batch runs.
type Handle struct {
	locker   *Locker
	mu       sync.Mutex
	lease    *domain.RunLease
	released bool
	lost     atomic.Bool
}

// Renew extends the lease validity window. A lease that expired or was taken
// over yields domain.ErrLeaseLost.
func (h *Handle) Renew(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return domain.ErrLeaseLost
	}
	lease, err := h.locker.store.Renew(ctx, h.lease, h.locker.ttl)
	if err != nil {
		h.lost.Store(true)
		return err
	}
	h.lease = lease
	return nil
}

// KeepAlive renews the lease every ttl/3 until ctx is done or a renewal
// fails. After a failed renewal Lost reports true and no new work should be
// dispatched under this lease.
func (h *Handle) KeepAlive(ctx context.Context) {
	// JobName never changes across renewals; snapshot it so the log line
	// does not touch h.lease outside the mutex.
	h.mu.Lock()
	jobName := h.lease.JobName
	h.mu.Unlock()
	interval := h.locker.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Renew(ctx); err != nil {
				if ctx.Err() == nil {
					h.locker.logger.Error().Err(err).Str("job", jobName).Msg("runlock: lease renewal failed")
				}
				return
			}
		}
	}
}

// Lost reports whether the lease slipped away mid-run.
func (h *Handle) Lost() bool { return h.lost.Load() }

// Release clears the lease. Idempotent: releasing twice, or releasing a
// lease that already expired, is a no-op.
func (h *Handle) Release(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	if err := h.locker.store.Release(ctx, h.lease); err != nil {
		h.locker.logger.Warn().Err(err).Str("job", h.lease.JobName).Msg("runlock: release failed")
		return
	}
	h.locker.logger.Info().Str("job", h.lease.JobName).Msg("runlock: lease released")
}
