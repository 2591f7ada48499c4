package memory

import (
	"context"
	"sync"
	"time"

	"contentpipe/internal/domain"
)

// LeaseStore keeps run leases in process memory. Suitable for single-process
// deployments; multi-process setups need the postgres backend so a second
// runner can observe and take over an expired lease.
type LeaseStore struct {
	mu     sync.Mutex
	leases map[string]domain.RunLease
	now    func() time.Time
}

// NewLeaseStore creates an empty lease store.
func NewLeaseStore() *LeaseStore {
	return &LeaseStore{leases: make(map[string]domain.RunLease), now: time.Now}
}

// Acquire grants the lease for jobName unless another holder owns an
// unexpired one.
func (s *LeaseStore) Acquire(ctx context.Context, jobName, holder string, ttl time.Duration) (*domain.RunLease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if cur, ok := s.leases[jobName]; ok && !cur.Expired(now) && cur.Holder != holder {
		return nil, domain.ErrAlreadyRunning
	}
	lease := domain.RunLease{
		JobName:    jobName,
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	s.leases[jobName] = lease
	out := lease
	return &out, nil
}

// Renew extends an owned, unexpired lease; otherwise domain.ErrLeaseLost.
func (s *LeaseStore) Renew(ctx context.Context, lease *domain.RunLease, ttl time.Duration) (*domain.RunLease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	cur, ok := s.leases[lease.JobName]
	if !ok || cur.Holder != lease.Holder || cur.Expired(now) {
		return nil, domain.ErrLeaseLost
	}
	cur.ExpiresAt = now.Add(ttl)
	s.leases[lease.JobName] = cur
	out := cur
	return &out, nil
}

// Release clears an owned lease. Releasing a lease that expired or was taken
// over is a no-op.
func (s *LeaseStore) Release(ctx context.Context, lease *domain.RunLease) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.leases[lease.JobName]; ok && cur.Holder == lease.Holder {
		delete(s.leases, lease.JobName)
	}
	return nil
}

var _ domain.LeaseStore = (*LeaseStore)(nil)
