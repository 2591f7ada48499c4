package postgres

import (
	"context"
	"fmt"
	"time"

	"contentpipe/internal/domain"
	"contentpipe/internal/infra"
	"contentpipe/internal/sqlinline"
)

// LeaseStore persists run leases. The guarded upsert in QAcquireLease makes
// acquisition atomic: the insert wins only when no row exists, the lease
// expired, or the caller already holds it.
type LeaseStore struct {
	sql infra.SQLExecutor
}

// NewLeaseStore creates a store on top of the given SQL executor.
func NewLeaseStore(sql infra.SQLExecutor) *LeaseStore {
	return &LeaseStore{sql: sql}
}

func (s *LeaseStore) Acquire(ctx context.Context, jobName, holder string, ttl time.Duration) (*domain.RunLease, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QAcquireLease, jobName, holder, time.Now().Add(ttl))
	lease, err := scanLease(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrAlreadyRunning
		}
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	return lease, nil
}

func (s *LeaseStore) Renew(ctx context.Context, lease *domain.RunLease, ttl time.Duration) (*domain.RunLease, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QRenewLease, lease.JobName, lease.Holder, time.Now().Add(ttl))
	renewed, err := scanLease(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrLeaseLost
		}
		return nil, fmt.Errorf("renew lease: %w", err)
	}
	return renewed, nil
}

func (s *LeaseStore) Release(ctx context.Context, lease *domain.RunLease) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QReleaseLease, lease.JobName, lease.Holder); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

func scanLease(row scanner) (*domain.RunLease, error) {
	var lease domain.RunLease
	if err := row.Scan(&lease.JobName, &lease.Holder, &lease.AcquiredAt, &lease.ExpiresAt); err != nil {
		return nil, err
	}
	return &lease, nil
}

var _ domain.LeaseStore = (*LeaseStore)(nil)
