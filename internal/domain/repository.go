package domain

import (
	"context"
	"time"
)

// ContentStore defines persistence for content items. Save must be safe to
// retry: overwriting an item with the same state is idempotent.
type ContentStore interface {
	Create(ctx context.Context, item *ContentItem) error
	GetByID(ctx context.Context, id string) (*ContentItem, error)
	// FetchCandidates returns items in the given states ordered by creation
	// time, with at most one entry per item id.
	FetchCandidates(ctx context.Context, states ...State) ([]ContentItem, error)
	Save(ctx context.Context, item *ContentItem) error
	// SetApproval records a reviewer verdict without touching lifecycle state.
	SetApproval(ctx context.Context, id string, approval Approval) error
	// Requeue returns a failed item to the earliest stage its populated
	// fields allow and clears its recorded failure.
	Requeue(ctx context.Context, id string) (*ContentItem, error)
}

// LeaseStore defines persistence for run leases. Implementations must
// guarantee that Acquire grants at most one unexpired lease per job name.
type LeaseStore interface {
	Acquire(ctx context.Context, jobName, holder string, ttl time.Duration) (*RunLease, error)
	Renew(ctx context.Context, lease *RunLease, ttl time.Duration) (*RunLease, error)
	// Release is idempotent: releasing an expired or already-released lease
	// is not an error.
	Release(ctx context.Context, lease *RunLease) error
}
