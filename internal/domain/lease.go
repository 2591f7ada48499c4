package domain

import "time"

// RunLease is a time-bounded ownership token for a named job. At most one
// unexpired lease exists per job name; a crashed holder self-heals once the
// lease expires.
type RunLease struct {
	JobName    string
	Holder     string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the lease validity window has passed at now.
func (l *RunLease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
