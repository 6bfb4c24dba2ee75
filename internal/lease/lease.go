// Package lease provides the single-flight mutual exclusion per job id:
// at most one orchestration attempt may hold the lease for a job at a
// time. The TTL backstops crashed holders; long-lived holders call Extend
// to keep the lease ahead of the clock.
package lease

import (
	"context"
	"errors"
	"time"
)

// ErrLeaseLost is returned by Extend when the lease expired and may have
// been taken over by another holder.
var ErrLeaseLost = errors.New("lease no longer held")

// Lease is one holder's grip on a job. Release is safe to call exactly
// once and only frees the caller's own lease (an expired lease reacquired
// by someone else is left alone).
type Lease interface {
	// Extend pushes the lease deadline out to now+ttl if the caller still
	// holds it, and returns ErrLeaseLost otherwise.
	Extend(ctx context.Context, ttl time.Duration) error
	Release()
}

// Locker grants exclusive, TTL-bounded leases keyed by job id.
type Locker interface {
	// Acquire takes the lease for jobID, returning ok=false when another
	// holder currently has it.
	Acquire(ctx context.Context, jobID string, ttl time.Duration) (l Lease, ok bool, err error)
}
