package lease

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker inside a single process. It is the
// default when no REDIS_URL is configured: correct for one worker
// process, not across several.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]time.Time)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, jobID string, ttl time.Duration) (Lease, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if deadline, held := l.leases[jobID]; held && deadline.After(now) {
		return nil, false, nil
	}
	deadline := now.Add(ttl)
	l.leases[jobID] = deadline
	return &memoryLease{locker: l, jobID: jobID, deadline: deadline}, true, nil
}

// memoryLease identifies its grant by the exact deadline it wrote: if the
// map holds a different deadline, the lease expired and was reacquired.
type memoryLease struct {
	locker   *MemoryLocker
	jobID    string
	deadline time.Time
	once     sync.Once
}

func (m *memoryLease) Extend(ctx context.Context, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if d, held := m.locker.leases[m.jobID]; !held || !d.Equal(m.deadline) {
		return ErrLeaseLost
	}
	m.deadline = time.Now().Add(ttl)
	m.locker.leases[m.jobID] = m.deadline
	return nil
}

func (m *memoryLease) Release() {
	m.once.Do(func() {
		m.locker.mu.Lock()
		defer m.locker.mu.Unlock()
		if d, held := m.locker.leases[m.jobID]; held && d.Equal(m.deadline) {
			delete(m.locker.leases, m.jobID)
		}
	})
}

var _ Locker = (*MemoryLocker)(nil)
