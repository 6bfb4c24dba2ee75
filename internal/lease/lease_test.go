package lease

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLockerSingleFlight(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	first, ok, err := locker.Acquire(ctx, "job-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	_, ok, err = locker.Acquire(ctx, "job-1", time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second acquire succeeded while lease held")
	}

	// Different job ids are independent.
	other, ok, err := locker.Acquire(ctx, "job-2", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire for other job: ok=%v err=%v", ok, err)
	}
	other.Release()

	first.Release()
	_, ok, err = locker.Acquire(ctx, "job-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestMemoryLockerExpiry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	_, ok, err := locker.Acquire(ctx, "job-1", 5*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	time.Sleep(10 * time.Millisecond)

	l, ok, err := locker.Acquire(ctx, "job-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}
	l.Release()
}

func TestMemoryLockerStaleReleaseKeepsNewLease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	stale, ok, err := locker.Acquire(ctx, "job-1", time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	time.Sleep(5 * time.Millisecond)

	_, ok, err = locker.Acquire(ctx, "job-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("reacquire after expiry: ok=%v err=%v", ok, err)
	}

	// The stale holder releasing must not free the successor's lease.
	stale.Release()
	_, ok, err = locker.Acquire(ctx, "job-1", time.Minute)
	if err != nil {
		t.Fatalf("third acquire: %v", err)
	}
	if ok {
		t.Fatal("stale release freed a lease it no longer held")
	}
}

func TestMemoryLockerExtendKeepsLeaseAlive(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	l, ok, err := locker.Acquire(ctx, "job-1", 20*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if err := l.Extend(ctx, time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}

	// Past the original deadline the lease must still be held.
	time.Sleep(30 * time.Millisecond)
	_, ok, err = locker.Acquire(ctx, "job-1", time.Minute)
	if err != nil {
		t.Fatalf("acquire during extended lease: %v", err)
	}
	if ok {
		t.Fatal("acquire succeeded while extended lease held")
	}

	// Release after an extension still frees the lease.
	l.Release()
	_, ok, err = locker.Acquire(ctx, "job-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestMemoryLockerExtendAfterTakeover(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	stale, ok, err := locker.Acquire(ctx, "job-1", time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	time.Sleep(5 * time.Millisecond)

	_, ok, err = locker.Acquire(ctx, "job-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("reacquire after expiry: ok=%v err=%v", ok, err)
	}

	if err := stale.Extend(ctx, time.Minute); !errors.Is(err, ErrLeaseLost) {
		t.Fatalf("stale extend: got %v, want ErrLeaseLost", err)
	}
}
