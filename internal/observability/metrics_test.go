package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEnqueued()
	c.RecordCompleted(1.5)
	c.RecordFailed()
	c.RecordRetry()
	c.RecordRetry()
	c.RecordPoll()
	c.RecordReclaimed(3)
	c.JobStarted()

	if got := testutil.ToFloat64(c.jobsCompleted); got != 1 {
		t.Fatalf("jobsCompleted: got %v want 1", got)
	}
	if got := testutil.ToFloat64(c.jobsRetried); got != 2 {
		t.Fatalf("jobsRetried: got %v want 2", got)
	}
	if got := testutil.ToFloat64(c.reclaimed); got != 3 {
		t.Fatalf("reclaimed: got %v want 3", got)
	}
	if got := testutil.ToFloat64(c.jobsInFlight); got != 1 {
		t.Fatalf("jobsInFlight: got %v want 1", got)
	}
	c.JobFinished()
	if got := testutil.ToFloat64(c.jobsInFlight); got != 0 {
		t.Fatalf("jobsInFlight after finish: got %v want 0", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordEnqueued()
	c.RecordCompleted(1)
	c.RecordFailed()
	c.RecordCancelled()
	c.RecordRetry()
	c.RecordPoll()
	c.RecordReclaimed(1)
	c.JobStarted()
	c.JobFinished()
}
