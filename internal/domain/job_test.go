package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusProcessing},
		{JobStatusPending, JobStatusCancelled},
		{JobStatusProcessing, JobStatusCompleted},
		{JobStatusProcessing, JobStatusFailed},
		{JobStatusProcessing, JobStatusCancelled},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusCompleted},
		{JobStatusPending, JobStatusFailed},
		{JobStatusCompleted, JobStatusCancelled},
		{JobStatusCompleted, JobStatusProcessing},
		{JobStatusFailed, JobStatusProcessing},
		{JobStatusCancelled, JobStatusProcessing},
		{JobStatusProcessing, JobStatusPending},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionSetsTimestampsOnce(t *testing.T) {
	job := NewJob("a red fox", "flux-schnell", nil)
	if job.Status != JobStatusPending {
		t.Fatalf("new job status: got %s want %s", job.Status, JobStatusPending)
	}
	if err := job.Transition(JobStatusProcessing); err != nil {
		t.Fatalf("pending -> processing: %v", err)
	}
	if job.StartedAt == nil {
		t.Fatal("started_at not set on first transition into processing")
	}
	started := *job.StartedAt
	if err := job.Transition(JobStatusCompleted); err != nil {
		t.Fatalf("processing -> completed: %v", err)
	}
	if job.CompletedAt == nil {
		t.Fatal("completed_at not set on terminal transition")
	}
	if job.StartedAt.After(*job.CompletedAt) {
		t.Fatalf("started_at %v after completed_at %v", job.StartedAt, job.CompletedAt)
	}
	if !job.StartedAt.Equal(started) {
		t.Fatal("started_at rewritten by terminal transition")
	}
}

func TestTransitionFromTerminalFails(t *testing.T) {
	job := NewJob("p", "m", nil)
	if err := job.Transition(JobStatusCancelled); err != nil {
		t.Fatalf("pending -> cancelled: %v", err)
	}
	err := job.Transition(JobStatusProcessing)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if job.Status != JobStatusCancelled {
		t.Fatalf("job mutated by rejected transition: %s", job.Status)
	}
}

func TestErrorClassification(t *testing.T) {
	tr := Transient("submission", errors.New("connection reset"))
	if !IsTransient(tr) || IsFatal(tr) {
		t.Fatalf("transient error misclassified: %v", tr)
	}
	ft := Fatal("external generation", errors.New("model exploded"))
	if !IsFatal(ft) || IsTransient(ft) {
		t.Fatalf("fatal error misclassified: %v", ft)
	}
	if IsTransient(errors.New("plain")) || IsFatal(errors.New("plain")) {
		t.Fatal("unclassified error must be neither transient nor fatal")
	}
}

func TestValidatePrompt(t *testing.T) {
	if err := ValidatePrompt("a red fox"); err != nil {
		t.Fatalf("valid prompt rejected: %v", err)
	}
	if err := ValidatePrompt(""); !errors.Is(err, ErrInvalidPrompt) {
		t.Fatalf("empty prompt: got %v want ErrInvalidPrompt", err)
	}
	long := strings.Repeat("x", MaxPromptLength+1)
	if err := ValidatePrompt(long); !errors.Is(err, ErrInvalidPrompt) {
		t.Fatalf("oversized prompt: got %v want ErrInvalidPrompt", err)
	}
}
