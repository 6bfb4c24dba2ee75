package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status has no outgoing transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether the status is one of the known lifecycle states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// transitions is the full edge set of the lifecycle graph. Anything not
// listed here is rejected with ErrInvalidTransition.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing, JobStatusCancelled},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
}

// CanTransition reports whether from→to is an edge of the lifecycle graph.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Result references the materialized artifact of a completed job. Cleared
// by the retention sweeper once the artifact is reclaimed.
type Result struct {
	FilePath  string `json:"file_path,omitempty"`
	ResultURL string `json:"result_url,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Present reports whether the result still references a stored artifact.
func (r Result) Present() bool {
	return r.FilePath != ""
}

// Job encapsulates one media generation request tracked through a terminal
// lifecycle. The prompt, model and parameters are immutable inputs; status,
// external id, timestamps and result/error are owned by the orchestrator.
type Job struct {
	ID         string
	Prompt     string
	Model      string
	Parameters json.RawMessage
	Status     JobStatus

	// ExternalID is assigned by the generation service on submission.
	// Once set it is never overwritten or cleared; its presence is the
	// resumption marker that keeps retries from resubmitting.
	ExternalID string

	RetryCount   int
	ErrorMessage string
	Result       Result

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// MaxPromptLength bounds the accepted prompt size.
const MaxPromptLength = 2000

// ValidatePrompt rejects empty and oversized prompts with ErrInvalidPrompt.
func ValidatePrompt(prompt string) error {
	if prompt == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidPrompt)
	}
	if len(prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidPrompt, MaxPromptLength)
	}
	return nil
}

// NewJob builds a pending job for the given generation request.
func NewJob(prompt, model string, parameters json.RawMessage) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.NewString(),
		Prompt:     prompt,
		Model:      model,
		Parameters: parameters,
		Status:     JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition moves the job to the given status, maintaining the timestamp
// invariants, or returns ErrInvalidTransition leaving the job unchanged.
func (j *Job) Transition(to JobStatus) error {
	if !CanTransition(j.Status, to) {
		return invalidTransition(j.Status, to)
	}
	now := time.Now().UTC()
	if to == JobStatusProcessing && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if to.Terminal() && j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	j.Status = to
	j.UpdatedAt = now
	return nil
}
