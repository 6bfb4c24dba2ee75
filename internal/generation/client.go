// Package generation talks to the external image generation service. The
// service is asynchronous: a submission returns a handle which is then
// polled until the prediction succeeds or fails, and successful output is
// downloaded separately.
package generation

import "context"

// Status is the external prediction status reported by a poll.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// SubmitInput carries the generation parameters for a submission.
type SubmitInput struct {
	Prompt        string  `json:"prompt"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	Steps         int     `json:"num_inference_steps,omitempty"`
	GuidanceScale float64 `json:"guidance_scale,omitempty"`
	Seed          *int    `json:"seed,omitempty"`
	NumOutputs    int     `json:"num_outputs,omitempty"`
}

// PollResult is the externally reported state of a submitted prediction.
type PollResult struct {
	Status Status
	Output []string
	Error  string
}

// Client is the generation service contract. Exactly one implementation is
// selected at process wiring time; callers never branch on the provider.
// Errors returned by all three operations are classified with
// domain.Transient or domain.Fatal at this boundary.
type Client interface {
	// Submit starts a prediction and returns the external handle.
	Submit(ctx context.Context, model string, input SubmitInput) (string, error)
	// Poll reports the current state of the prediction behind handle.
	Poll(ctx context.Context, handle string) (PollResult, error)
	// Fetch downloads produced artifact bytes from an output URL.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
