package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediagen/internal/domain"
)

const defaultReplicateBaseURL = "https://api.replicate.com/v1"

// defaultModelVersion is used when the caller passes no model or the
// generic "stable-diffusion" alias.
const defaultModelVersion = "black-forest-labs/flux-schnell:" +
	"bf2f3f8fcd2c8bafa49d6f72e342c33c5463d78947f7a0eb8a6eb5da05c4e0c2"

type ReplicateOptions struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// ReplicateClient implements Client against the Replicate predictions API.
type ReplicateClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewReplicateClient(opts ReplicateOptions) *ReplicateClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultReplicateBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &ReplicateClient{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIToken),
	}
}

type predictionRequest struct {
	Version string      `json:"version"`
	Input   SubmitInput `json:"input"`
}

type predictionResponse struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
	Error  string   `json:"error"`
	Detail string   `json:"detail"`
}

// Submit creates a prediction and returns its id.
func (c *ReplicateClient) Submit(ctx context.Context, model string, input SubmitInput) (string, error) {
	if c.token == "" {
		return "", domain.Fatal("submission", errors.New("replicate: API token is missing"))
	}
	if model == "" || model == "stable-diffusion" {
		model = defaultModelVersion
	}
	version := model
	if idx := strings.LastIndex(model, ":"); idx >= 0 {
		version = model[idx+1:]
	}
	if input.NumOutputs == 0 {
		input.NumOutputs = 1
	}

	body, err := json.Marshal(predictionRequest{Version: version, Input: input})
	if err != nil {
		return "", domain.Fatal("submission", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return "", domain.Fatal("submission", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.Transient("submission", err)
	}
	defer resp.Body.Close()

	var out predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode == http.StatusCreated {
		return "", domain.Transient("submission", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", classifyStatus("submission", resp.StatusCode, out)
	}
	if out.ID == "" {
		return "", domain.Fatal("submission", errors.New("replicate: response missing prediction id"))
	}
	return out.ID, nil
}

// Poll fetches the current prediction state.
func (c *ReplicateClient) Poll(ctx context.Context, handle string) (PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+handle, nil)
	if err != nil {
		return PollResult{}, domain.Fatal("external generation", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PollResult{}, domain.Transient("external generation", err)
	}
	defer resp.Body.Close()

	var out predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return PollResult{}, domain.Transient("external generation", err)
	}
	if resp.StatusCode != http.StatusOK {
		return PollResult{}, classifyStatus("external generation", resp.StatusCode, out)
	}

	result := PollResult{Output: out.Output, Error: out.Error}
	switch out.Status {
	case "succeeded":
		result.Status = StatusSucceeded
	case "failed", "canceled":
		result.Status = StatusFailed
	default:
		// starting / processing / queued all count as still running.
		result.Status = StatusProcessing
	}
	return result, nil
}

// Fetch downloads generated bytes from an output URL.
func (c *ReplicateClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.Fatal("download", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Transient("download", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("replicate: download http %d", resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, domain.Transient("download", err)
		}
		return nil, domain.Fatal("download", err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Transient("download", err)
	}
	return data, nil
}

// classifyStatus maps an HTTP error status to the retry taxonomy: rate
// limits and server errors are worth another attempt, everything else in
// the 4xx range means the request itself is bad.
func classifyStatus(op string, code int, out predictionResponse) error {
	msg := out.Detail
	if msg == "" {
		msg = out.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("replicate: http %d", code)
	} else {
		msg = fmt.Sprintf("replicate: http %d: %s", code, msg)
	}
	err := errors.New(msg)
	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return domain.Transient(op, err)
	}
	return domain.Fatal(op, err)
}

var _ Client = (*ReplicateClient)(nil)
