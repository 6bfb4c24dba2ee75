package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediagen/internal/domain"
)

func TestReplicateSubmit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predictions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token test-token" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		var payload predictionRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.Input.Prompt != "a red fox" {
			t.Fatalf("prompt mismatch: %s", payload.Input.Prompt)
		}
		if payload.Input.NumOutputs != 1 {
			t.Fatalf("num_outputs mismatch: %d", payload.Input.NumOutputs)
		}
		if payload.Version == "" {
			t.Fatal("version missing")
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(predictionResponse{ID: "pred-1", Status: "processing"})
	}))
	defer ts.Close()

	client := NewReplicateClient(ReplicateOptions{APIToken: "test-token", BaseURL: ts.URL})
	handle, err := client.Submit(context.Background(), "stable-diffusion", SubmitInput{Prompt: "a red fox"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if handle != "pred-1" {
		t.Fatalf("unexpected handle: %s", handle)
	}
}

func TestReplicateSubmitMissingToken(t *testing.T) {
	client := NewReplicateClient(ReplicateOptions{})
	_, err := client.Submit(context.Background(), "m", SubmitInput{Prompt: "p"})
	if !domain.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestReplicateSubmitClassifiesHTTPStatus(t *testing.T) {
	cases := []struct {
		code      int
		transient bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tc := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
			_ = json.NewEncoder(w).Encode(predictionResponse{Detail: "nope"})
		}))
		client := NewReplicateClient(ReplicateOptions{APIToken: "t", BaseURL: ts.URL})
		_, err := client.Submit(context.Background(), "m", SubmitInput{Prompt: "p"})
		ts.Close()
		if err == nil {
			t.Fatalf("http %d: expected error", tc.code)
		}
		if got := domain.IsTransient(err); got != tc.transient {
			t.Fatalf("http %d: transient classification got %v want %v (%v)", tc.code, got, tc.transient, err)
		}
	}
}

func TestReplicatePollMapsStatuses(t *testing.T) {
	cases := []struct {
		external string
		want     Status
	}{
		{"starting", StatusProcessing},
		{"processing", StatusProcessing},
		{"succeeded", StatusSucceeded},
		{"failed", StatusFailed},
		{"canceled", StatusFailed},
	}
	for _, tc := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/predictions/pred-9" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode(predictionResponse{
				ID:     "pred-9",
				Status: tc.external,
				Output: []string{"https://x/img.png"},
			})
		}))
		client := NewReplicateClient(ReplicateOptions{APIToken: "t", BaseURL: ts.URL})
		res, err := client.Poll(context.Background(), "pred-9")
		ts.Close()
		if err != nil {
			t.Fatalf("Poll(%s) error: %v", tc.external, err)
		}
		if res.Status != tc.want {
			t.Fatalf("Poll(%s): got %s want %s", tc.external, res.Status, tc.want)
		}
	}
}

func TestReplicateFetch(t *testing.T) {
	payload := []byte("binary-image-bytes")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer ts.Close()

	client := NewReplicateClient(ReplicateOptions{APIToken: "t"})
	data, err := client.Fetch(context.Background(), ts.URL+"/img.png")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("fetched bytes mismatch: %q", data)
	}
}

func TestMockClientLifecycle(t *testing.T) {
	client := NewMockClient(MockOptions{PollsUntilDone: 2})
	handle, err := client.Submit(context.Background(), "m", SubmitInput{Prompt: "p"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	for i := 0; i < 2; i++ {
		res, err := client.Poll(context.Background(), handle)
		if err != nil {
			t.Fatalf("Poll %d error: %v", i, err)
		}
		if res.Status != StatusProcessing {
			t.Fatalf("Poll %d: got %s want processing", i, res.Status)
		}
	}
	res, err := client.Poll(context.Background(), handle)
	if err != nil {
		t.Fatalf("final Poll error: %v", err)
	}
	if res.Status != StatusSucceeded || len(res.Output) != 1 {
		t.Fatalf("final Poll: %+v", res)
	}
	data, err := client.Fetch(context.Background(), res.Output[0])
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(data) == 0 || string(data[1:4]) != "PNG" {
		t.Fatalf("expected PNG payload, got %d bytes", len(data))
	}
}

func TestMockClientRejectsEmptyPrompt(t *testing.T) {
	client := NewMockClient(MockOptions{})
	_, err := client.Submit(context.Background(), "m", SubmitInput{})
	if !domain.IsFatal(err) {
		t.Fatalf("expected fatal error for empty prompt, got %v", err)
	}
}
