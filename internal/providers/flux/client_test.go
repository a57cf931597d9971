package flux

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"studio/internal/domain"
)

type captureTransport struct {
	responses map[string]responseStub
	requests  []*http.Request
}

type responseStub struct {
	status int
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.requests = append(c.requests, req)
	key := req.URL.Path
	if req.URL.RawQuery != "" {
		key += "?" + req.URL.RawQuery
	}
	stub, ok := c.responses[key]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("not found"))}, nil
	}
	return &http.Response{
		StatusCode: stub.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(stub.body)),
	}, nil
}

func (c *captureTransport) setJSONResponse(key string, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[key] = responseStub{status: http.StatusOK, body: body}
}

func newTestClient(t *testing.T, transport *captureTransport) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestInpaintSubmit(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/v1/flux-pro-1.0-fill", map[string]any{"id": "flux-task-1"})
	client := newTestClient(t, transport)

	raw, _ := json.Marshal(InpaintParams{Prompt: "replace the sky", Image: "b64-image", Mask: "b64-mask"})
	taskID, err := client.Inpaint().Submit(context.Background(), raw)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if taskID != "flux-task-1" {
		t.Fatalf("task id = %q", taskID)
	}
	if got := transport.requests[0].Header.Get("x-key"); got != "test-key" {
		t.Fatalf("x-key header = %q", got)
	}
}

func TestInpaintValidationIssuesNoRequest(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)

	guidance := 200.0
	raw, _ := json.Marshal(InpaintParams{Prompt: "fix", Image: "b64", Guidance: &guidance})
	_, err := client.Inpaint().Submit(context.Background(), raw)
	derr := domain.AsError(err)
	if derr == nil || derr.Kind != domain.ErrKindValidation || derr.Field != "guidance" {
		t.Fatalf("error = %+v, want validation on guidance", derr)
	}
	if len(transport.requests) != 0 {
		t.Fatalf("validation must precede network calls")
	}
}

func TestKontextRequiresInputImage(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)

	raw, _ := json.Marshal(KontextParams{Prompt: "make it night"})
	_, err := client.Kontext().Submit(context.Background(), raw)
	derr := domain.AsError(err)
	if derr == nil || derr.Field != "input_image" {
		t.Fatalf("error = %+v, want validation on input_image", derr)
	}
}

func TestCheckNormalizationIsTotal(t *testing.T) {
	cases := []struct {
		provider string
		want     domain.JobStatus
	}{
		{"Pending", domain.JobStatusPending},
		{"Processing", domain.JobStatusProcessing},
		{"Ready", domain.JobStatusReady},
		{"Error", domain.JobStatusFailed},
		{"Request Moderated", domain.JobStatusModerated},
		{"Content Moderated", domain.JobStatusModerated},
		{"Task not found", domain.JobStatusNotFound},
		{"some future status", domain.JobStatusProcessing},
	}
	for _, tc := range cases {
		transport := &captureTransport{responses: map[string]responseStub{}}
		transport.setJSONResponse("/v1/get_result?id=task-1", map[string]any{
			"id":     "task-1",
			"status": tc.provider,
		})
		client := newTestClient(t, transport)

		snap, err := client.Inpaint().Check(context.Background(), "task-1")
		if err != nil {
			t.Fatalf("%s: check: %v", tc.provider, err)
		}
		if snap.Status != tc.want {
			t.Errorf("%q: status = %q, want %q", tc.provider, snap.Status, tc.want)
		}

		// Re-normalizing the same input yields the same output.
		again, err := client.Inpaint().Check(context.Background(), "task-1")
		if err != nil {
			t.Fatalf("%s: second check: %v", tc.provider, err)
		}
		if again.Status != snap.Status {
			t.Errorf("%q: normalization not deterministic: %q then %q", tc.provider, snap.Status, again.Status)
		}
	}
}

func TestCheckReadyCarriesSample(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/v1/get_result?id=task-1", map[string]any{
		"id":     "task-1",
		"status": "Ready",
		"result": map[string]any{"sample": "https://delivery.bfl.example/task-1.png"},
	})
	client := newTestClient(t, transport)

	snap, err := client.Kontext().Check(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if snap.Status != domain.JobStatusReady || snap.ResultRef == "" {
		t.Fatalf("snapshot = %+v, want ready with result ref", snap)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{
		"/v1/flux-pro-1.0-fill": {status: http.StatusTooManyRequests, body: []byte(`{"message":"too many requests"}`)},
	}}
	client := newTestClient(t, transport)

	raw, _ := json.Marshal(InpaintParams{Prompt: "fix", Image: "b64"})
	_, err := client.Inpaint().Submit(context.Background(), raw)
	derr := domain.AsError(err)
	if derr.Kind != domain.ErrKindRateLimited {
		t.Fatalf("kind = %q, want rate_limited", derr.Kind)
	}
	if len(derr.Suggestions) == 0 {
		t.Fatalf("rate limit errors should suggest waiting")
	}
}
