package prompt

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

func TestStaticRefinerTailorsToKind(t *testing.T) {
	r := NewStaticRefiner()

	video, err := r.Refine(context.Background(), RefineRequest{Idea: "a red fox in snow", Kind: domain.JobKindVideo})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if !strings.Contains(video.Prompt, "camera") {
		t.Errorf("video prompt should mention camera work: %q", video.Prompt)
	}

	audio, err := r.Refine(context.Background(), RefineRequest{Idea: "rainy evening jazz", Kind: domain.JobKindAudio})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if !strings.Contains(audio.Prompt, "melody") {
		t.Errorf("audio prompt should mention melody: %q", audio.Prompt)
	}
}

func TestStaticRefinerRejectsEmptyIdea(t *testing.T) {
	_, err := NewStaticRefiner().Refine(context.Background(), RefineRequest{})
	derr := domain.AsError(err)
	if derr == nil || derr.Kind != domain.ErrKindValidation {
		t.Fatalf("error = %+v, want validation", derr)
	}
}

type chatStub struct {
	status  int
	content string
}

func (c chatStub) RoundTrip(req *http.Request) (*http.Response, error) {
	body, _ := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": c.content}},
		},
	})
	return &http.Response{
		StatusCode: c.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, nil
}

func TestOpenAIRefinerParsesAssistantJSON(t *testing.T) {
	content, _ := json.Marshal(map[string]any{
		"prompt":          "A red fox trotting through fresh snow, golden hour light",
		"negative_prompt": "blurry",
		"keywords":        []string{"fox", "snow"},
	})
	refiner, err := NewOpenAIRefiner(OpenAIOptions{
		APIKey:     "sk-test",
		HTTPClient: &http.Client{Transport: chatStub{status: 200, content: string(content)}},
	})
	if err != nil {
		t.Fatalf("new refiner: %v", err)
	}

	out, err := refiner.Refine(context.Background(), RefineRequest{Idea: "fox in snow", Kind: domain.JobKindImage})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if !strings.Contains(out.Prompt, "fox") {
		t.Fatalf("prompt = %q", out.Prompt)
	}
	if out.Provider != "gpt-4o-mini" {
		t.Fatalf("provider = %q, want default model", out.Provider)
	}
}

func TestOpenAIRefinerFallsBackOnHTTPError(t *testing.T) {
	var reason string
	refiner, err := NewOpenAIRefiner(OpenAIOptions{
		APIKey:     "sk-test",
		HTTPClient: &http.Client{Transport: chatStub{status: http.StatusBadGateway}},
		OnFallback: func(r string, err error) { reason = r },
	})
	if err != nil {
		t.Fatalf("new refiner: %v", err)
	}

	out, err := refiner.Refine(context.Background(), RefineRequest{Idea: "fox in snow", Kind: domain.JobKindImage})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if out.Provider != staticProviderName {
		t.Fatalf("provider = %q, want static fallback", out.Provider)
	}
	if reason != "http_502" {
		t.Fatalf("fallback reason = %q", reason)
	}
}

func TestOpenAIRefinerFallsBackOnMalformedPayload(t *testing.T) {
	refiner, err := NewOpenAIRefiner(OpenAIOptions{
		APIKey:     "sk-test",
		HTTPClient: &http.Client{Transport: chatStub{status: 200, content: "not json at all"}},
	})
	if err != nil {
		t.Fatalf("new refiner: %v", err)
	}

	out, err := refiner.Refine(context.Background(), RefineRequest{Idea: "fox in snow"})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if out.Provider != staticProviderName {
		t.Fatalf("provider = %q, want static fallback", out.Provider)
	}
}
