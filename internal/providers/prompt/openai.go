package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"studio/internal/domain"
)

// OpenAIOptions configures the chat-completion backed refiner.
type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Fallback     Refiner
	OnFallback   func(reason string, err error)
}

// OpenAIRefiner asks an OpenAI-compatible chat completion endpoint to write
// the prompt. Any failure routes to the fallback so the dashboard never
// blocks on the assistant.
type OpenAIRefiner struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
	fallback     Refiner
	onFallback   func(reason string, err error)
}

const openAIDefaultTimeout = 15 * time.Second

func NewOpenAIRefiner(opts OpenAIOptions) (*OpenAIRefiner, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIRefiner{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		fallback:     opts.Fallback,
		onFallback:   opts.OnFallback,
	}, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIRefiner) Refine(ctx context.Context, req RefineRequest) (*RefineResponse, error) {
	if strings.TrimSpace(req.Idea) == "" {
		// Validation is not a fallback case.
		return NewStaticRefiner().Refine(ctx, req)
	}
	payload := chatRequest{
		Model:          o.model,
		Temperature:    0.7,
		ResponseFormat: &chatFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction(req.Kind)},
			{Role: "user", Content: buildUserPayload(req)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return o.useFallback(ctx, req, "encode_request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", &buf)
	if err != nil {
		return o.useFallback(ctx, req, "build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return o.useFallback(ctx, req, "http_request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return o.useFallback(ctx, req, fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("openai status %d", resp.StatusCode))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return o.useFallback(ctx, req, "decode_response", err)
	}
	if len(out.Choices) == 0 {
		return o.useFallback(ctx, req, "empty_choices", errors.New("no choices"))
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return o.useFallback(ctx, req, "empty_response", errors.New("empty response"))
	}
	var parsed RefineResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return o.useFallback(ctx, req, "parse_payload", err)
	}
	if strings.TrimSpace(parsed.Prompt) == "" {
		return o.useFallback(ctx, req, "empty_prompt", errors.New("assistant returned no prompt"))
	}
	parsed.Provider = o.model
	return &parsed, nil
}

func (o *OpenAIRefiner) useFallback(ctx context.Context, req RefineRequest, reason string, cause error) (*RefineResponse, error) {
	if o.onFallback != nil {
		o.onFallback(reason, cause)
	}
	fallback := o.fallback
	if fallback == nil {
		fallback = NewStaticRefiner()
	}
	return fallback.Refine(ctx, req)
}

func systemInstruction(kind domain.JobKind) string {
	base := "You are a prompt-writing assistant for a generative media studio. " +
		"Respond only with valid JSON containing the fields prompt, negative_prompt and keywords."
	switch kind {
	case domain.JobKindVideo:
		return base + " Describe motion, camera work and pacing suitable for a short video clip."
	case domain.JobKindAudio:
		return base + " Describe genre, mood, tempo and instrumentation for a music track."
	default:
		return base + " Describe subject, composition, lighting and style for a still image."
	}
}

func buildUserPayload(req RefineRequest) string {
	payload := map[string]string{
		"idea": strings.TrimSpace(req.Idea),
		"kind": string(req.Kind),
	}
	if s := strings.TrimSpace(req.Style); s != "" {
		payload["style"] = s
	}
	if l := strings.TrimSpace(req.Locale); l != "" {
		payload["locale"] = l
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}
