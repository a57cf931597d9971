// Package suno integrates the music generation API. Music jobs follow the
// same submit-then-poll protocol as image and video generation.
package suno

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

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/lifecycle"
)

const (
	providerName   = "suno"
	maxPromptChars = 1200
	maxLyricsChars = 3000
)

// MusicParams are the user-supplied inputs for a music generation.
type MusicParams struct {
	Prompt       string `json:"prompt"`
	Lyrics       string `json:"lyrics,omitempty"`
	Style        string `json:"style,omitempty"`
	Title        string `json:"title,omitempty"`
	Instrumental bool   `json:"instrumental,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Validate rejects out-of-contract parameters before any network call.
func (p *MusicParams) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" && strings.TrimSpace(p.Lyrics) == "" {
		return domain.NewValidationError("prompt", "a prompt or lyrics are required")
	}
	if len([]rune(p.Prompt)) > maxPromptChars {
		return domain.NewValidationError("prompt", "must not exceed 1200 characters")
	}
	if len([]rune(p.Lyrics)) > maxLyricsChars {
		return domain.NewValidationError("lyrics", "must not exceed 3000 characters")
	}
	if p.Instrumental && strings.TrimSpace(p.Lyrics) != "" {
		return domain.NewValidationError("lyrics", "instrumental tracks cannot carry lyrics")
	}
	return nil
}

// Options configures the music client.
type Options struct {
	BaseURL        string
	APIKey         string
	Model          string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the music generation API and implements
// the lifecycle adapter directly; music has a single pipeline.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("suno: api key is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.sunoapi.example"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "chirp-v4"
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) Provider() string     { return providerName }
func (c *Client) Kind() domain.JobKind { return domain.JobKindAudio }

// Submit validates params and issues exactly one creation request.
func (c *Client) Submit(ctx context.Context, raw json.RawMessage) (string, error) {
	var params MusicParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return "", domain.NewValidationError("params", "malformed payload")
	}
	if err := params.Validate(); err != nil {
		return "", err
	}
	if params.Model == "" {
		params.Model = c.model
	}
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("suno: encode request: %w", err)
	}

	raw2, status, err := c.roundTrip(ctx, http.MethodPost, "/api/v1/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", classifyFailure(status, raw2)
	}
	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(raw2, &out); err != nil {
		return "", domain.WrapError(domain.ErrKindUnavailable, "suno: decode creation response", err)
	}
	if strings.TrimSpace(out.TaskID) == "" {
		return "", domain.NewError(domain.ErrKindUnavailable, "suno: creation response missing task id")
	}
	c.logger.Debug().Str("task_id", out.TaskID).Msg("suno: task created")
	return out.TaskID, nil
}

// Check issues one status round-trip and normalizes the provider vocabulary.
func (c *Client) Check(ctx context.Context, taskID string) (domain.Snapshot, error) {
	raw, status, err := c.roundTrip(ctx, http.MethodGet, "/api/v1/status/"+taskID, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if status >= 300 {
		return domain.Snapshot{}, classifyFailure(status, raw)
	}
	var out statusResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Snapshot{}, domain.WrapError(domain.ErrKindUnavailable, "suno: decode status response", err)
	}
	return normalizeStatus(out), nil
}

var _ lifecycle.Adapter = (*Client)(nil)

type statusResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	AudioURL string `json:"audio_url"`
}

func normalizeStatus(out statusResponse) domain.Snapshot {
	msg := strings.TrimSpace(out.Message)
	switch strings.ToLower(strings.TrimSpace(out.Status)) {
	case "pending", "queued", "submitted":
		return domain.Snapshot{Status: domain.JobStatusPending, Progress: 0.1, Message: msg}
	case "processing", "running", "streaming":
		return domain.Snapshot{Status: domain.JobStatusProcessing, Progress: 0.5, Message: msg}
	case "complete", "completed", "succeed":
		return domain.Snapshot{Status: domain.JobStatusReady, Progress: 1, ResultRef: strings.TrimSpace(out.AudioURL), Message: msg}
	case "moderated":
		return domain.Snapshot{Status: domain.JobStatusModerated, Message: msg}
	case "not_found":
		return domain.Snapshot{Status: domain.JobStatusNotFound, Message: msg}
	case "failed", "error":
		return domain.Snapshot{Status: domain.JobStatusFailed, Message: msg}
	default:
		return domain.Snapshot{Status: domain.JobStatusProcessing, Progress: 0.5, Message: msg}
	}
}

func classifyFailure(status int, raw []byte) error {
	var detail struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil {
		msg := detail.Message
		if msg == "" {
			msg = detail.Error
		}
		return domain.ClassifyHTTPStatus(status, msg)
	}
	return domain.ClassifyHTTPStatus(status, strings.TrimSpace(string(raw)))
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("suno: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, err
		}
		return nil, 0, domain.WrapError(domain.ErrKindUnavailable, "suno: request failed", err,
			"retry in a few seconds")
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, domain.WrapError(domain.ErrKindUnavailable, "suno: read response", err)
	}
	return data, resp.StatusCode, nil
}
