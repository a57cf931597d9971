// Package kling integrates the Kling video generation API: HS256 token
// minting, task creation and task polling for both text-to-video and
// image-to-video pipelines.
package kling

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

const providerName = "kling"

// Options configures the Kling client.
type Options struct {
	BaseURL        string
	Signer         Signer
	Model          string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Kling task API. The text-to-video
// and image-to-video pipelines share the client and differ only in path and
// validation; Text2Video and Image2Video return the per-pipeline adapters.
type Client struct {
	baseURL    string
	signer     Signer
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if opts.Signer == nil {
		return nil, errors.New("kling: signer is required")
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
		baseURL = "https://api.klingai.com"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "kling-v1-6"
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		baseURL:    baseURL,
		signer:     opts.Signer,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Text2Video returns the text-to-video adapter.
func (c *Client) Text2Video() lifecycle.Adapter {
	return &taskAdapter{client: c, path: "text2video", requireImage: false}
}

// Image2Video returns the image-to-video adapter.
func (c *Client) Image2Video() lifecycle.Adapter {
	return &taskAdapter{client: c, path: "image2video", requireImage: true}
}

type taskAdapter struct {
	client       *Client
	path         string
	requireImage bool
}

func (a *taskAdapter) Provider() string {
	return providerName + "-" + a.path
}

func (a *taskAdapter) Kind() domain.JobKind { return domain.JobKindVideo }

// Submit validates params and issues exactly one creation request.
func (a *taskAdapter) Submit(ctx context.Context, raw json.RawMessage) (string, error) {
	var params VideoParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return "", domain.NewValidationError("params", "malformed payload")
	}
	if err := params.Validate(a.requireImage); err != nil {
		return "", err
	}
	if params.ModelName == "" {
		params.ModelName = a.client.model
	}
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("kling: encode request: %w", err)
	}

	var out taskEnvelope
	if err := a.client.do(ctx, http.MethodPost, "/v1/videos/"+a.path, bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	taskID := strings.TrimSpace(out.Data.TaskID)
	if taskID == "" {
		return "", domain.NewError(domain.ErrKindUnavailable, "kling: creation response missing task id")
	}
	a.client.logger.Debug().
		Str("pipeline", a.path).
		Str("task_id", taskID).
		Msg("kling: task created")
	return taskID, nil
}

// Check issues one status round-trip and normalizes the provider vocabulary.
func (a *taskAdapter) Check(ctx context.Context, taskID string) (domain.Snapshot, error) {
	var out taskEnvelope
	if err := a.client.do(ctx, http.MethodGet, "/v1/videos/"+a.path+"/"+taskID, nil, &out); err != nil {
		return domain.Snapshot{}, err
	}
	return normalizeTask(out.Data), nil
}

type taskEnvelope struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Data    taskData `json:"data"`
}

type taskData struct {
	TaskID        string `json:"task_id"`
	TaskStatus    string `json:"task_status"`
	TaskStatusMsg string `json:"task_status_msg"`
	TaskResult    struct {
		Videos []struct {
			URL      string `json:"url"`
			Duration string `json:"duration"`
		} `json:"videos"`
	} `json:"task_result"`
}

// normalizeTask maps the provider status strings onto the domain taxonomy.
// The mapping is total: unrecognized strings count as still processing so the
// attempt ceiling, not a parser, bounds the loop.
func normalizeTask(data taskData) domain.Snapshot {
	msg := strings.TrimSpace(data.TaskStatusMsg)
	switch strings.ToLower(strings.TrimSpace(data.TaskStatus)) {
	case "submitted", "pending":
		return domain.Snapshot{Status: domain.JobStatusPending, Progress: 0.1, Message: msg}
	case "processing":
		return domain.Snapshot{Status: domain.JobStatusProcessing, Progress: 0.5, Message: msg}
	case "succeed", "succeeded":
		ref := ""
		if len(data.TaskResult.Videos) > 0 {
			ref = strings.TrimSpace(data.TaskResult.Videos[0].URL)
		}
		return domain.Snapshot{Status: domain.JobStatusReady, Progress: 1, ResultRef: ref, Message: msg}
	case "failed", "error":
		if looksModerated(msg) {
			return domain.Snapshot{Status: domain.JobStatusModerated, Message: msg}
		}
		return domain.Snapshot{Status: domain.JobStatusFailed, Message: msg}
	default:
		return domain.Snapshot{Status: domain.JobStatusProcessing, Progress: 0.5, Message: msg}
	}
}

func looksModerated(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "moderat") || strings.Contains(lower, "risk control")
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out *taskEnvelope) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("kling: build request: %w", err)
	}
	token, err := c.signer.Token(time.Now())
	if err != nil {
		return domain.WrapError(domain.ErrKindAuth, "kling: mint request token", err,
			"verify the access key and secret key are configured")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return domain.WrapError(domain.ErrKindUnavailable, "kling: request failed", err,
			"retry in a few seconds")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WrapError(domain.ErrKindUnavailable, "kling: read response", err)
	}
	if resp.StatusCode >= 300 {
		detail := ""
		var envelope taskEnvelope
		if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && envelope.Message != "" {
			detail = envelope.Message
		}
		return domain.ClassifyHTTPStatus(resp.StatusCode, detail)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.ErrKindUnavailable, "kling: decode response", err)
	}
	if out.Code != 0 {
		if strings.Contains(strings.ToLower(out.Message), "not found") ||
			strings.Contains(strings.ToLower(out.Message), "not exist") {
			return domain.NewError(domain.ErrKindNotFound, "kling: "+out.Message)
		}
		return domain.ClassifyProviderCode(providerName, out.Code, out.Message)
	}
	return nil
}
