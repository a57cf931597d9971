// Package flux integrates the Flux image API for mask-based inpainting and
// Kontext reference-image editing. Both pipelines submit a task and poll a
// shared result endpoint.
package flux

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/lifecycle"
)

const (
	providerName   = "flux"
	maxPromptChars = 2000
)

var allowedOutputFormats = map[string]struct{}{"jpeg": {}, "png": {}}

// InpaintParams are the inputs for the fill pipeline. Image and Mask are
// base64-encoded; the mask's white region marks the area to repaint.
type InpaintParams struct {
	Prompt       string   `json:"prompt"`
	Image        string   `json:"image"`
	Mask         string   `json:"mask,omitempty"`
	Steps        *int     `json:"steps,omitempty"`
	Guidance     *float64 `json:"guidance,omitempty"`
	Seed         *int     `json:"seed,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
}

// Validate rejects out-of-contract parameters before any network call.
func (p *InpaintParams) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" {
		return domain.NewValidationError("prompt", "must not be empty")
	}
	if len([]rune(p.Prompt)) > maxPromptChars {
		return domain.NewValidationError("prompt", "must not exceed 2000 characters")
	}
	if strings.TrimSpace(p.Image) == "" {
		return domain.NewValidationError("image", "a source image is required")
	}
	if p.Guidance != nil && (*p.Guidance < 1.5 || *p.Guidance > 100) {
		return domain.NewValidationError("guidance", "must be between 1.5 and 100")
	}
	if p.Steps != nil && (*p.Steps < 15 || *p.Steps > 50) {
		return domain.NewValidationError("steps", "must be between 15 and 50")
	}
	if p.OutputFormat != "" {
		if _, ok := allowedOutputFormats[p.OutputFormat]; !ok {
			return domain.NewValidationError("output_format", `must be "jpeg" or "png"`)
		}
	}
	return nil
}

// KontextParams are the inputs for the Kontext editing pipeline: a natural
// language instruction applied to a reference image, no mask.
type KontextParams struct {
	Prompt       string `json:"prompt"`
	InputImage   string `json:"input_image"`
	AspectRatio  string `json:"aspect_ratio,omitempty"`
	Seed         *int   `json:"seed,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
}

// Validate rejects out-of-contract parameters before any network call.
func (p *KontextParams) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" {
		return domain.NewValidationError("prompt", "must not be empty")
	}
	if len([]rune(p.Prompt)) > maxPromptChars {
		return domain.NewValidationError("prompt", "must not exceed 2000 characters")
	}
	if strings.TrimSpace(p.InputImage) == "" {
		return domain.NewValidationError("input_image", "a reference image is required")
	}
	if p.OutputFormat != "" {
		if _, ok := allowedOutputFormats[p.OutputFormat]; !ok {
			return domain.NewValidationError("output_format", `must be "jpeg" or "png"`)
		}
	}
	return nil
}

// Options configures the Flux client.
type Options struct {
	BaseURL        string
	APIKey         string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Flux API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("flux: api key is required")
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
		baseURL = "https://api.bfl.ai"
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Inpaint returns the mask-fill adapter.
func (c *Client) Inpaint() lifecycle.Adapter {
	return &taskAdapter{client: c, name: "inpaint", path: "/v1/flux-pro-1.0-fill", validate: func(raw json.RawMessage) (any, error) {
		var p InpaintParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, domain.NewValidationError("params", "malformed payload")
		}
		return &p, p.Validate()
	}}
}

// Kontext returns the reference-image editing adapter.
func (c *Client) Kontext() lifecycle.Adapter {
	return &taskAdapter{client: c, name: "kontext", path: "/v1/flux-kontext-pro", validate: func(raw json.RawMessage) (any, error) {
		var p KontextParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, domain.NewValidationError("params", "malformed payload")
		}
		return &p, p.Validate()
	}}
}

type taskAdapter struct {
	client   *Client
	name     string
	path     string
	validate func(json.RawMessage) (any, error)
}

func (a *taskAdapter) Provider() string     { return providerName + "-" + a.name }
func (a *taskAdapter) Kind() domain.JobKind { return domain.JobKindImage }

func (a *taskAdapter) Submit(ctx context.Context, raw json.RawMessage) (string, error) {
	params, err := a.validate(raw)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("flux: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL+a.path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("flux: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-key", a.client.apiKey)

	raw2, status, err := a.client.roundTrip(req)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", classifyFailure(status, raw2)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw2, &out); err != nil {
		return "", domain.WrapError(domain.ErrKindUnavailable, "flux: decode creation response", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", domain.NewError(domain.ErrKindUnavailable, "flux: creation response missing task id")
	}
	a.client.logger.Debug().Str("pipeline", a.name).Str("task_id", out.ID).Msg("flux: task created")
	return out.ID, nil
}

func (a *taskAdapter) Check(ctx context.Context, taskID string) (domain.Snapshot, error) {
	endpoint := a.client.baseURL + "/v1/get_result?id=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("flux: build request: %w", err)
	}
	req.Header.Set("x-key", a.client.apiKey)

	raw, status, err := a.client.roundTrip(req)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if status >= 300 {
		return domain.Snapshot{}, classifyFailure(status, raw)
	}
	var out resultResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Snapshot{}, domain.WrapError(domain.ErrKindUnavailable, "flux: decode result response", err)
	}
	return normalizeResult(out), nil
}

type resultResponse struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Progress *float64 `json:"progress"`
	Details  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"details"`
	Result struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// normalizeResult maps the provider status vocabulary onto the domain
// taxonomy. Every supported string yields exactly one status and the mapping
// is deterministic.
func normalizeResult(out resultResponse) domain.Snapshot {
	progress := 0.5
	if out.Progress != nil && *out.Progress >= 0 && *out.Progress <= 1 {
		progress = *out.Progress
	}
	switch strings.ToLower(strings.TrimSpace(out.Status)) {
	case "pending":
		return domain.Snapshot{Status: domain.JobStatusPending, Progress: minFloat(progress, 0.1)}
	case "processing", "running":
		return domain.Snapshot{Status: domain.JobStatusProcessing, Progress: progress}
	case "ready":
		return domain.Snapshot{Status: domain.JobStatusReady, Progress: 1, ResultRef: strings.TrimSpace(out.Result.Sample)}
	case "request moderated", "content moderated":
		return domain.Snapshot{Status: domain.JobStatusModerated, Message: out.Details.Message}
	case "task not found":
		return domain.Snapshot{Status: domain.JobStatusNotFound}
	case "error", "failed":
		return domain.Snapshot{Status: domain.JobStatusFailed, Message: out.Details.Message}
	default:
		return domain.Snapshot{Status: domain.JobStatusProcessing, Progress: progress}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func classifyFailure(status int, raw []byte) error {
	var detail struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil {
		if detail.Code != 0 {
			return domain.ClassifyProviderCode(providerName, detail.Code, firstNonEmpty(detail.Message, detail.Detail))
		}
		return domain.ClassifyHTTPStatus(status, firstNonEmpty(detail.Message, detail.Detail))
	}
	return domain.ClassifyHTTPStatus(status, strings.TrimSpace(string(raw)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) roundTrip(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, err
		}
		return nil, 0, domain.WrapError(domain.ErrKindUnavailable, "flux: request failed", err,
			"retry in a few seconds")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, domain.WrapError(domain.ErrKindUnavailable, "flux: read response", err)
	}
	return raw, resp.StatusCode, nil
}
