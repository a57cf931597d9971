// Package materialize retrieves a finished artifact from its provider result
// reference. Some provider CDNs disallow direct cross-origin retrieval from
// the dashboard, so the materializer can route the fetch through the
// same-origin transport endpoint or inline the bytes as a data URI.
package materialize

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// Artifact is the materialized result: the bytes plus a reference the UI can
// render. URL is the original reference, the proxy-routed URL or a data URI
// depending on which fallback step produced it.
type Artifact struct {
	URL    string
	Data   []byte
	MIME   string
	Inline bool
}

// Options configures a Materializer.
type Options struct {
	HTTPClient *http.Client
	Logger     *zerolog.Logger
	// RestrictedHosts lists artifact hosts known to disallow direct
	// cross-origin loads; their URLs are routed through the proxy endpoint.
	RestrictedHosts []string
	// ProxyBaseURL is the same-origin transport endpoint, e.g. "/proxy".
	ProxyBaseURL string
}

// Materializer fetches artifacts with a fixed fallback chain: direct load,
// then transport-routed load, then inline data-URI encoding. Each step runs
// at most once and in that order.
type Materializer struct {
	client     *http.Client
	logger     zerolog.Logger
	restricted map[string]struct{}
	proxyBase  string
}

// New constructs a Materializer with defaults applied.
func New(opts Options) *Materializer {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 50 * time.Second}
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	restricted := make(map[string]struct{}, len(opts.RestrictedHosts))
	for _, h := range opts.RestrictedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			restricted[h] = struct{}{}
		}
	}
	return &Materializer{
		client:     client,
		logger:     logger,
		restricted: restricted,
		proxyBase:  strings.TrimRight(opts.ProxyBaseURL, "/"),
	}
}

// Materialize resolves resultRef into artifact bytes and a renderable
// reference. All three fallback steps failing yields a terminal
// materialization error.
func (m *Materializer) Materialize(ctx context.Context, resultRef string) (*Artifact, error) {
	ref := strings.TrimSpace(resultRef)
	if ref == "" {
		return nil, domain.NewError(domain.ErrKindMaterialization, "empty result reference")
	}
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURI(ref)
	}
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return nil, domain.WrapError(domain.ErrKindMaterialization, fmt.Sprintf("invalid result reference %q", resultRef), err)
	}

	data, mime, directErr := m.fetch(ctx, ref)
	if directErr == nil && !m.hostRestricted(parsed.Host) {
		return &Artifact{URL: ref, Data: data, MIME: mime}, nil
	}
	if directErr != nil {
		m.logger.Debug().Err(directErr).Str("url", ref).Msg("materialize: direct load failed")
	}

	if m.proxyBase != "" {
		proxied := m.proxyBase + "?url=" + url.QueryEscape(ref)
		pdata, pmime, perr := m.fetch(ctx, proxied)
		if perr == nil {
			return &Artifact{URL: proxied, Data: pdata, MIME: pmime}, nil
		}
		m.logger.Debug().Err(perr).Str("url", ref).Msg("materialize: transport-routed load failed")
	}

	if directErr == nil {
		return &Artifact{URL: encodeDataURI(mime, data), Data: data, MIME: mime, Inline: true}, nil
	}
	return nil, domain.WrapError(domain.ErrKindMaterialization,
		"artifact could not be retrieved through any fallback", directErr,
		"retry the generation",
		"download the artifact directly from the provider")
}

func (m *Materializer) hostRestricted(host string) bool {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	// Bracketed IPv6 literals without a port.
	host = strings.Trim(host, "[]")
	_, ok := m.restricted[host]
	return ok
}

func (m *Materializer) fetch(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	return data, mime, nil
}

func encodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeDataURI(ref string) (*Artifact, error) {
	rest := strings.TrimPrefix(ref, "data:")
	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return nil, domain.NewError(domain.ErrKindMaterialization, "unsupported data URI encoding")
	}
	mime := rest[:idx]
	data, err := base64.StdEncoding.DecodeString(rest[idx+len(";base64,"):])
	if err != nil {
		return nil, domain.WrapError(domain.ErrKindMaterialization, "malformed data URI payload", err)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return &Artifact{URL: ref, Data: data, MIME: mime, Inline: true}, nil
}
