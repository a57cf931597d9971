package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"studio/internal/cache"
	"studio/internal/domain"
	"studio/internal/infra/geoip"
	"studio/internal/lifecycle"
	"studio/internal/metrics"
	"studio/internal/providers/prompt"
	"studio/internal/storage"
)

// App bundles the dependencies shared by all HTTP handlers.
type App struct {
	Log      zerolog.Logger
	Jobs     domain.JobRepository
	Assets   domain.AssetRepository
	Stats    domain.StatsRepository
	Cache    *cache.JobCache
	Metrics  *metrics.Metrics
	Adapters map[string]lifecycle.Adapter
	Refiner  prompt.Refiner
	Geo      geoip.CountryResolver
	Store    storage.Store

	ProxyClient     *http.Client
	ProxyAllowHosts []string
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Kind        string   `json:"kind"`
	Field       string   `json:"field,omitempty"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
	Retryable   bool     `json:"retryable"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]any{"error": errorBody{Kind: kind, Message: message}})
}

// writeDomainError maps the failure taxonomy onto HTTP status codes and
// serializes the structured body, suggestions included.
func (a *App) writeDomainError(w http.ResponseWriter, err error) {
	derr := domain.AsError(err)
	a.json(w, statusForKind(derr.Kind), map[string]any{"error": errorBody{
		Kind:        string(derr.Kind),
		Field:       derr.Field,
		Message:     derr.Message,
		Suggestions: derr.Suggestions,
		Retryable:   derr.Retryable(),
	}})
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrKindValidation:
		return http.StatusBadRequest
	case domain.ErrKindAuth:
		return http.StatusUnauthorized
	case domain.ErrKindRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrKindRejected:
		return http.StatusUnprocessableEntity
	case domain.ErrKindNotFound:
		return http.StatusNotFound
	case domain.ErrKindTimedOut:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// countryOf resolves the request origin country for stats tagging. A nil
// resolver or lookup failure yields the empty string.
func (a *App) countryOf(r *http.Request) string {
	if a.Geo == nil {
		return ""
	}
	country, err := a.Geo.CountryCode(clientIP(r))
	if err != nil {
		return ""
	}
	return country
}
