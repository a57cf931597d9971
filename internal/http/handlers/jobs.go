package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"studio/internal/cache"
	"studio/internal/domain"
	"studio/internal/middleware"
)

type jobStatusResponse struct {
	JobID     string          `json:"job_id"`
	Kind      domain.JobKind  `json:"kind"`
	Provider  string          `json:"provider"`
	Status    string          `json:"status"`
	Progress  float64         `json:"progress"`
	Attempts  int             `json:"attempts"`
	ResultRef string          `json:"result_ref,omitempty"`
	Message   string          `json:"message,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// JobStatus answers status polls. The cache absorbs repeated polls for jobs
// the worker is actively updating; the repository is the source of truth.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Jobs.GetForUser(r.Context(), jobID, userID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	resp := jobStatusResponse{
		JobID:     job.ID,
		Kind:      job.Kind,
		Provider:  job.Provider,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Attempts:  job.Attempts,
		ResultRef: job.ResultRef,
		Message:   job.ErrorMessage,
		Params:    job.SubmittedParams,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}

	// A fresher snapshot may be cached between worker writes to Postgres.
	if snap, attempts, err := a.Cache.Get(r.Context(), job.ID); err == nil && attempts >= job.Attempts {
		resp.Status = string(snap.Status)
		resp.Progress = snap.Progress
		resp.Attempts = attempts
		if snap.ResultRef != "" {
			resp.ResultRef = snap.ResultRef
		}
		if snap.Message != "" {
			resp.Message = snap.Message
		}
	} else if err != nil && !errors.Is(err, cache.ErrMiss) {
		a.Log.Debug().Err(err).Str("job_id", job.ID).Msg("snapshot cache read")
	}

	a.json(w, http.StatusOK, resp)
}

// JobAssets lists the persisted artifacts of a ready job.
func (a *App) JobAssets(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if _, err := a.Jobs.GetForUser(r.Context(), jobID, userID); err != nil {
		a.writeDomainError(w, err)
		return
	}

	assets, err := a.Assets.ListByJob(r.Context(), jobID, userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch assets")
		return
	}

	items := make([]map[string]any, 0, len(assets))
	for _, asset := range assets {
		item := map[string]any{
			"id":          asset.ID,
			"storage_key": asset.StorageKey,
			"source_url":  asset.SourceURL,
			"mime":        asset.MIME,
			"bytes":       asset.Bytes,
			"created_at":  asset.CreatedAt,
		}
		if asset.Width > 0 {
			item["width"] = asset.Width
			item["height"] = asset.Height
		}
		if a.Store != nil && asset.StorageKey != "" {
			item["url"] = a.Store.URL(asset.StorageKey)
		}
		items = append(items, item)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
