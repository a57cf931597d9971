package handlers

import (
	"fmt"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"studio/internal/middleware"
	"studio/pkg/zip"
)

// JobAssetsDownload bundles every persisted artifact of a job into a single
// zip archive. Assets whose bytes cannot be read are skipped.
func (a *App) JobAssetsDownload(w http.ResponseWriter, r *http.Request) {
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
	if len(assets) == 0 || a.Store == nil {
		a.error(w, http.StatusNotFound, "not_found", "no downloadable assets for this job")
		return
	}

	entries := make([]zip.Entry, 0, len(assets))
	for _, asset := range assets {
		data, err := a.Store.Read(r.Context(), asset.StorageKey)
		if err != nil {
			a.Log.Debug().Err(err).Str("storage_key", asset.StorageKey).Msg("skip unreadable asset")
			continue
		}
		entries = append(entries, zip.Entry{Filename: path.Base(asset.StorageKey), Data: data})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no downloadable assets for this job")
		return
	}

	archive := zip.Archive(entries)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
