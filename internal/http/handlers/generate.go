package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/middleware"
)

// maxSubmitBytes bounds a creation payload. Inpaint and image-to-video
// requests carry base64 source images and masks inline, so the cap has to be
// image-sized, not JSON-sized.
const maxSubmitBytes = 32 << 20

type submitResponse struct {
	JobID    string `json:"job_id"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
}

// ImagesGenerate accepts Flux inpaint and Kontext edit requests. The pipeline
// is inferred from the payload: a request carrying input_image is an edit.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	params, ok := a.readParams(w, r)
	if !ok {
		return
	}
	name := "flux-inpaint"
	if payloadHasField(params, "input_image") {
		name = "flux-kontext"
	}
	a.submit(w, r, name, params)
}

// VideosGenerate accepts Kling generation requests. A payload carrying a
// start frame image routes to the image-to-video pipeline.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	params, ok := a.readParams(w, r)
	if !ok {
		return
	}
	name := "kling-text2video"
	if payloadHasField(params, "image") {
		name = "kling-image2video"
	}
	a.submit(w, r, name, params)
}

// MusicGenerate accepts Suno music generation requests.
func (a *App) MusicGenerate(w http.ResponseWriter, r *http.Request) {
	params, ok := a.readParams(w, r)
	if !ok {
		return
	}
	a.submit(w, r, "suno", params)
}

// readParams drains the creation payload under the size cap. Oversize bodies
// are rejected outright instead of being truncated into JSON that no longer
// parses.
func (a *App) readParams(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	params, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmitBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("request body exceeds the %d MiB limit", maxSubmitBytes>>20))
			return nil, false
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return nil, false
	}
	if len(params) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return nil, false
	}
	return params, true
}

func (a *App) submit(w http.ResponseWriter, r *http.Request, adapterName string, params []byte) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	adapter, ok := a.Adapters[adapterName]
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported provider")
		return
	}

	providerJobID, err := adapter.Submit(r.Context(), params)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	job := &domain.GenerationJob{
		ID:              uuid.NewString(),
		UserID:          userID,
		Kind:            adapter.Kind(),
		Provider:        adapter.Provider(),
		ProviderJobID:   providerJobID,
		Status:          domain.JobStatusPending,
		SubmittedParams: params,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Log.Error().Err(err).Str("provider", adapter.Provider()).Msg("persist job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record job")
		return
	}

	if a.Metrics != nil {
		a.Metrics.JobSubmitted(adapter.Kind(), adapter.Provider())
	}
	if a.Stats != nil {
		if err := a.Stats.RecordRequest(r.Context(), adapter.Kind(), a.countryOf(r)); err != nil {
			a.Log.Debug().Err(err).Msg("record stats")
		}
	}

	a.json(w, http.StatusAccepted, submitResponse{
		JobID:    job.ID,
		Provider: job.Provider,
		Status:   string(job.Status),
	})
}

func payloadHasField(params []byte, field string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(params, &probe); err != nil {
		return false
	}
	raw, ok := probe[field]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s != ""
}
