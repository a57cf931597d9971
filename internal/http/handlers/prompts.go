package handlers

import (
	"encoding/json"
	"net/http"

	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/internal/providers/prompt"
)

type promptRefineRequest struct {
	Idea   string `json:"idea"`
	Kind   string `json:"kind"`
	Style  string `json:"style"`
	Locale string `json:"locale"`
}

// PromptsRefine turns a rough idea into a generation-ready prompt.
func (a *App) PromptsRefine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req promptRefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	kind := domain.JobKind(req.Kind)
	switch kind {
	case domain.JobKindImage, domain.JobKindVideo, domain.JobKindAudio:
	case "":
		kind = domain.JobKindImage
	default:
		a.writeDomainError(w, domain.NewValidationError("kind", "must be image, video or audio"))
		return
	}

	res, err := a.Refiner.Refine(r.Context(), prompt.RefineRequest{
		Idea:   req.Idea,
		Kind:   kind,
		Style:  req.Style,
		Locale: req.Locale,
	})
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.json(w, http.StatusOK, res)
}
