package handlers

import (
	"net/http"
	"time"
)

// StatsDaily reports today's request counts by media kind.
func (a *App) StatsDaily(w http.ResponseWriter, r *http.Request) {
	counts, err := a.Stats.Daily(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"day":      time.Now().UTC().Format("2006-01-02"),
		"requests": counts,
	})
}
