package handlers

import (
	"errors"
	"net/http"

	"adcraft/internal/domain"
)

// Stats returns today's aggregate request and job counters.
func (a *App) Stats(w http.ResponseWriter, r *http.Request) {
	if a.Analytics == nil {
		a.error(w, http.StatusNotFound, "analytics disabled")
		return
	}
	summary, err := a.Analytics.GetSummary(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, &domain.AnalyticsDaily{})
			return
		}
		a.Logger.Error().Err(err).Msg("stats summary failed")
		a.error(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	a.json(w, http.StatusOK, summary)
}
