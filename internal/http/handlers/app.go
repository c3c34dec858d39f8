// Package handlers implements the public job API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"adcraft/internal/domain"
	"adcraft/internal/storage"
)

// App carries the handlers' dependencies.
type App struct {
	Jobs      domain.JobRepository
	Results   *storage.ResultStore
	Analytics domain.AnalyticsRepository
	Logger    zerolog.Logger
}

// NewApp builds the handler set.
func NewApp(jobs domain.JobRepository, results *storage.ResultStore, analytics domain.AnalyticsRepository, logger zerolog.Logger) *App {
	return &App{Jobs: jobs, Results: results, Analytics: analytics, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}

// bumpCounter increments one daily analytics counter. Best-effort only.
func (a *App) bumpCounter(ctx context.Context, key string) {
	if a.Analytics == nil {
		return
	}
	bumpCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	day := time.Now().UTC().Format("2006-01-02")
	if err := a.Analytics.IncrementCounters(bumpCtx, day, map[string]int{key: 1}); err != nil {
		a.Logger.Debug().Err(err).Str("counter", key).Msg("analytics counter failed")
	}
}

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
