// Package httpapi assembles the public router.
package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"adcraft/internal/domain"
	"adcraft/internal/http/handlers"
	"adcraft/internal/infra/geoip"
	"adcraft/internal/middleware"
)

// Options configures the cross-cutting middleware stack.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	ServiceToken   string
	DefaultLocale  string
	RateLimit      int
	RatePeriod     time.Duration
	Analytics      domain.AnalyticsRepository
	GeoIP          geoip.CountryResolver
}

// NewRouter wires middleware and routes around the handler set.
func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}
	if opts.RatePeriod <= 0 {
		opts.RatePeriod = time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.RateLimit(opts.RateLimit, opts.RatePeriod))
	r.Use(middleware.Locale(opts.DefaultLocale))
	r.Use(middleware.Analytics(opts.Analytics, opts.GeoIP, opts.Logger))

	r.Get("/healthz", app.Health)
	r.Get("/v1/stats", app.Stats)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Use(middleware.BearerAuth(opts.ServiceToken))
		r.Post("/", app.CreateJob)
		r.Get("/{id}", app.GetJob)
		r.Get("/{id}/result", app.GetJobResult)
		r.Get("/{id}/bundle", app.GetJobBundle)
	})

	return r
}
