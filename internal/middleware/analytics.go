package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"adcraft/internal/domain"
	"adcraft/internal/infra/geoip"
)

// Analytics bumps daily request counters, tagged with the caller's country
// when a GeoIP database is configured. Strictly best-effort; the counter
// write runs after the response and never delays or fails the request.
func Analytics(repo domain.AnalyticsRepository, resolver geoip.CountryResolver, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if repo == nil {
				return
			}

			counters := map[string]int{"api_requests": 1}
			if resolver != nil {
				if ip := clientIP(r); ip != "" {
					if country, err := resolver.CountryCode(ip); err == nil && country != "" {
						counters["country:"+strings.ToUpper(country)] = 1
					}
				}
			}

			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			defer cancel()
			day := time.Now().UTC().Format("2006-01-02")
			if err := repo.IncrementCounters(ctx, day, counters); err != nil {
				logger.Debug().Err(err).Msg("analytics: counter write failed")
			}
		})
	}
}

// clientIP returns the best-effort client address, honoring proxies.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
