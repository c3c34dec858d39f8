package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adcraft/internal/domain"
)

// AnalyticsRepositoryPG implements domain.AnalyticsRepository.
type AnalyticsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepositoryPG {
	return &AnalyticsRepositoryPG{pool: pool}
}

// IncrementCounters upserts counters for the given day. Keys prefixed with
// "country:" go to the per-country table; the rest map onto the daily row.
func (r *AnalyticsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	daily := `
INSERT INTO analytics_daily (day, jobs_submitted, jobs_succeeded, jobs_failed, api_requests)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (day) DO UPDATE SET
    jobs_submitted = analytics_daily.jobs_submitted + EXCLUDED.jobs_submitted,
    jobs_succeeded = analytics_daily.jobs_succeeded + EXCLUDED.jobs_succeeded,
    jobs_failed = analytics_daily.jobs_failed + EXCLUDED.jobs_failed,
    api_requests = analytics_daily.api_requests + EXCLUDED.api_requests,
    updated_at = now();
`
	if _, err := r.pool.Exec(ctx, daily,
		day,
		counters["jobs_submitted"],
		counters["jobs_succeeded"],
		counters["jobs_failed"],
		counters["api_requests"],
	); err != nil {
		return err
	}

	for key, hits := range counters {
		country, ok := strings.CutPrefix(key, "country:")
		if !ok || country == "" || hits <= 0 {
			continue
		}
		if _, err := r.pool.Exec(ctx, `
INSERT INTO analytics_country (day, country, hits)
VALUES ($1, $2, $3)
ON CONFLICT (day, country) DO UPDATE SET hits = analytics_country.hits + EXCLUDED.hits;
`, day, country, hits); err != nil {
			return err
		}
	}
	return nil
}

// GetSummary returns the most recent daily row with its top country.
func (r *AnalyticsRepositoryPG) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	row := r.pool.QueryRow(ctx, `
SELECT d.day, d.jobs_submitted, d.jobs_succeeded, d.jobs_failed, d.api_requests,
       COALESCE((
           SELECT c.country FROM analytics_country c
           WHERE c.day = d.day
           ORDER BY c.hits DESC, c.country ASC
           LIMIT 1
       ), ''),
       d.created_at, d.updated_at
FROM analytics_daily d
ORDER BY d.day DESC
LIMIT 1;
`)

	var summary domain.AnalyticsDaily
	err := row.Scan(
		&summary.Day,
		&summary.JobsSubmitted,
		&summary.JobsSucceeded,
		&summary.JobsFailed,
		&summary.APIRequests,
		&summary.TopCountry,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}

var _ domain.AnalyticsRepository = (*AnalyticsRepositoryPG)(nil)
