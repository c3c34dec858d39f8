package domain

import "time"

// AnalyticsDaily aggregates per-day request counters for the stats endpoint.
type AnalyticsDaily struct {
	Day            string
	JobsSubmitted  int
	JobsSucceeded  int
	JobsFailed     int
	APIRequests    int
	TopCountry     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
