package domain

import "context"

// JobRepository is the durable job status store. UpdateStatus is
// last-write-wins; callers on the execution path must treat write failures
// as best-effort (log and continue), while read failures propagate to the
// poller.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg *string, resultKey string) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
}

// PromptRow is one template row returned by the prompt source.
type PromptRow struct {
	FunctionName  string
	Content       string
	VersionNumber int
}

// PromptSource batch-loads every template version for one category.
type PromptSource interface {
	ListByCategory(ctx context.Context, category string) ([]PromptRow, error)
}

// AnalyticsRepository updates request counters. Best-effort only.
type AnalyticsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int) error
	GetSummary(ctx context.Context) (*AnalyticsDaily, error)
}
