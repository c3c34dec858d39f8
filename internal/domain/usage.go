package domain

import "time"

// UsageCounters carries the billable units of one provider call. Zero-valued
// fields are omitted from the event object.
type UsageCounters struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	Images       int `json:"images,omitempty"`
	Searches     int `json:"searches,omitempty"`
}

// UsageEvent is one immutable record per provider call, appended to the
// telemetry sink and never updated. Cost reporting aggregates these offline.
type UsageEvent struct {
	EventID      string        `json:"event_id"`
	Timestamp    time.Time     `json:"timestamp"`
	JobID        string        `json:"job_id"`
	Endpoint     string        `json:"endpoint"`
	Subtask      string        `json:"subtask"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	LatencyMs    int64         `json:"latency_ms"`
	Success      bool          `json:"success"`
	RetryAttempt int           `json:"retry_attempt"`
	Usage        UsageCounters `json:"usage"`
	ErrorType    string        `json:"error_type,omitempty"`
}
