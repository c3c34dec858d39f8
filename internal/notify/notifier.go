// Package notify publishes job lifecycle events over redis pub/sub. Delivery
// is fire-and-forget; subscribers that miss an event fall back to polling
// the job status API.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"adcraft/internal/domain"
)

const publishTimeout = 2 * time.Second

// Notifier fires named events with a small property bag. Failures are
// logged only.
type Notifier struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewNotifier builds a notifier. A nil client disables publishing.
func NewNotifier(client *redis.Client, channel string, logger zerolog.Logger) *Notifier {
	return &Notifier{client: client, channel: channel, logger: logger}
}

type message struct {
	Event     string           `json:"event"`
	JobID     string           `json:"job_id"`
	JobType   domain.JobType   `json:"job_type"`
	Status    domain.JobStatus `json:"status"`
	ResultKey string           `json:"result_key,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// JobFinished publishes a terminal-status event for job.
func (n *Notifier) JobFinished(ctx context.Context, job *domain.Job) {
	if n == nil || n.client == nil || job == nil {
		return
	}
	payload, err := json.Marshal(message{
		Event:     "job.finished",
		JobID:     job.ID,
		JobType:   job.Type,
		Status:    job.Status,
		ResultKey: job.ResultKey,
		Error:     job.ErrorMessage,
	})
	if err != nil {
		n.logger.Debug().Err(err).Str("job_id", job.ID).Msg("notify: marshal failed")
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := n.client.Publish(pubCtx, n.channel, payload).Err(); err != nil {
		n.logger.Debug().Err(err).Str("job_id", job.ID).Msg("notify: publish failed")
	}
}
