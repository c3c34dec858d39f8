// Package telemetry emits one immutable usage event per provider call to an
// append-only object sink. Emission is strictly best-effort: a recorder
// never returns an error and never fails or blocks the job that called it.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adcraft/internal/domain"
	"adcraft/internal/storage"
)

const emitTimeout = 2 * time.Second

// Recorder writes usage events, partitioned by date/hour/job so the offline
// cost reporting batch can prune its scans.
type Recorder struct {
	sink   storage.ObjectStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewRecorder builds a recorder over sink. A nil sink disables emission.
func NewRecorder(sink storage.ObjectStore, logger zerolog.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger, now: time.Now}
}

// EventKey derives the partitioned sink key for one event.
func EventKey(ts time.Time, jobID, eventID string) string {
	ts = ts.UTC()
	return fmt.Sprintf("usage/dt=%s/hr=%02d/job=%s/%s.json",
		ts.Format("2006-01-02"), ts.Hour(), jobID, eventID)
}

// Emit records one event. Missing id/timestamp fields are filled in. All
// failures, including panics in the sink, are swallowed and logged at debug
// level only.
func (r *Recorder) Emit(ctx context.Context, event domain.UsageEvent) {
	if r == nil || r.sink == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Debug().Interface("panic", rec).Msg("telemetry: emit panicked")
		}
	}()

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Debug().Err(err).Str("job_id", event.JobID).Msg("telemetry: marshal event failed")
		return
	}

	// Detach from the job's deadline so a cancelled step can still account
	// its final attempt, but bound the write so it cannot stall completion.
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	key := EventKey(event.Timestamp, event.JobID, event.EventID)
	if err := r.sink.Put(emitCtx, key, data, "application/json"); err != nil {
		r.logger.Debug().Err(err).Str("key", key).Msg("telemetry: emit failed")
	}
}
