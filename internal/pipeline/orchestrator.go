package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"adcraft/internal/domain"
	"adcraft/internal/notify"
	"adcraft/internal/storage"
)

// Orchestrator drives a job through its steps and owns every status
// transition. Steps compute; the orchestrator persists. Status writes and
// notifications are side channels and never fail the job.
type Orchestrator struct {
	Jobs     domain.JobRepository
	Results  *storage.ResultStore
	Notifier *notify.Notifier
	Logger   zerolog.Logger

	// FixtureJobID is the source job whose stored results are replayed when
	// a job arrives with dev mode set.
	FixtureJobID string
}

// Response is the orchestrator's verdict on one run, shaped for the HTTP
// layer: the worker logs it, the synchronous API path returns it directly.
type Response struct {
	StatusCode int `json:"-"`
	Body       any `json:"body"`
}

type successBody struct {
	JobID     string           `json:"job_id"`
	Status    domain.JobStatus `json:"status"`
	ResultKey string           `json:"result_key"`
	Steps     []StepResult     `json:"steps,omitempty"`
}

type failureBody struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
	Error  string           `json:"error"`
}

// Run executes steps in order against jc. On entry the job is marked
// RUNNING; the first step error marks it FAILED with the error message and
// stops the run; completing all steps persists jc.Result and only then marks
// SUCCEEDED. A job in dev mode skips the steps entirely and replays the
// fixture job's stored result through the same transitions.
func (o *Orchestrator) Run(ctx context.Context, jc *Context, steps []Step) *Response {
	logger := o.Logger.With().Str("job_id", jc.JobID).Str("job_type", string(jc.JobType)).Logger()

	BestEffort(logger, "status.running", func() error {
		return o.Jobs.UpdateStatus(ctx, jc.JobID, domain.JobStatusRunning, nil, "")
	})

	if jc.DevMode {
		return o.replay(ctx, jc, logger)
	}

	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		started := time.Now()
		err := step.Run(ctx, jc)
		elapsed := time.Since(started).Milliseconds()
		results = append(results, StepResult{Subtask: step.Name(), Success: err == nil, LatencyMs: elapsed})
		if err != nil {
			logger.Error().Err(err).Str("step", step.Name()).Int64("latency_ms", elapsed).Msg("pipeline step failed")
			return o.fail(ctx, jc, logger, err)
		}
		logger.Info().Str("step", step.Name()).Int64("latency_ms", elapsed).Msg("pipeline step completed")
	}

	stage := jc.JobType.TerminalStage()
	key, err := o.Results.Save(ctx, jc.JobID, stage, jc.Result)
	if err != nil {
		return o.fail(ctx, jc, logger, err)
	}
	return o.succeed(ctx, jc, logger, key, results)
}

// replay copies the fixture job's terminal result into this job's keyspace
// instead of running provider-backed steps.
func (o *Orchestrator) replay(ctx context.Context, jc *Context, logger zerolog.Logger) *Response {
	stage := jc.JobType.TerminalStage()
	key, err := o.Results.Copy(ctx, o.FixtureJobID, jc.JobID, stage)
	if err != nil {
		logger.Error().Err(err).Str("fixture_job_id", o.FixtureJobID).Msg("dev mode replay failed")
		return o.fail(ctx, jc, logger, err)
	}
	logger.Info().Str("fixture_job_id", o.FixtureJobID).Msg("dev mode replay served")
	return o.succeed(ctx, jc, logger, key, nil)
}

func (o *Orchestrator) succeed(ctx context.Context, jc *Context, logger zerolog.Logger, resultKey string, steps []StepResult) *Response {
	BestEffort(logger, "status.succeeded", func() error {
		return o.Jobs.UpdateStatus(ctx, jc.JobID, domain.JobStatusSucceeded, nil, resultKey)
	})
	BestEffort(logger, "notify.finished", func() error {
		o.Notifier.JobFinished(ctx, &domain.Job{
			ID:        jc.JobID,
			Type:      jc.JobType,
			Status:    domain.JobStatusSucceeded,
			ResultKey: resultKey,
		})
		return nil
	})
	return &Response{
		StatusCode: http.StatusOK,
		Body: successBody{
			JobID:     jc.JobID,
			Status:    domain.JobStatusSucceeded,
			ResultKey: resultKey,
			Steps:     steps,
		},
	}
}

func (o *Orchestrator) fail(ctx context.Context, jc *Context, logger zerolog.Logger, cause error) *Response {
	msg := cause.Error()
	BestEffort(logger, "status.failed", func() error {
		return o.Jobs.UpdateStatus(ctx, jc.JobID, domain.JobStatusFailed, &msg, "")
	})
	BestEffort(logger, "notify.finished", func() error {
		o.Notifier.JobFinished(ctx, &domain.Job{
			ID:           jc.JobID,
			Type:         jc.JobType,
			Status:       domain.JobStatusFailed,
			ErrorMessage: msg,
		})
		return nil
	})

	status := http.StatusInternalServerError
	if domain.IsValidation(cause) {
		status = http.StatusBadRequest
	}
	return &Response{
		StatusCode: status,
		Body: failureBody{
			JobID:  jc.JobID,
			Status: domain.JobStatusFailed,
			Error:  msg,
		},
	}
}
