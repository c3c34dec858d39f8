// Package jobs assembles the per-type step pipelines. Each step is a small
// closure over Deps; the orchestrator owns sequencing and status, the steps
// own provider calls and content shaping.
package jobs

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"adcraft/internal/domain"
	"adcraft/internal/pipeline"
	"adcraft/internal/promptcache"
	"adcraft/internal/providers/image"
	"adcraft/internal/providers/llm"
	"adcraft/internal/ranking"
	"adcraft/internal/retry"
	"adcraft/internal/storage"
	"adcraft/internal/telemetry"
)

// Deps carries everything the pipelines need. Telemetry and Ranking may be
// nil; steps degrade gracefully without them.
type Deps struct {
	LLM        llm.Chatter
	Images     image.Generator
	Prompts    *promptcache.Cache
	Results    *storage.ResultStore
	Telemetry  *telemetry.Recorder
	Ranking    *ranking.Service
	HTTPClient *http.Client
	Retry      retry.Policy
	Logger     zerolog.Logger
}

// Steps returns the pipeline for jobType. Unknown types yield nil; callers
// reject those at ingress.
func Steps(jobType domain.JobType, d Deps) []pipeline.Step {
	switch jobType {
	case domain.JobTypeResearch:
		return researchSteps(d)
	case domain.JobTypeSwipeRewrite:
		return swipeRewriteSteps(d)
	case domain.JobTypeImageGen:
		return imageGenSteps(d)
	case domain.JobTypeAvatarExtract:
		return avatarExtractSteps(d)
	}
	return nil
}

// callLLM issues one structured chat call with transient-failure retry,
// emitting a usage event per attempt.
func (d Deps) callLLM(ctx context.Context, jobID, subtask string, req llm.Request, out any) error {
	policy := d.Retry
	if policy.Retryable == nil {
		policy.Retryable = domain.IsTransient
	}
	attempt := 0
	return policy.Do(ctx, func(ctx context.Context) error {
		started := time.Now()
		usage, err := d.LLM.Chat(ctx, req, out)
		event := domain.UsageEvent{
			JobID:        jobID,
			Endpoint:     "chat.completions",
			Subtask:      subtask,
			Provider:     "openai",
			Model:        d.LLM.Model(),
			LatencyMs:    time.Since(started).Milliseconds(),
			Success:      err == nil,
			RetryAttempt: attempt,
			ErrorType:    errorType(err),
		}
		if usage != nil {
			event.Usage = domain.UsageCounters{
				InputTokens:  usage.PromptTokens,
				OutputTokens: usage.CompletionTokens,
			}
		}
		d.Telemetry.Emit(ctx, event)
		attempt++
		return err
	})
}

// errorType buckets an error for the usage event. Buckets stay coarse so the
// offline report does not fragment.
func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsValidation(err):
		return "validation"
	case domain.IsTransient(err):
		return "transient"
	case domain.IsQualityGate(err):
		return "quality_gate"
	case domain.IsPromptError(err):
		return "prompt"
	default:
		return "provider"
	}
}
