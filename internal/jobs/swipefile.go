package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adcraft/internal/domain"
	"adcraft/internal/pipeline"
	"adcraft/internal/providers/llm"
	"adcraft/internal/retry"
	"adcraft/internal/storage"
)

const (
	promptCategorySwipe = "swipe"
	// maxRewriteAttempts bounds quality-gate regeneration for swipe rewrites.
	maxRewriteAttempts = 3
)

func swipeRewriteSteps(d Deps) []pipeline.Step {
	return []pipeline.Step{
		pipeline.StepFunc{StepName: "load_swipe", Fn: d.loadSwipe},
		pipeline.StepFunc{StepName: "rewrite_swipe", Fn: d.rewriteSwipe},
	}
}

// swipeLibraryKey is the object key of one stored swipe file.
func swipeLibraryKey(swipeID string) string {
	return fmt.Sprintf("library/swipes/%s.json", swipeID)
}

// loadSwipe reads the reference copy from the swipe library. A missing swipe
// is the caller's mistake, not an outage.
func (d Deps) loadSwipe(ctx context.Context, jc *pipeline.Context) error {
	in := jc.Input.Swipe
	data, err := d.Results.LoadObject(ctx, swipeLibraryKey(in.SwipeID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Validationf("swipe file %q does not exist", in.SwipeID)
		}
		return fmt.Errorf("load swipe %s: %w", in.SwipeID, err)
	}
	var swipe domain.SwipeFile
	if err := json.Unmarshal(data, &swipe); err != nil {
		return fmt.Errorf("decode swipe %s: %w", in.SwipeID, err)
	}
	jc.Swipe = &swipe
	return nil
}

type rewriteResponse struct {
	Headline string          `json:"headline"`
	Body     string          `json:"body"`
	Rubric   pipeline.Rubric `json:"rubric"`
}

// rewriteSwipe generates the advertorial and regenerates on quality-gate
// rejection. Unlike research analysis, a rewrite is pure generation, so a
// fresh sample is genuinely a new draw; rejected drafts are discarded and
// retried up to the attempt cap.
func (d Deps) rewriteSwipe(ctx context.Context, jc *pipeline.Context) error {
	in := jc.Input.Swipe
	gate := pipeline.NewQualityGate(0)

	prompt, err := d.Prompts.Render(ctx, promptCategorySwipe, "rewrite_swipe", map[string]string{
		"swipe_headline":      jc.Swipe.Headline,
		"swipe_body":          jc.Swipe.Body,
		"product_name":        in.ProductName,
		"product_description": in.ProductDescription,
		"tone":                in.Tone,
	})
	if err != nil {
		return err
	}

	regen := retry.Policy{
		Base:       1,
		MaxRetries: maxRewriteAttempts,
		Retryable:  domain.IsQualityGate,
	}

	attempts := 0
	var out rewriteResponse
	err = regen.Do(ctx, func(ctx context.Context) error {
		attempts++
		if err := d.callLLM(ctx, jc.JobID, "rewrite_swipe", llm.Request{
			SystemPrompt: "You rewrite proven advertorials for new products, keeping the structure that made the original work. Score your own output honestly in the rubric.",
			UserPrompt:   prompt,
			SchemaName:   "swipe_rewrite",
			Schema:       llm.GenerateSchema[rewriteResponse](),
			Temperature:  llm.Temp(0.8),
		}, &out); err != nil {
			return err
		}
		return gate.Check(out.Rubric)
	})
	if err != nil {
		return err
	}

	jc.Result = &domain.SwipeRewriteResult{
		JobID:       jc.JobID,
		SwipeID:     in.SwipeID,
		Headline:    out.Headline,
		Body:        out.Body,
		Tone:        in.Tone,
		Attempts:    attempts,
		GeneratedAt: time.Now().UTC(),
	}
	return nil
}
