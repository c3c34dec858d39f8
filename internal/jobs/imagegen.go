package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"adcraft/internal/domain"
	"adcraft/internal/pipeline"
	"adcraft/internal/providers/image"
)

func imageGenSteps(d Deps) []pipeline.Step {
	return []pipeline.Step{
		pipeline.StepFunc{StepName: "plan_prompts", Fn: d.planPrompts},
		pipeline.StepFunc{StepName: "generate_images", Fn: d.generateImages},
	}
}

// planPrompts fills per-unit defaults so every fan-out unit is fully
// specified before any provider call.
func (d Deps) planPrompts(ctx context.Context, jc *pipeline.Context) error {
	prompts := jc.Input.ImageGen.Prompts
	byRole := map[string]int{}
	for i := range prompts {
		p := &prompts[i]
		if p.Role == "" {
			p.Role = "section"
		}
		if p.AspectRatio == "" {
			if p.Role == "hero" {
				p.AspectRatio = "16:9"
			} else {
				p.AspectRatio = "1:1"
			}
		}
		if p.Index == 0 {
			p.Index = byRole[p.Role]
		}
		byRole[p.Role] = p.Index + 1
	}
	return nil
}

// generateImages runs every prompt concurrently. Each unit generates and
// uploads on its own; a failed unit is logged and dropped while its siblings
// continue. The step fails only when not a single unit produced an image.
func (d Deps) generateImages(ctx context.Context, jc *pipeline.Context) error {
	prompts := jc.Input.ImageGen.Prompts

	var (
		mu      sync.Mutex
		entries []domain.ImageEntry
		wg      sync.WaitGroup
	)
	for _, p := range prompts {
		wg.Add(1)
		go func(p domain.ImagePrompt) {
			defer wg.Done()
			entry, err := d.generateOne(ctx, jc.JobID, p)
			if err != nil {
				d.Logger.Warn().Err(err).
					Str("job_id", jc.JobID).
					Str("role", p.Role).
					Int("index", p.Index).
					Msg("image unit failed, dropping")
				return
			}
			mu.Lock()
			entries = append(entries, *entry)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	if len(entries) == 0 {
		return fmt.Errorf("image generation: all %d units failed", len(prompts))
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Role != entries[j].Role {
			return entries[i].Role < entries[j].Role
		}
		return entries[i].Index < entries[j].Index
	})

	jc.Images = entries
	jc.Result = &domain.ImageGenResult{
		JobID:       jc.JobID,
		Images:      entries,
		GeneratedAt: time.Now().UTC(),
	}
	return nil
}

// generateOne is a single fan-out unit: one provider call with retry, one
// upload.
func (d Deps) generateOne(ctx context.Context, jobID string, p domain.ImagePrompt) (*domain.ImageEntry, error) {
	policy := d.Retry
	if policy.Retryable == nil {
		policy.Retryable = domain.IsTransient
	}

	attempt := 0
	var asset *image.Asset
	err := policy.Do(ctx, func(ctx context.Context) error {
		started := time.Now()
		a, err := d.Images.Generate(ctx, image.GenerateRequest{
			Prompt:      p.Prompt,
			AspectRatio: p.AspectRatio,
			RequestID:   fmt.Sprintf("%s/%s-%02d", jobID, p.Role, p.Index),
		})
		event := domain.UsageEvent{
			JobID:        jobID,
			Endpoint:     "images.generate",
			Subtask:      "generate_images",
			Provider:     "gemini",
			Model:        d.Images.Model(),
			LatencyMs:    time.Since(started).Milliseconds(),
			Success:      err == nil,
			RetryAttempt: attempt,
			ErrorType:    errorType(err),
		}
		if err == nil {
			event.Usage = domain.UsageCounters{Images: 1}
		}
		d.Telemetry.Emit(ctx, event)
		attempt++
		if err != nil {
			return err
		}
		asset = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	key, err := d.Results.SaveImage(ctx, jobID, p.Role, p.Index, extFromFormat(asset.Format), asset.Format, asset.Data)
	if err != nil {
		return nil, err
	}
	return &domain.ImageEntry{
		Role:   p.Role,
		Index:  p.Index,
		Key:    key,
		Format: asset.Format,
		Width:  asset.Width,
		Height: asset.Height,
	}, nil
}

func extFromFormat(format string) string {
	switch format {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
