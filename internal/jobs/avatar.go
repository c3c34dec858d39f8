package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"adcraft/internal/domain"
	"adcraft/internal/pipeline"
	"adcraft/internal/providers/llm"
	"adcraft/internal/ranking"
	"adcraft/internal/storage"
)

const promptCategoryAvatar = "avatar"

func avatarExtractSteps(d Deps) []pipeline.Step {
	return []pipeline.Step{
		pipeline.StepFunc{StepName: "load_research", Fn: d.loadResearch},
		pipeline.StepFunc{StepName: "extract_avatar", Fn: d.extractAvatar},
		pipeline.StepFunc{StepName: "match_templates", Fn: d.matchTemplates},
	}
}

// loadResearch resolves the source text: the stored result of a prior
// research job when an id is given, inline text otherwise.
func (d Deps) loadResearch(ctx context.Context, jc *pipeline.Context) error {
	in := jc.Input.Avatar
	if strings.TrimSpace(in.ResearchJobID) == "" {
		jc.PageText = in.ResearchText
		return nil
	}

	var research domain.ResearchResult
	err := d.Results.Load(ctx, in.ResearchJobID, domain.JobTypeResearch.TerminalStage(), &research)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Validationf("research job %q has no stored result", in.ResearchJobID)
		}
		return fmt.Errorf("load research %s: %w", in.ResearchJobID, err)
	}

	var b strings.Builder
	b.WriteString("Product: " + research.ProductName + "\n")
	b.WriteString("Audience: " + research.Analysis.Audience + "\n")
	b.WriteString("Summary: " + research.Analysis.Summary + "\n")
	if len(research.Analysis.Hooks) > 0 {
		b.WriteString("Hooks:\n" + strings.Join(research.Analysis.Hooks, "\n") + "\n")
	}
	if len(research.Analysis.Objections) > 0 {
		b.WriteString("Objections:\n" + strings.Join(research.Analysis.Objections, "\n") + "\n")
	}
	jc.PageText = b.String()
	return nil
}

// extractAvatar distills the research text into a structured customer avatar.
func (d Deps) extractAvatar(ctx context.Context, jc *pipeline.Context) error {
	prompt, err := d.Prompts.Render(ctx, promptCategoryAvatar, "extract_avatar", map[string]string{
		"research_text": jc.PageText,
	})
	if err != nil {
		return err
	}

	var profile domain.AvatarProfile
	if err := d.callLLM(ctx, jc.JobID, "extract_avatar", llm.Request{
		SystemPrompt: "You extract a single, specific customer avatar from market research. Prefer concrete details over demographics boilerplate.",
		UserPrompt:   prompt,
		SchemaName:   "avatar_profile",
		Schema:       llm.GenerateSchema[domain.AvatarProfile](),
		Temperature:  llm.Temp(0.3),
	}, &profile); err != nil {
		return err
	}

	jc.Profile = &profile
	return nil
}

// matchTemplates ranks the requested library templates against the avatar
// and assembles the terminal result. No library ids, or no prediction, means
// an empty match list; the job still succeeds.
func (d Deps) matchTemplates(ctx context.Context, jc *pipeline.Context) error {
	in := jc.Input.Avatar

	var matches []domain.TemplateMatch
	if len(in.LibraryIDs) > 0 && d.Ranking != nil {
		candidates := d.loadCandidates(ctx, in.LibraryIDs)
		pred, err := d.Ranking.Predict(ctx, jc.Profile, candidates, 3)
		if err != nil {
			return err
		}
		if pred != nil {
			matches = pred.Matches
		}
	}

	jc.Matches = matches
	jc.Result = &domain.AvatarResult{
		JobID:       jc.JobID,
		Profile:     *jc.Profile,
		Matches:     matches,
		GeneratedAt: time.Now().UTC(),
	}
	return nil
}

// loadCandidates resolves library ids to swipe files. Unknown ids are
// skipped with a warning so one stale id cannot sink the match.
func (d Deps) loadCandidates(ctx context.Context, ids []string) []ranking.Candidate {
	candidates := make([]ranking.Candidate, 0, len(ids))
	for _, id := range ids {
		data, err := d.Results.LoadObject(ctx, swipeLibraryKey(id))
		if err != nil {
			d.Logger.Warn().Err(err).Str("swipe_id", id).Msg("skipping unknown library template")
			continue
		}
		var swipe domain.SwipeFile
		if err := json.Unmarshal(data, &swipe); err != nil {
			d.Logger.Warn().Err(err).Str("swipe_id", id).Msg("skipping undecodable library template")
			continue
		}
		candidates = append(candidates, ranking.Candidate{
			ID:      swipe.ID,
			Name:    swipe.Name,
			Summary: swipe.Headline,
		})
	}
	return candidates
}
