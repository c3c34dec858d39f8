// Package ranking scores library templates against a customer avatar using a
// structured LLM call. Predictions are advisory; callers must treat an empty
// prediction as "no recommendation", never as an error.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"adcraft/internal/domain"
	"adcraft/internal/providers/llm"
)

// Candidate is one template offered for ranking.
type Candidate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// Prediction is the ranked output for one avatar.
type Prediction struct {
	Matches []domain.TemplateMatch `json:"matches"`
	Model   string                 `json:"model"`
}

// Service ranks candidates with a schema-constrained chat call.
type Service struct {
	chat   llm.Chatter
	logger zerolog.Logger
}

// NewService builds a ranking service over a structured chat client.
func NewService(chat llm.Chatter, logger zerolog.Logger) *Service {
	return &Service{chat: chat, logger: logger}
}

type rankingResponse struct {
	Matches []domain.TemplateMatch `json:"matches"`
}

const rankingSystemPrompt = `You are a direct-response marketing strategist.
Score each candidate template for how well it fits the customer avatar.
Every fit score is between 0.0 and 1.0. Only score templates from the
provided candidate list; never invent template ids.`

// Predict scores candidates against profile and returns the topK best
// matches, highest overall fit first. Models occasionally return ids that
// were never offered; those rows are dropped before ranking. No candidates,
// or no surviving matches, yields (nil, nil): a missing prediction is not a
// failure.
func (s *Service) Predict(ctx context.Context, profile *domain.AvatarProfile, candidates []Candidate, topK int) (*Prediction, error) {
	if s == nil || s.chat == nil || profile == nil || len(candidates) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("ranking: marshal profile: %w", err)
	}
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("ranking: marshal candidates: %w", err)
	}

	var out rankingResponse
	_, err = s.chat.Chat(ctx, llm.Request{
		SystemPrompt: rankingSystemPrompt,
		UserPrompt: fmt.Sprintf("Customer avatar:\n%s\n\nCandidate templates:\n%s",
			profileJSON, candidatesJSON),
		SchemaName:  "template_ranking",
		Schema:      llm.GenerateSchema[rankingResponse](),
		Temperature: llm.Temp(0.2),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("ranking: predict: %w", err)
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}
	matches := out.Matches[:0]
	for _, m := range out.Matches {
		id := strings.TrimSpace(m.TemplateID)
		if !known[id] {
			s.logger.Warn().Str("template_id", m.TemplateID).Msg("ranking: dropped hallucinated template id")
			continue
		}
		m.TemplateID = id
		matches = append(matches, m)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].OverallFitScore != matches[j].OverallFitScore {
			return matches[i].OverallFitScore > matches[j].OverallFitScore
		}
		return matches[i].TemplateID < matches[j].TemplateID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	return &Prediction{Matches: matches, Model: s.chat.Model()}, nil
}
