package pipeline

import (
	"strings"

	"adcraft/internal/domain"
)

// Rubric is the structured self-critique returned by a scoring call. LLM
// calls can succeed transport-wise yet produce useless output; gating on a
// rubric turns that unobservable failure into a typed error.
type Rubric struct {
	ClearHook           bool   `json:"clear_hook"`
	AudienceAligned     bool   `json:"audience_aligned"`
	FactuallyGrounded   bool   `json:"factually_grounded"`
	OverallQualityScore int    `json:"overall_quality_score"`
	Reason              string `json:"reason"`
}

// DefaultRejectThreshold rejects content scored at or below this value on
// the 1-5 scale.
const DefaultRejectThreshold = 2

// QualityGate converts low rubric scores into QualityGateError. The gate is
// fatal to the step; regenerate-and-retry is a per-pipeline policy layered
// on top, never implied here.
type QualityGate struct {
	RejectAtOrBelow int
}

// NewQualityGate builds a gate with the default threshold when threshold is
// zero.
func NewQualityGate(threshold int) QualityGate {
	if threshold <= 0 {
		threshold = DefaultRejectThreshold
	}
	return QualityGate{RejectAtOrBelow: threshold}
}

// Check returns a QualityGateError when the rubric rejects the content.
func (g QualityGate) Check(r Rubric) error {
	if r.OverallQualityScore > g.RejectAtOrBelow {
		return nil
	}
	reason := strings.TrimSpace(r.Reason)
	if reason == "" {
		reason = "content scored below the acceptance threshold"
	}
	return &domain.QualityGateError{Reason: reason, Score: r.OverallQualityScore}
}
