package domain

// TemplateMatch scores one library template against an avatar profile.
// Produced transiently by the ranking service; persisted only as part of a
// job's terminal result.
type TemplateMatch struct {
	TemplateID      string  `json:"template_id"`
	AudienceFit     float64 `json:"audience_fit"`
	OfferFit        float64 `json:"offer_fit"`
	StructureFit    float64 `json:"structure_fit"`
	ToneFit         float64 `json:"tone_fit"`
	OverallFitScore float64 `json:"overall_fit_score"`
	Reasoning       string  `json:"reasoning"`
}
