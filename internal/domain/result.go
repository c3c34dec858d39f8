package domain

import "time"

// PageAnalysis is the quality-gated draft produced from a fetched product
// page.
type PageAnalysis struct {
	Summary    string   `json:"summary"`
	Hooks      []string `json:"hooks"`
	Objections []string `json:"objections"`
	Audience   string   `json:"audience"`
}

// PageSection is one block of generated landing-page copy.
type PageSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// LandingPage is the composed landing-page copy.
type LandingPage struct {
	Headline    string        `json:"headline"`
	Subheadline string        `json:"subheadline"`
	Sections    []PageSection `json:"sections"`
	CallToAction string       `json:"call_to_action"`
}

// ResearchResult is the terminal payload of a research job.
type ResearchResult struct {
	JobID       string       `json:"job_id"`
	ProductName string       `json:"product_name"`
	SourceURL   string       `json:"source_url"`
	Analysis    PageAnalysis `json:"analysis"`
	LandingPage LandingPage  `json:"landing_page"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// SwipeRewriteResult is the terminal payload of a swipe_rewrite job.
type SwipeRewriteResult struct {
	JobID    string    `json:"job_id"`
	SwipeID  string    `json:"swipe_id"`
	Headline string    `json:"headline"`
	Body     string    `json:"body"`
	Tone     string    `json:"tone"`
	Attempts int       `json:"attempts"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ImageEntry is one successfully generated and uploaded image.
type ImageEntry struct {
	Role   string `json:"role"`
	Index  int    `json:"index"`
	Key    string `json:"key"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImageGenResult aggregates the successes of an image fan-out. Failed units
// are dropped, not recorded.
type ImageGenResult struct {
	JobID       string       `json:"job_id"`
	Images      []ImageEntry `json:"images"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// AvatarProfile is a structured customer avatar extracted from research.
type AvatarProfile struct {
	Name       string   `json:"name"`
	AgeRange   string   `json:"age_range"`
	Occupation string   `json:"occupation"`
	PainPoints []string `json:"pain_points"`
	Desires    []string `json:"desires"`
	Tone       string   `json:"tone"`
}

// AvatarResult is the terminal payload of an avatar_extract job. Matches may
// be empty when the ranking service declined to predict.
type AvatarResult struct {
	JobID       string          `json:"job_id"`
	Profile     AvatarProfile   `json:"profile"`
	Matches     []TemplateMatch `json:"matches"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// SwipeFile is one stored piece of reference copy in the swipe library.
type SwipeFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Headline string `json:"headline"`
	Body     string `json:"body"`
}
