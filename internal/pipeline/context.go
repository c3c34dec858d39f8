package pipeline

import "adcraft/internal/domain"

// Context accumulates step outputs over one job run. It belongs to a single
// orchestrator invocation and is never shared across jobs; step N+1 may rely
// on everything step N wrote.
type Context struct {
	JobID   string
	JobType domain.JobType
	DevMode bool
	Locale  string
	Input   *domain.JobInput

	// Step outputs, populated in pipeline order.
	PageText    string
	Analysis    *domain.PageAnalysis
	LandingPage *domain.LandingPage
	Swipe       *domain.SwipeFile
	Images      []domain.ImageEntry
	Profile     *domain.AvatarProfile
	Matches     []domain.TemplateMatch

	// Result is the terminal payload the orchestrator persists; the final
	// step of every pipeline must set it.
	Result any
}
