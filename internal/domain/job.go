package domain

import "time"

// JobType enumerates supported generation pipelines.
type JobType string

const (
	JobTypeResearch      JobType = "research"
	JobTypeSwipeRewrite  JobType = "swipe_rewrite"
	JobTypeImageGen      JobType = "image_gen"
	JobTypeAvatarExtract JobType = "avatar_extract"
)

// Valid reports whether t names a known pipeline.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeResearch, JobTypeSwipeRewrite, JobTypeImageGen, JobTypeAvatarExtract:
		return true
	}
	return false
}

// TerminalStage returns the result-store stage name for a finished job of
// this type.
func (t JobType) TerminalStage() string {
	switch t {
	case JobTypeResearch:
		return "landing_page"
	case JobTypeSwipeRewrite:
		return "advertorial"
	case JobTypeImageGen:
		return "ad_images"
	case JobTypeAvatarExtract:
		return "avatar"
	}
	return "result"
}

// JobStatus enumerates job lifecycle states. Transitions only move along
// SUBMITTED -> RUNNING -> SUCCEEDED | FAILED.
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "SUBMITTED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether s is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job tracks one content-generation request end to end. Status writes are
// last-write-wins; re-submitting the same id re-runs and overwrites.
type Job struct {
	ID           string
	Type         JobType
	Status       JobStatus
	InputJSON    []byte
	ResultKey    string
	ErrorMessage string
	DevMode      bool
	APIVersion   string
	Locale       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
