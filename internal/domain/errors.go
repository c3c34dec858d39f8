package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrProviderFailure = errors.New("provider failure")
)

// ValidationError marks caller input as malformed. Never retried; surfaced
// as a 400 at the invocation boundary.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransientError wraps a network/rate-limit/5xx failure from an external
// provider. Eligible for retry with backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable, attributed to op.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// QualityGateError reports that generated content failed its structured
// self-critique. Distinct from transport errors so monitoring can separate
// "API broke" from "model produced garbage". Fatal to the step; whether a
// pipeline regenerates is a per-job-type policy.
type QualityGateError struct {
	Reason string
	Score  int
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("quality gate: score %d: %s", e.Score, e.Reason)
}

// PromptLoadError reports a failed batch load of a template category.
// There is no fallback template, so this is always fatal.
type PromptLoadError struct {
	Category string
	Err      error
}

func (e *PromptLoadError) Error() string {
	return fmt.Sprintf("prompt load: category %q: %v", e.Category, e.Err)
}

func (e *PromptLoadError) Unwrap() error { return e.Err }

// PromptNotFoundError reports a template name absent from its loaded category.
type PromptNotFoundError struct {
	Category string
	Name     string
}

func (e *PromptNotFoundError) Error() string {
	return fmt.Sprintf("prompt not found: %s/%s", e.Category, e.Name)
}

// PromptRenderError reports placeholders left unfilled at render time.
// Guards against silently shipping content with literal {tokens}.
type PromptRenderError struct {
	Name    string
	Missing []string
}

func (e *PromptRenderError) Error() string {
	return fmt.Sprintf("prompt render: %s: missing placeholders %v", e.Name, e.Missing)
}

// IsValidation reports whether err is caller-input related.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsQualityGate reports whether err is a content-quality rejection.
func IsQualityGate(err error) bool {
	var qe *QualityGateError
	return errors.As(err, &qe)
}

// IsPromptError reports whether err is a template configuration failure.
// Retrying cannot fix a missing or broken template.
func IsPromptError(err error) bool {
	var (
		le *PromptLoadError
		ne *PromptNotFoundError
		re *PromptRenderError
	)
	return errors.As(err, &le) || errors.As(err, &ne) || errors.As(err, &re)
}
