package pipeline

import "context"

// Step is one named unit of work in a job pipeline. A step reads prior
// outputs from the shared Context, performs its work (usually one or more
// provider calls) and writes its output back onto the Context. Errors bubble
// to the orchestrator; steps never write job status themselves.
type Step interface {
	Name() string
	Run(ctx context.Context, jc *Context) error
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context, jc *Context) error
}

func (s StepFunc) Name() string { return s.StepName }

func (s StepFunc) Run(ctx context.Context, jc *Context) error {
	return s.Fn(ctx, jc)
}

// StepResult records the outcome of one executed step. Owned by the
// orchestrator for the duration of a run; not persisted on its own.
type StepResult struct {
	Subtask   string `json:"subtask"`
	Success   bool   `json:"success"`
	LatencyMs int64  `json:"latency_ms"`
}
