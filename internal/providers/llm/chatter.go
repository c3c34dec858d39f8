package llm

import "context"

// Chatter is the contract pipeline steps depend on, so tests can substitute
// a scripted model.
type Chatter interface {
	Chat(ctx context.Context, req Request, result any) (*Usage, error)
	Model() string
}

var _ Chatter = (*Client)(nil)
