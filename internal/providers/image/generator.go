package image

import "context"

// GenerateRequest is one self-contained image unit of a fan-out: its own
// provider call, its own upload, no dependency on sibling units.
type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	RequestID   string
}

// Asset is the normalized representation returned by an image provider.
type Asset struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Generator produces one ad image per request.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
	Model() string
}
