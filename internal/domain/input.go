package domain

import (
	"encoding/json"
	"strings"
)

// ResearchInput drives the research pipeline: fetch and analyze a product
// page, then compose landing-page copy.
type ResearchInput struct {
	ProductName string `json:"product_name"`
	ProductURL  string `json:"product_url"`
	Market      string `json:"market"`
	Angle       string `json:"angle"`
}

// SwipeRewriteInput rewrites a stored swipe file for a new product.
type SwipeRewriteInput struct {
	SwipeID            string `json:"swipe_id"`
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	Tone               string `json:"tone"`
}

// ImagePrompt is one self-contained image generation unit in a fan-out.
type ImagePrompt struct {
	Role        string `json:"role"`
	Index       int    `json:"index"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

// ImageGenInput drives the ad-image fan-out pipeline.
type ImageGenInput struct {
	Prompts []ImagePrompt `json:"prompts"`
}

// AvatarExtractInput extracts a customer avatar from research output (by
// prior job id) or from inline text, then optionally matches templates.
type AvatarExtractInput struct {
	ResearchJobID string   `json:"research_job_id"`
	ResearchText  string   `json:"research_text"`
	LibraryIDs    []string `json:"library_ids"`
}

// JobInput is the tagged union of per-type payloads. Exactly one field is
// non-nil after DecodeInput.
type JobInput struct {
	Research *ResearchInput
	Swipe    *SwipeRewriteInput
	ImageGen *ImageGenInput
	Avatar   *AvatarExtractInput
}

// DecodeInput validates raw against jobType once, at the ingress boundary.
// The pipelines downstream assume a well-formed typed input.
func DecodeInput(jobType JobType, raw []byte) (*JobInput, error) {
	if len(raw) == 0 {
		return nil, Validationf("job input is required")
	}
	switch jobType {
	case JobTypeResearch:
		var in ResearchInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, Validationf("decode research input: %v", err)
		}
		if strings.TrimSpace(in.ProductName) == "" {
			return nil, Validationf("research: product_name is required")
		}
		if strings.TrimSpace(in.ProductURL) == "" {
			return nil, Validationf("research: product_url is required")
		}
		return &JobInput{Research: &in}, nil
	case JobTypeSwipeRewrite:
		var in SwipeRewriteInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, Validationf("decode swipe input: %v", err)
		}
		if strings.TrimSpace(in.SwipeID) == "" {
			return nil, Validationf("swipe_rewrite: swipe_id is required")
		}
		if strings.TrimSpace(in.ProductName) == "" {
			return nil, Validationf("swipe_rewrite: product_name is required")
		}
		return &JobInput{Swipe: &in}, nil
	case JobTypeImageGen:
		var in ImageGenInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, Validationf("decode image_gen input: %v", err)
		}
		if len(in.Prompts) == 0 {
			return nil, Validationf("image_gen: at least one prompt is required")
		}
		for i, p := range in.Prompts {
			if strings.TrimSpace(p.Prompt) == "" {
				return nil, Validationf("image_gen: prompts[%d].prompt is required", i)
			}
		}
		return &JobInput{ImageGen: &in}, nil
	case JobTypeAvatarExtract:
		var in AvatarExtractInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, Validationf("decode avatar input: %v", err)
		}
		if strings.TrimSpace(in.ResearchJobID) == "" && strings.TrimSpace(in.ResearchText) == "" {
			return nil, Validationf("avatar_extract: research_job_id or research_text is required")
		}
		return &JobInput{Avatar: &in}, nil
	}
	return nil, Validationf("unsupported job type %q", jobType)
}
