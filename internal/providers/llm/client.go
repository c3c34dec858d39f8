// Package llm wraps the OpenAI chat API behind a structured-output client.
// Every call is schema-constrained so downstream steps parse typed payloads
// instead of scraping free text.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"adcraft/internal/domain"
)

const defaultModel = "gpt-4o-mini"

// Options controls how the client is configured.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  zerolog.Logger
}

// Client is a structured-output chat client.
type Client struct {
	openai openai.Client
	model  string
	logger zerolog.Logger
}

// Request is one schema-constrained chat call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64
}

// Usage carries the token counters of one call for telemetry.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// NewClient builds a client. The API key is required; there is no synthetic
// fallback for text generation.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		openai: openai.NewClient(reqOpts...),
		model:  model,
		logger: opts.Logger,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Chat issues one structured-output completion and unmarshals the response
// into result. Rate limits, 5xx responses and network failures come back as
// transient errors; everything else is fatal to the attempt.
func (c *Client) Chat(ctx context.Context, req Request, result any) (*Usage, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		MaxTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.SchemaName,
					Description: openai.String("Structured response schema"),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify("chat completion", err)
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("schema", req.SchemaName).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("llm chat completed")

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: no choices in response")
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), result); err != nil {
		return nil, fmt.Errorf("llm: unmarshal response: %w", err)
	}

	return &Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// classify maps provider failures onto the job error taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return domain.Transient(op, err)
		}
		return fmt.Errorf("llm: %s: %w", op, err)
	}
	// No API response at all: treat network failures as retryable.
	return domain.Transient(op, err)
}

// GenerateSchema reflects a JSON schema from T for structured outputs.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Temp is a pointer helper for Request.Temperature.
func Temp(t float64) *float64 {
	return &t
}
