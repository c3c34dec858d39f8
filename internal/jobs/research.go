package jobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"adcraft/internal/domain"
	"adcraft/internal/pipeline"
	"adcraft/internal/providers/llm"
	"adcraft/internal/retry"
)

const (
	promptCategoryResearch = "research"
	maxPageBytes           = 1 << 20
	maxPageTextChars       = 20000
)

var (
	scriptBlockRegexp = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRegexp         = regexp.MustCompile(`(?s)<[^>]+>`)
	whitespaceRegexp  = regexp.MustCompile(`\s+`)
)

func researchSteps(d Deps) []pipeline.Step {
	return []pipeline.Step{
		pipeline.StepFunc{StepName: "fetch_page", Fn: d.fetchPage},
		pipeline.StepFunc{StepName: "analyze_page", Fn: d.analyzePage},
		pipeline.StepFunc{StepName: "compose_landing_page", Fn: d.composeLandingPage},
	}
}

// fetchPage downloads the product page and reduces it to plain text. Network
// and 5xx failures retry under the transient policy.
func (d Deps) fetchPage(ctx context.Context, jc *pipeline.Context) error {
	in := jc.Input.Research
	client := d.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	policy := d.Retry
	if policy.Retryable == nil {
		policy.Retryable = domain.IsTransient
	}
	body, err := fetchURL(ctx, client, policy, in.ProductURL)
	if err != nil {
		return err
	}

	text := htmlToText(body)
	if text == "" {
		return domain.Validationf("product page %s has no readable text", in.ProductURL)
	}
	jc.PageText = text
	return nil
}

func fetchURL(ctx context.Context, client *http.Client, policy retry.Policy, url string) ([]byte, error) {
	var body []byte
	err := policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return domain.Validationf("fetch page: %v", err)
		}
		req.Header.Set("User-Agent", "adcraft-research/1.0")

		resp, err := client.Do(req)
		if err != nil {
			return domain.Transient("fetch page", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return domain.Transient("fetch page", fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return domain.Validationf("fetch page %s: status %d", url, resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return domain.Transient("read page body", err)
		}
		return nil
	})
	return body, err
}

// htmlToText strips markup without a full DOM parse; analysis only needs the
// visible copy, not structure.
func htmlToText(body []byte) string {
	text := scriptBlockRegexp.ReplaceAllString(string(body), " ")
	text = tagRegexp.ReplaceAllString(text, " ")
	text = whitespaceRegexp.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if len(text) > maxPageTextChars {
		text = text[:maxPageTextChars]
	}
	return text
}

type analysisResponse struct {
	Analysis domain.PageAnalysis `json:"analysis"`
	Rubric   pipeline.Rubric     `json:"rubric"`
}

// analyzePage produces the quality-gated page analysis. A gate rejection is
// fatal here: research analysis is grounded in fetched text, so regeneration
// rarely changes the verdict.
func (d Deps) analyzePage(ctx context.Context, jc *pipeline.Context) error {
	in := jc.Input.Research
	prompt, err := d.Prompts.Render(ctx, promptCategoryResearch, "analyze_page", map[string]string{
		"product_name": in.ProductName,
		"market":       in.Market,
		"angle":        in.Angle,
		"page_text":    jc.PageText,
	})
	if err != nil {
		return err
	}

	var out analysisResponse
	if err := d.callLLM(ctx, jc.JobID, "analyze_page", llm.Request{
		SystemPrompt: "You are a direct-response market researcher. Score your own output honestly in the rubric.",
		UserPrompt:   prompt,
		SchemaName:   "page_analysis",
		Schema:       llm.GenerateSchema[analysisResponse](),
		Temperature:  llm.Temp(0.4),
	}, &out); err != nil {
		return err
	}

	if err := pipeline.NewQualityGate(0).Check(out.Rubric); err != nil {
		return err
	}
	jc.Analysis = &out.Analysis
	return nil
}

// composeLandingPage turns the analysis into landing-page copy and sets the
// terminal result.
func (d Deps) composeLandingPage(ctx context.Context, jc *pipeline.Context) error {
	in := jc.Input.Research
	prompt, err := d.Prompts.Render(ctx, promptCategoryResearch, "compose_landing_page", map[string]string{
		"product_name": in.ProductName,
		"angle":        in.Angle,
		"summary":      jc.Analysis.Summary,
		"audience":     jc.Analysis.Audience,
		"hooks":        strings.Join(jc.Analysis.Hooks, "\n"),
		"objections":   strings.Join(jc.Analysis.Objections, "\n"),
	})
	if err != nil {
		return err
	}

	var page domain.LandingPage
	if err := d.callLLM(ctx, jc.JobID, "compose_landing_page", llm.Request{
		SystemPrompt: "You write high-converting landing pages. Address the audience's objections directly.",
		UserPrompt:   prompt,
		SchemaName:   "landing_page",
		Schema:       llm.GenerateSchema[domain.LandingPage](),
		Temperature:  llm.Temp(0.7),
	}, &page); err != nil {
		return err
	}

	jc.LandingPage = &page
	jc.Result = &domain.ResearchResult{
		JobID:       jc.JobID,
		ProductName: in.ProductName,
		SourceURL:   in.ProductURL,
		Analysis:    *jc.Analysis,
		LandingPage: page,
		GeneratedAt: time.Now().UTC(),
	}
	return nil
}
