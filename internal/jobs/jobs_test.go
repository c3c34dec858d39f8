package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"adcraft/internal/domain"
	"adcraft/internal/pipeline"
	"adcraft/internal/promptcache"
	"adcraft/internal/providers/image"
	"adcraft/internal/providers/llm"
	"adcraft/internal/retry"
	"adcraft/internal/storage"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

// scriptedChat plays back a fixed sequence of responses, one per call.
type scriptedChat struct {
	responses []any
	calls     int
}

func (s *scriptedChat) Chat(ctx context.Context, req llm.Request, result any) (*llm.Usage, error) {
	if s.calls >= len(s.responses) {
		return nil, fmt.Errorf("unexpected call %d", s.calls+1)
	}
	resp := s.responses[s.calls]
	s.calls++
	if err, ok := resp.(error); ok {
		return nil, err
	}
	data, _ := json.Marshal(resp)
	if err := json.Unmarshal(data, result); err != nil {
		return nil, err
	}
	return &llm.Usage{PromptTokens: 10, CompletionTokens: 20}, nil
}

func (s *scriptedChat) Model() string { return "test-model" }

type fakeGenerator struct {
	fail func(req image.GenerateRequest) error
}

func (g *fakeGenerator) Generate(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
	if g.fail != nil {
		if err := g.fail(req); err != nil {
			return nil, err
		}
	}
	return &image.Asset{Data: []byte("png"), Format: "image/png", Width: 1024, Height: 1024}, nil
}

func (g *fakeGenerator) Model() string { return "test-image-model" }

type promptSource struct {
	rows map[string][]domain.PromptRow
}

func (p *promptSource) ListByCategory(ctx context.Context, category string) ([]domain.PromptRow, error) {
	return p.rows[category], nil
}

func testPrompts() *promptcache.Cache {
	return promptcache.New(&promptSource{rows: map[string][]domain.PromptRow{
		"research": {
			{FunctionName: "analyze_page", Content: "Analyze {product_name} in {market} with angle {angle}:\n{page_text}", VersionNumber: 1},
			{FunctionName: "compose_landing_page", Content: "Write copy for {product_name} ({angle}). Summary: {summary}. Audience: {audience}. Hooks: {hooks}. Objections: {objections}.", VersionNumber: 1},
		},
		"swipe": {
			{FunctionName: "rewrite_swipe", Content: "Rewrite {swipe_headline} / {swipe_body} for {product_name}: {product_description} in tone {tone}", VersionNumber: 1},
		},
		"avatar": {
			{FunctionName: "extract_avatar", Content: "Extract the avatar from:\n{research_text}", VersionNumber: 1},
		},
	}}, 0)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func baseDeps() Deps {
	return Deps{
		Prompts: testPrompts(),
		Results: storage.NewResultStore(newMemStore()),
		Retry:   retry.Policy{MaxRetries: 1, Retryable: domain.IsTransient},
		Logger:  zerolog.Nop(),
	}
}

func TestStepsPerJobType(t *testing.T) {
	d := baseDeps()
	tests := []struct {
		jobType domain.JobType
		names   []string
	}{
		{domain.JobTypeResearch, []string{"fetch_page", "analyze_page", "compose_landing_page"}},
		{domain.JobTypeSwipeRewrite, []string{"load_swipe", "rewrite_swipe"}},
		{domain.JobTypeImageGen, []string{"plan_prompts", "generate_images"}},
		{domain.JobTypeAvatarExtract, []string{"load_research", "extract_avatar", "match_templates"}},
	}
	for _, tt := range tests {
		steps := Steps(tt.jobType, d)
		if len(steps) != len(tt.names) {
			t.Fatalf("%s: %d steps, want %d", tt.jobType, len(steps), len(tt.names))
		}
		for i, name := range tt.names {
			if steps[i].Name() != name {
				t.Errorf("%s[%d] = %q, want %q", tt.jobType, i, steps[i].Name(), name)
			}
		}
	}
	if Steps("bogus", d) != nil {
		t.Fatal("unknown job type returned steps")
	}
}

func TestFetchPageStripsMarkup(t *testing.T) {
	d := baseDeps()
	d.HTTPClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		html := `<html><head><script>var x=1;</script><style>p{}</style></head>` +
			`<body><h1>Great Shoes</h1><p>Run faster.</p></body></html>`
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(html)),
		}, nil
	})}

	jc := &pipeline.Context{
		JobID:   "job-1",
		JobType: domain.JobTypeResearch,
		Input:   &domain.JobInput{Research: &domain.ResearchInput{ProductName: "Shoes", ProductURL: "https://example.test/p"}},
	}
	if err := d.fetchPage(context.Background(), jc); err != nil {
		t.Fatalf("fetchPage: %v", err)
	}
	if jc.PageText != "Great Shoes Run faster." {
		t.Fatalf("PageText = %q", jc.PageText)
	}
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	calls := 0
	d := baseDeps()
	d.Retry = retry.Default(domain.IsTransient).
		WithSleep(func(ctx context.Context, _ time.Duration) error { return nil })
	d.HTTPClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader(""))}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("<p>ok</p>"))}, nil
	})}

	jc := &pipeline.Context{
		Input: &domain.JobInput{Research: &domain.ResearchInput{ProductURL: "https://example.test/p"}},
	}
	if err := d.fetchPage(context.Background(), jc); err != nil {
		t.Fatalf("fetchPage: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want retry after 502", calls)
	}
}

func TestFetchPageNotFoundIsValidation(t *testing.T) {
	d := baseDeps()
	d.HTTPClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(""))}, nil
	})}

	jc := &pipeline.Context{
		Input: &domain.JobInput{Research: &domain.ResearchInput{ProductURL: "https://example.test/missing"}},
	}
	err := d.fetchPage(context.Background(), jc)
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestAnalyzePageQualityGateRejectsLowScore(t *testing.T) {
	d := baseDeps()
	d.LLM = &scriptedChat{responses: []any{
		analysisResponse{
			Analysis: domain.PageAnalysis{Summary: "weak"},
			Rubric:   pipeline.Rubric{OverallQualityScore: 2, Reason: "generic"},
		},
	}}

	jc := &pipeline.Context{
		JobID:    "job-2",
		PageText: "page text",
		Input:    &domain.JobInput{Research: &domain.ResearchInput{ProductName: "Shoes"}},
	}
	err := d.analyzePage(context.Background(), jc)
	if !domain.IsQualityGate(err) {
		t.Fatalf("err = %v, want quality gate", err)
	}
	if jc.Analysis != nil {
		t.Fatal("rejected analysis leaked into context")
	}
}

func TestResearchComposeSetsTerminalResult(t *testing.T) {
	d := baseDeps()
	d.LLM = &scriptedChat{responses: []any{
		domain.LandingPage{Headline: "Run Faster", CallToAction: "Buy"},
	}}

	jc := &pipeline.Context{
		JobID: "job-3",
		Input: &domain.JobInput{Research: &domain.ResearchInput{ProductName: "Shoes", ProductURL: "https://example.test/p", Angle: "speed"}},
		Analysis: &domain.PageAnalysis{
			Summary:  "s",
			Audience: "runners",
			Hooks:    []string{"h1"},
		},
	}
	if err := d.composeLandingPage(context.Background(), jc); err != nil {
		t.Fatalf("composeLandingPage: %v", err)
	}
	result, ok := jc.Result.(*domain.ResearchResult)
	if !ok {
		t.Fatalf("Result type = %T", jc.Result)
	}
	if result.LandingPage.Headline != "Run Faster" || result.ProductName != "Shoes" {
		t.Fatalf("result = %+v", result)
	}
	if result.JobID != "job-3" {
		t.Fatalf("JobID = %q", result.JobID)
	}
}

func seedSwipe(t *testing.T, store *memStore, swipe domain.SwipeFile) {
	t.Helper()
	data, _ := json.Marshal(swipe)
	if err := store.Put(context.Background(), swipeLibraryKey(swipe.ID), data, "application/json"); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSwipeMissingIsValidation(t *testing.T) {
	d := baseDeps()
	jc := &pipeline.Context{
		Input: &domain.JobInput{Swipe: &domain.SwipeRewriteInput{SwipeID: "nope", ProductName: "P"}},
	}
	err := d.loadSwipe(context.Background(), jc)
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestRewriteSwipeRegeneratesOnGateRejection(t *testing.T) {
	store := newMemStore()
	seedSwipe(t, store, domain.SwipeFile{ID: "sw-1", Name: "Classic", Headline: "H", Body: "B"})

	chat := &scriptedChat{responses: []any{
		rewriteResponse{Headline: "bad", Body: "bad", Rubric: pipeline.Rubric{OverallQualityScore: 1, Reason: "flat"}},
		rewriteResponse{Headline: "Good Headline", Body: "Good body", Rubric: pipeline.Rubric{OverallQualityScore: 4}},
	}}
	d := baseDeps()
	d.Results = storage.NewResultStore(store)
	d.LLM = chat

	jc := &pipeline.Context{
		JobID: "job-4",
		Input: &domain.JobInput{Swipe: &domain.SwipeRewriteInput{SwipeID: "sw-1", ProductName: "P", Tone: "bold"}},
	}
	if err := d.loadSwipe(context.Background(), jc); err != nil {
		t.Fatalf("loadSwipe: %v", err)
	}
	if err := d.rewriteSwipe(context.Background(), jc); err != nil {
		t.Fatalf("rewriteSwipe: %v", err)
	}

	result, ok := jc.Result.(*domain.SwipeRewriteResult)
	if !ok {
		t.Fatalf("Result type = %T", jc.Result)
	}
	if result.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", result.Attempts)
	}
	if result.Headline != "Good Headline" {
		t.Fatalf("Headline = %q, want the accepted draft", result.Headline)
	}
	if chat.calls != 2 {
		t.Fatalf("chat calls = %d", chat.calls)
	}
}

func TestRewriteSwipeGivesUpAfterAttemptCap(t *testing.T) {
	store := newMemStore()
	seedSwipe(t, store, domain.SwipeFile{ID: "sw-2", Headline: "H", Body: "B"})

	rejected := rewriteResponse{Rubric: pipeline.Rubric{OverallQualityScore: 1, Reason: "flat"}}
	chat := &scriptedChat{responses: []any{rejected, rejected, rejected}}
	d := baseDeps()
	d.Results = storage.NewResultStore(store)
	d.LLM = chat

	jc := &pipeline.Context{
		JobID: "job-5",
		Input: &domain.JobInput{Swipe: &domain.SwipeRewriteInput{SwipeID: "sw-2", ProductName: "P"}},
	}
	if err := d.loadSwipe(context.Background(), jc); err != nil {
		t.Fatal(err)
	}
	err := d.rewriteSwipe(context.Background(), jc)
	if !domain.IsQualityGate(err) {
		t.Fatalf("err = %v, want quality gate after cap", err)
	}
	if chat.calls != maxRewriteAttempts {
		t.Fatalf("chat calls = %d, want %d", chat.calls, maxRewriteAttempts)
	}
}

func TestGenerateImagesDropsFailedUnitsKeepsSiblings(t *testing.T) {
	store := newMemStore()
	d := baseDeps()
	d.Results = storage.NewResultStore(store)
	d.Images = &fakeGenerator{fail: func(req image.GenerateRequest) error {
		if strings.Contains(req.RequestID, "hero") {
			return errors.New("prompt rejected")
		}
		return nil
	}}

	jc := &pipeline.Context{
		JobID: "job-6",
		Input: &domain.JobInput{ImageGen: &domain.ImageGenInput{Prompts: []domain.ImagePrompt{
			{Role: "hero", Index: 0, Prompt: "hero shot", AspectRatio: "16:9"},
			{Role: "section", Index: 0, Prompt: "detail shot", AspectRatio: "1:1"},
		}}},
	}
	if err := d.generateImages(context.Background(), jc); err != nil {
		t.Fatalf("generateImages: %v", err)
	}

	result, ok := jc.Result.(*domain.ImageGenResult)
	if !ok {
		t.Fatalf("Result type = %T", jc.Result)
	}
	if len(result.Images) != 1 {
		t.Fatalf("Images = %+v, want exactly the surviving unit", result.Images)
	}
	entry := result.Images[0]
	if entry.Role != "section" || entry.Index != 0 {
		t.Fatalf("entry = %+v, want role=section index=0", entry)
	}
	if _, err := store.Get(context.Background(), entry.Key); err != nil {
		t.Fatalf("surviving image not uploaded: %v", err)
	}
}

func TestGenerateImagesAllUnitsFailedFailsStep(t *testing.T) {
	d := baseDeps()
	d.Images = &fakeGenerator{fail: func(image.GenerateRequest) error {
		return errors.New("down")
	}}

	jc := &pipeline.Context{
		JobID: "job-7",
		Input: &domain.JobInput{ImageGen: &domain.ImageGenInput{Prompts: []domain.ImagePrompt{
			{Role: "hero", Prompt: "a"},
			{Role: "section", Prompt: "b"},
		}}},
	}
	if err := d.generateImages(context.Background(), jc); err == nil {
		t.Fatal("expected error when every unit fails")
	}
}

func TestPlanPromptsFillsDefaults(t *testing.T) {
	d := baseDeps()
	jc := &pipeline.Context{
		Input: &domain.JobInput{ImageGen: &domain.ImageGenInput{Prompts: []domain.ImagePrompt{
			{Prompt: "a"},
			{Prompt: "b"},
			{Role: "hero", Prompt: "c"},
		}}},
	}
	if err := d.planPrompts(context.Background(), jc); err != nil {
		t.Fatal(err)
	}
	prompts := jc.Input.ImageGen.Prompts
	if prompts[0].Role != "section" || prompts[0].Index != 0 || prompts[0].AspectRatio != "1:1" {
		t.Fatalf("prompts[0] = %+v", prompts[0])
	}
	if prompts[1].Index != 1 {
		t.Fatalf("prompts[1].Index = %d, want sequential per role", prompts[1].Index)
	}
	if prompts[2].AspectRatio != "16:9" {
		t.Fatalf("hero aspect = %q", prompts[2].AspectRatio)
	}
}

func TestLoadResearchMissingResultIsValidation(t *testing.T) {
	d := baseDeps()
	jc := &pipeline.Context{
		Input: &domain.JobInput{Avatar: &domain.AvatarExtractInput{ResearchJobID: "gone"}},
	}
	err := d.loadResearch(context.Background(), jc)
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestAvatarPipelineWithoutLibrarySucceedsWithEmptyMatches(t *testing.T) {
	d := baseDeps()
	d.LLM = &scriptedChat{responses: []any{
		domain.AvatarProfile{Name: "Busy founder", Tone: "direct"},
	}}

	jc := &pipeline.Context{
		JobID: "job-8",
		Input: &domain.JobInput{Avatar: &domain.AvatarExtractInput{ResearchText: "raw research notes"}},
	}
	for _, step := range avatarExtractSteps(d) {
		if err := step.Run(context.Background(), jc); err != nil {
			t.Fatalf("%s: %v", step.Name(), err)
		}
	}

	result, ok := jc.Result.(*domain.AvatarResult)
	if !ok {
		t.Fatalf("Result type = %T", jc.Result)
	}
	if result.Profile.Name != "Busy founder" {
		t.Fatalf("Profile = %+v", result.Profile)
	}
	if len(result.Matches) != 0 {
		t.Fatalf("Matches = %+v, want none", result.Matches)
	}
}

func TestErrorTypeBuckets(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{domain.Validationf("x"), "validation"},
		{domain.Transient("op", errors.New("x")), "transient"},
		{&domain.QualityGateError{Score: 1}, "quality_gate"},
		{&domain.PromptNotFoundError{Category: "c", Name: "n"}, "prompt"},
		{errors.New("weird"), "provider"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
