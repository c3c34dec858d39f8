package promptcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"adcraft/internal/domain"
)

type fakeSource struct {
	rows  map[string][]domain.PromptRow
	err   error
	loads int
}

func (f *fakeSource) ListByCategory(ctx context.Context, category string) ([]domain.PromptRow, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[category], nil
}

func newTestCache(src *fakeSource, ttl time.Duration) *Cache {
	c := New(src, ttl)
	return c
}

func TestRenderFillsAllPlaceholders(t *testing.T) {
	src := &fakeSource{rows: map[string][]domain.PromptRow{
		"research": {
			{FunctionName: "page_analysis", Content: "Analyze {product} for the {market} market.", VersionNumber: 1},
		},
	}}
	c := newTestCache(src, time.Minute)

	got, err := c.Render(context.Background(), "research", "page_analysis", map[string]string{
		"product": "SleepWell",
		"market":  "US",
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.ContainsAny(got, "{}") {
		t.Fatalf("rendered output still contains placeholder tokens: %q", got)
	}
	if got != "Analyze SleepWell for the US market." {
		t.Fatalf("rendered = %q", got)
	}
}

func TestRenderMissingPlaceholderFails(t *testing.T) {
	src := &fakeSource{rows: map[string][]domain.PromptRow{
		"research": {
			{FunctionName: "page_analysis", Content: "Analyze {product} for {market}.", VersionNumber: 1},
		},
	}}
	c := newTestCache(src, time.Minute)

	_, err := c.Render(context.Background(), "research", "page_analysis", map[string]string{
		"product": "SleepWell",
	})
	var re *domain.PromptRenderError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want PromptRenderError", err)
	}
	if len(re.Missing) != 1 || re.Missing[0] != "market" {
		t.Fatalf("Missing = %v, want [market]", re.Missing)
	}
}

func TestRenderExtraArgsAreIgnored(t *testing.T) {
	src := &fakeSource{rows: map[string][]domain.PromptRow{
		"research": {
			{FunctionName: "page_analysis", Content: "Analyze {product}.", VersionNumber: 1},
		},
	}}
	c := newTestCache(src, time.Minute)

	got, err := c.Render(context.Background(), "research", "page_analysis", map[string]string{
		"product": "SleepWell",
		"unused":  "whatever",
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "Analyze SleepWell." {
		t.Fatalf("rendered = %q", got)
	}
}

func TestHighestVersionWins(t *testing.T) {
	src := &fakeSource{rows: map[string][]domain.PromptRow{
		"research": {
			{FunctionName: "page_analysis", Content: "v1 {x}", VersionNumber: 1},
			{FunctionName: "page_analysis", Content: "v3 {x}", VersionNumber: 3},
			{FunctionName: "page_analysis", Content: "v2 {x}", VersionNumber: 2},
		},
	}}
	c := newTestCache(src, time.Minute)

	got, err := c.Render(context.Background(), "research", "page_analysis", map[string]string{"x": "ok"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got != "v3 ok" {
		t.Fatalf("rendered = %q, want highest version", got)
	}
}

func TestUnknownNameFails(t *testing.T) {
	src := &fakeSource{rows: map[string][]domain.PromptRow{"research": {}}}
	c := newTestCache(src, time.Minute)

	_, err := c.Render(context.Background(), "research", "nope", nil)
	var ne *domain.PromptNotFoundError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want PromptNotFoundError", err)
	}
}

func TestLoadFailureIsFatal(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	c := newTestCache(src, time.Minute)

	_, err := c.Render(context.Background(), "research", "page_analysis", nil)
	var le *domain.PromptLoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want PromptLoadError", err)
	}
}

func TestCategoryLoadedOnceUntilTTLExpiry(t *testing.T) {
	src := &fakeSource{rows: map[string][]domain.PromptRow{
		"research": {
			{FunctionName: "page_analysis", Content: "hello", VersionNumber: 1},
		},
	}}
	c := newTestCache(src, time.Minute)

	current := time.Unix(1700000000, 0)
	c.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		if _, err := c.Render(context.Background(), "research", "page_analysis", nil); err != nil {
			t.Fatalf("Render returned error: %v", err)
		}
	}
	if src.loads != 1 {
		t.Fatalf("loads = %d, want 1 before expiry", src.loads)
	}

	current = current.Add(2 * time.Minute)
	if _, err := c.Render(context.Background(), "research", "page_analysis", nil); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if src.loads != 2 {
		t.Fatalf("loads = %d, want 2 after expiry", src.loads)
	}
}
