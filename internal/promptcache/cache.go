// Package promptcache loads prompt templates from the relational source in
// per-category batches and serves placeholder-validated renders from a
// process-local TTL cache. The cache survives across worker invocations of
// the same process; on expiry the whole category is reloaded rather than
// invalidating single keys, since categories are small.
package promptcache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"adcraft/internal/domain"
)

const DefaultTTL = 5 * time.Minute

var placeholderRegexp = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// snapshot is an immutable view of one loaded category. Snapshots are
// replaced wholesale, never mutated, so concurrent readers need no lock
// beyond the map access.
type snapshot struct {
	templates map[string]domain.PromptRow
	expiresAt time.Time
}

// Cache is the process-local prompt template cache.
type Cache struct {
	src domain.PromptSource
	ttl time.Duration
	now func() time.Time

	mu         sync.RWMutex
	categories map[string]snapshot
}

// New builds a cache over src. A non-positive ttl falls back to DefaultTTL.
func New(src domain.PromptSource, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		src:        src,
		ttl:        ttl,
		now:        time.Now,
		categories: make(map[string]snapshot),
	}
}

// Render returns the template named name in category with every {placeholder}
// substituted from args. Missing args fail with PromptRenderError; extra args
// are ignored.
func (c *Cache) Render(ctx context.Context, category, name string, args map[string]string) (string, error) {
	snap, err := c.categorySnapshot(ctx, category)
	if err != nil {
		return "", err
	}
	row, ok := snap.templates[name]
	if !ok {
		return "", &domain.PromptNotFoundError{Category: category, Name: name}
	}
	return renderTemplate(name, row.Content, args)
}

func (c *Cache) categorySnapshot(ctx context.Context, category string) (snapshot, error) {
	c.mu.RLock()
	snap, ok := c.categories[category]
	c.mu.RUnlock()
	if ok && c.now().Before(snap.expiresAt) {
		return snap, nil
	}

	rows, err := c.src.ListByCategory(ctx, category)
	if err != nil {
		return snapshot{}, &domain.PromptLoadError{Category: category, Err: err}
	}

	templates := make(map[string]domain.PromptRow, len(rows))
	for _, row := range rows {
		if cur, ok := templates[row.FunctionName]; ok && cur.VersionNumber >= row.VersionNumber {
			continue
		}
		templates[row.FunctionName] = row
	}
	snap = snapshot{templates: templates, expiresAt: c.now().Add(c.ttl)}

	c.mu.Lock()
	c.categories[category] = snap
	c.mu.Unlock()
	return snap, nil
}

func renderTemplate(name, content string, args map[string]string) (string, error) {
	var missing []string
	rendered := placeholderRegexp.ReplaceAllStringFunc(content, func(token string) string {
		key := token[1 : len(token)-1]
		if value, ok := args[key]; ok {
			return value
		}
		missing = append(missing, key)
		return token
	})
	if len(missing) > 0 {
		return "", &domain.PromptRenderError{Name: name, Missing: dedupe(missing)}
	}
	return rendered, nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	var out []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
