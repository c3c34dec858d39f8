// Command migrate applies the database schema and seeds the default prompt
// templates. It is idempotent; re-running against an existing database is a
// no-op.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    job_type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'SUBMITTED',
    input_json JSONB NOT NULL DEFAULT '{}'::jsonb,
    result_key TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    dev_mode BOOLEAN NOT NULL DEFAULT FALSE,
    api_version TEXT NOT NULL DEFAULT 'v1',
    locale TEXT NOT NULL DEFAULT 'en',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at)`,

	`CREATE TABLE IF NOT EXISTS prompt_templates (
    id SERIAL PRIMARY KEY,
    category TEXT NOT NULL,
    function_name TEXT NOT NULL,
    content TEXT NOT NULL,
    version_number INT NOT NULL DEFAULT 1,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (category, function_name, version_number)
)`,

	`CREATE TABLE IF NOT EXISTS integration_tokens (
    provider TEXT PRIMARY KEY,
    token TEXT NOT NULL,
    properties JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,

	`CREATE TABLE IF NOT EXISTS analytics_daily (
    day TEXT PRIMARY KEY,
    jobs_submitted INT NOT NULL DEFAULT 0,
    jobs_succeeded INT NOT NULL DEFAULT 0,
    jobs_failed INT NOT NULL DEFAULT 0,
    api_requests INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,

	`CREATE TABLE IF NOT EXISTS analytics_country (
    day TEXT NOT NULL,
    country TEXT NOT NULL,
    hits INT NOT NULL DEFAULT 0,
    PRIMARY KEY (day, country)
)`,
}

type seedPrompt struct {
	category string
	name     string
	content  string
}

var seedPrompts = []seedPrompt{
	{"research", "analyze_page", "Analyze the product page for {product_name} (market: {market}, angle: {angle}).\n\nPage text:\n{page_text}\n\nReturn the analysis plus an honest rubric."},
	{"research", "compose_landing_page", "Write landing page copy for {product_name} with angle {angle}.\nSummary: {summary}\nAudience: {audience}\nHooks:\n{hooks}\nObjections:\n{objections}"},
	{"swipe", "rewrite_swipe", "Rewrite this advertorial for {product_name} ({product_description}) in a {tone} tone, keeping the original structure.\n\nOriginal headline: {swipe_headline}\nOriginal body:\n{swipe_body}"},
	{"avatar", "extract_avatar", "Extract one specific customer avatar from this research:\n\n{research_text}"},
}

func main() {
	_ = godotenv.Load()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		fatal("open database: %v", err)
	}
	defer db.Close()
	db.SetConnMaxLifetime(time.Minute)

	if err := db.Ping(); err != nil {
		fatal("ping database: %v", err)
	}

	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			fatal("statement %d failed: %v", i+1, err)
		}
	}

	for _, p := range seedPrompts {
		if _, err := db.Exec(`
INSERT INTO prompt_templates (category, function_name, content, version_number)
VALUES ($1, $2, $3, 1)
ON CONFLICT (category, function_name, version_number) DO NOTHING;
`, p.category, p.name, p.content); err != nil {
			fatal("seed prompt %s/%s failed: %v", p.category, p.name, err)
		}
	}

	fmt.Println("schema applied")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
