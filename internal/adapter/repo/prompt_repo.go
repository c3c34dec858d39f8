package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"adcraft/internal/domain"
)

// PromptRepositoryPG implements domain.PromptSource. Templates are loaded in
// per-category batches; the cache layer decides which version wins.
type PromptRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPromptRepository creates a prompt source backed by PostgreSQL.
func NewPromptRepository(pool *pgxpool.Pool) *PromptRepositoryPG {
	return &PromptRepositoryPG{pool: pool}
}

// ListByCategory returns every active template version in the category.
func (r *PromptRepositoryPG) ListByCategory(ctx context.Context, category string) ([]domain.PromptRow, error) {
	rows, err := r.pool.Query(ctx, `
SELECT function_name, content, version_number
FROM prompt_templates
WHERE category = $1 AND active = TRUE
ORDER BY function_name ASC, version_number ASC;
`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PromptRow
	for rows.Next() {
		var row domain.PromptRow
		if err := rows.Scan(&row.FunctionName, &row.Content, &row.VersionNumber); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ domain.PromptSource = (*PromptRepositoryPG)(nil)
