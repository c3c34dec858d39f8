package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"adcraft/internal/infra"
	"adcraft/internal/sqlinline"
)

const (
	ProviderOpenAI = "openai"
	ProviderImage  = "image"
)

// Store reads and writes provider API keys in the integration_tokens table.
// Lets deployments rotate keys without restarting workers.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored API key for provider, or "" when none is set.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores or replaces the API key for provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("credentials: token is required")
	}
	props, err := json.Marshal(map[string]any{"source": "providerkey"})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, props)
	return err
}
