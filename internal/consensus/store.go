package consensus

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"sealevel/backend/internal/consensus/contract"
	"sealevel/backend/internal/crypto"
	"sealevel/backend/internal/db"
)

// Store persists provider configurations and provider health observations.
// Consensus results themselves are never written here; the in-memory cache
// is their only store. API keys are encrypted at rest with the master key.
type Store struct {
	db        *db.Store
	masterKey string
}

func NewStore(database *db.Store, masterKey string) *Store {
	return &Store{db: database, masterKey: masterKey}
}

// EnsureSchema creates the tables this store relies on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS providers (
			name TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			api_key TEXT NOT NULL DEFAULT '',
			base_url TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			dialect TEXT NOT NULL DEFAULT '',
			timeout_ms BIGINT NOT NULL DEFAULT 30000,
			max_retries INT NOT NULL DEFAULT 0,
			weight DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			temperature DOUBLE PRECISION NOT NULL DEFAULT 0.7,
			max_tokens INT NOT NULL DEFAULT 1024,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS provider_health (
			id BIGSERIAL PRIMARY KEY,
			provider TEXT NOT NULL,
			status TEXT NOT NULL,
			latency_ms BIGINT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			checked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveProviderConfig upserts a provider row, encrypting the API key first.
func (s *Store) SaveProviderConfig(ctx context.Context, cfg contract.ProviderConfig) error {
	apiKey := cfg.APIKey
	if apiKey != "" {
		encrypted, err := crypto.Encrypt(s.masterKey, apiKey)
		if err != nil {
			return err
		}
		apiKey = encrypted
	}
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO providers (name, kind, api_key, base_url, model, dialect, timeout_ms, max_retries, weight, temperature, max_tokens, is_active, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,TRUE,NOW())
		ON CONFLICT (name) DO UPDATE SET
			kind=EXCLUDED.kind, api_key=EXCLUDED.api_key, base_url=EXCLUDED.base_url,
			model=EXCLUDED.model, dialect=EXCLUDED.dialect, timeout_ms=EXCLUDED.timeout_ms,
			max_retries=EXCLUDED.max_retries, weight=EXCLUDED.weight,
			temperature=EXCLUDED.temperature, max_tokens=EXCLUDED.max_tokens,
			is_active=TRUE, updated_at=NOW()`,
		cfg.Name, cfg.Kind, apiKey, cfg.BaseURL, cfg.Model, cfg.Dialect,
		cfg.Timeout.Milliseconds(), cfg.MaxRetries, cfg.Weight, cfg.Temperature, cfg.MaxTokens)
	return err
}

// ListProviderConfigs returns all active provider rows with decrypted keys.
func (s *Store) ListProviderConfigs(ctx context.Context) ([]contract.ProviderConfig, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT name, kind, api_key, base_url, model, dialect, timeout_ms, max_retries, weight, temperature, max_tokens
		FROM providers
		WHERE is_active=TRUE
		ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []contract.ProviderConfig
	for rows.Next() {
		cfg, err := scanProviderConfig(rows)
		if err != nil {
			return nil, err
		}
		s.decryptKey(&cfg)
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// GetProviderConfig returns one active provider row, or found=false.
func (s *Store) GetProviderConfig(ctx context.Context, name string) (*contract.ProviderConfig, bool, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT name, kind, api_key, base_url, model, dialect, timeout_ms, max_retries, weight, temperature, max_tokens
		FROM providers
		WHERE name=$1 AND is_active=TRUE`, name)
	cfg, err := scanProviderConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.decryptKey(&cfg)
	return &cfg, true, nil
}

// DeleteProviderConfig deactivates a provider row and reports whether a row
// was touched.
func (s *Store) DeleteProviderConfig(ctx context.Context, name string) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE providers SET is_active=FALSE, updated_at=NOW() WHERE name=$1 AND is_active=TRUE`, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// InsertProviderHealth records one health observation.
func (s *Store) InsertProviderHealth(ctx context.Context, provider, status string, latency time.Duration, lastError string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO provider_health (provider, status, latency_ms, error_message, checked_at)
		VALUES ($1,$2,$3,$4,$5)`,
		provider, status, latency.Milliseconds(), lastError, time.Now().UTC())
	return err
}

func scanProviderConfig(row pgx.Row) (contract.ProviderConfig, error) {
	var (
		cfg       contract.ProviderConfig
		timeoutMs int64
	)
	err := row.Scan(&cfg.Name, &cfg.Kind, &cfg.APIKey, &cfg.BaseURL, &cfg.Model, &cfg.Dialect,
		&timeoutMs, &cfg.MaxRetries, &cfg.Weight, &cfg.Temperature, &cfg.MaxTokens)
	if err != nil {
		return cfg, err
	}
	cfg.Timeout = time.Duration(timeoutMs) * time.Millisecond
	return cfg, nil
}

func (s *Store) decryptKey(cfg *contract.ProviderConfig) {
	if cfg.APIKey == "" {
		return
	}
	if decrypted, err := crypto.Decrypt(s.masterKey, cfg.APIKey); err == nil {
		cfg.APIKey = decrypted
	}
}
