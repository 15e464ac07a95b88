package config

import (
	"os"
	"strconv"
	"time"

	"sealevel/backend/internal/consensus/contract"
)

type Config struct {
	DatabaseURL    string
	Port           string
	JWTSecret      string
	FrontendOrigin string
	RedisURL       string
	MasterKey      string

	OpenAIKey      string
	OpenAIModel    string
	OpenAIWeight   float64
	AnthropicKey   string
	AnthropicModel string
	ClaudeWeight   float64
	CohereKey      string
	CohereModel    string
	CohereWeight   float64
	GrokKey        string
	GrokModel      string
	GrokWeight     float64
	LocalURL       string
	LocalModel     string
	LocalDialect   string
	LocalWeight    float64

	ProviderTimeout    time.Duration
	ProviderMaxRetries int

	Threshold       float64
	MinProviders    int
	RoundTimeout    time.Duration
	CacheEnabled    bool
	CacheTTL        time.Duration
	RetryMax        int
	RetryDelay      time.Duration
	RetryMultiplier float64

	HealthInterval  time.Duration
	WorkerBatchSize int
}

func Load() Config {
	cfg := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Port:           os.Getenv("PORT"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		FrontendOrigin: os.Getenv("FRONTEND_ORIGIN"),
		RedisURL:       os.Getenv("REDIS_URL"),
		MasterKey:      os.Getenv("MASTER_KEY"),

		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		OpenAIWeight:   envFloat("OPENAI_WEIGHT", 1.0),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel: os.Getenv("ANTHROPIC_MODEL"),
		ClaudeWeight:   envFloat("ANTHROPIC_WEIGHT", 1.0),
		CohereKey:      os.Getenv("COHERE_API_KEY"),
		CohereModel:    os.Getenv("COHERE_MODEL"),
		CohereWeight:   envFloat("COHERE_WEIGHT", 1.0),
		GrokKey:        os.Getenv("GROK_API_KEY"),
		GrokModel:      os.Getenv("GROK_MODEL"),
		GrokWeight:     envFloat("GROK_WEIGHT", 1.0),
		LocalURL:       os.Getenv("LOCAL_LLM_URL"),
		LocalModel:     os.Getenv("LOCAL_LLM_MODEL"),
		LocalDialect:   os.Getenv("LOCAL_LLM_DIALECT"),
		LocalWeight:    envFloat("LOCAL_LLM_WEIGHT", 1.0),

		ProviderTimeout:    envMillis("PROVIDER_TIMEOUT_MS", 30_000),
		ProviderMaxRetries: envInt("PROVIDER_MAX_RETRIES", 2),

		Threshold:       envFloat("CONSENSUS_THRESHOLD", 0.75),
		MinProviders:    envInt("CONSENSUS_MIN_PROVIDERS", 2),
		RoundTimeout:    envMillis("CONSENSUS_TIMEOUT_MS", 10_000),
		CacheEnabled:    envBool("CACHE_ENABLED", true),
		CacheTTL:        envSeconds("CACHE_TTL_SECONDS", 300),
		RetryMax:        envInt("RETRY_MAX", 2),
		RetryDelay:      envMillis("RETRY_INITIAL_DELAY_MS", 1_000),
		RetryMultiplier: envFloat("RETRY_MULTIPLIER", 2.0),

		HealthInterval:  envMillis("HEALTH_CHECK_INTERVAL_MS", 300_000),
		WorkerBatchSize: envInt("WORKER_BATCH_SIZE", 10),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.FrontendOrigin == "" {
		cfg.FrontendOrigin = "http://localhost:5173"
	}
	return cfg
}

// ProviderConfigs maps the flat settings onto one config per known provider.
// Providers without credentials are still listed; the factory rejects them
// and the bootstrap skips registration.
func (c Config) ProviderConfigs() []contract.ProviderConfig {
	return []contract.ProviderConfig{
		{
			Name: "openai", Kind: "openai",
			APIKey: c.OpenAIKey, Model: c.OpenAIModel, Weight: c.OpenAIWeight,
			Timeout: c.ProviderTimeout, MaxRetries: c.ProviderMaxRetries,
		},
		{
			Name: "claude", Kind: "claude",
			APIKey: c.AnthropicKey, Model: c.AnthropicModel, Weight: c.ClaudeWeight,
			Timeout: c.ProviderTimeout, MaxRetries: c.ProviderMaxRetries,
		},
		{
			Name: "cohere", Kind: "cohere",
			APIKey: c.CohereKey, Model: c.CohereModel, Weight: c.CohereWeight,
			Timeout: c.ProviderTimeout, MaxRetries: c.ProviderMaxRetries,
		},
		{
			Name: "grok", Kind: "grok",
			APIKey: c.GrokKey, Model: c.GrokModel, Weight: c.GrokWeight,
			Timeout: c.ProviderTimeout, MaxRetries: c.ProviderMaxRetries,
		},
		{
			Name: "local", Kind: "local",
			BaseURL: c.LocalURL, Model: c.LocalModel, Dialect: c.LocalDialect, Weight: c.LocalWeight,
			Timeout: c.ProviderTimeout, MaxRetries: c.ProviderMaxRetries,
		},
	}
}

// ConsensusConfig maps the global knobs onto the engine configuration.
func (c Config) ConsensusConfig() contract.ConsensusConfig {
	return contract.ConsensusConfig{
		Threshold:    c.Threshold,
		MinProviders: c.MinProviders,
		Timeout:      c.RoundTimeout,
		CacheEnabled: c.CacheEnabled,
		CacheTTL:     c.CacheTTL,
		Retry: contract.RetryConfig{
			MaxRetries:   c.RetryMax,
			InitialDelay: c.RetryDelay,
			Multiplier:   c.RetryMultiplier,
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			return value
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			return value
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			return value
		}
	}
	return fallback
}

func envMillis(key string, fallback int64) time.Duration {
	return time.Duration(int64(envInt(key, int(fallback)))) * time.Millisecond
}

func envSeconds(key string, fallback int64) time.Duration {
	return time.Duration(int64(envInt(key, int(fallback)))) * time.Second
}
