package consensus

import (
	"fmt"
	"math"
	"strings"
	"time"

	"sealevel/backend/internal/consensus/contract"
	"sealevel/backend/internal/consensus/providers"
)

// Provider kinds accepted by the factory.
const (
	KindOpenAI = "openai"
	KindClaude = "claude"
	KindCohere = "cohere"
	KindGrok   = "grok"
	KindLocal  = "local"
)

// NewProvider builds the concrete adapter for a config. Hosted kinds need an
// API key and the local kind needs a base URL; a config that lacks them gets
// a ConfigurationError so callers can skip the provider instead of crashing.
func NewProvider(cfg contract.ProviderConfig) (contract.Provider, error) {
	cfg = withDefaults(cfg)
	if cfg.Weight <= 0 || math.IsNaN(cfg.Weight) || math.IsInf(cfg.Weight, 0) {
		return nil, &ConfigurationError{Provider: cfg.Name, Reason: fmt.Sprintf("invalid weight %v", cfg.Weight)}
	}
	switch strings.ToLower(cfg.Kind) {
	case KindOpenAI:
		if cfg.APIKey == "" {
			return nil, &ConfigurationError{Provider: cfg.Name, Reason: "api key required"}
		}
		return providers.NewOpenAIProvider(cfg), nil
	case KindClaude:
		if cfg.APIKey == "" {
			return nil, &ConfigurationError{Provider: cfg.Name, Reason: "api key required"}
		}
		return providers.NewClaudeProvider(cfg), nil
	case KindCohere:
		if cfg.APIKey == "" {
			return nil, &ConfigurationError{Provider: cfg.Name, Reason: "api key required"}
		}
		return providers.NewCohereProvider(cfg), nil
	case KindGrok:
		if cfg.APIKey == "" {
			return nil, &ConfigurationError{Provider: cfg.Name, Reason: "api key required"}
		}
		return providers.NewGrokProvider(cfg), nil
	case KindLocal:
		if cfg.BaseURL == "" {
			return nil, &ConfigurationError{Provider: cfg.Name, Reason: "base url required"}
		}
		return providers.NewLocalProvider(cfg), nil
	default:
		return nil, &ConfigurationError{Provider: cfg.Name, Reason: fmt.Sprintf("unsupported provider kind %q", cfg.Kind)}
	}
}

func withDefaults(cfg contract.ProviderConfig) contract.ProviderConfig {
	if cfg.Name == "" {
		cfg.Name = strings.ToLower(cfg.Kind)
	}
	if cfg.Weight == 0 {
		cfg.Weight = 1.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return cfg
}
