package contract

import (
	"context"
	"fmt"
	"time"
)

// Health statuses reported by providers.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// Provider is one adapter around an external text-generation backend.
// Query issues a single completion call; Normalize converts a raw backend
// payload into a ProviderResponse and never fails (malformed input yields an
// empty Text); Validate is a pure shape check for callers that want to
// inspect a payload before normalizing. The engine only calls Query.
type Provider interface {
	Name() string
	Query(ctx context.Context, prompt string, opts QueryOptions) (*ProviderResponse, error)
	Normalize(raw []byte) *ProviderResponse
	Validate(raw []byte) bool
	Enabled() bool
	Health() ProviderHealth
	Config() ProviderConfig
}

// ProviderError is what Query returns when the backend call fails after the
// adapter's own retries. Callers record it and move on; one failing provider
// never aborts a round.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type ProviderConfig struct {
	Name        string
	Kind        string
	APIKey      string
	BaseURL     string
	Model       string
	Dialect     string
	Timeout     time.Duration
	MaxRetries  int
	Weight      float64
	Temperature float64
	MaxTokens   int
}

type QueryOptions struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type ProviderResponse struct {
	Provider   string            `json:"provider"`
	Text       string            `json:"text"`
	Model      string            `json:"model,omitempty"`
	TokensUsed int               `json:"tokens_used,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type ProviderHealth struct {
	Status            string        `json:"status"`
	Latency           time.Duration `json:"latency"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	LastError         string        `json:"last_error,omitempty"`
	CheckedAt         time.Time     `json:"checked_at"`
}

type ProviderFailure struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

type ConsensusRequest struct {
	ID        string
	Prompt    string
	Options   QueryOptions
	CreatedAt time.Time
}

type ResultMetadata struct {
	ProvidersQueried   int           `json:"providers_queried"`
	ProvidersResponded int           `json:"providers_responded"`
	ResponseTime       time.Duration `json:"response_time"`
	CacheHit           bool          `json:"cache_hit"`
	Prompt             string        `json:"prompt"`
	Timestamp          time.Time     `json:"timestamp"`
}

type ConsensusResult struct {
	ID         string             `json:"id"`
	Consensus  bool               `json:"consensus"`
	Confidence float64            `json:"confidence"`
	Agreement  float64            `json:"agreement"`
	Responses  []ProviderResponse `json:"responses"`
	Majority   string             `json:"majority"`
	Minority   []string           `json:"minority"`
	Failures   []ProviderFailure  `json:"failures,omitempty"`
	Metadata   ResultMetadata     `json:"metadata"`
}

// Clone returns a copy that shares no slices or maps with the original, so a
// cached result can be handed out with a patched CacheHit flag while the
// stored entry stays untouched.
func (r *ConsensusResult) Clone() *ConsensusResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Responses = make([]ProviderResponse, len(r.Responses))
	for i, resp := range r.Responses {
		out.Responses[i] = resp
		if resp.Metadata != nil {
			meta := make(map[string]string, len(resp.Metadata))
			for k, v := range resp.Metadata {
				meta[k] = v
			}
			out.Responses[i].Metadata = meta
		}
	}
	out.Minority = append([]string(nil), r.Minority...)
	out.Failures = append([]ProviderFailure(nil), r.Failures...)
	return &out
}

type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
}

type ConsensusConfig struct {
	Threshold    float64
	MinProviders int
	Timeout      time.Duration
	CacheEnabled bool
	CacheTTL     time.Duration
	Retry        RetryConfig
}

func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		Threshold:    0.75,
		MinProviders: 2,
		Timeout:      10 * time.Second,
		CacheEnabled: true,
		CacheTTL:     300 * time.Second,
		Retry: RetryConfig{
			MaxRetries:   2,
			InitialDelay: time.Second,
			Multiplier:   2.0,
		},
	}
}
