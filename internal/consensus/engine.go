package consensus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sealevel/backend/internal/consensus/contract"
)

// Timeout bounds for one consensus round. Overrides outside the window are
// coerced to the nearest bound, not rejected.
const (
	minRoundTimeout = 100 * time.Millisecond
	maxRoundTimeout = 30 * time.Second
)

// ConfigOverride adjusts individual knobs for a single call. Nil fields keep
// the engine's configured value.
type ConfigOverride struct {
	Threshold    *float64              `json:"threshold,omitempty"`
	MinProviders *int                  `json:"minProviders,omitempty"`
	Timeout      *time.Duration        `json:"timeout,omitempty"`
	CacheEnabled *bool                 `json:"cacheEnabled,omitempty"`
	CacheTTL     *time.Duration        `json:"cacheTTL,omitempty"`
	Retry        *contract.RetryConfig `json:"retry,omitempty"`
}

// Engine runs consensus rounds: one parallel fan-out to every enabled
// provider, then a weighted vote over similarity clusters of what came back.
type Engine struct {
	registry *Registry
	cache    *Cache
	cfg      contract.ConsensusConfig
}

func NewEngine(registry *Registry, cache *Cache, cfg contract.ConsensusConfig) *Engine {
	defaults := contract.DefaultConsensusConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaults.Threshold
	}
	if cfg.MinProviders < 1 {
		cfg.MinProviders = defaults.MinProviders
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry = defaults.Retry
	}
	return &Engine{registry: registry, cache: cache, cfg: cfg}
}

// Config returns the engine's resolved base configuration.
func (e *Engine) Config() contract.ConsensusConfig { return e.cfg }

// Registry exposes the provider registry backing this engine.
func (e *Engine) Registry() *Registry { return e.registry }

// Cache exposes the response cache backing this engine.
func (e *Engine) Cache() *Cache { return e.cache }

type providerOutcome struct {
	index int
	resp  *contract.ProviderResponse
	err   error
}

// Execute runs one consensus round for the prompt. Individual provider
// failures are recorded in the result; the only fatal conditions are too few
// enabled providers before dispatch and too few usable responses after.
func (e *Engine) Execute(ctx context.Context, prompt string, opts contract.QueryOptions, override *ConfigOverride) (*contract.ConsensusResult, error) {
	started := time.Now()
	cfg := e.resolve(override)
	req := &contract.ConsensusRequest{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Options:   opts,
		CreatedAt: started,
	}

	if cfg.CacheEnabled && e.cache != nil {
		if cached, ok := e.cache.Get(req); ok {
			cached.Metadata.CacheHit = true
			return cached, nil
		}
	}

	list := e.registry.GetAll()
	if len(list) < cfg.MinProviders {
		return nil, &InsufficientProvidersError{Required: cfg.MinProviders, Available: len(list)}
	}

	outcomes := e.fanOut(ctx, list, prompt, opts, cfg.Timeout)

	var (
		responses []contract.ProviderResponse
		votes     []vote
		failures  []contract.ProviderFailure
	)
	for i, p := range list {
		out := outcomes[i]
		switch {
		case out == nil:
			failures = append(failures, contract.ProviderFailure{
				Provider: p.Name(),
				Error:    fmt.Sprintf("no response within %s", cfg.Timeout),
			})
		case out.err != nil:
			failures = append(failures, contract.ProviderFailure{
				Provider: p.Name(),
				Error:    out.err.Error(),
			})
		case out.resp == nil || strings.TrimSpace(out.resp.Text) == "":
			failures = append(failures, contract.ProviderFailure{
				Provider: p.Name(),
				Error:    "empty response",
			})
		default:
			responses = append(responses, *out.resp)
			weight := p.Config().Weight
			if weight <= 0 {
				weight = 1.0
			}
			votes = append(votes, vote{response: out.resp, weight: weight})
		}
	}

	if len(votes) < cfg.MinProviders {
		return nil, &InsufficientResponsesError{Required: cfg.MinProviders, Actual: len(votes)}
	}

	groups := clusterResponses(votes)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].weight > groups[j].weight
	})

	majority := groups[0]
	minority := make([]string, 0, len(groups)-1)
	for _, g := range groups[1:] {
		minority = append(minority, g.representative.Text)
	}

	var responderWeight float64
	for _, v := range votes {
		responderWeight += v.weight
	}
	agreement := majority.weight / responderWeight * 100
	coverage := float64(len(votes)) / float64(len(list))
	confidence := agreement / 100
	if coverage < confidence {
		confidence = coverage
	}

	result := &contract.ConsensusResult{
		ID:         req.ID,
		Consensus:  agreement >= cfg.Threshold*100,
		Confidence: confidence,
		Agreement:  agreement,
		Responses:  responses,
		Majority:   majority.representative.Text,
		Minority:   minority,
		Failures:   failures,
		Metadata: contract.ResultMetadata{
			ProvidersQueried:   len(list),
			ProvidersResponded: len(votes),
			ResponseTime:       time.Since(started),
			CacheHit:           false,
			Prompt:             prompt,
			Timestamp:          time.Now().UTC(),
		},
	}

	if cfg.CacheEnabled && e.cache != nil {
		e.cache.Set(req, result, cfg.CacheTTL)
	}
	return result, nil
}

// fanOut queries every provider concurrently under a shared deadline and
// returns the outcomes indexed by dispatch order. Providers that do not
// settle before the deadline leave a nil slot; their late results are
// discarded because the channel buffer keeps the senders from blocking.
func (e *Engine) fanOut(ctx context.Context, list []contract.Provider, prompt string, opts contract.QueryOptions, timeout time.Duration) []*providerOutcome {
	roundCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan providerOutcome, len(list))
	for i, p := range list {
		go func(index int, p contract.Provider) {
			resp, err := p.Query(roundCtx, prompt, opts)
			results <- providerOutcome{index: index, resp: resp, err: err}
		}(i, p)
	}

	outcomes := make([]*providerOutcome, len(list))
	received := 0
collect:
	for received < len(list) {
		select {
		case out := <-results:
			o := out
			outcomes[o.index] = &o
			received++
		case <-roundCtx.Done():
			break collect
		}
	}
	return outcomes
}

// resolve merges a per-call override onto the engine config and clamps the
// round timeout into its allowed window.
func (e *Engine) resolve(override *ConfigOverride) contract.ConsensusConfig {
	cfg := e.cfg
	if override != nil {
		if override.Threshold != nil {
			cfg.Threshold = *override.Threshold
		}
		if override.MinProviders != nil {
			cfg.MinProviders = *override.MinProviders
		}
		if override.Timeout != nil {
			cfg.Timeout = *override.Timeout
		}
		if override.CacheEnabled != nil {
			cfg.CacheEnabled = *override.CacheEnabled
		}
		if override.CacheTTL != nil {
			cfg.CacheTTL = *override.CacheTTL
		}
	}
	if cfg.MinProviders < 1 {
		cfg.MinProviders = 1
	}
	if cfg.Timeout < minRoundTimeout {
		cfg.Timeout = minRoundTimeout
	}
	if cfg.Timeout > maxRoundTimeout {
		cfg.Timeout = maxRoundTimeout
	}
	return cfg
}
