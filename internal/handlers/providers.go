package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"sealevel/backend/internal/consensus"
	"sealevel/backend/internal/consensus/contract"
)

type providerRequest struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	APIKey      string   `json:"api_key"`
	BaseURL     string   `json:"base_url"`
	Model       string   `json:"model"`
	Dialect     string   `json:"dialect"`
	Weight      *float64 `json:"weight"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	TimeoutMs   *int64   `json:"timeout_ms"`
	MaxRetries  *int     `json:"max_retries"`
}

type providerSummary struct {
	Name    string                  `json:"name"`
	Kind    string                  `json:"kind"`
	Model   string                  `json:"model"`
	BaseURL string                  `json:"base_url,omitempty"`
	Dialect string                  `json:"dialect,omitempty"`
	Weight  float64                 `json:"weight"`
	Enabled bool                    `json:"enabled"`
	Health  contract.ProviderHealth `json:"health"`
}

func summarize(p contract.Provider) providerSummary {
	cfg := p.Config()
	return providerSummary{
		Name:    p.Name(),
		Kind:    cfg.Kind,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Dialect: cfg.Dialect,
		Weight:  cfg.Weight,
		Enabled: p.Enabled(),
		Health:  p.Health(),
	}
}

func (req *providerRequest) apply(cfg contract.ProviderConfig) contract.ProviderConfig {
	if req.Name != "" {
		cfg.Name = req.Name
	}
	if req.Kind != "" {
		cfg.Kind = req.Kind
	}
	if req.APIKey != "" {
		cfg.APIKey = req.APIKey
	}
	if req.BaseURL != "" {
		cfg.BaseURL = req.BaseURL
	}
	if req.Model != "" {
		cfg.Model = req.Model
	}
	if req.Dialect != "" {
		cfg.Dialect = req.Dialect
	}
	if req.Weight != nil {
		cfg.Weight = *req.Weight
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		cfg.MaxTokens = *req.MaxTokens
	}
	if req.TimeoutMs != nil {
		cfg.Timeout = time.Duration(*req.TimeoutMs) * time.Millisecond
	}
	if req.MaxRetries != nil {
		cfg.MaxRetries = *req.MaxRetries
	}
	return cfg
}

func (a *API) ListProviders(w http.ResponseWriter, r *http.Request) {
	registry := a.Engine.Registry()
	summaries := make([]providerSummary, 0, registry.Count())
	for _, name := range registry.Names() {
		if p, ok := registry.Get(name); ok {
			summaries = append(summaries, summarize(p))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": summaries,
	})
}

func (a *API) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	cfg := req.apply(contract.ProviderConfig{})
	provider, err := consensus.NewProvider(cfg)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	a.Engine.Registry().Register(provider)
	a.persistProvider(r.Context(), provider.Config())
	writeJSON(w, http.StatusCreated, summarize(provider))
}

func (a *API) GetProvider(w http.ResponseWriter, r *http.Request, name string) {
	p, ok := a.Engine.Registry().Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, summarize(p))
}

func (a *API) UpdateProvider(w http.ResponseWriter, r *http.Request, name string) {
	registry := a.Engine.Registry()
	existing, ok := registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	var req providerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Name != "" && req.Name != name {
		writeError(w, http.StatusBadRequest, "provider name cannot change")
		return
	}

	cfg := req.apply(existing.Config())
	cfg.Name = name
	provider, err := consensus.NewProvider(cfg)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	registry.Register(provider)
	a.persistProvider(r.Context(), provider.Config())
	writeJSON(w, http.StatusOK, summarize(provider))
}

func (a *API) DeleteProvider(w http.ResponseWriter, r *http.Request, name string) {
	if !a.Engine.Registry().Unregister(name) {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}
	if a.Store != nil {
		if _, err := a.Store.DeleteProviderConfig(r.Context(), name); err != nil {
			log.Printf("providers: deactivating %s failed: %v", name, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "removed",
	})
}

func (a *API) ProviderHealth(w http.ResponseWriter, r *http.Request, name string) {
	p, ok := a.Engine.Registry().Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": p.Name(),
		"health":   p.Health(),
	})
}

func (a *API) persistProvider(ctx context.Context, cfg contract.ProviderConfig) {
	if a.Store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Store.SaveProviderConfig(saveCtx, cfg); err != nil {
		log.Printf("providers: persisting %s failed: %v", cfg.Name, err)
	}
}

func writeProviderError(w http.ResponseWriter, err error) {
	var cfgErr *consensus.ConfigurationError
	if errors.As(err, &cfgErr) {
		writeError(w, http.StatusBadRequest, cfgErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to build provider")
}
