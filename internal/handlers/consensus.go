package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"sealevel/backend/internal/consensus"
	"sealevel/backend/internal/consensus/contract"
)

type consensusRequest struct {
	Prompt  string                 `json:"prompt"`
	Options *queryOptionsRequest   `json:"options"`
	Config  *configOverrideRequest `json:"config"`
	Retry   *bool                  `json:"retry"`
}

type queryOptionsRequest struct {
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	TimeoutMs   *int64   `json:"timeout_ms"`
}

type configOverrideRequest struct {
	Threshold       *float64 `json:"threshold"`
	MinProviders    *int     `json:"min_providers"`
	TimeoutMs       *int64   `json:"timeout_ms"`
	CacheEnabled    *bool    `json:"cache_enabled"`
	CacheTTLSeconds *int64   `json:"cache_ttl_seconds"`
	RetryMax        *int     `json:"retry_max"`
	RetryDelayMs    *int64   `json:"retry_initial_delay_ms"`
	RetryMultiplier *float64 `json:"retry_multiplier"`
}

func (req *consensusRequest) queryOptions() contract.QueryOptions {
	var opts contract.QueryOptions
	if req.Options == nil {
		return opts
	}
	if req.Options.Temperature != nil {
		opts.Temperature = *req.Options.Temperature
	}
	if req.Options.MaxTokens != nil {
		opts.MaxTokens = *req.Options.MaxTokens
	}
	if req.Options.TimeoutMs != nil {
		opts.Timeout = time.Duration(*req.Options.TimeoutMs) * time.Millisecond
	}
	return opts
}

func (req *consensusRequest) override(baseRetry contract.RetryConfig) *consensus.ConfigOverride {
	if req.Config == nil {
		return nil
	}
	override := &consensus.ConfigOverride{
		Threshold:    req.Config.Threshold,
		MinProviders: req.Config.MinProviders,
		CacheEnabled: req.Config.CacheEnabled,
	}
	if req.Config.TimeoutMs != nil {
		timeout := time.Duration(*req.Config.TimeoutMs) * time.Millisecond
		override.Timeout = &timeout
	}
	if req.Config.CacheTTLSeconds != nil {
		ttl := time.Duration(*req.Config.CacheTTLSeconds) * time.Second
		override.CacheTTL = &ttl
	}
	if req.Config.RetryMax != nil || req.Config.RetryDelayMs != nil || req.Config.RetryMultiplier != nil {
		retry := baseRetry
		if req.Config.RetryMax != nil {
			retry.MaxRetries = *req.Config.RetryMax
		}
		if req.Config.RetryDelayMs != nil {
			retry.InitialDelay = time.Duration(*req.Config.RetryDelayMs) * time.Millisecond
		}
		if req.Config.RetryMultiplier != nil {
			retry.Multiplier = *req.Config.RetryMultiplier
		}
		override.Retry = &retry
	}
	return override
}

func (a *API) ExecuteConsensus(w http.ResponseWriter, r *http.Request) {
	var req consensusRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	withRetry := true
	if req.Retry != nil {
		withRetry = *req.Retry
	}

	var (
		result *contract.ConsensusResult
		err    error
	)
	override := req.override(a.Engine.Config().Retry)
	if withRetry {
		result, err = a.Engine.ExecuteWithRetry(r.Context(), req.Prompt, req.queryOptions(), override)
	} else {
		result, err = a.Engine.Execute(r.Context(), req.Prompt, req.queryOptions(), override)
	}
	if err != nil {
		writeConsensusError(w, err)
		return
	}

	if a.Hub != nil {
		a.Hub.Broadcast(map[string]any{
			"type":      "consensus.completed",
			"id":        result.ID,
			"consensus": result.Consensus,
			"agreement": result.Agreement,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) EnqueueConsensus(w http.ResponseWriter, r *http.Request) {
	if a.Queue == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue not configured")
		return
	}
	var req consensusRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	job := consensus.Job{
		ID:        uuid.NewString(),
		Prompt:    req.Prompt,
		Options:   req.queryOptions(),
		Override:  req.override(a.Engine.Config().Retry),
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Queue.Enqueue(r.Context(), job); err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue job")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": "queued",
	})
}

func (a *API) GetConsensusJob(w http.ResponseWriter, r *http.Request, id string) {
	if a.Queue == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue not configured")
		return
	}
	result, found, err := a.Queue.FetchResult(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch job")
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]string{
			"id":     id,
			"status": "pending",
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeConsensusError(w http.ResponseWriter, err error) {
	var providersErr *consensus.InsufficientProvidersError
	if errors.As(err, &providersErr) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":     "insufficient providers",
			"required":  providersErr.Required,
			"available": providersErr.Available,
		})
		return
	}
	var responsesErr *consensus.InsufficientResponsesError
	if errors.As(err, &responsesErr) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    "insufficient responses",
			"required": responsesErr.Required,
			"actual":   responsesErr.Actual,
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "consensus failed")
}
