package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go"

	"sealevel/backend/internal/consensus/contract"
)

// CohereProvider talks to the Cohere generate API. The SDK client takes no
// context, so calls run in a goroutine and the deadline is enforced here.
type CohereProvider struct {
	client *cohere.Client
	cfg    contract.ProviderConfig
	retry  Retrier
	health *healthRecord
}

func NewCohereProvider(cfg contract.ProviderConfig) *CohereProvider {
	if cfg.Model == "" {
		cfg.Model = "command"
	}
	client, _ := cohere.CreateClient(cfg.APIKey)
	return &CohereProvider{
		client: client,
		cfg:    cfg,
		retry:  Retrier{Attempts: cfg.MaxRetries + 1, Delay: 400 * time.Millisecond},
		health: newHealthRecord(),
	}
}

func (p *CohereProvider) Name() string { return p.cfg.Name }

func (p *CohereProvider) Enabled() bool { return p.cfg.APIKey != "" && p.client != nil }

func (p *CohereProvider) Config() contract.ProviderConfig { return p.cfg }

func (p *CohereProvider) Health() contract.ProviderHealth { return p.health.snapshot() }

func (p *CohereProvider) Query(ctx context.Context, prompt string, opts contract.QueryOptions) (*contract.ProviderResponse, error) {
	if p.client == nil {
		err := errors.New("cohere client not initialized")
		p.health.failure(err)
		return nil, &contract.ProviderError{Provider: p.cfg.Name, Err: err}
	}
	q := merge(p.cfg, opts)
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	started := time.Now()
	var raw []byte
	err := p.retry.Do(ctx, func() error {
		body, err := p.generate(ctx, prompt, q)
		if err != nil {
			return err
		}
		raw = body
		return nil
	})
	if err != nil {
		p.health.failure(err)
		return nil, &contract.ProviderError{Provider: p.cfg.Name, Err: err}
	}
	p.health.success(time.Since(started))
	return p.Normalize(raw), nil
}

func (p *CohereProvider) generate(ctx context.Context, prompt string, q contract.QueryOptions) ([]byte, error) {
	maxTokens := uint(q.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}
	temperature := q.Temperature

	type outcome struct {
		body []byte
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := p.client.Generate(cohere.GenerateOptions{
			Model:       p.cfg.Model,
			Prompt:      prompt,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
		if err != nil {
			done <- outcome{err: err}
			return
		}
		body, err := json.Marshal(result)
		done <- outcome{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.body, out.err
	}
}

// Normalize maps a raw generate body onto the shared response shape.
// Malformed input yields an empty-text response rather than an error.
func (p *CohereProvider) Normalize(raw []byte) *contract.ProviderResponse {
	resp := &contract.ProviderResponse{
		Provider:  p.cfg.Name,
		Model:     p.cfg.Model,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]string{},
	}
	var body struct {
		ID          string `json:"id"`
		Generations []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"generations"`
		Meta struct {
			BilledUnits struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"billed_units"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return resp
	}
	if body.ID != "" {
		resp.Metadata["id"] = body.ID
	}
	if len(body.Generations) > 0 {
		resp.Text = strings.TrimSpace(body.Generations[0].Text)
	}
	resp.TokensUsed = body.Meta.BilledUnits.InputTokens + body.Meta.BilledUnits.OutputTokens
	resp.Metadata["tokens"] = strconv.Itoa(resp.TokensUsed)
	return resp
}

// Validate reports whether a raw body carries at least one generation.
func (p *CohereProvider) Validate(raw []byte) bool {
	var body struct {
		Generations []struct {
			Text string `json:"text"`
		} `json:"generations"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return false
	}
	return len(body.Generations) > 0 && strings.TrimSpace(body.Generations[0].Text) != ""
}
