package providers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"sealevel/backend/internal/consensus/contract"
)

// ClaudeProvider talks to the Anthropic messages API.
type ClaudeProvider struct {
	client anthropic.Client
	cfg    contract.ProviderConfig
	retry  Retrier
	health *healthRecord
}

func NewClaudeProvider(cfg contract.ProviderConfig) *ClaudeProvider {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &ClaudeProvider{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		retry:  Retrier{Attempts: cfg.MaxRetries + 1, Delay: 500 * time.Millisecond},
		health: newHealthRecord(),
	}
}

func (p *ClaudeProvider) Name() string { return p.cfg.Name }

func (p *ClaudeProvider) Enabled() bool { return p.cfg.APIKey != "" }

func (p *ClaudeProvider) Config() contract.ProviderConfig { return p.cfg }

func (p *ClaudeProvider) Health() contract.ProviderHealth { return p.health.snapshot() }

func (p *ClaudeProvider) Query(ctx context.Context, prompt string, opts contract.QueryOptions) (*contract.ProviderResponse, error) {
	q := merge(p.cfg, opts)
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}
	maxTokens := q.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if q.Temperature > 0 {
		params.Temperature = anthropic.Float(q.Temperature)
	}

	started := time.Now()
	var raw string
	err := p.retry.Do(ctx, func() error {
		msg, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		raw = msg.RawJSON()
		return nil
	})
	if err != nil {
		p.health.failure(err)
		return nil, &contract.ProviderError{Provider: p.cfg.Name, Err: err}
	}
	p.health.success(time.Since(started))
	return p.Normalize([]byte(raw)), nil
}

// Normalize maps a raw messages API body onto the shared response shape.
// Text blocks are concatenated in order; malformed input yields empty text.
func (p *ClaudeProvider) Normalize(raw []byte) *contract.ProviderResponse {
	resp := &contract.ProviderResponse{
		Provider:  p.cfg.Name,
		Model:     p.cfg.Model,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]string{},
	}
	var body struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return resp
	}
	if body.Model != "" {
		resp.Model = body.Model
	}
	if body.ID != "" {
		resp.Metadata["id"] = body.ID
	}
	var sb strings.Builder
	for _, block := range body.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	resp.Text = strings.TrimSpace(sb.String())
	resp.TokensUsed = body.Usage.InputTokens + body.Usage.OutputTokens
	if body.StopReason != "" {
		resp.Metadata["stop_reason"] = body.StopReason
	}
	resp.Metadata["tokens"] = strconv.Itoa(resp.TokensUsed)
	return resp
}

// Validate reports whether a raw body carries at least one text block.
func (p *ClaudeProvider) Validate(raw []byte) bool {
	var body struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return false
	}
	for _, block := range body.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return true
		}
	}
	return false
}
