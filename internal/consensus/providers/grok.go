package providers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"sealevel/backend/internal/consensus/contract"
)

const grokBaseURL = "https://api.x.ai/v1"

// GrokProvider talks to the xAI API, which speaks the OpenAI chat
// completions wire format.
type GrokProvider struct {
	client openai.Client
	cfg    contract.ProviderConfig
	retry  Retrier
	health *healthRecord
}

func NewGrokProvider(cfg contract.ProviderConfig) *GrokProvider {
	if cfg.Model == "" {
		cfg.Model = "grok-2-latest"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = grokBaseURL
	}
	return &GrokProvider{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		),
		cfg:    cfg,
		retry:  Retrier{Attempts: cfg.MaxRetries + 1, Delay: 500 * time.Millisecond},
		health: newHealthRecord(),
	}
}

func (p *GrokProvider) Name() string { return p.cfg.Name }

func (p *GrokProvider) Enabled() bool { return p.cfg.APIKey != "" }

func (p *GrokProvider) Config() contract.ProviderConfig { return p.cfg }

func (p *GrokProvider) Health() contract.ProviderHealth { return p.health.snapshot() }

func (p *GrokProvider) Query(ctx context.Context, prompt string, opts contract.QueryOptions) (*contract.ProviderResponse, error) {
	q := merge(p.cfg, opts)
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if q.Temperature > 0 {
		params.Temperature = openai.Float(q.Temperature)
	}
	if q.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(q.MaxTokens))
	}

	started := time.Now()
	var raw string
	err := p.retry.Do(ctx, func() error {
		completion, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return err
		}
		raw = completion.RawJSON()
		return nil
	})
	if err != nil {
		p.health.failure(err)
		return nil, &contract.ProviderError{Provider: p.cfg.Name, Err: err}
	}
	p.health.success(time.Since(started))
	return p.Normalize([]byte(raw)), nil
}

// Normalize maps a raw chat completion body onto the shared response shape.
func (p *GrokProvider) Normalize(raw []byte) *contract.ProviderResponse {
	resp := &contract.ProviderResponse{
		Provider:  p.cfg.Name,
		Model:     p.cfg.Model,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]string{},
	}
	var body struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
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
	resp.TokensUsed = body.Usage.TotalTokens
	if len(body.Choices) > 0 {
		resp.Text = strings.TrimSpace(body.Choices[0].Message.Content)
		if fr := body.Choices[0].FinishReason; fr != "" {
			resp.Metadata["finish_reason"] = fr
		}
	}
	resp.Metadata["tokens"] = strconv.Itoa(resp.TokensUsed)
	return resp
}

// Validate reports whether a raw body carries usable completion text.
func (p *GrokProvider) Validate(raw []byte) bool {
	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return false
	}
	return len(body.Choices) > 0 && strings.TrimSpace(body.Choices[0].Message.Content) != ""
}
