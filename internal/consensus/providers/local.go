package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sealevel/backend/internal/consensus/contract"
)

const (
	DialectOllama = "ollama"
	DialectOpenAI = "openai"
)

// LocalProvider talks to a model server on the local network, either an
// Ollama daemon or an OpenAI-compatible server such as LM Studio. The
// dialect decides the endpoint and the body shape.
type LocalProvider struct {
	httpClient *http.Client
	cfg        contract.ProviderConfig
	retry      Retrier
	health     *healthRecord
}

func NewLocalProvider(cfg contract.ProviderConfig) *LocalProvider {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectOllama
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &LocalProvider{
		httpClient: &http.Client{},
		cfg:        cfg,
		retry:      Retrier{Attempts: cfg.MaxRetries + 1, Delay: 300 * time.Millisecond},
		health:     newHealthRecord(),
	}
}

func (p *LocalProvider) Name() string { return p.cfg.Name }

func (p *LocalProvider) Enabled() bool { return p.cfg.BaseURL != "" }

func (p *LocalProvider) Config() contract.ProviderConfig { return p.cfg }

func (p *LocalProvider) Health() contract.ProviderHealth { return p.health.snapshot() }

func (p *LocalProvider) Query(ctx context.Context, prompt string, opts contract.QueryOptions) (*contract.ProviderResponse, error) {
	q := merge(p.cfg, opts)
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	endpoint, payload, err := p.buildRequest(prompt, q)
	if err != nil {
		p.health.failure(err)
		return nil, &contract.ProviderError{Provider: p.cfg.Name, Err: err}
	}

	started := time.Now()
	var raw []byte
	err = p.retry.Do(ctx, func() error {
		body, err := p.post(ctx, endpoint, payload)
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

func (p *LocalProvider) buildRequest(prompt string, q contract.QueryOptions) (string, []byte, error) {
	switch p.cfg.Dialect {
	case DialectOpenAI:
		body := map[string]any{
			"model": p.cfg.Model,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
			"stream": false,
		}
		if q.Temperature > 0 {
			body["temperature"] = q.Temperature
		}
		if q.MaxTokens > 0 {
			body["max_tokens"] = q.MaxTokens
		}
		payload, err := json.Marshal(body)
		return p.cfg.BaseURL + "/chat/completions", payload, err
	case DialectOllama:
		options := map[string]any{}
		if q.Temperature > 0 {
			options["temperature"] = q.Temperature
		}
		if q.MaxTokens > 0 {
			options["num_predict"] = q.MaxTokens
		}
		body := map[string]any{
			"model":   p.cfg.Model,
			"prompt":  prompt,
			"stream":  false,
			"options": options,
		}
		payload, err := json.Marshal(body)
		return p.cfg.BaseURL + "/api/generate", payload, err
	default:
		return "", nil, fmt.Errorf("unknown local dialect %q", p.cfg.Dialect)
	}
}

func (p *LocalProvider) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local server returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// Normalize maps a raw body onto the shared response shape using the
// configured dialect. Malformed input yields an empty-text response.
func (p *LocalProvider) Normalize(raw []byte) *contract.ProviderResponse {
	resp := &contract.ProviderResponse{
		Provider:  p.cfg.Name,
		Model:     p.cfg.Model,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]string{"dialect": p.cfg.Dialect},
	}
	switch p.cfg.Dialect {
	case DialectOpenAI:
		var body struct {
			Model   string `json:"model"`
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
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
		if len(body.Choices) > 0 {
			resp.Text = strings.TrimSpace(body.Choices[0].Message.Content)
		}
		resp.TokensUsed = body.Usage.TotalTokens
	default:
		var body struct {
			Model           string `json:"model"`
			Response        string `json:"response"`
			EvalCount       int    `json:"eval_count"`
			PromptEvalCount int    `json:"prompt_eval_count"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return resp
		}
		if body.Model != "" {
			resp.Model = body.Model
		}
		resp.Text = strings.TrimSpace(body.Response)
		resp.TokensUsed = body.EvalCount + body.PromptEvalCount
	}
	resp.Metadata["tokens"] = strconv.Itoa(resp.TokensUsed)
	return resp
}

// Validate reports whether a raw body carries usable text for the dialect.
func (p *LocalProvider) Validate(raw []byte) bool {
	switch p.cfg.Dialect {
	case DialectOpenAI:
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
	default:
		var body struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return false
		}
		return strings.TrimSpace(body.Response) != ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
