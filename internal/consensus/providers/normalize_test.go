package providers

import (
	"testing"

	"sealevel/backend/internal/consensus/contract"
)

func TestOpenAINormalize(t *testing.T) {
	p := NewOpenAIProvider(contract.ProviderConfig{Name: "openai", Kind: "openai", APIKey: "sk-test"})
	raw := []byte(`{
		"id": "chatcmpl-9x2Qm",
		"object": "chat.completion",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [
			{"index": 0, "message": {"role": "assistant", "content": "The cat sat on the mat."}, "finish_reason": "stop"}
		],
		"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
	}`)

	resp := p.Normalize(raw)
	if resp.Text != "The cat sat on the mat." {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.Model != "gpt-4o-mini-2024-07-18" {
		t.Fatalf("unexpected model: %s", resp.Model)
	}
	if resp.TokensUsed != 20 {
		t.Fatalf("unexpected tokens: %d", resp.TokensUsed)
	}
	if resp.Metadata["finish_reason"] != "stop" || resp.Metadata["id"] != "chatcmpl-9x2Qm" {
		t.Fatalf("unexpected metadata: %v", resp.Metadata)
	}
	if !p.Validate(raw) {
		t.Fatalf("expected valid body")
	}
	if p.Validate([]byte(`{"choices":[]}`)) {
		t.Fatalf("no choices should be invalid")
	}
}

func TestOpenAINormalizeMalformed(t *testing.T) {
	p := NewOpenAIProvider(contract.ProviderConfig{Name: "openai", Kind: "openai", APIKey: "sk-test"})
	resp := p.Normalize([]byte("<html>bad gateway</html>"))
	if resp.Text != "" {
		t.Fatalf("malformed body should yield empty text, got %q", resp.Text)
	}
	if resp.Provider != "openai" || resp.Model != "gpt-4o-mini" {
		t.Fatalf("fallback fields should survive: %+v", resp)
	}
}

func TestClaudeNormalize(t *testing.T) {
	p := NewClaudeProvider(contract.ProviderConfig{Name: "claude", Kind: "claude", APIKey: "sk-ant-test"})
	raw := []byte(`{
		"id": "msg_01XFDUDYJgAACzvnptvVoYEL",
		"type": "message",
		"model": "claude-sonnet-4-20250514",
		"content": [
			{"type": "text", "text": "The cat sat "},
			{"type": "tool_use", "id": "toolu_1", "name": "lookup", "input": {}},
			{"type": "text", "text": "on the mat."}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 9}
	}`)

	resp := p.Normalize(raw)
	if resp.Text != "The cat sat on the mat." {
		t.Fatalf("text blocks should concatenate, got %q", resp.Text)
	}
	if resp.TokensUsed != 21 {
		t.Fatalf("expected input and output tokens summed, got %d", resp.TokensUsed)
	}
	if resp.Metadata["stop_reason"] != "end_turn" {
		t.Fatalf("unexpected metadata: %v", resp.Metadata)
	}
	if !p.Validate(raw) {
		t.Fatalf("expected valid body")
	}
	if p.Validate([]byte(`{"content":[{"type":"tool_use"}]}`)) {
		t.Fatalf("body without text blocks should be invalid")
	}
}

func TestCohereNormalize(t *testing.T) {
	p := NewCohereProvider(contract.ProviderConfig{Name: "cohere", Kind: "cohere", APIKey: "co-test"})
	raw := []byte(`{
		"id": "gen-abc123",
		"generations": [
			{"id": "gen-abc123-0", "text": " The cat sat on the mat. "}
		],
		"meta": {"billed_units": {"input_tokens": 10, "output_tokens": 7}}
	}`)

	resp := p.Normalize(raw)
	if resp.Text != "The cat sat on the mat." {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 17 {
		t.Fatalf("unexpected tokens: %d", resp.TokensUsed)
	}
	if resp.Metadata["id"] != "gen-abc123" {
		t.Fatalf("unexpected metadata: %v", resp.Metadata)
	}
	if !p.Validate(raw) {
		t.Fatalf("expected valid body")
	}
	if p.Validate([]byte(`{"generations":[{"text":"  "}]}`)) {
		t.Fatalf("blank generation should be invalid")
	}
}

func TestGrokNormalize(t *testing.T) {
	p := NewGrokProvider(contract.ProviderConfig{Name: "grok", Kind: "grok", APIKey: "xai-test"})
	raw := []byte(`{
		"id": "0f8a7c2e",
		"model": "grok-2-latest",
		"choices": [
			{"index": 0, "message": {"role": "assistant", "content": "Quantum computing is the future."}, "finish_reason": "stop"}
		],
		"usage": {"prompt_tokens": 9, "completion_tokens": 6, "total_tokens": 15}
	}`)

	resp := p.Normalize(raw)
	if resp.Text != "Quantum computing is the future." {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 15 {
		t.Fatalf("unexpected tokens: %d", resp.TokensUsed)
	}
	if !p.Validate(raw) {
		t.Fatalf("expected valid body")
	}
}

func TestHostedProviderDefaults(t *testing.T) {
	openai := NewOpenAIProvider(contract.ProviderConfig{Name: "openai", Kind: "openai", APIKey: "sk-test"})
	if openai.Config().Model != "gpt-4o-mini" {
		t.Fatalf("unexpected openai default model: %s", openai.Config().Model)
	}

	claude := NewClaudeProvider(contract.ProviderConfig{Name: "claude", Kind: "claude", APIKey: "sk-ant-test"})
	if claude.Config().Model != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected claude default model: %s", claude.Config().Model)
	}

	grok := NewGrokProvider(contract.ProviderConfig{Name: "grok", Kind: "grok", APIKey: "xai-test"})
	if grok.Config().BaseURL != grokBaseURL {
		t.Fatalf("unexpected grok base url: %s", grok.Config().BaseURL)
	}

	cohere := NewCohereProvider(contract.ProviderConfig{Name: "cohere", Kind: "cohere", APIKey: "co-test"})
	if cohere.Config().Model != "command" {
		t.Fatalf("unexpected cohere default model: %s", cohere.Config().Model)
	}

	disabled := NewOpenAIProvider(contract.ProviderConfig{Name: "openai", Kind: "openai"})
	if disabled.Enabled() {
		t.Fatalf("provider without key should be disabled")
	}
}
