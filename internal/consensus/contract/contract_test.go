package contract

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("round failed: %w", &ProviderError{Provider: "openai", Err: cause})

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError in chain")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if !strings.Contains(provErr.Error(), "openai") {
		t.Fatalf("unexpected message: %s", provErr.Error())
	}
}

func TestCloneSharesNothing(t *testing.T) {
	original := &ConsensusResult{
		ID: "r1",
		Responses: []ProviderResponse{
			{Provider: "openai", Text: "yes", Metadata: map[string]string{"id": "a"}},
		},
		Minority: []string{"no"},
		Failures: []ProviderFailure{{Provider: "grok", Error: "timeout"}},
	}

	clone := original.Clone()
	clone.Responses[0].Metadata["id"] = "b"
	clone.Responses[0].Text = "changed"
	clone.Minority[0] = "changed"
	clone.Failures[0].Provider = "changed"
	clone.Metadata.CacheHit = true

	if original.Responses[0].Metadata["id"] != "a" {
		t.Fatalf("metadata shared between clone and original")
	}
	if original.Responses[0].Text != "yes" || original.Minority[0] != "no" {
		t.Fatalf("slices shared between clone and original")
	}
	if original.Failures[0].Provider != "grok" || original.Metadata.CacheHit {
		t.Fatalf("clone mutation leaked into original")
	}
}

func TestCloneNil(t *testing.T) {
	var r *ConsensusResult
	if r.Clone() != nil {
		t.Fatalf("expected nil clone of nil result")
	}
}
