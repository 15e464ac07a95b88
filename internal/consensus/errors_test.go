package consensus

import "testing"

func TestErrorMessages(t *testing.T) {
	providers := &InsufficientProvidersError{Required: 2, Available: 1}
	if providers.Error() != "insufficient providers: need 2, have 1" {
		t.Fatalf("unexpected message: %s", providers.Error())
	}

	responses := &InsufficientResponsesError{Required: 2, Actual: 0}
	if responses.Error() != "insufficient responses: need 2, got 0" {
		t.Fatalf("unexpected message: %s", responses.Error())
	}

	config := &ConfigurationError{Provider: "cohere", Reason: "api key required"}
	if config.Error() != "provider cohere not configured: api key required" {
		t.Fatalf("unexpected message: %s", config.Error())
	}
}
