package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateProvider(t *testing.T) {
	api := newTestAPI()

	body := `{"kind":"local","base_url":"http://localhost:11434","model":"llama3.2","weight":2.0}`
	w := postJSON(t, api.CreateProvider, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body: %s", w.Code, w.Body.String())
	}

	var summary providerSummary
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if summary.Name != "local" || summary.Kind != "local" || summary.Weight != 2.0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !api.Engine.Registry().Has("local") {
		t.Fatalf("provider should be registered")
	}
}

func TestCreateProviderValidation(t *testing.T) {
	api := newTestAPI()

	if w := postJSON(t, api.CreateProvider, `{"base_url":"http://localhost:11434"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing kind should 400, got %d", w.Code)
	}
	if w := postJSON(t, api.CreateProvider, `{"kind":"telegraph"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind should 400, got %d", w.Code)
	}
	if w := postJSON(t, api.CreateProvider, `{"kind":"openai"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing api key should 400, got %d", w.Code)
	}
	if w := postJSON(t, api.CreateProvider, `{"kind":"local","base_url":"http://localhost:11434","weight":-1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("negative weight should 400, got %d", w.Code)
	}
}

func TestGetProvider(t *testing.T) {
	api := newTestAPI(&stubProvider{name: "openai", text: "x"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	api.GetProvider(w, r, "openai")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	w = httptest.NewRecorder()
	api.GetProvider(w, r, "missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListProviders(t *testing.T) {
	api := newTestAPI(
		&stubProvider{name: "openai", text: "x"},
		&stubProvider{name: "claude", text: "x"},
	)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	api.ListProviders(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	var payload struct {
		Providers []providerSummary `json:"providers"`
	}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(payload.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(payload.Providers))
	}
	if payload.Providers[0].Name != "openai" || payload.Providers[1].Name != "claude" {
		t.Fatalf("unexpected order: %+v", payload.Providers)
	}
}

func TestUpdateProvider(t *testing.T) {
	api := newTestAPI()
	postJSON(t, api.CreateProvider, `{"kind":"local","base_url":"http://localhost:11434"}`)

	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"weight":3.5}`))
	w := httptest.NewRecorder()
	api.UpdateProvider(w, r, "local")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body: %s", w.Code, w.Body.String())
	}

	p, ok := api.Engine.Registry().Get("local")
	if !ok || p.Config().Weight != 3.5 {
		t.Fatalf("weight should be updated in the registry")
	}
}

func TestUpdateProviderRejectsRename(t *testing.T) {
	api := newTestAPI()
	postJSON(t, api.CreateProvider, `{"kind":"local","base_url":"http://localhost:11434"}`)

	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"name":"other"}`))
	w := httptest.NewRecorder()
	api.UpdateProvider(w, r, "local")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("rename should 400, got %d", w.Code)
	}
}

func TestUpdateProviderMissing(t *testing.T) {
	api := newTestAPI()
	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"weight":2.0}`))
	w := httptest.NewRecorder()
	api.UpdateProvider(w, r, "ghost")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDeleteProvider(t *testing.T) {
	api := newTestAPI(&stubProvider{name: "openai", text: "x"})

	r := httptest.NewRequest(http.MethodDelete, "/", nil)
	w := httptest.NewRecorder()
	api.DeleteProvider(w, r, "openai")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if api.Engine.Registry().Has("openai") {
		t.Fatalf("provider should be unregistered")
	}

	w = httptest.NewRecorder()
	api.DeleteProvider(w, r, "openai")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete should 404, got %d", w.Code)
	}
}

func TestProviderHealthEndpoint(t *testing.T) {
	api := newTestAPI(&stubProvider{name: "openai", text: "x"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	api.ProviderHealth(w, r, "openai")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	var payload map[string]any
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload["provider"] != "openai" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	w = httptest.NewRecorder()
	api.ProviderHealth(w, r, "ghost")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
