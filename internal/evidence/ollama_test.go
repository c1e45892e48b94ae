package evidence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/model"
)

func TestOllamaSuggest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected path /api/generate, got %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3.1" || req.Format != "json" || req.Stream {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:    "llama3.1",
			Response: `{"suggestions":[{"source":"WHO","url":"https://www.who.int/news","summary":"Fact sheet","credibilityScore":140},{"source":"nowhere","url":"ftp://x"}]}`,
			Done:     true,
		})
	}))
	defer server.Close()

	o, err := NewOllama(model.RetrievalConfig{BaseURL: server.URL + "/", Model: "llama3.1", Timeout: 5})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.Suggest(context.Background(), model.Claim{ID: "claim_1", Type: model.ClaimTypeText, Content: "x"})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %+v", got)
	}
	if got[0].CredibilityScore != 100 || got[0].Source != "WHO" {
		t.Errorf("unexpected suggestion %+v", got[0])
	}
}

func TestOllamaAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ollamaError{Error: "model not found"})
	}))
	defer server.Close()

	o, err := NewOllama(model.RetrievalConfig{BaseURL: server.URL, Model: "missing"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = o.Suggest(context.Background(), model.Claim{Content: "x"})
	if !apperrors.IsKind(err, apperrors.KindUnavailable) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestNewOllamaRequiresModel(t *testing.T) {
	if _, err := NewRetriever(model.RetrievalConfig{Provider: "ollama"}, nil, 0, nil); err == nil {
		t.Error("expected missing model error")
	}
}
