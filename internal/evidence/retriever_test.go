package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/cache"
	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
)

func chatServer(t *testing.T, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testRetrievalConfig(baseURL string) model.RetrievalConfig {
	return model.RetrievalConfig{
		Provider:       "openai",
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Model:          "gpt-4o-mini",
		Timeout:        5,
		MaxSuggestions: 2,
	}
}

func TestOpenAISuggest(t *testing.T) {
	content := `{"suggestions":[
		{"source":"WHO","url":"https://www.who.int/fact","summary":" Official data ","credibilityScore":140},
		{"source":"Nowhere","url":"not-a-url","summary":"dropped","credibilityScore":50},
		{"source":"Reuters","url":"https://www.reuters.com/a","summary":"Wire report","credibilityScore":70},
		{"source":"Extra","url":"https://example.com/extra","summary":"over the limit","credibilityScore":10}
	]}`
	server := chatServer(t, content, nil)
	defer server.Close()

	r, err := NewOpenAI(testRetrievalConfig(server.URL))
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	got, err := r.Suggest(context.Background(), model.Claim{ID: "claim_1", Content: "Vaccines cause autism", Type: model.ClaimTypeText})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions after filtering and limit, got %d", len(got))
	}
	if got[0].CredibilityScore != 100 || got[0].Summary != "Official data" {
		t.Errorf("unexpected first suggestion %+v", got[0])
	}
	if got[1].Source != "Reuters" {
		t.Errorf("unexpected second suggestion %+v", got[1])
	}
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(model.RetrievalConfig{Provider: "openai"})
	if !errors.Is(err, apperrors.ErrUnavailable) {
		t.Errorf("expected unavailable without key, got %v", err)
	}
}

func TestOpenAIAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "Internal Server Error", "type": "server_error"}}`))
	}))
	defer server.Close()

	r, _ := NewOpenAI(testRetrievalConfig(server.URL))
	if _, err := r.Suggest(context.Background(), model.Claim{Content: "x"}); !errors.Is(err, apperrors.ErrUnavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
}

func TestCachedRetrieverHitsOnce(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, `{"suggestions":[{"source":"AP","url":"https://apnews.com/x","summary":"s","credibilityScore":70}]}`, &calls)
	defer server.Close()

	store := cache.NewMemoryCache(time.Minute, time.Minute)
	r, err := NewRetriever(testRetrievalConfig(server.URL), store, time.Minute, logger.Discard())
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	claim := model.Claim{ID: "claim_1", Content: "The moon landing was staged", Type: model.ClaimTypeText}
	for i := 0; i < 3; i++ {
		got, err := r.Suggest(context.Background(), claim)
		if err != nil || len(got) != 1 {
			t.Fatalf("suggest %d: %v %v", i, got, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected one upstream call, got %d", calls.Load())
	}
}

func TestNewRetrieverDisabled(t *testing.T) {
	r, err := NewRetriever(model.RetrievalConfig{}, nil, 0, nil)
	if err != nil || r != nil {
		t.Errorf("expected nil retriever, got %v %v", r, err)
	}
	if _, err := NewRetriever(model.RetrievalConfig{Provider: "oracle"}, nil, 0, nil); err == nil {
		t.Error("expected unsupported provider error")
	}
}
