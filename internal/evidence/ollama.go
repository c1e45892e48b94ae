package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/model"
)

// Ollama asks a local Ollama server for candidate sources
type Ollama struct {
	baseURL    string
	httpClient *http.Client
	config     model.RetrievalConfig
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllama creates an Ollama retriever. BaseURL defaults to the local daemon.
func NewOllama(cfg model.RetrievalConfig) (*Ollama, error) {
	if cfg.Model == "" {
		return nil, apperrors.New(apperrors.CodeRetrievalUnavailable, "ollama model must be specified (e.g. llama3.1:8b)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	// Local models are slow to answer
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Ollama{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}, nil
}

// Name returns the retriever name
func (o *Ollama) Name() string {
	return "ollama"
}

// Suggest requests suggestions for one claim
func (o *Ollama) Suggest(ctx context.Context, claim model.Claim) ([]model.Suggestion, error) {
	limit := o.config.MaxSuggestions
	if limit <= 0 {
		limit = 5
	}

	resp, err := o.generate(ctx, ollamaRequest{
		Model:   o.config.Model,
		Prompt:  fmt.Sprintf(suggestPrompt, limit, claim.Type, claim.Content),
		System:  "You suggest primary and secondary sources for fact-checkers. You never issue verdicts.",
		Format:  "json",
		Stream:  false,
		Options: ollamaOptions{Temperature: 0.2},
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRetrievalUnavailable, "ollama request failed", err)
	}
	return decodeSuggestions(resp.Response, limit)
}

func (o *Ollama) generate(ctx context.Context, apiReq ollamaRequest) (*ollamaResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}
