package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/aletheia/internal/apperrors"
	"github.com/ppiankov/aletheia/internal/model"
)

const suggestPrompt = `List sources that could help a human fact-checker verify the claim below.
Respond with JSON only, in the form:
{"suggestions":[{"source":"<publisher>","url":"<https url>","summary":"<one sentence>","credibilityScore":<0-100>}]}
Return at most %d suggestions. Do not state whether the claim is true.

Claim type: %s
Claim: %s`

// OpenAI asks an OpenAI-compatible chat endpoint for candidate sources
type OpenAI struct {
	client *openai.Client
	config model.RetrievalConfig
}

// NewOpenAI creates an OpenAI retriever
func NewOpenAI(cfg model.RetrievalConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.CodeRetrievalUnavailable, "OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Name returns the retriever name
func (o *OpenAI) Name() string {
	return "openai"
}

type suggestResponse struct {
	Suggestions []model.Suggestion `json:"suggestions"`
}

// Suggest requests suggestions for one claim
func (o *OpenAI) Suggest(ctx context.Context, claim model.Claim) ([]model.Suggestion, error) {
	modelName := o.config.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	limit := o.config.MaxSuggestions
	if limit <= 0 {
		limit = 5
	}

	timeout := time.Duration(o.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You suggest primary and secondary sources for fact-checkers. You never issue verdicts.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(suggestPrompt, limit, claim.Type, claim.Content),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRetrievalUnavailable, "OpenAI request failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.CodeRetrievalUnavailable, "no response from OpenAI")
	}

	return decodeSuggestions(resp.Choices[0].Message.Content, limit)
}

// decodeSuggestions parses a model's JSON answer. Entries without an http(s)
// URL are dropped and scores are clamped to 0-100.
func decodeSuggestions(content string, limit int) ([]model.Suggestion, error) {
	var parsed suggestResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}

	var out []model.Suggestion
	for _, s := range parsed.Suggestions {
		link := canonicalURL(s.URL)
		if link == "" {
			continue
		}
		s.URL = link
		s.Source = strings.TrimSpace(s.Source)
		s.Summary = strings.TrimSpace(s.Summary)
		s.CredibilityScore = model.ClampCredibility(s.CredibilityScore)
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
