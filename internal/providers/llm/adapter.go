// Package llm wraps an OpenAI-compatible chat-completions API for theme
// expansion and result summarization. Unlike every other provider, total
// unavailability here is a hard error: fabricating a cultural analysis
// without a model is worse than failing the run.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/config"
	"github.com/vibearb/vibearb/internal/domain"
	"github.com/vibearb/vibearb/internal/providers/guard"
)

// ExpandOptions tunes one expansion call.
type ExpandOptions struct {
	UseCache    bool
	MaxTokens   int
	Temperature float64
}

// DefaultExpandOptions returns the option set used when the caller supplies
// none.
func DefaultExpandOptions() ExpandOptions {
	return ExpandOptions{UseCache: true, MaxTokens: 1000, Temperature: 0.7}
}

// Adapter calls the chat-completions endpoint and normalizes its JSON output
// into domain shapes.
type Adapter struct {
	baseURL string
	apiKey  string
	model   string
	guard   *guard.Guard
	store   cache.Store
}

// New creates the adapter. A missing API key is tolerated at construction
// and surfaces as an error on first use.
func New(cfg config.ProviderConfig, g *guard.Guard, store cache.Store) *Adapter {
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey(),
		model:   cfg.Model,
		guard:   g,
		store:   store,
	}
}

// Available reports whether the adapter has credentials.
func (a *Adapter) Available() bool { return a.apiKey != "" }

// Health reports the adapter's guard state for health endpoints.
func (a *Adapter) Health() guard.Health { return a.guard.Health() }

// chat completion wire types (request and response subsets we use)

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// expansionPayload is the JSON shape the model is instructed to emit.
type expansionPayload struct {
	ExpandedKeywords []string `json:"expanded_keywords"`
	Categories       []string `json:"categories"`
	CulturalContext  struct {
		Description  string   `json:"description"`
		Demographics []string `json:"demographics"`
		Platforms    []string `json:"platforms"`
		Timeframe    string   `json:"timeframe"`
	} `json:"cultural_context"`
	RelatedTrends []string `json:"related_trends"`
	Sentiment     string   `json:"sentiment"`
	Confidence    float64  `json:"confidence"`
}

// ExpandTheme decomposes a free-text theme into keywords, categories and
// cultural context. Cached by theme text for the guard's TTL class.
func (a *Adapter) ExpandTheme(ctx context.Context, theme string, opts ExpandOptions) (*domain.ThemeExpansion, error) {
	if !a.Available() {
		return nil, fmt.Errorf("llm provider has no credentials")
	}

	cacheKey := "expand:" + strings.ToLower(strings.TrimSpace(theme))
	if opts.UseCache {
		if cached, ok := a.store.Get(cacheKey); ok {
			if expansion, ok := cached.(*domain.ThemeExpansion); ok {
				return expansion, nil
			}
		}
	}

	content, err := a.complete(ctx, expandPrompt(theme), opts.MaxTokens, opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("theme expansion failed: %w", err)
	}

	var payload expansionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("theme expansion returned malformed JSON: %w", err)
	}

	expansion := &domain.ThemeExpansion{
		OriginalTheme:    theme,
		ExpandedKeywords: payload.ExpandedKeywords,
		Categories:       payload.Categories,
		CulturalContext: domain.CulturalContext{
			Description:  payload.CulturalContext.Description,
			Demographics: payload.CulturalContext.Demographics,
			Platforms:    payload.CulturalContext.Platforms,
			Timeframe:    payload.CulturalContext.Timeframe,
		},
		RelatedTrends: payload.RelatedTrends,
		Sentiment:     normalizeSentiment(payload.Sentiment),
		Confidence:    clamp01(payload.Confidence),
	}
	if len(expansion.ExpandedKeywords) == 0 {
		return nil, fmt.Errorf("theme expansion produced no keywords")
	}

	a.store.Set(cacheKey, expansion, a.guard.TTL())
	return expansion, nil
}

// ReconstructTaste asks the model to approximate a taste graph when the real
// taste provider is unavailable. Callers treat the result as a degraded tier,
// never as ground truth.
func (a *Adapter) ReconstructTaste(ctx context.Context, keywords, categories []string) (*domain.TasteResult, error) {
	if !a.Available() {
		return nil, fmt.Errorf("llm provider has no credentials")
	}

	content, err := a.complete(ctx, tastePrompt(keywords, categories), 900, 0.7)
	if err != nil {
		return nil, fmt.Errorf("taste reconstruction failed: %w", err)
	}

	var result domain.TasteResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("taste reconstruction returned malformed JSON: %w", err)
	}
	if len(result.Correlations) == 0 {
		return nil, fmt.Errorf("taste reconstruction produced no correlations")
	}
	for i := range result.Correlations {
		result.Correlations[i].ConfidenceLevel = clamp01(result.Correlations[i].ConfidenceLevel)
	}
	result.Source = "llm"
	return &result, nil
}

// SummarizeFindings turns the top scored assets into human-readable
// recommendations. Failures here are recoverable: the pipeline substitutes a
// templated fallback.
func (a *Adapter) SummarizeFindings(ctx context.Context, vibe string, assets []domain.ScoredAsset) (*domain.Recommendations, error) {
	if !a.Available() {
		return nil, fmt.Errorf("llm provider has no credentials")
	}

	content, err := a.complete(ctx, summaryPrompt(vibe, assets), 800, 0.7)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	var recs domain.Recommendations
	if err := json.Unmarshal([]byte(content), &recs); err != nil {
		return nil, fmt.Errorf("summary returned malformed JSON: %w", err)
	}
	if recs.Summary == "" {
		return nil, fmt.Errorf("summary response was empty")
	}
	return &recs, nil
}

// complete issues one chat-completions call and returns the first choice's
// content.
func (a *Adapter) complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:      maxTokens,
		Temperature:    temperature,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	// Completion calls are not cached at the guard level: the prompt embeds
	// volatile asset data and the adapter caches normalized output itself.
	resp, err := a.guard.Do(ctx, "", req)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response had no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	log.Debug().Int("content_len", len(content)).Msg("LLM completion received")
	return content, nil
}

func normalizeSentiment(s string) domain.Sentiment {
	switch strings.ToLower(s) {
	case "positive":
		return domain.SentimentPositive
	case "negative":
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
