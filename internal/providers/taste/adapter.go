// Package taste maps a theme's keywords into cross-domain taste correlations.
// The upstream taste graph is the primary source; when it is unreachable the
// adapter falls back to an LLM reconstruction, and as a last resort to a
// static profile echoing the input. The adapter itself never returns an
// error, only progressively weaker tiers.
package taste

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/config"
	"github.com/vibearb/vibearb/internal/domain"
	"github.com/vibearb/vibearb/internal/providers/guard"
)

// Tier labels recorded in TasteResult.Source.
const (
	SourceAPI    = "api"
	SourceLLM    = "llm"
	SourceStatic = "static"
)

// staticConfidence is the confidence attached to echoed static correlations.
const staticConfidence = 0.3

// Reconstructor is the degraded second tier, satisfied by the LLM adapter.
type Reconstructor interface {
	Available() bool
	ReconstructTaste(ctx context.Context, keywords, categories []string) (*domain.TasteResult, error)
}

// Adapter resolves taste correlations with the three-tier fallback chain.
type Adapter struct {
	baseURL       string
	apiKey        string
	guard         *guard.Guard
	store         cache.Store
	reconstructor Reconstructor
}

// New creates the adapter. reconstructor may be nil, which skips the LLM tier.
func New(cfg config.ProviderConfig, g *guard.Guard, store cache.Store, reconstructor Reconstructor) *Adapter {
	return &Adapter{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey(),
		guard:         g,
		store:         store,
		reconstructor: reconstructor,
	}
}

// Health reports the adapter's guard state.
func (a *Adapter) Health() guard.Health { return a.guard.Health() }

// taste graph wire subsets

type searchResponse struct {
	Results []struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		Popularity float64 `json:"popularity"` // 0..1
		Properties struct {
			Demographic string  `json:"demographic"`
			Affinity    float64 `json:"affinity"` // 0..1
			Trending    float64 `json:"trending"` // 0..1
		} `json:"properties"`
	} `json:"results"`
}

// Correlate resolves the taste profile for the expansion's keywords and
// categories. The result's Source field records which tier produced it.
func (a *Adapter) Correlate(ctx context.Context, keywords, categories []string) domain.TasteResult {
	cacheKey := "taste:" + compositeKey(keywords, categories)
	if cached, ok := a.store.Get(cacheKey); ok {
		if result, ok := cached.(domain.TasteResult); ok {
			return result
		}
	}

	if result, err := a.fromAPI(ctx, keywords, categories); err == nil {
		a.store.Set(cacheKey, *result, a.guard.TTL())
		return *result
	} else {
		log.Warn().Err(err).Msg("Taste API tier failed, trying LLM reconstruction")
	}

	if a.reconstructor != nil && a.reconstructor.Available() {
		if result, err := a.reconstructor.ReconstructTaste(ctx, keywords, categories); err == nil {
			a.store.Set(cacheKey, *result, a.guard.TTL())
			return *result
		} else {
			log.Warn().Err(err).Msg("Taste LLM tier failed, using static fallback")
		}
	}

	result := staticProfile(keywords, categories)
	a.store.Set(cacheKey, result, a.guard.TTL())
	return result
}

// fromAPI queries the taste graph per keyword and merges the hits.
func (a *Adapter) fromAPI(ctx context.Context, keywords, categories []string) (*domain.TasteResult, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("taste provider has no API key")
	}

	searches := keywords
	if len(searches) > 3 {
		searches = searches[:3]
	}

	var correlations []domain.TasteCorrelation
	demographics := map[string]bool{}
	affinities := map[string]bool{}
	failures := 0

	for _, keyword := range searches {
		if keyword == "" {
			continue
		}
		records, err := a.search(ctx, keyword)
		if err != nil {
			failures++
			log.Warn().Err(err).Str("keyword", keyword).Msg("Taste search failed, skipping keyword")
			continue
		}
		for _, record := range records.Results {
			correlations = append(correlations, domain.TasteCorrelation{
				Item:              record.Name,
				Category:          record.Type,
				RelevanceScore:    record.Popularity * 100,
				ConfidenceLevel:   record.Properties.Affinity,
				DemographicMatch:  record.Properties.Demographic,
				CulturalAlignment: record.Properties.Affinity * 100,
				TrendingFactor:    record.Properties.Trending * 100,
			})
			if record.Properties.Demographic != "" {
				demographics[record.Properties.Demographic] = true
			}
			affinities[record.Name] = true
		}
	}

	if len(correlations) == 0 {
		return nil, fmt.Errorf("taste graph returned no correlations (%d searches failed)", failures)
	}

	return &domain.TasteResult{
		Profile: domain.TasteProfile{
			Keywords:     keywords,
			Categories:   categories,
			Demographics: keys(demographics),
			Affinities:   keys(affinities),
		},
		Correlations: correlations,
		Source:       SourceAPI,
	}, nil
}

func (a *Adapter) search(ctx context.Context, keyword string) (*searchResponse, error) {
	endpoint := fmt.Sprintf("%s/search?query=%s&take=10", a.baseURL, url.QueryEscape(keyword))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.guard.Do(ctx, "search:"+strings.ToLower(keyword), req)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode taste search: %w", err)
	}
	return &parsed, nil
}

// staticProfile echoes the inputs back as low-confidence correlations so the
// pipeline always has something to score against.
func staticProfile(keywords, categories []string) domain.TasteResult {
	correlations := make([]domain.TasteCorrelation, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		category := "general"
		if len(categories) > 0 {
			category = categories[0]
		}
		correlations = append(correlations, domain.TasteCorrelation{
			Item:              keyword,
			Category:          category,
			RelevanceScore:    50,
			ConfidenceLevel:   staticConfidence,
			DemographicMatch:  "unknown",
			CulturalAlignment: 50,
			TrendingFactor:    50,
		})
	}

	return domain.TasteResult{
		Profile: domain.TasteProfile{
			Keywords:   keywords,
			Categories: categories,
			Affinities: keywords,
		},
		Correlations: correlations,
		Source:       SourceStatic,
	}
}

func compositeKey(keywords, categories []string) string {
	joined := strings.ToLower(strings.Join(keywords, ",") + "|" + strings.Join(categories, ","))
	return base64.StdEncoding.EncodeToString([]byte(joined))
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
