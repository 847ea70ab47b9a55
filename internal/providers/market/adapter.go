// Package market wraps a CoinGecko-style market-data API and turns keyword
// searches into normalized token candidates. All failures degrade to an
// empty result; this adapter never fails the pipeline.
package market

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/config"
	"github.com/vibearb/vibearb/internal/domain"
	"github.com/vibearb/vibearb/internal/providers/guard"
	"github.com/vibearb/vibearb/internal/scoring"
)

// relevanceFloor drops weak candidates before they reach the scorer.
const relevanceFloor = 20.0

// narrativeConstant is the flat cultural-narrative bonus every candidate
// found by keyword search receives.
const narrativeConstant = 15.0

// trendingBonus rewards tokens present on the trending list.
const trendingBonus = 10.0

// Adapter searches tokens by cultural keywords.
type Adapter struct {
	baseURL string
	apiKey  string
	guard   *guard.Guard
	store   cache.Store
	filler  scoring.DefaultsFiller
}

// New creates the adapter. Without an API key it still works against the
// public tier; the guard's rate limit is the real protection.
func New(cfg config.ProviderConfig, g *guard.Guard, store cache.Store, filler scoring.DefaultsFiller) *Adapter {
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey(),
		guard:   g,
		store:   store,
		filler:  filler,
	}
}

// Health reports the adapter's guard state.
func (a *Adapter) Health() guard.Health { return a.guard.Health() }

// CoinGecko wire subsets.

type searchResponse struct {
	Coins []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"coins"`
}

type marketRecord struct {
	ID                string  `json:"id"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	CurrentPrice      float64 `json:"current_price"`
	MarketCap         float64 `json:"market_cap"`
	TotalVolume       float64 `json:"total_volume"`
	PriceChange24h    float64 `json:"price_change_percentage_24h"`
	CirculatingSupply float64 `json:"circulating_supply"`
	Image             string  `json:"image"`
	ATHDate           string  `json:"ath_date"`
}

type trendingResponse struct {
	Coins []struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	} `json:"coins"`
}

// FindRelevantTokens searches every keyword, merges and deduplicates the
// hits, normalizes them and keeps candidates above the relevance floor,
// sorted by descending adapter relevance. Errors are logged and produce an
// empty slice.
func (a *Adapter) FindRelevantTokens(ctx context.Context, keywords []string, limit int) []domain.NormalizedAsset {
	if limit <= 0 {
		limit = 10
	}

	cacheKey := "market:tokens:" + compositeKey(keywords)
	if cached, ok := a.store.Get(cacheKey); ok {
		if assets, ok := cached.([]domain.NormalizedAsset); ok {
			return truncate(assets, limit)
		}
	}

	ids := a.searchIDs(ctx, keywords)
	if len(ids) == 0 {
		return nil
	}

	records := a.fetchMarkets(ctx, ids)
	if len(records) == 0 {
		return nil
	}

	trending := a.trendingIDs(ctx)

	type candidate struct {
		asset     domain.NormalizedAsset
		relevance float64
	}
	var candidates []candidate
	seen := make(map[string]bool)
	for _, record := range records {
		if seen[record.ID] {
			continue
		}
		seen[record.ID] = true

		relevance := a.relevance(record, keywords)
		if trending[record.ID] {
			relevance += trendingBonus
		}
		if relevance < relevanceFloor {
			continue
		}
		candidates = append(candidates, candidate{asset: a.normalize(record), relevance: relevance})
	}

	// Highest adapter relevance first; final ordering is the scorer's job.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].relevance > candidates[j].relevance
	})

	assets := make([]domain.NormalizedAsset, 0, len(candidates))
	for _, c := range candidates {
		assets = append(assets, c.asset)
	}

	a.store.Set(cacheKey, assets, a.guard.TTL())
	return truncate(assets, limit)
}

// searchIDs resolves keywords to coin ids via the search endpoint. At most
// three keywords are searched to bound upstream calls.
func (a *Adapter) searchIDs(ctx context.Context, keywords []string) []string {
	var ids []string
	seen := make(map[string]bool)

	searches := keywords
	if len(searches) > 3 {
		searches = searches[:3]
	}
	for _, keyword := range searches {
		if keyword == "" {
			continue
		}

		endpoint := fmt.Sprintf("%s/search?query=%s", a.baseURL, url.QueryEscape(keyword))
		var parsed searchResponse
		if err := a.getJSON(ctx, "search:"+strings.ToLower(keyword), endpoint, &parsed); err != nil {
			log.Warn().Err(err).Str("keyword", keyword).Msg("Token search failed, skipping keyword")
			continue
		}

		for i, coin := range parsed.Coins {
			if i >= 10 {
				break
			}
			if !seen[coin.ID] {
				seen[coin.ID] = true
				ids = append(ids, coin.ID)
			}
		}
	}
	return ids
}

func (a *Adapter) fetchMarkets(ctx context.Context, ids []string) []marketRecord {
	if len(ids) > 50 {
		ids = ids[:50]
	}
	endpoint := fmt.Sprintf("%s/coins/markets?vs_currency=usd&ids=%s&order=market_cap_desc&per_page=%d",
		a.baseURL, url.QueryEscape(strings.Join(ids, ",")), len(ids))

	var records []marketRecord
	if err := a.getJSON(ctx, "markets:"+strings.Join(ids, ","), endpoint, &records); err != nil {
		log.Warn().Err(err).Int("ids", len(ids)).Msg("Market data fetch failed, returning no tokens")
		return nil
	}
	return records
}

// trendingIDs fetches the trending list; failures just mean no bonus.
func (a *Adapter) trendingIDs(ctx context.Context) map[string]bool {
	endpoint := a.baseURL + "/search/trending"
	var parsed trendingResponse
	if err := a.getJSON(ctx, "trending", endpoint, &parsed); err != nil {
		log.Warn().Err(err).Msg("Trending lookup failed, skipping trending bonus")
		return nil
	}

	trending := make(map[string]bool, len(parsed.Coins))
	for _, coin := range parsed.Coins {
		trending[coin.Item.ID] = true
	}
	return trending
}

// relevance is the adapter's pre-filter heuristic: keyword match bonuses
// plus liquidity and momentum sub-scores plus a narrative constant.
func (a *Adapter) relevance(record marketRecord, keywords []string) float64 {
	score := narrativeConstant

	name := strings.ToLower(record.Name)
	symbol := strings.ToLower(record.Symbol)
	for _, keyword := range keywords {
		kw := strings.ToLower(keyword)
		if kw == "" {
			continue
		}
		if strings.Contains(name, kw) {
			score += 20
		}
		if symbol == kw {
			score += 15
		}
	}

	liquidity := math.Min(record.TotalVolume/1_000_000*10, 100)
	score += liquidity * 0.3

	momentum := math.Min(math.Max(record.PriceChange24h, 0)*3, 100)
	score += momentum * 0.2

	return score
}

// normalize converts a market record to the canonical asset shape, imputing
// missing numerics through the defaults filler.
func (a *Adapter) normalize(record marketRecord) domain.NormalizedAsset {
	price := record.CurrentPrice
	if price <= 0 {
		price = a.filler.ImputePrice(record.MarketCap, record.CirculatingSupply)
	}
	volume := record.TotalVolume
	if volume <= 0 {
		volume = a.filler.ImputeVolume(record.MarketCap)
	}

	return domain.NormalizedAsset{
		ID:          record.ID,
		Type:        domain.AssetTypeToken,
		Name:        record.Name,
		Symbol:      strings.ToUpper(record.Symbol),
		Description: fmt.Sprintf("%s (%s) is a cryptocurrency token.", record.Name, strings.ToUpper(record.Symbol)),
		Price:       price,
		Volume:      volume,
		MarketCap:   record.MarketCap,
		Supply:      record.CirculatingSupply,
		Change24h:   record.PriceChange24h,
		Metadata: domain.AssetMetadata{
			Blockchain: "ethereum",
			Verified:   record.MarketCap > 100_000_000,
			Category:   "cryptocurrency",
		},
		Images: domain.AssetImages{Thumbnail: record.Image},
	}
}

func (a *Adapter) getJSON(ctx context.Context, cacheKey, endpoint string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", a.apiKey)
	}

	resp, err := a.guard.Do(ctx, cacheKey, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func compositeKey(keywords []string) string {
	joined := strings.ToLower(strings.Join(keywords, ","))
	return base64.StdEncoding.EncodeToString([]byte(joined))
}

func truncate(assets []domain.NormalizedAsset, limit int) []domain.NormalizedAsset {
	if len(assets) > limit {
		return assets[:limit]
	}
	return assets
}
