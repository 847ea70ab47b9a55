// Package nft wraps an OpenSea-style marketplace API and turns keyword
// searches into normalized NFT collection candidates. Failures degrade to an
// empty result; this adapter never fails the pipeline.
package nft

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
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/config"
	"github.com/vibearb/vibearb/internal/domain"
	"github.com/vibearb/vibearb/internal/providers/guard"
	"github.com/vibearb/vibearb/internal/scoring"
)

const (
	// relevanceFloor drops weak candidates before they reach the scorer.
	relevanceFloor = 25.0

	// trendingBonus rewards collections with strong 7-day volume.
	trendingBonus = 15.0

	// sampleThreshold gates the extra top-assets fetch: only matches scoring
	// above it are worth another upstream call.
	sampleThreshold = 50.0

	sampleCount = 5
)

// aestheticWords feed the aesthetic-match heuristic: art/design vocabulary
// in a collection description suggests cultural rather than purely
// speculative appeal.
var aestheticWords = []string{"art", "artist", "design", "aesthetic", "visual", "generative", "hand-drawn", "illustration", "pixel"}

// Adapter searches NFT collections by cultural keywords.
type Adapter struct {
	baseURL string
	apiKey  string
	guard   *guard.Guard
	store   cache.Store
	filler  scoring.DefaultsFiller
}

// New creates the adapter. Without an API key it runs in fallback-only mode
// and every search returns empty.
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

// Marketplace wire subsets.

type collectionsResponse struct {
	Collections []collectionRecord `json:"collections"`
}

type collectionRecord struct {
	Slug           string `json:"collection"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	ImageURL       string `json:"image_url"`
	BannerURL      string `json:"banner_image_url"`
	Owner          string `json:"owner"`
	SafelistStatus string `json:"safelist_status"`
	Category       string `json:"category"`
	CreatedDate    string `json:"created_date"`
	Contracts   []struct {
		Address string `json:"address"`
		Chain   string `json:"chain"`
	} `json:"contracts"`
	ProjectURL  string `json:"project_url"`
	TwitterUser string `json:"twitter_username"`
	DiscordURL  string `json:"discord_url"`
	Stats       struct {
		FloorPrice     float64 `json:"floor_price"`
		OneDayVolume   float64 `json:"one_day_volume"`
		OneDayChange   float64 `json:"one_day_change"`
		SevenDayVolume float64 `json:"seven_day_volume"`
		TotalSupply    float64 `json:"total_supply"`
		MarketCap      float64 `json:"market_cap"`
	} `json:"stats"`
}

type assetsResponse struct {
	NFTs []struct {
		Identifier string `json:"identifier"`
		Name       string `json:"name"`
		ImageURL   string `json:"image_url"`
	} `json:"nfts"`
}

// FindRelevantCollections searches collections per keyword, deduplicates by
// slug, applies the relevance heuristic with its floor, and returns
// normalized assets sorted by descending adapter relevance. For strong
// matches it additionally samples a handful of top assets.
func (a *Adapter) FindRelevantCollections(ctx context.Context, keywords []string, limit int) []domain.NormalizedAsset {
	if limit <= 0 {
		limit = 10
	}
	if a.apiKey == "" {
		log.Warn().Msg("NFT adapter has no API key, running in fallback-only mode")
		return nil
	}

	cacheKey := "nft:collections:" + compositeKey(keywords)
	if cached, ok := a.store.Get(cacheKey); ok {
		if assets, ok := cached.([]domain.NormalizedAsset); ok {
			return truncate(assets, limit)
		}
	}

	type candidate struct {
		record    collectionRecord
		relevance float64
	}
	var candidates []candidate
	seen := make(map[string]bool)

	searches := keywords
	if len(searches) > 3 {
		searches = searches[:3]
	}
	for _, keyword := range searches {
		if keyword == "" {
			continue
		}
		records, err := a.searchCollections(ctx, keyword)
		if err != nil {
			log.Warn().Err(err).Str("keyword", keyword).Msg("Collection search failed, skipping keyword")
			continue
		}
		for _, record := range records {
			if seen[record.Slug] {
				continue
			}
			seen[record.Slug] = true

			relevance := a.relevance(record, keywords)
			if relevance < relevanceFloor {
				continue
			}
			candidates = append(candidates, candidate{record: record, relevance: relevance})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].relevance > candidates[j].relevance
	})

	assets := make([]domain.NormalizedAsset, 0, len(candidates))
	for _, c := range candidates {
		asset := a.normalize(c.record)
		if c.relevance > sampleThreshold {
			asset.Description = a.appendSample(ctx, c.record.Slug, asset.Description)
		}
		assets = append(assets, asset)
	}

	a.store.Set(cacheKey, assets, a.guard.TTL())
	return truncate(assets, limit)
}

func (a *Adapter) searchCollections(ctx context.Context, keyword string) ([]collectionRecord, error) {
	endpoint := fmt.Sprintf("%s/collections?search=%s&limit=20", a.baseURL, url.QueryEscape(keyword))

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

	var parsed collectionsResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode collections response: %w", err)
	}
	return parsed.Collections, nil
}

// appendSample fetches up to sampleCount representative assets and folds
// their names into the description so the scorer and the LLM summary see
// concrete examples. Failures leave the description untouched.
func (a *Adapter) appendSample(ctx context.Context, slug, description string) string {
	endpoint := fmt.Sprintf("%s/collection/%s/nfts?limit=%d", a.baseURL, url.PathEscape(slug), sampleCount)

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return description
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.guard.Do(ctx, "sample:"+slug, req)
	if err != nil {
		log.Warn().Err(err).Str("collection", slug).Msg("Top asset sample failed")
		return description
	}

	var parsed assetsResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return description
	}

	names := make([]string, 0, len(parsed.NFTs))
	for _, nft := range parsed.NFTs {
		if nft.Name != "" {
			names = append(names, nft.Name)
		}
	}
	if len(names) == 0 {
		return description
	}
	return description + " Notable pieces: " + strings.Join(names, ", ") + "."
}

// relevance is the adapter's pre-filter heuristic: name/description keyword
// bonuses, liquidity and momentum from 1-day stats, the aesthetic-match
// heuristic, and a 7-day-volume trending factor.
func (a *Adapter) relevance(record collectionRecord, keywords []string) float64 {
	score := 0.0

	name := strings.ToLower(record.Name)
	description := strings.ToLower(record.Description)
	for _, keyword := range keywords {
		kw := strings.ToLower(keyword)
		if kw == "" {
			continue
		}
		if strings.Contains(name, kw) {
			score += 25
		}
		if strings.Contains(description, kw) {
			score += 10
		}
	}

	liquidity := math.Min(record.Stats.OneDayVolume/10_000*10, 100)
	score += liquidity * 0.3

	momentum := math.Min(math.Max(record.Stats.OneDayChange, 0)*5, 100)
	score += momentum * 0.2

	for _, word := range aestheticWords {
		if strings.Contains(description, word) {
			score += 5
			break
		}
	}

	if record.Stats.SevenDayVolume > 100_000 {
		score += trendingBonus
	}

	return score
}

// normalize converts a collection record to the canonical asset shape.
func (a *Adapter) normalize(record collectionRecord) domain.NormalizedAsset {
	floor := record.Stats.FloorPrice
	if floor <= 0 {
		floor = a.filler.Range(0.01, 0.5)
	}
	volume := record.Stats.OneDayVolume
	if volume <= 0 {
		volume = a.filler.Range(1000, 20000)
	}

	created, _ := time.Parse(time.RFC3339, record.CreatedDate)

	blockchain := "ethereum"
	contract := ""
	if len(record.Contracts) > 0 {
		contract = record.Contracts[0].Address
		if record.Contracts[0].Chain != "" {
			blockchain = record.Contracts[0].Chain
		}
	}

	category := record.Category
	if category == "" {
		category = "collectibles"
	}

	twitter := ""
	if record.TwitterUser != "" {
		twitter = "https://twitter.com/" + record.TwitterUser
	}

	return domain.NormalizedAsset{
		ID:          record.Slug,
		Type:        domain.AssetTypeNFTCollection,
		Name:        record.Name,
		Description: record.Description,
		Volume:      volume,
		FloorPrice:  floor,
		MarketCap:   record.Stats.MarketCap,
		Supply:      record.Stats.TotalSupply,
		Change24h:   record.Stats.OneDayChange,
		Metadata: domain.AssetMetadata{
			Blockchain:      blockchain,
			ContractAddress: contract,
			CreatedDate:     created,
			Verified:        record.SafelistStatus == "verified",
			Category:        category,
		},
		Links: domain.AssetLinks{
			Website: record.ProjectURL,
			Twitter: twitter,
			Discord: record.DiscordURL,
			OpenSea: "https://opensea.io/collection/" + record.Slug,
		},
		Images: domain.AssetImages{Thumbnail: record.ImageURL, Banner: record.BannerURL},
	}
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
