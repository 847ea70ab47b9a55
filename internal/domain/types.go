package domain

import "time"

// Sentiment classifies the overall tone of a theme or post set.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// AssetType distinguishes fungible tokens from NFT collections.
type AssetType string

const (
	AssetTypeToken         AssetType = "token"
	AssetTypeNFTCollection AssetType = "nft_collection"
)

// RiskLevel is a coarse bucket derived from the additive risk score.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// Momentum describes the short-term direction of social attention.
type Momentum string

const (
	MomentumRising    Momentum = "rising"
	MomentumStable    Momentum = "stable"
	MomentumDeclining Momentum = "declining"
)

// RiskTolerance is the caller's stated appetite for risk.
type RiskTolerance string

const (
	ToleranceLow      RiskTolerance = "low"
	ToleranceMedium   RiskTolerance = "medium"
	ToleranceHigh     RiskTolerance = "high"
)

// CulturalContext captures who participates in a theme and where.
type CulturalContext struct {
	Description  string   `json:"description"`
	Demographics []string `json:"demographics"`
	Platforms    []string `json:"platforms"`
	Timeframe    string   `json:"timeframe"`
}

// ThemeExpansion is the LLM's decomposition of a free-text vibe into
// searchable keywords and categories. Immutable once created.
type ThemeExpansion struct {
	OriginalTheme    string          `json:"original_theme"`
	ExpandedKeywords []string        `json:"expanded_keywords"`
	Categories       []string        `json:"categories"`
	CulturalContext  CulturalContext `json:"cultural_context"`
	RelatedTrends    []string        `json:"related_trends"`
	Sentiment        Sentiment       `json:"sentiment"`
	Confidence       float64         `json:"confidence"` // 0..1
}

// TasteCorrelation is one item from the taste graph scored against the theme.
type TasteCorrelation struct {
	Item              string  `json:"item"`
	Category          string  `json:"category"`
	RelevanceScore    float64 `json:"relevance_score"`  // 0..100
	ConfidenceLevel   float64 `json:"confidence_level"` // 0..1
	DemographicMatch  string  `json:"demographic_match"`
	CulturalAlignment float64 `json:"cultural_alignment"`
	TrendingFactor    float64 `json:"trending_factor"`
}

// TasteProfile summarizes the taste graph's view of the theme.
type TasteProfile struct {
	Keywords     []string `json:"keywords"`
	Categories   []string `json:"categories"`
	Demographics []string `json:"demographics"`
	Affinities   []string `json:"affinities"`
}

// TasteResult bundles the profile with its correlations and records which
// tier of the fallback chain produced it ("api", "llm", or "static").
type TasteResult struct {
	Profile      TasteProfile       `json:"profile"`
	Correlations []TasteCorrelation `json:"correlations"`
	Source       string             `json:"source"`
}

// PlatformAnalysis is one social platform's slice of a keyword trend.
type PlatformAnalysis struct {
	Platform     string  `json:"platform"`
	PostCount    int     `json:"post_count"`
	Sentiment    float64 `json:"sentiment"`  // -1..1
	Engagement   float64 `json:"engagement"` // 0..100
	Trending     bool    `json:"trending"`
	RecentShare  float64 `json:"recent_share"` // fraction of posts in last 6h
}

// SocialTrendAnalysis aggregates platform sub-analyses for one keyword.
type SocialTrendAnalysis struct {
	Keyword           string             `json:"keyword"`
	Platforms         []PlatformAnalysis `json:"platforms"`
	OverallScore      float64            `json:"overall_score"` // 0..100
	Momentum          Momentum           `json:"momentum"`
	CulturalRelevance float64            `json:"cultural_relevance"` // 0..100
	ViralPotential    float64            `json:"viral_potential"`    // 0..100
}

// AssetMetadata holds chain-level facts about an asset.
type AssetMetadata struct {
	Blockchain      string    `json:"blockchain"`
	ContractAddress string    `json:"contract_address"`
	CreatedDate     time.Time `json:"created_date"`
	Verified        bool      `json:"verified"`
	Category        string    `json:"category"`
}

// AssetLinks holds external references for an asset.
type AssetLinks struct {
	Website string `json:"website,omitempty"`
	Twitter string `json:"twitter,omitempty"`
	Discord string `json:"discord,omitempty"`
	OpenSea string `json:"opensea,omitempty"`
}

// AssetImages holds display imagery for an asset.
type AssetImages struct {
	Thumbnail string `json:"thumbnail,omitempty"`
	Banner    string `json:"banner,omitempty"`
}

// NormalizedAsset is the canonical shape every provider record is reduced to
// before scoring. Monetary fields are USD.
type NormalizedAsset struct {
	ID          string        `json:"id"`
	Type        AssetType     `json:"type"`
	Name        string        `json:"name"`
	Symbol      string        `json:"symbol,omitempty"`
	Description string        `json:"description"`
	Price       float64       `json:"price,omitempty"`
	Volume      float64       `json:"volume,omitempty"`
	MarketCap   float64       `json:"market_cap,omitempty"`
	FloorPrice  float64       `json:"floor_price,omitempty"`
	Supply      float64       `json:"supply,omitempty"`
	Change24h   float64       `json:"change_24h"`
	Metadata    AssetMetadata `json:"metadata"`
	Links       AssetLinks    `json:"links"`
	Images      AssetImages   `json:"images"`
}

// CulturalScores are the four cultural sub-scores, each 0..100.
type CulturalScores struct {
	ThemeMatch        float64 `json:"theme_match"`
	SocialBuzz        float64 `json:"social_buzz"`
	NarrativeStrength float64 `json:"narrative_strength"`
	ViralPotential    float64 `json:"viral_potential"`
}

// MarketScores are the four market sub-scores, each 0..100.
type MarketScores struct {
	Liquidity  float64 `json:"liquidity"`
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
	Community  float64 `json:"community"`
}

// RiskAssessment is the additive risk score with its bucket and evidence.
type RiskAssessment struct {
	Level   RiskLevel `json:"level"`
	Score   float64   `json:"score"` // 0..100
	Factors []string  `json:"factors"`
}

// AssetScores is the full score block attached to a scored asset.
type AssetScores struct {
	Relevance  float64        `json:"relevance"`  // 0..100
	Confidence float64        `json:"confidence"` // 0..1
	Cultural   CulturalScores `json:"cultural"`
	Market     MarketScores   `json:"market"`
	Risk       RiskAssessment `json:"risk"`
}

// ScoredAsset is a normalized asset plus its computed scores. Created by the
// scorer, re-ranked by the pipeline, discarded after the response is sent.
type ScoredAsset struct {
	Asset     NormalizedAsset `json:"asset"`
	Scores    AssetScores     `json:"scores"`
	Reasoning string          `json:"reasoning"`
	Sources   []string        `json:"sources"`
}

// ProcessingInfo records bookkeeping for one pipeline run.
type ProcessingInfo struct {
	TotalTimeMS int64    `json:"total_time_ms"`
	APICalls    int      `json:"api_calls"`
	Cached      int      `json:"cached"`
	Errors      []string `json:"errors"`
}

// Recommendations is the human-readable summary built in the final step.
type Recommendations struct {
	Summary        string   `json:"summary"`
	TopAssets      []string `json:"top_assets"`
	MarketTiming   string   `json:"market_timing"`
	RiskAssessment string   `json:"risk_assessment"`
	ActionItems    []string `json:"action_items"`
}

// ResultMetadata records provenance for a trend result.
type ResultMetadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Pipeline    []string  `json:"pipeline"`
}

// TrendResult is the top-level aggregate returned by one pipeline run.
// Never mutated after construction except the cached counter bump when
// served from cache.
type TrendResult struct {
	OriginalVibe    string                         `json:"original_vibe"`
	ThemeExpansion  ThemeExpansion                 `json:"theme_expansion"`
	TasteProfile    TasteResult                    `json:"taste_profile"`
	SocialAnalysis  map[string]SocialTrendAnalysis `json:"social_analysis"`
	AssetMatches    []ScoredAsset                  `json:"asset_matches"`
	OverallScore    float64                        `json:"overall_score"`
	Confidence      float64                        `json:"confidence"`
	Processing      ProcessingInfo                 `json:"processing"`
	Recommendations Recommendations                `json:"recommendations"`
	Metadata        ResultMetadata                 `json:"metadata"`
}

// SearchOptions controls one pipeline run. Validated at the HTTP boundary;
// the pipeline assumes sane values.
type SearchOptions struct {
	UseCache       bool          `json:"use_cache"`
	MaxAssets      int           `json:"max_assets"`
	IncludeNFTs    bool          `json:"include_nfts"`
	IncludeTokens  bool          `json:"include_tokens"`
	RiskTolerance  RiskTolerance `json:"risk_tolerance"`
	TimeHorizon    string        `json:"time_horizon"`
	MinConfidence  float64       `json:"min_confidence"`
	EnableParallel bool          `json:"enable_parallel_processing"`
}

// DefaultSearchOptions returns the option set used when the caller supplies
// none.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		UseCache:       true,
		MaxAssets:      10,
		IncludeNFTs:    true,
		IncludeTokens:  true,
		RiskTolerance:  ToleranceMedium,
		TimeHorizon:    "medium",
		MinConfidence:  0.3,
		EnableParallel: true,
	}
}
