// Package scoring converts normalized assets into scored assets via pure,
// deterministic heuristics. Scoring the same asset against the same context
// twice yields identical output.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibearb/vibearb/internal/domain"
)

// Context carries the cultural frame an asset is scored against.
type Context struct {
	Theme      string
	Keywords   []string
	Categories []string

	// SocialBuzz is the measured social score for the theme, 0..100.
	// Negative means no social data was available and a proxy estimate is
	// used instead.
	SocialBuzz float64

	// Now anchors age calculations so results are reproducible in tests.
	Now time.Time
}

// NewContext builds a scoring context with SocialBuzz unset.
func NewContext(theme string, keywords, categories []string) Context {
	return Context{
		Theme:      theme,
		Keywords:   keywords,
		Categories: categories,
		SocialBuzz: -1,
		Now:        time.Now(),
	}
}

// Cultural sub-score weights for the relevance blend.
const (
	weightThemeMatch = 0.4
	weightSocialBuzz = 0.3
	weightNarrative  = 0.2
	weightViral      = 0.1
)

// Market sub-score weights for the relevance blend (volatility inverted).
const (
	weightLiquidity  = 0.3
	weightMomentum   = 0.3
	weightVolatility = 0.3
	weightCommunity  = 0.1
)

// Score computes the full score block for one asset. It never fails; use
// ScoreOrDefault when scoring batches from untrusted provider data.
func Score(asset domain.NormalizedAsset, ctx Context) domain.ScoredAsset {
	cultural := culturalScores(asset, ctx)
	market := marketScores(asset)
	risk := AssessRisk(asset, market, ctx.Now)

	culturalBlend := weightThemeMatch*cultural.ThemeMatch +
		weightSocialBuzz*cultural.SocialBuzz +
		weightNarrative*cultural.NarrativeStrength +
		weightViral*cultural.ViralPotential
	marketBlend := weightLiquidity*market.Liquidity +
		weightMomentum*market.Momentum +
		weightVolatility*(100-market.Volatility) +
		weightCommunity*market.Community

	relevance := clamp(0.6*culturalBlend+0.4*marketBlend, 0, 100)
	confidence := confidenceScore(asset, cultural)

	return domain.ScoredAsset{
		Asset: asset,
		Scores: domain.AssetScores{
			Relevance:  relevance,
			Confidence: confidence,
			Cultural:   cultural,
			Market:     market,
			Risk:       risk,
		},
		Reasoning: reasoning(asset, ctx, relevance, risk),
		Sources:   []string{sourceForType(asset.Type)},
	}
}

// ScoreOrDefault scores an asset, substituting a conservative default record
// if scoring panics on malformed provider data. One bad record must never
// drop the batch.
func ScoreOrDefault(asset domain.NormalizedAsset, ctx Context) (scored domain.ScoredAsset) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("asset", asset.ID).Interface("panic", r).Msg("Scoring failed, substituting conservative default")
			scored = conservativeDefault(asset)
		}
	}()
	return Score(asset, ctx)
}

func conservativeDefault(asset domain.NormalizedAsset) domain.ScoredAsset {
	return domain.ScoredAsset{
		Asset: asset,
		Scores: domain.AssetScores{
			Relevance:  0,
			Confidence: 0.1,
			Risk: domain.RiskAssessment{
				Level:   domain.RiskExtreme,
				Score:   100,
				Factors: []string{"scoring failed"},
			},
		},
		Reasoning: "Scoring failed; treat with extreme caution.",
		Sources:   []string{sourceForType(asset.Type)},
	}
}

func culturalScores(asset domain.NormalizedAsset, ctx Context) domain.CulturalScores {
	haystack := strings.ToLower(asset.Name + " " + asset.Description)

	// Theme match: flat bonus for the theme itself, per-keyword bonuses,
	// extra when several keywords land.
	themeMatch := 0.0
	if ctx.Theme != "" && strings.Contains(haystack, strings.ToLower(ctx.Theme)) {
		themeMatch += 40
	}
	matched := 0
	for _, keyword := range ctx.Keywords {
		if keyword != "" && strings.Contains(haystack, strings.ToLower(keyword)) {
			matched++
			themeMatch += 5
		}
	}
	if matched > 2 {
		themeMatch += 10
	}
	themeMatch = clamp(themeMatch, 0, 100)

	socialBuzz := ctx.SocialBuzz
	if socialBuzz < 0 {
		socialBuzz = estimateBuzz(asset)
	}
	socialBuzz = clamp(socialBuzz, 0, 100)

	narrative := narrativeStrength(asset, ctx, haystack)

	viral := clamp(0.5*socialBuzz+0.3*volumeScore(asset)+0.2*themeMatch, 0, 100)

	return domain.CulturalScores{
		ThemeMatch:        themeMatch,
		SocialBuzz:        socialBuzz,
		NarrativeStrength: narrative,
		ViralPotential:    viral,
	}
}

// estimateBuzz proxies social attention from verification, links and volume
// when no social measurement exists.
func estimateBuzz(asset domain.NormalizedAsset) float64 {
	buzz := 30.0
	if asset.Metadata.Verified {
		buzz += 20
	}
	if asset.Links.Twitter != "" {
		buzz += 15
	}
	if asset.Links.Discord != "" {
		buzz += 10
	}
	if asset.Volume > 100000 {
		buzz += 15
	}
	return buzz
}

func narrativeStrength(asset domain.NormalizedAsset, ctx Context, haystack string) float64 {
	strength := 0.0

	for _, category := range ctx.Categories {
		if category != "" && strings.EqualFold(asset.Metadata.Category, category) {
			strength += 30
			break
		}
	}

	descLen := len(asset.Description)
	if descLen > 100 {
		strength += 10
	}
	if descLen > 300 {
		strength += 5
	}

	// Keyword density in the description, capped so spammy listings don't
	// dominate.
	density := 0.0
	for _, keyword := range ctx.Keywords {
		if keyword == "" {
			continue
		}
		density += float64(strings.Count(haystack, strings.ToLower(keyword))) * 5
	}
	strength += math.Min(density, 25)

	if asset.Metadata.Verified {
		strength += 10
	}
	if !asset.Metadata.CreatedDate.IsZero() && ctx.Now.Sub(asset.Metadata.CreatedDate) > 365*24*time.Hour {
		strength += 10
	}

	return clamp(strength, 0, 100)
}

func marketScores(asset domain.NormalizedAsset) domain.MarketScores {
	return domain.MarketScores{
		Liquidity:  volumeScore(asset),
		Momentum:   clamp(math.Max(asset.Change24h, 0)*3, 0, 100),
		Volatility: clamp(math.Abs(asset.Change24h)*4, 0, 100),
		Community:  communityScore(asset),
	}
}

// volumeScore normalizes volume by asset class: token volumes run orders of
// magnitude above NFT collection volumes.
func volumeScore(asset domain.NormalizedAsset) float64 {
	divisor := 1_000_000.0
	if asset.Type == domain.AssetTypeNFTCollection {
		divisor = 10_000.0
	}
	return clamp(asset.Volume/divisor*10, 0, 100)
}

func communityScore(asset domain.NormalizedAsset) float64 {
	score := 0.0
	for _, link := range []string{asset.Links.Website, asset.Links.Twitter, asset.Links.Discord, asset.Links.OpenSea} {
		if link != "" {
			score += 20
		}
	}
	if asset.Metadata.Verified {
		score += 20
	}
	return clamp(score, 0, 100)
}

// confidenceScore starts at 0.5, adds data-completeness bonuses up to +0.5,
// and subtracts a penalty proportional to the spread across the cultural
// subscores: consistent evidence earns more trust.
func confidenceScore(asset domain.NormalizedAsset, cultural domain.CulturalScores) float64 {
	confidence := 0.5

	bonus := 0.0
	if asset.Price > 0 {
		bonus += 0.1
	}
	if asset.Volume > 0 {
		bonus += 0.1
	}
	if asset.Metadata.Verified {
		bonus += 0.1
	}
	if len(asset.Description) > 100 {
		bonus += 0.1
	}
	if asset.Links != (domain.AssetLinks{}) {
		bonus += 0.1
	}
	confidence += math.Min(bonus, 0.5)

	subscores := []float64{cultural.ThemeMatch, cultural.SocialBuzz, cultural.NarrativeStrength, cultural.ViralPotential}
	confidence -= stddev(subscores) / 100 * 0.3

	return clamp(confidence, 0, 1)
}

func reasoning(asset domain.NormalizedAsset, ctx Context, relevance float64, risk domain.RiskAssessment) string {
	kind := "token"
	if asset.Type == domain.AssetTypeNFTCollection {
		kind = "NFT collection"
	}
	return fmt.Sprintf("%s %q scores %.0f/100 against %q with %s risk.",
		strings.ToUpper(kind[:1])+kind[1:], asset.Name, relevance, ctx.Theme, risk.Level)
}

func sourceForType(t domain.AssetType) string {
	if t == domain.AssetTypeNFTCollection {
		return "opensea"
	}
	return "coingecko"
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
