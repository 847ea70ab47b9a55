package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibearb/vibearb/internal/domain"
)

func solarpunkContext() Context {
	ctx := NewContext("solarpunk", []string{"solar", "renewable", "green", "utopia"}, []string{"sustainability"})
	ctx.Now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return ctx
}

func solarToken() domain.NormalizedAsset {
	return domain.NormalizedAsset{
		ID:          "solar-dao",
		Type:        domain.AssetTypeToken,
		Name:        "SolarDAO",
		Symbol:      "SLR",
		Description: "A solarpunk collective funding renewable energy micro-grids. Green infrastructure for a solar future with community ownership and long-term renewable yield.",
		Price:       1.25,
		Volume:      2_500_000,
		MarketCap:   50_000_000,
		Change24h:   8.5,
		Metadata: domain.AssetMetadata{
			Blockchain:  "ethereum",
			Verified:    true,
			Category:    "sustainability",
			CreatedDate: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		Links: domain.AssetLinks{Website: "https://solardao.example", Twitter: "https://twitter.com/solardao"},
	}
}

func TestScore_Idempotent(t *testing.T) {
	ctx := solarpunkContext()
	asset := solarToken()

	first := Score(asset, ctx)
	second := Score(asset, ctx)

	assert.Equal(t, first, second, "scoring must be a pure function")
}

func TestScore_ThemeMatchComponents(t *testing.T) {
	ctx := solarpunkContext()
	scored := Score(solarToken(), ctx)

	// Theme substring (+40), 3 keywords matched (+15), >2 matches (+10).
	assert.InDelta(t, 65, scored.Scores.Cultural.ThemeMatch, 0.001)
}

func TestScore_NoMatchScoresLow(t *testing.T) {
	ctx := solarpunkContext()
	unrelated := domain.NormalizedAsset{
		ID:          "dogwifhat",
		Type:        domain.AssetTypeToken,
		Name:        "dogwifhat",
		Description: "a dog with a hat",
		Volume:      500,
	}

	scored := Score(unrelated, ctx)
	assert.Zero(t, scored.Scores.Cultural.ThemeMatch)
	assert.Less(t, scored.Scores.Relevance, 40.0)
}

func TestScore_RangesClamped(t *testing.T) {
	ctx := solarpunkContext()
	extreme := solarToken()
	extreme.Volume = 1e12
	extreme.Change24h = 500

	scored := Score(extreme, ctx)

	s := scored.Scores
	assert.LessOrEqual(t, s.Relevance, 100.0)
	assert.GreaterOrEqual(t, s.Relevance, 0.0)
	assert.LessOrEqual(t, s.Confidence, 1.0)
	assert.GreaterOrEqual(t, s.Confidence, 0.0)
	for _, sub := range []float64{
		s.Cultural.ThemeMatch, s.Cultural.SocialBuzz, s.Cultural.NarrativeStrength, s.Cultural.ViralPotential,
		s.Market.Liquidity, s.Market.Momentum, s.Market.Volatility, s.Market.Community,
	} {
		assert.GreaterOrEqual(t, sub, 0.0)
		assert.LessOrEqual(t, sub, 100.0)
	}
	assert.LessOrEqual(t, s.Risk.Score, 100.0)
}

func TestScore_SuppliedSocialBuzzWins(t *testing.T) {
	ctx := solarpunkContext()
	ctx.SocialBuzz = 88

	scored := Score(solarToken(), ctx)
	assert.InDelta(t, 88, scored.Scores.Cultural.SocialBuzz, 0.001)
}

func TestScore_CompletenessRaisesConfidence(t *testing.T) {
	ctx := solarpunkContext()

	complete := Score(solarToken(), ctx)

	sparse := solarToken()
	sparse.Price = 0
	sparse.Volume = 0
	sparse.Description = "solar"
	sparse.Links = domain.AssetLinks{}
	sparse.Metadata.Verified = false
	incomplete := Score(sparse, ctx)

	assert.Greater(t, complete.Scores.Confidence, incomplete.Scores.Confidence)
}

func TestScoreOrDefault_PassesThrough(t *testing.T) {
	ctx := solarpunkContext()
	scored := ScoreOrDefault(solarToken(), ctx)
	require.NotZero(t, scored.Scores.Relevance)
}

func TestConservativeDefault_Shape(t *testing.T) {
	def := conservativeDefault(solarToken())

	assert.Zero(t, def.Scores.Relevance)
	assert.InDelta(t, 0.1, def.Scores.Confidence, 0.001)
	assert.Equal(t, domain.RiskExtreme, def.Scores.Risk.Level)
}

func TestVolumeScore_TypeAware(t *testing.T) {
	token := domain.NormalizedAsset{Type: domain.AssetTypeToken, Volume: 1_000_000}
	nft := domain.NormalizedAsset{Type: domain.AssetTypeNFTCollection, Volume: 10_000}

	assert.InDelta(t, 10, volumeScore(token), 0.001)
	assert.InDelta(t, 10, volumeScore(nft), 0.001)
}
