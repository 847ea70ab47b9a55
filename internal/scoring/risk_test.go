package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vibearb/vibearb/internal/domain"
)

func TestBucketRisk_Monotone(t *testing.T) {
	cases := []struct {
		score float64
		level domain.RiskLevel
	}{
		{0, domain.RiskLow},
		{24.99, domain.RiskLow},
		{25, domain.RiskMedium},
		{49.99, domain.RiskMedium},
		{50, domain.RiskHigh},
		{79.99, domain.RiskHigh},
		{80, domain.RiskExtreme},
		{100, domain.RiskExtreme},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, BucketRisk(tc.score), "score %.2f", tc.score)
	}
}

func TestAssessRisk_AdditivePoints(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Worst case: every factor fires.
	risky := domain.NormalizedAsset{
		Type:      domain.AssetTypeToken,
		MarketCap: 1_000_000,
		Metadata: domain.AssetMetadata{
			Verified:    false,
			CreatedDate: now.Add(-10 * 24 * time.Hour),
		},
	}
	market := domain.MarketScores{Liquidity: 5, Volatility: 90, Community: 10}

	assessment := AssessRisk(risky, market, now)
	// 25+20+15+20+10+15 = 105, clamped to 100.
	assert.InDelta(t, 100, assessment.Score, 0.001)
	assert.Equal(t, domain.RiskExtreme, assessment.Level)
	assert.Len(t, assessment.Factors, 6)
}

func TestAssessRisk_SafeAsset(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	safe := domain.NormalizedAsset{
		Type:      domain.AssetTypeToken,
		MarketCap: 5e9,
		Metadata: domain.AssetMetadata{
			Verified:    true,
			CreatedDate: now.Add(-3 * 365 * 24 * time.Hour),
		},
	}
	market := domain.MarketScores{Liquidity: 80, Volatility: 20, Community: 90}

	assessment := AssessRisk(safe, market, now)
	assert.Zero(t, assessment.Score)
	assert.Equal(t, domain.RiskLow, assessment.Level)
	assert.Empty(t, assessment.Factors)
}

func TestAssessRisk_SmallCapOnlyForTokens(t *testing.T) {
	now := time.Now()
	market := domain.MarketScores{Liquidity: 80, Volatility: 20, Community: 90}

	nft := domain.NormalizedAsset{
		Type:      domain.AssetTypeNFTCollection,
		MarketCap: 1_000_000,
		Metadata:  domain.AssetMetadata{Verified: true, CreatedDate: now.Add(-365 * 24 * time.Hour)},
	}

	assessment := AssessRisk(nft, market, now)
	assert.NotContains(t, assessment.Factors, "small market cap")
}
