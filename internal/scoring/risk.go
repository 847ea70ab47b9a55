package scoring

import (
	"time"

	"github.com/vibearb/vibearb/internal/domain"
)

// Risk point values. The risk score is purely additive; evidence strings
// mirror the points awarded so the breakdown is auditable.
const (
	riskLowLiquidity   = 25.0
	riskHighVolatility = 20.0
	riskSmallCap       = 15.0
	riskUnverified     = 20.0
	riskWeakCommunity  = 10.0
	riskVeryNew        = 15.0
)

// AssessRisk computes the additive risk score for an asset and buckets it.
func AssessRisk(asset domain.NormalizedAsset, market domain.MarketScores, now time.Time) domain.RiskAssessment {
	score := 0.0
	var factors []string

	if market.Liquidity < 20 {
		score += riskLowLiquidity
		factors = append(factors, "low liquidity")
	}
	if market.Volatility > 60 {
		score += riskHighVolatility
		factors = append(factors, "high volatility")
	}
	if asset.Type == domain.AssetTypeToken && asset.MarketCap > 0 && asset.MarketCap < 10_000_000 {
		score += riskSmallCap
		factors = append(factors, "small market cap")
	}
	if !asset.Metadata.Verified {
		score += riskUnverified
		factors = append(factors, "unverified")
	}
	if market.Community < 30 {
		score += riskWeakCommunity
		factors = append(factors, "weak community")
	}
	if !asset.Metadata.CreatedDate.IsZero() && now.Sub(asset.Metadata.CreatedDate) < 30*24*time.Hour {
		score += riskVeryNew
		factors = append(factors, "less than 30 days old")
	}

	score = clamp(score, 0, 100)
	return domain.RiskAssessment{
		Level:   BucketRisk(score),
		Score:   score,
		Factors: factors,
	}
}

// BucketRisk maps a risk score to its level. Buckets are monotone:
// low < 25 ≤ medium < 50 ≤ high < 80 ≤ extreme.
func BucketRisk(score float64) domain.RiskLevel {
	switch {
	case score < 25:
		return domain.RiskLow
	case score < 50:
		return domain.RiskMedium
	case score < 80:
		return domain.RiskHigh
	default:
		return domain.RiskExtreme
	}
}
