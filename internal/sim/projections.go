package sim

import (
	"math"

	"github.com/vibearb/vibearb/internal/domain"
)

const (
	tradingDays = 365 // crypto never closes

	// z95 is the one-sided 95% normal quantile for the VaR estimate.
	z95 = 1.645
)

// Projections are closed-form risk/return estimates for a portfolio. They
// come from the same drift and volatility assumptions as the synthetic
// backtest, so the two views agree in expectation.
type Projections struct {
	ExpectedReturnPct float64            `json:"expected_return_pct"` // annualized
	VolatilityPct     float64            `json:"volatility_pct"`      // annualized
	SharpeRatio       float64            `json:"sharpe_ratio"`
	MaxDrawdownPct    float64            `json:"max_drawdown_pct"` // estimate
	DailyVaR95Pct     float64            `json:"daily_var_95_pct"`
	SectorExposure    map[string]float64 `json:"sector_exposure"` // category -> pct
	Correlations      [][]float64        `json:"correlations"`
}

// Project computes the closed-form projections for a portfolio.
func Project(portfolio Portfolio) Projections {
	n := len(portfolio.Positions)
	if n == 0 {
		return Projections{SectorExposure: map[string]float64{}}
	}

	weights := make([]float64, n)
	drifts := make([]float64, n)
	vols := make([]float64, n)
	for i, pos := range portfolio.Positions {
		weights[i] = pos.Allocation / 100
		drifts[i] = dailyDrift(pos)
		vols[i] = dailyVolatility(pos.RiskLevel)
	}

	correlations := correlationMatrix(portfolio.Positions)

	expectedDaily := 0.0
	for i := range weights {
		expectedDaily += weights[i] * drifts[i]
	}

	variance := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += weights[i] * weights[j] * vols[i] * vols[j] * correlations[i][j]
		}
	}
	dailyVol := math.Sqrt(variance)

	annualReturn := expectedDaily * tradingDays * 100
	annualVol := dailyVol * math.Sqrt(tradingDays) * 100

	sharpe := 0.0
	if annualVol > 0 {
		sharpe = annualReturn / annualVol
	}

	// Rough drawdown proxy: volatile portfolios draw down a multiple of
	// their annual volatility in a bad stretch.
	maxDrawdown := math.Min(annualVol*1.5, 95)

	return Projections{
		ExpectedReturnPct: annualReturn,
		VolatilityPct:     annualVol,
		SharpeRatio:       sharpe,
		MaxDrawdownPct:    maxDrawdown,
		DailyVaR95Pct:     z95 * dailyVol * 100,
		SectorExposure:    sectorExposure(portfolio.Positions),
		Correlations:      correlations,
	}
}

func dailyDrift(pos Position) float64 {
	return pos.Relevance / 100 * 0.002
}

func dailyVolatility(level domain.RiskLevel) float64 {
	switch level {
	case domain.RiskMedium:
		return 0.04
	case domain.RiskHigh:
		return 0.07
	case domain.RiskExtreme:
		return 0.12
	default:
		return 0.02
	}
}

// correlationMatrix derives a symmetric positive matrix from position ID
// pairs. Deterministic for a given portfolio; pairwise values sit in
// [0.3, 0.8] since crypto assets rarely decorrelate.
func correlationMatrix(positions []Position) [][]float64 {
	n := len(positions)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			seed := seedFor(positions[i].Asset.ID + "|" + positions[j].Asset.ID)
			fraction := float64(uint64(seed)%1000) / 1000
			rho := 0.3 + fraction*0.5
			matrix[i][j] = rho
			matrix[j][i] = rho
		}
	}
	return matrix
}

func sectorExposure(positions []Position) map[string]float64 {
	exposure := map[string]float64{}
	for _, pos := range positions {
		sector := pos.Asset.Metadata.Category
		if sector == "" {
			sector = "unknown"
		}
		exposure[sector] += pos.Allocation
	}
	return exposure
}
