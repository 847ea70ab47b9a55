package sim

import (
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/vibearb/vibearb/internal/domain"
)

// Backtest bounds. Synthetic series longer than a year add noise, not signal.
const (
	MinBacktestDays = 7
	MaxBacktestDays = 365
)

// DailyValue is one point of the simulated equity curve.
type DailyValue struct {
	Day   int     `json:"day"`
	Value float64 `json:"value"`
}

// BacktestResult summarizes a synthetic run of a portfolio.
type BacktestResult struct {
	Days           int          `json:"days"`
	InitialValue   float64      `json:"initial_value"`
	FinalValue     float64      `json:"final_value"`
	ReturnPct      float64      `json:"return_pct"`
	MaxDrawdownPct float64      `json:"max_drawdown_pct"`
	BestDayPct     float64      `json:"best_day_pct"`
	WorstDayPct    float64      `json:"worst_day_pct"`
	Series         []DailyValue `json:"series"`
}

// RunBacktest walks the portfolio through days of synthetic daily returns.
// Each position's series is a deterministic seeded random walk whose drift
// follows its relevance and whose volatility follows its risk level, so the
// same portfolio always backtests identically.
func RunBacktest(portfolio Portfolio, days int, initialValue float64) BacktestResult {
	if days < MinBacktestDays {
		days = MinBacktestDays
	}
	if days > MaxBacktestDays {
		days = MaxBacktestDays
	}
	if initialValue <= 0 {
		initialValue = 10_000
	}

	result := BacktestResult{
		Days:         days,
		InitialValue: initialValue,
		Series:       make([]DailyValue, 0, days+1),
	}
	result.Series = append(result.Series, DailyValue{Day: 0, Value: initialValue})

	if len(portfolio.Positions) == 0 {
		result.FinalValue = initialValue
		return result
	}

	rngs := make([]*rand.Rand, len(portfolio.Positions))
	for i, pos := range portfolio.Positions {
		rngs[i] = rand.New(rand.NewSource(seedFor(pos.Asset.ID)))
	}

	value := initialValue
	peak := initialValue
	result.WorstDayPct = math.Inf(1)
	result.BestDayPct = math.Inf(-1)

	for day := 1; day <= days; day++ {
		dayReturn := 0.0
		for i, pos := range portfolio.Positions {
			weight := pos.Allocation / 100
			dayReturn += weight * dailyReturn(rngs[i], pos)
		}

		value *= 1 + dayReturn
		result.Series = append(result.Series, DailyValue{Day: day, Value: value})

		pct := dayReturn * 100
		if pct > result.BestDayPct {
			result.BestDayPct = pct
		}
		if pct < result.WorstDayPct {
			result.WorstDayPct = pct
		}

		if value > peak {
			peak = value
		}
		drawdown := (peak - value) / peak * 100
		if drawdown > result.MaxDrawdownPct {
			result.MaxDrawdownPct = drawdown
		}
	}

	result.FinalValue = value
	result.ReturnPct = (value - initialValue) / initialValue * 100
	return result
}

// dailyReturn draws one synthetic daily return for a position. Drift scales
// with relevance (a 100-relevance asset drifts +0.2% a day) and volatility
// with the risk bucket.
func dailyReturn(rng *rand.Rand, pos Position) float64 {
	drift := pos.Relevance / 100 * 0.002

	volatility := 0.02
	switch pos.RiskLevel {
	case domain.RiskMedium:
		volatility = 0.04
	case domain.RiskHigh:
		volatility = 0.07
	case domain.RiskExtreme:
		volatility = 0.12
	}

	return drift + rng.NormFloat64()*volatility
}

func seedFor(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return int64(h.Sum64())
}
