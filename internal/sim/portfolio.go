// Package sim turns scored assets into hypothetical portfolios and runs
// synthetic backtests over them. Everything here is decision support on
// fabricated series, never trading advice.
package sim

import (
	"fmt"
	"sort"

	"github.com/vibearb/vibearb/internal/domain"
)

// Tolerance profile parameters.
type profile struct {
	name         string
	maxPositions int
	maxWeightPct float64
	allows       func(domain.RiskLevel) bool
}

func profileFor(tolerance domain.RiskTolerance) profile {
	switch tolerance {
	case domain.ToleranceLow:
		return profile{
			name:         "conservative",
			maxPositions: 5,
			maxWeightPct: 20,
			allows: func(l domain.RiskLevel) bool {
				return l == domain.RiskLow || l == domain.RiskMedium
			},
		}
	case domain.ToleranceHigh:
		return profile{
			name:         "aggressive",
			maxPositions: 10,
			maxWeightPct: 40,
			allows:       func(domain.RiskLevel) bool { return true },
		}
	default:
		return profile{
			name:         "moderate",
			maxPositions: 8,
			maxWeightPct: 30,
			allows: func(l domain.RiskLevel) bool {
				return l != domain.RiskExtreme
			},
		}
	}
}

// Position is one portfolio slot.
type Position struct {
	Asset      domain.NormalizedAsset `json:"asset"`
	Allocation float64                `json:"allocation_pct"` // percent of portfolio
	Relevance  float64                `json:"relevance"`
	RiskLevel  domain.RiskLevel       `json:"risk_level"`
	Rationale  string                 `json:"rationale"`
}

// Portfolio is the simulated allocation over a result's asset matches.
type Portfolio struct {
	Positions   []Position `json:"positions"`
	RiskProfile string     `json:"risk_profile"`
	Excluded    int        `json:"excluded"` // assets dropped by the tolerance filter
}

// TotalAllocation sums the position percentages. Always 100 for a non-empty
// portfolio, modulo float error.
func (p Portfolio) TotalAllocation() float64 {
	total := 0.0
	for _, pos := range p.Positions {
		total += pos.Allocation
	}
	return total
}

// BuildPortfolio selects assets the tolerance allows, weights them by
// relevance under the profile's per-position cap, and normalizes allocations
// to exactly 100 percent. An empty candidate set yields an empty portfolio.
func BuildPortfolio(scored []domain.ScoredAsset, tolerance domain.RiskTolerance) Portfolio {
	prof := profileFor(tolerance)

	eligible := make([]domain.ScoredAsset, 0, len(scored))
	for _, sa := range scored {
		if prof.allows(sa.Scores.Risk.Level) {
			eligible = append(eligible, sa)
		}
	}
	excluded := len(scored) - len(eligible)

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Scores.Relevance > eligible[j].Scores.Relevance
	})
	if len(eligible) > prof.maxPositions {
		eligible = eligible[:prof.maxPositions]
	}

	if len(eligible) == 0 {
		return Portfolio{RiskProfile: prof.name, Excluded: excluded}
	}

	relevances := make([]float64, len(eligible))
	for i, sa := range eligible {
		relevances[i] = sa.Scores.Relevance
	}
	weights := allocate(relevances, prof.maxWeightPct)

	positions := make([]Position, len(eligible))
	for i, sa := range eligible {
		positions[i] = Position{
			Asset:      sa.Asset,
			Allocation: weights[i],
			Relevance:  sa.Scores.Relevance,
			RiskLevel:  sa.Scores.Risk.Level,
			Rationale: fmt.Sprintf("%.1f%% weight from relevance %.0f with %s risk",
				weights[i], sa.Scores.Relevance, sa.Scores.Risk.Level),
		}
	}

	return Portfolio{Positions: positions, RiskProfile: prof.name, Excluded: excluded}
}

// allocate distributes 100 percent proportionally to relevance, clamping each
// weight at capPct and redistributing the overflow among uncapped positions.
// When the cap makes 100 unreachable (too few positions), weights are scaled
// up equally past the cap so the total is still exactly 100.
func allocate(relevances []float64, capPct float64) []float64 {
	n := len(relevances)
	weights := make([]float64, n)

	total := 0.0
	for _, r := range relevances {
		total += r
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 100 / float64(n)
		}
		return weights
	}
	for i, r := range relevances {
		weights[i] = r / total * 100
	}

	capped := make([]bool, n)
	for iter := 0; iter < n; iter++ {
		overflow := 0.0
		uncappedTotal := 0.0
		for i, w := range weights {
			if capped[i] {
				continue
			}
			if w > capPct {
				overflow += w - capPct
				weights[i] = capPct
				capped[i] = true
			} else {
				uncappedTotal += w
			}
		}
		if overflow == 0 {
			break
		}
		if uncappedTotal <= 0 {
			// Everyone is at the cap; spread the remainder evenly.
			for i := range weights {
				weights[i] += overflow / float64(n)
			}
			break
		}
		for i, w := range weights {
			if !capped[i] {
				weights[i] = w + overflow*(w/uncappedTotal)
			}
		}
	}

	// Scale out residual float drift so the sum is exactly 100.
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	for i := range weights {
		weights[i] *= 100 / sum
	}
	return weights
}
