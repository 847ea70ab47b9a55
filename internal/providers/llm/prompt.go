package llm

import (
	"fmt"
	"strings"

	"github.com/vibearb/vibearb/internal/domain"
)

const systemPrompt = `You are a cultural trend analyst who maps aesthetic movements and subcultures to crypto-native communities. Respond with a single JSON object and nothing else.`

func expandPrompt(theme string) string {
	return fmt.Sprintf(`Expand the cultural theme %q for asset discovery.

Return a JSON object with these fields:
- "expanded_keywords": 8-12 search keywords capturing the theme's vocabulary
- "categories": 3-5 broad cultural categories
- "cultural_context": {"description", "demographics" (list), "platforms" (list), "timeframe"}
- "related_trends": 3-5 adjacent movements
- "sentiment": "positive", "negative" or "neutral"
- "confidence": 0..1, how well-defined this theme is`, theme)
}

func tastePrompt(keywords, categories []string) string {
	return fmt.Sprintf(`Reconstruct a cross-domain taste profile for a cultural theme described by
keywords [%s] and categories [%s].

Return a JSON object with these fields:
- "profile": {"keywords" (list), "categories" (list), "demographics" (list), "affinities" (list of adjacent interests)}
- "correlations": 5-10 objects, each {"item", "category", "relevance_score" (0-100), "confidence_level" (0-1), "demographic_match", "cultural_alignment" (0-100), "trending_factor" (0-100)}`,
		strings.Join(keywords, ", "), strings.Join(categories, ", "))
}

func summaryPrompt(vibe string, assets []domain.ScoredAsset) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Theme: %q. Top matched assets:\n", vibe)

	limit := len(assets)
	if limit > 10 {
		limit = 10
	}
	for _, a := range assets[:limit] {
		fmt.Fprintf(&sb, "- %s (%s): relevance %.0f, confidence %.2f, risk %s\n",
			a.Asset.Name, a.Asset.Type, a.Scores.Relevance, a.Scores.Confidence, a.Scores.Risk.Level)
	}

	sb.WriteString(`
Write investment-research-style commentary as a JSON object with fields:
"summary" (2-3 sentences), "top_assets" (names, max 3), "market_timing"
(one sentence), "risk_assessment" (one sentence), "action_items" (2-4 short
strings). This is decision support, not financial advice; keep the register
factual.`)
	return sb.String()
}
