package social

import "strings"

// Static wordlist sentiment. Deliberately not ML: the pipeline needs a fast,
// deterministic tone signal, not a classifier.
var positiveWords = []string{
	"love", "great", "amazing", "bullish", "excited", "beautiful", "hope",
	"optimistic", "win", "good", "awesome", "inspiring", "growth", "moon",
	"based", "incredible", "future", "build", "building",
}

var negativeWords = []string{
	"hate", "scam", "rug", "bearish", "dead", "crash", "dump", "bad",
	"terrible", "awful", "fear", "worried", "doom", "fail", "ngmi", "rekt",
}

// SentimentOf scores a post text in [-1, 1] by counting wordlist hits.
func SentimentOf(text string) float64 {
	lowered := strings.ToLower(text)
	words := strings.Fields(lowered)

	score := 0
	for _, word := range words {
		trimmed := strings.Trim(word, ".,!?#@:;\"'()")
		for _, positive := range positiveWords {
			if trimmed == positive {
				score++
				break
			}
		}
		for _, negative := range negativeWords {
			if trimmed == negative {
				score--
				break
			}
		}
	}

	if len(words) == 0 {
		return 0
	}
	normalized := float64(score) / float64(len(words)) * 10
	if normalized > 1 {
		return 1
	}
	if normalized < -1 {
		return -1
	}
	return normalized
}

// RelevanceOf scores how well a post matches a query in [0, 1]: full credit
// for a substring hit, partial credit for word overlap.
func RelevanceOf(text, query string) float64 {
	loweredText := strings.ToLower(text)
	loweredQuery := strings.TrimSpace(strings.ToLower(query))
	if loweredQuery == "" {
		return 0
	}

	if strings.Contains(loweredText, loweredQuery) {
		return 1.0
	}

	queryWords := strings.Fields(loweredQuery)
	if len(queryWords) == 0 {
		return 0
	}
	matched := 0
	for _, word := range queryWords {
		if strings.Contains(loweredText, word) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryWords))
}
