package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentimentOf(t *testing.T) {
	tests := []struct {
		name string
		text string
		sign int
	}{
		{"positive words", "love this amazing project, bullish on the future", 1},
		{"negative words", "total scam, looks like a rug, bearish", -1},
		{"neutral", "the protocol launched on mainnet yesterday", 0},
		{"empty", "", 0},
		{"punctuation stripped", "bullish! moon!! incredible.", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := SentimentOf(tt.text)
			assert.GreaterOrEqual(t, score, -1.0)
			assert.LessOrEqual(t, score, 1.0)
			switch tt.sign {
			case 1:
				assert.Greater(t, score, 0.0)
			case -1:
				assert.Less(t, score, 0.0)
			default:
				assert.Zero(t, score)
			}
		})
	}
}

func TestSentimentOf_Clamps(t *testing.T) {
	assert.Equal(t, 1.0, SentimentOf("love love love"))
	assert.Equal(t, -1.0, SentimentOf("scam rug rekt"))
}

func TestRelevanceOf(t *testing.T) {
	assert.Equal(t, 1.0, RelevanceOf("big fan of solarpunk aesthetics", "solarpunk"))
	assert.Equal(t, 0.5, RelevanceOf("solar panels are neat", "solar future"))
	assert.Equal(t, 0.0, RelevanceOf("completely unrelated", "solarpunk"))
	assert.Equal(t, 0.0, RelevanceOf("anything", ""))
}
