package social

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func postAt(text string, age time.Duration, engagement float64) Post {
	return Post{Text: text, CreatedAt: testNow.Add(-age), Engagement: engagement}
}

func newTestAdapter(t *testing.T, platforms ...Platform) *Adapter {
	t.Helper()
	store := cache.NewMemory(100, time.Minute)
	t.Cleanup(store.Stop)

	adapter := New(platforms, store, cache.TTLShort)
	adapter.now = func() time.Time { return testNow }
	return adapter
}

func TestAnalyzeTrend_AggregatesPlatforms(t *testing.T) {
	twitter := NewFakePlatform("twitter")
	twitter.Seed("solarpunk", []Post{
		postAt("love the solarpunk movement, beautiful future", time.Hour, 120),
		postAt("solarpunk art is amazing", 2*time.Hour, 80),
		postAt("solarpunk city renders", 30*time.Hour, 40),
	})
	farcaster := NewFakePlatform("farcaster")
	farcaster.Seed("solarpunk", []Post{
		postAt("building solarpunk infra, bullish", time.Hour, 60),
	})

	adapter := newTestAdapter(t, twitter, farcaster)
	analysis, err := adapter.AnalyzeTrend(context.Background(), "solarpunk")
	require.NoError(t, err)

	assert.Equal(t, "solarpunk", analysis.Keyword)
	require.Len(t, analysis.Platforms, 2)
	assert.Equal(t, "farcaster", analysis.Platforms[0].Platform)
	assert.Equal(t, "twitter", analysis.Platforms[1].Platform)
	assert.Greater(t, analysis.OverallScore, 0.0)
	assert.LessOrEqual(t, analysis.OverallScore, 100.0)
	assert.Greater(t, analysis.Platforms[1].Sentiment, 0.0, "positive posts should carry positive tone")
}

func TestAnalyzeTrend_Momentum(t *testing.T) {
	tests := []struct {
		name  string
		posts []Post
		want  domain.Momentum
	}{
		{
			name: "mostly recent is rising",
			posts: []Post{
				postAt("solarpunk now", time.Hour, 10),
				postAt("solarpunk again", 2*time.Hour, 10),
				postAt("solarpunk old", 48*time.Hour, 10),
			},
			want: domain.MomentumRising,
		},
		{
			name: "mostly stale is declining",
			posts: []Post{
				postAt("solarpunk once", 48*time.Hour, 10),
				postAt("solarpunk twice", 72*time.Hour, 10),
				postAt("solarpunk thrice", 96*time.Hour, 10),
				postAt("solarpunk more", 100*time.Hour, 10),
				postAt("solarpunk last", 120*time.Hour, 10),
				postAt("solarpunk final", 130*time.Hour, 10),
			},
			want: domain.MomentumDeclining,
		},
		{
			name: "even split is stable",
			posts: []Post{
				postAt("solarpunk now", time.Hour, 10),
				postAt("solarpunk old", 48*time.Hour, 10),
				postAt("solarpunk older", 72*time.Hour, 10),
				postAt("solarpunk oldest", 96*time.Hour, 10),
			},
			want: domain.MomentumStable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform := NewFakePlatform("twitter")
			platform.Seed("solarpunk", tt.posts)
			adapter := newTestAdapter(t, platform)

			analysis, err := adapter.AnalyzeTrend(context.Background(), "solarpunk")
			require.NoError(t, err)
			assert.Equal(t, tt.want, analysis.Momentum)
		})
	}
}

func TestAnalyzeTrend_SurvivesPartialFailure(t *testing.T) {
	healthy := NewFakePlatform("twitter")
	healthy.Seed("solarpunk", []Post{postAt("solarpunk is great", time.Hour, 10)})
	broken := NewFakePlatform("farcaster")
	broken.SetFailure(errors.New("upstream 503"))

	adapter := newTestAdapter(t, healthy, broken)
	analysis, err := adapter.AnalyzeTrend(context.Background(), "solarpunk")
	require.NoError(t, err)

	require.Len(t, analysis.Platforms, 1)
	assert.Equal(t, "twitter", analysis.Platforms[0].Platform)
}

func TestAnalyzeTrend_AllPlatformsFailing(t *testing.T) {
	first := NewFakePlatform("twitter")
	first.SetFailure(errors.New("down"))
	second := NewFakePlatform("farcaster")
	second.SetFailure(errors.New("down"))

	adapter := newTestAdapter(t, first, second)
	_, err := adapter.AnalyzeTrend(context.Background(), "solarpunk")
	assert.Error(t, err)
}

func TestAnalyzeTrend_CachesByKeyword(t *testing.T) {
	platform := NewFakePlatform("twitter")
	platform.Seed("solarpunk", []Post{postAt("solarpunk", time.Hour, 10)})

	adapter := newTestAdapter(t, platform)
	ctx := context.Background()

	_, err := adapter.AnalyzeTrend(ctx, "solarpunk")
	require.NoError(t, err)
	_, err = adapter.AnalyzeTrend(ctx, "solarpunk")
	require.NoError(t, err)

	assert.Equal(t, 1, platform.Calls(), "second identical analysis must hit the cache")
}

func TestViralPotential_TrendingBonus(t *testing.T) {
	trending := []domain.PlatformAnalysis{{Platform: "twitter", PostCount: 30, Engagement: 50, Trending: true}}
	quiet := []domain.PlatformAnalysis{{Platform: "twitter", PostCount: 3, Engagement: 50}}

	assert.Greater(t, viralPotential(trending), viralPotential(quiet))
}
