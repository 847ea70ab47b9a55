// Package social aggregates chatter about a keyword across platforms into a
// single trend analysis. The adapter degrades per platform and only fails
// when every platform fails.
package social

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/domain"
)

const (
	// recentWindow is the lookback used for momentum detection.
	recentWindow = 6 * time.Hour

	// risingShare and decliningShare bound the recent-post fraction for the
	// momentum classification.
	risingShare    = 0.4
	decliningShare = 0.2

	// trendingPosts marks a platform as trending when it returns at least
	// this many posts for a keyword.
	trendingPosts = 20
)

// Adapter runs every configured platform for a keyword and folds the results
// into one analysis.
type Adapter struct {
	platforms []Platform
	store     cache.Store
	ttl       time.Duration
	now       func() time.Time
}

// New creates the adapter over the given platforms.
func New(platforms []Platform, store cache.Store, ttl time.Duration) *Adapter {
	return &Adapter{
		platforms: platforms,
		store:     store,
		ttl:       ttl,
		now:       time.Now,
	}
}

// AnalyzeTrend fetches posts from every platform in parallel and derives the
// aggregate analysis. Platforms that fail are logged and skipped; the call
// errors only when no platform produced data.
func (a *Adapter) AnalyzeTrend(ctx context.Context, keyword string) (domain.SocialTrendAnalysis, error) {
	cacheKey := "social:trend:" + strings.ToLower(keyword)
	if cached, ok := a.store.Get(cacheKey); ok {
		if analysis, ok := cached.(domain.SocialTrendAnalysis); ok {
			return analysis, nil
		}
	}

	type fetchResult struct {
		platform string
		posts    []Post
		err      error
	}

	results := make([]fetchResult, len(a.platforms))
	var wg sync.WaitGroup
	for i, platform := range a.platforms {
		wg.Add(1)
		go func(i int, platform Platform) {
			defer wg.Done()
			posts, err := platform.FetchPosts(ctx, keyword)
			results[i] = fetchResult{platform: platform.Name(), posts: posts, err: err}
		}(i, platform)
	}
	wg.Wait()

	var analyses []domain.PlatformAnalysis
	failures := 0
	for _, result := range results {
		if result.err != nil {
			failures++
			log.Warn().Err(result.err).Str("platform", result.platform).Str("keyword", keyword).
				Msg("Platform fetch failed, skipping")
			continue
		}
		analyses = append(analyses, a.analyzePlatform(result.platform, keyword, result.posts))
	}

	if len(analyses) == 0 {
		return domain.SocialTrendAnalysis{}, fmt.Errorf("all %d social platforms failed for %q", failures, keyword)
	}

	sort.Slice(analyses, func(i, j int) bool { return analyses[i].Platform < analyses[j].Platform })

	analysis := domain.SocialTrendAnalysis{
		Keyword:           keyword,
		Platforms:         analyses,
		OverallScore:      overallScore(analyses),
		Momentum:          momentumOf(analyses),
		CulturalRelevance: culturalRelevance(analyses),
		ViralPotential:    viralPotential(analyses),
	}

	a.store.Set(cacheKey, analysis, a.ttl)
	return analysis, nil
}

// analyzePlatform derives per-platform signals from the raw posts.
func (a *Adapter) analyzePlatform(name, keyword string, posts []Post) domain.PlatformAnalysis {
	if len(posts) == 0 {
		return domain.PlatformAnalysis{Platform: name}
	}

	cutoff := a.now().Add(-recentWindow)
	sentimentSum := 0.0
	engagementSum := 0.0
	recent := 0
	for _, post := range posts {
		sentimentSum += SentimentOf(post.Text) * RelevanceOf(post.Text, keyword)
		engagementSum += post.Engagement
		if post.CreatedAt.After(cutoff) {
			recent++
		}
	}

	avgEngagement := engagementSum / float64(len(posts))

	return domain.PlatformAnalysis{
		Platform:    name,
		PostCount:   len(posts),
		Sentiment:   sentimentSum / float64(len(posts)),
		Engagement:  math.Min(avgEngagement/10, 100),
		Trending:    len(posts) >= trendingPosts,
		RecentShare: float64(recent) / float64(len(posts)),
	}
}

// overallScore blends volume, tone and engagement into a 0..100 buzz score.
func overallScore(analyses []domain.PlatformAnalysis) float64 {
	score := 0.0
	for _, p := range analyses {
		volume := math.Min(float64(p.PostCount)*2, 100)
		tone := (p.Sentiment + 1) / 2 * 100
		score += volume*0.4 + tone*0.3 + p.Engagement*0.3
	}
	return clamp(score / float64(len(analyses)))
}

// momentumOf classifies the trend by the fraction of posts inside the recent
// window, averaged across platforms.
func momentumOf(analyses []domain.PlatformAnalysis) domain.Momentum {
	share := 0.0
	counted := 0
	for _, p := range analyses {
		if p.PostCount == 0 {
			continue
		}
		share += p.RecentShare
		counted++
	}
	if counted == 0 {
		return domain.MomentumStable
	}
	share /= float64(counted)

	switch {
	case share > risingShare:
		return domain.MomentumRising
	case share < decliningShare:
		return domain.MomentumDeclining
	default:
		return domain.MomentumStable
	}
}

// culturalRelevance weighs positive tone and post volume.
func culturalRelevance(analyses []domain.PlatformAnalysis) float64 {
	score := 0.0
	for _, p := range analyses {
		volume := math.Min(float64(p.PostCount)*2, 100)
		positivity := math.Max(p.Sentiment, 0) * 100
		score += volume*0.6 + positivity*0.4
	}
	return clamp(score / float64(len(analyses)))
}

// viralPotential favors engagement over volume and rewards trending flags.
func viralPotential(analyses []domain.PlatformAnalysis) float64 {
	score := 0.0
	for _, p := range analyses {
		platformScore := p.Engagement * 0.7
		if p.Trending {
			platformScore += 30
		}
		score += platformScore
	}
	return clamp(score / float64(len(analyses)))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
