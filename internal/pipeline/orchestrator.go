// Package pipeline orchestrates the six-step trend analysis: theme expansion,
// taste correlation, social analysis, asset discovery, scoring and the AI
// summary. Only theme expansion is fatal; every other step degrades and
// records its errors in the result.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/config"
	"github.com/vibearb/vibearb/internal/domain"
	"github.com/vibearb/vibearb/internal/metrics"
	"github.com/vibearb/vibearb/internal/providers/guard"
	"github.com/vibearb/vibearb/internal/providers/llm"
	"github.com/vibearb/vibearb/internal/scoring"
)

// Step names, in execution order.
const (
	StepThemeExpansion   = "theme_expansion"
	StepTasteCorrelation = "taste_correlation"
	StepSocialAnalysis   = "social_analysis"
	StepAssetDiscovery   = "asset_discovery"
	StepScoringFiltering = "scoring_filtering"
	StepAISummary        = "ai_summary"

	StateDone   = "done"
	StateFailed = "failed"
)

// Step-5 adjustment constants.
const (
	// maxSocialBoost caps the relevance bonus from measured social buzz.
	maxSocialBoost = 10.0

	// Risk-tolerance multipliers. Cautious callers see risky assets damped;
	// aggressive callers see safe assets amplified.
	cautiousPenalty  = 0.7
	aggressiveReward = 1.2

	// defaultSocialComponent stands in for the social half of the overall
	// score when no platform returned data.
	defaultSocialComponent = 50.0

	// degradedExpansionConfidence marks the theme expansion of a run whose
	// expansion step failed outright.
	degradedExpansionConfidence = 0.1
)

// Event is one progress notification emitted during a run.
type Event struct {
	Step   string    `json:"step"`
	Status string    `json:"status"` // started | completed | failed
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// ThemeExpander is the LLM surface the pipeline needs.
type ThemeExpander interface {
	Available() bool
	ExpandTheme(ctx context.Context, theme string, opts llm.ExpandOptions) (*domain.ThemeExpansion, error)
	SummarizeFindings(ctx context.Context, vibe string, assets []domain.ScoredAsset) (*domain.Recommendations, error)
}

// TasteCorrelator resolves taste correlations. Never fails, only degrades.
type TasteCorrelator interface {
	Correlate(ctx context.Context, keywords, categories []string) domain.TasteResult
}

// SocialAnalyzer analyzes one keyword's social trend.
type SocialAnalyzer interface {
	AnalyzeTrend(ctx context.Context, keyword string) (domain.SocialTrendAnalysis, error)
}

// TokenFinder discovers fungible token candidates.
type TokenFinder interface {
	FindRelevantTokens(ctx context.Context, keywords []string, limit int) []domain.NormalizedAsset
}

// CollectionFinder discovers NFT collection candidates.
type CollectionFinder interface {
	FindRelevantCollections(ctx context.Context, keywords []string, limit int) []domain.NormalizedAsset
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	LLM     ThemeExpander
	Taste   TasteCorrelator
	Social  SocialAnalyzer
	Tokens  TokenFinder
	NFTs    CollectionFinder
	Results cache.ResultStore

	// Guards are consulted for the api_calls bookkeeping. Optional.
	Guards []*guard.Guard
}

// Orchestrator runs the pipeline.
type Orchestrator struct {
	cfg    config.PipelineConfig
	deps   Deps
	notify func(Event)
	now    func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithProgress registers a listener for step events. The listener must not
// block; it is called synchronously on the pipeline goroutine.
func WithProgress(fn func(Event)) Option {
	return func(o *Orchestrator) { o.notify = fn }
}

// New creates an orchestrator.
func New(cfg config.PipelineConfig, deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		notify: func(Event) {},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the full pipeline for a vibe. It always returns a usable
// result: total failure yields a zeroed result whose Processing.Errors
// explains what went wrong. The caller decides the transport status; pipeline
// failure is data, not an error.
func (o *Orchestrator) Run(ctx context.Context, vibe string, opts domain.SearchOptions) *domain.TrendResult {
	cacheKey := resultKey(vibe)

	if opts.UseCache && o.deps.Results != nil {
		if cached, ok := o.deps.Results.GetResult(ctx, cacheKey); ok {
			metrics.PipelineCacheHits.Inc()
			log.Debug().Str("vibe", vibe).Msg("Serving trend result from cache")
			return cached
		}
	}

	started := o.now()
	callsBefore := o.apiCalls()
	var errs []string
	var steps []string

	runStep := func(name string, fn func() error) error {
		o.notify(Event{Step: name, Status: "started", At: o.now()})
		stepStart := o.now()
		err := fn()
		metrics.StepDuration.WithLabelValues(name).Observe(o.now().Sub(stepStart).Seconds())
		if err != nil {
			o.notify(Event{Step: name, Status: "failed", Detail: err.Error(), At: o.now()})
			return err
		}
		steps = append(steps, name)
		o.notify(Event{Step: name, Status: "completed", At: o.now()})
		return nil
	}

	// Step 1: theme expansion. The only fatal step.
	var expansion *domain.ThemeExpansion
	if err := runStep(StepThemeExpansion, func() error {
		var err error
		expansion, err = o.deps.LLM.ExpandTheme(ctx, vibe, llm.ExpandOptions{
			UseCache:    opts.UseCache,
			MaxTokens:   1000,
			Temperature: 0.7,
		})
		return err
	}); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", StepThemeExpansion, err))
		return o.failed(ctx, vibe, cacheKey, started, callsBefore, steps, errs)
	}

	// Step 2: taste correlation. The adapter degrades internally.
	var taste domain.TasteResult
	runStep(StepTasteCorrelation, func() error {
		taste = o.deps.Taste.Correlate(ctx, expansion.ExpandedKeywords, expansion.Categories)
		return nil
	})

	// Step 3: social analysis, bounded all-settled fan-out over the vibe and
	// its top keywords. Per-keyword failures are recorded, never fatal.
	social := map[string]domain.SocialTrendAnalysis{}
	runStep(StepSocialAnalysis, func() error {
		analyses, socialErrs := o.analyzeSocial(ctx, vibe, expansion.ExpandedKeywords, opts.EnableParallel)
		social = analyses
		errs = append(errs, socialErrs...)
		return nil
	})

	// Step 4: asset discovery across both asset classes.
	var assets []domain.NormalizedAsset
	runStep(StepAssetDiscovery, func() error {
		assets = o.discoverAssets(ctx, expansion.ExpandedKeywords, opts)
		return nil
	})

	// Step 5: scoring, social boost, tolerance adjustment, filter, rank.
	var scored []domain.ScoredAsset
	runStep(StepScoringFiltering, func() error {
		scored = o.scoreAndFilter(vibe, expansion, assets, social, opts)
		return nil
	})

	// Step 6: AI summary, with a templated fallback when the model declines.
	var recs domain.Recommendations
	llmDegraded := false
	runStep(StepAISummary, func() error {
		summary, err := o.deps.LLM.SummarizeFindings(ctx, vibe, scored)
		if err != nil {
			llmDegraded = true
			errs = append(errs, fmt.Sprintf("%s: %v", StepAISummary, err))
			recs = fallbackRecommendations(vibe, scored)
			return nil
		}
		recs = *summary
		return nil
	})

	result := &domain.TrendResult{
		OriginalVibe:    vibe,
		ThemeExpansion:  *expansion,
		TasteProfile:    taste,
		SocialAnalysis:  social,
		AssetMatches:    scored,
		OverallScore:    overallScore(scored, social),
		Confidence:      resultConfidence(expansion, scored, social, llmDegraded),
		Recommendations: recs,
		Processing: domain.ProcessingInfo{
			TotalTimeMS: o.now().Sub(started).Milliseconds(),
			APICalls:    int(o.apiCalls() - callsBefore),
			Errors:      errs,
		},
		Metadata: domain.ResultMetadata{
			GeneratedAt: started,
			ExpiresAt:   started.Add(o.cfg.ResultTTLSuccess.Std()),
			Pipeline:    steps,
		},
	}

	metrics.PipelineRuns.WithLabelValues(StateDone).Inc()
	if o.deps.Results != nil {
		o.deps.Results.SetResult(ctx, cacheKey, result, o.cfg.ResultTTLSuccess.Std())
	}
	log.Info().Str("vibe", vibe).Int("assets", len(scored)).Float64("score", result.OverallScore).
		Int64("total_ms", result.Processing.TotalTimeMS).Msg("Pipeline run complete")
	return result
}

// failed builds the degraded failure result, marked by an expansion at
// minimal confidence, and caches it briefly so a broken upstream is not
// hammered by retries.
func (o *Orchestrator) failed(ctx context.Context, vibe, cacheKey string, started time.Time, callsBefore int64, steps, errs []string) *domain.TrendResult {
	result := &domain.TrendResult{
		OriginalVibe: vibe,
		ThemeExpansion: domain.ThemeExpansion{
			OriginalTheme: vibe,
			Confidence:    degradedExpansionConfidence,
		},
		SocialAnalysis: map[string]domain.SocialTrendAnalysis{},
		AssetMatches:   []domain.ScoredAsset{},
		Recommendations: domain.Recommendations{
			Summary: fmt.Sprintf("Analysis of %q could not be completed. See processing errors.", vibe),
		},
		Processing: domain.ProcessingInfo{
			TotalTimeMS: o.now().Sub(started).Milliseconds(),
			APICalls:    int(o.apiCalls() - callsBefore),
			Errors:      errs,
		},
		Metadata: domain.ResultMetadata{
			GeneratedAt: started,
			ExpiresAt:   started.Add(o.cfg.ResultTTLFailure.Std()),
			Pipeline:    steps,
		},
	}

	metrics.PipelineRuns.WithLabelValues(StateFailed).Inc()
	if o.deps.Results != nil {
		o.deps.Results.SetResult(ctx, cacheKey, result, o.cfg.ResultTTLFailure.Std())
	}
	log.Error().Str("vibe", vibe).Strs("errors", errs).Msg("Pipeline run failed")
	return result
}

// analyzeSocial fans out over the vibe plus its top expanded keywords. Every
// keyword settles: failures are collected, successes are kept, and the step
// succeeds even when every keyword fails.
func (o *Orchestrator) analyzeSocial(ctx context.Context, vibe string, keywords []string, parallel bool) (map[string]domain.SocialTrendAnalysis, []string) {
	targets := socialTargets(vibe, keywords, o.cfg.MaxSocialKeywords)

	var mu sync.Mutex
	analyses := make(map[string]domain.SocialTrendAnalysis, len(targets))
	var errs []string

	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.MaxConcurrentSocial
	if !parallel {
		limit = 1
	}
	g.SetLimit(limit)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			analysis, err := o.deps.Social.AnalyzeTrend(gctx, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s %q: %v", StepSocialAnalysis, target, err))
				return nil
			}
			analyses[target] = analysis
			return nil
		})
	}
	g.Wait()

	return analyses, errs
}

// discoverAssets queries the enabled asset classes, in parallel when allowed.
func (o *Orchestrator) discoverAssets(ctx context.Context, keywords []string, opts domain.SearchOptions) []domain.NormalizedAsset {
	// Over-fetch per class so the post-filter ranking has material to cut.
	perClass := opts.MaxAssets * 2
	if perClass < 10 {
		perClass = 10
	}

	var mu sync.Mutex
	var assets []domain.NormalizedAsset

	g, gctx := errgroup.WithContext(ctx)
	if !opts.EnableParallel {
		g.SetLimit(1)
	}

	if opts.IncludeTokens {
		g.Go(func() error {
			found := o.deps.Tokens.FindRelevantTokens(gctx, keywords, perClass)
			mu.Lock()
			assets = append(assets, found...)
			mu.Unlock()
			return nil
		})
	}
	if opts.IncludeNFTs {
		g.Go(func() error {
			found := o.deps.NFTs.FindRelevantCollections(gctx, keywords, perClass)
			mu.Lock()
			assets = append(assets, found...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return assets
}

// scoreAndFilter runs the pure scorer over every candidate, applies the
// social boost and the risk-tolerance adjustment, drops low-confidence
// matches, and returns the top assets by relevance.
func (o *Orchestrator) scoreAndFilter(vibe string, expansion *domain.ThemeExpansion, assets []domain.NormalizedAsset, social map[string]domain.SocialTrendAnalysis, opts domain.SearchOptions) []domain.ScoredAsset {
	sctx := scoring.NewContext(vibe, expansion.ExpandedKeywords, expansion.Categories)
	sctx.Now = o.now()
	if buzz, ok := meanSocialScore(social); ok {
		sctx.SocialBuzz = buzz
	}

	boost := 0.0
	if sctx.SocialBuzz >= 0 {
		boost = sctx.SocialBuzz / 10
		if boost > maxSocialBoost {
			boost = maxSocialBoost
		}
	}

	scored := make([]domain.ScoredAsset, 0, len(assets))
	for _, asset := range assets {
		sa := scoring.ScoreOrDefault(asset, sctx)

		relevance := sa.Scores.Relevance + boost
		switch opts.RiskTolerance {
		case domain.ToleranceLow:
			if sa.Scores.Risk.Level == domain.RiskHigh || sa.Scores.Risk.Level == domain.RiskExtreme {
				relevance *= cautiousPenalty
			}
		case domain.ToleranceHigh:
			if sa.Scores.Risk.Level == domain.RiskLow {
				relevance *= aggressiveReward
			}
		}
		if relevance > 100 {
			relevance = 100
		}
		sa.Scores.Relevance = relevance

		if sa.Scores.Confidence < opts.MinConfidence {
			continue
		}
		scored = append(scored, sa)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Scores.Relevance > scored[j].Scores.Relevance
	})
	if opts.MaxAssets > 0 && len(scored) > opts.MaxAssets {
		scored = scored[:opts.MaxAssets]
	}
	return scored
}

func (o *Orchestrator) apiCalls() int64 {
	var total int64
	for _, g := range o.deps.Guards {
		total += g.APICalls()
	}
	return total
}

// socialTargets picks the vibe plus the top expanded keywords, deduplicated
// case-insensitively, capped at max.
func socialTargets(vibe string, keywords []string, max int) []string {
	if max <= 0 {
		max = 4
	}
	seen := map[string]bool{}
	targets := make([]string, 0, max)

	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] || len(targets) >= max {
			return
		}
		seen[key] = true
		targets = append(targets, s)
	}

	add(vibe)
	for _, kw := range keywords {
		add(kw)
	}
	return targets
}

// meanSocialScore averages the per-keyword overall scores. ok is false when
// no keyword produced data.
func meanSocialScore(social map[string]domain.SocialTrendAnalysis) (float64, bool) {
	if len(social) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, analysis := range social {
		sum += analysis.OverallScore
	}
	return sum / float64(len(social)), true
}

// overallScore blends asset relevance with social buzz 60/40.
func overallScore(scored []domain.ScoredAsset, social map[string]domain.SocialTrendAnalysis) float64 {
	assetComponent := 0.0
	if len(scored) > 0 {
		for _, sa := range scored {
			assetComponent += sa.Scores.Relevance
		}
		assetComponent /= float64(len(scored))
	}

	socialComponent := defaultSocialComponent
	if mean, ok := meanSocialScore(social); ok {
		socialComponent = mean
	}

	return 0.6*assetComponent + 0.4*socialComponent
}

// resultConfidence blends expansion confidence, mean asset confidence and a
// social-data factor 40/40/20. The social factor is 0.7 when any keyword
// produced data, else 0.4. An LLM summary failure signals a degraded model
// and floors the result at low confidence.
func resultConfidence(expansion *domain.ThemeExpansion, scored []domain.ScoredAsset, social map[string]domain.SocialTrendAnalysis, llmDegraded bool) float64 {
	assetConfidence := 0.0
	if len(scored) > 0 {
		for _, sa := range scored {
			assetConfidence += sa.Scores.Confidence
		}
		assetConfidence /= float64(len(scored))
	}

	socialFactor := 0.4
	if len(social) > 0 {
		socialFactor = 0.7
	}

	confidence := 0.4*expansion.Confidence + 0.4*assetConfidence + 0.2*socialFactor
	if llmDegraded && confidence > 0.5 {
		confidence = 0.5
	}
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// fallbackRecommendations builds a templated summary when the model is
// unavailable.
func fallbackRecommendations(vibe string, scored []domain.ScoredAsset) domain.Recommendations {
	top := make([]string, 0, 3)
	for _, sa := range scored {
		if len(top) >= 3 {
			break
		}
		top = append(top, sa.Asset.Name)
	}

	summary := fmt.Sprintf("Found %d assets matching %q.", len(scored), vibe)
	if len(top) > 0 {
		summary += " Strongest matches: " + strings.Join(top, ", ") + "."
	}

	return domain.Recommendations{
		Summary:        summary,
		TopAssets:      top,
		MarketTiming:   "No AI market timing available; review momentum scores directly.",
		RiskAssessment: "Automated summary unavailable; consult per-asset risk levels.",
		ActionItems:    []string{"Review individual asset scores", "Re-run the analysis when the model is available"},
	}
}

// resultKey normalizes a vibe into the result cache key. Search options are
// deliberately excluded: the expensive upstream work depends only on the
// theme itself.
func resultKey(vibe string) string {
	return strings.ToLower(strings.TrimSpace(vibe))
}
