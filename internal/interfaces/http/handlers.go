package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vibearb/vibearb/internal/domain"
	"github.com/vibearb/vibearb/internal/pipeline"
	"github.com/vibearb/vibearb/internal/providers/guard"
	"github.com/vibearb/vibearb/internal/providers/llm"
	"github.com/vibearb/vibearb/internal/sim"
)

// maxVibeLength rejects obviously abusive inputs before they reach the LLM.
const maxVibeLength = 500

// TrendRunner runs the analysis pipeline.
type TrendRunner interface {
	Run(ctx context.Context, vibe string, opts domain.SearchOptions) *domain.TrendResult
}

// Handlers holds the API handlers and their collaborators.
type Handlers struct {
	pipeline TrendRunner
	expander pipeline.ThemeExpander
	taste    pipeline.TasteCorrelator
	tokens   pipeline.TokenFinder
	nfts     pipeline.CollectionFinder
	healths  func() []guard.Health
	hub      *Hub
}

// NewHandlers creates the handler set. healths may be nil; hub may be nil to
// disable the progress websocket.
func NewHandlers(runner TrendRunner, expander pipeline.ThemeExpander, taste pipeline.TasteCorrelator, tokens pipeline.TokenFinder, nfts pipeline.CollectionFinder, healths func() []guard.Health, hub *Hub) *Handlers {
	return &Handlers{
		pipeline: runner,
		expander: expander,
		taste:    taste,
		tokens:   tokens,
		nfts:     nfts,
		healths:  healths,
		hub:      hub,
	}
}

// NotFound handles unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusNotFound, "endpoint_not_found", "the requested endpoint does not exist", nil)
}

// Health reports server liveness and per-provider guard state. Always 200;
// degraded providers are data, not transport failures.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	providers := []guard.Health{}
	if h.healths != nil {
		providers = h.healths()
	}

	degraded := 0
	for _, p := range providers {
		if p.CircuitOpen {
			degraded++
		}
	}
	status := "ok"
	if degraded > 0 {
		status = "degraded"
	}

	writeSuccess(w, r, map[string]interface{}{
		"status":    status,
		"providers": providers,
	}, "")
}

// ProviderHealth reports one provider's guard state.
func (h *Handlers) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["provider"]
	if h.healths != nil {
		for _, p := range h.healths() {
			if p.Provider == name {
				writeSuccess(w, r, p, "")
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "unknown_provider",
		fmt.Sprintf("no provider named %q", name), nil)
}

type expandRequest struct {
	Theme    string `json:"theme"`
	UseCache *bool  `json:"use_cache,omitempty"`
}

// Expand runs theme expansion alone.
func (h *Handlers) Expand(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	theme := strings.TrimSpace(req.Theme)
	if theme == "" {
		writeError(w, http.StatusBadRequest, "missing_theme", "theme is required", nil)
		return
	}
	if len(theme) > maxVibeLength {
		writeError(w, http.StatusBadRequest, "theme_too_long",
			fmt.Sprintf("theme must be at most %d characters", maxVibeLength), nil)
		return
	}

	opts := llm.DefaultExpandOptions()
	if req.UseCache != nil {
		opts.UseCache = *req.UseCache
	}

	expansion, err := h.expander.ExpandTheme(r.Context(), theme, opts)
	if err != nil {
		// The model being down is an upstream condition, not a caller error.
		writeSuccess(w, r, nil, fmt.Sprintf("theme expansion unavailable: %v", err))
		return
	}
	writeSuccess(w, r, expansion, "")
}

type tasteRequest struct {
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories,omitempty"`
}

// Taste runs taste correlation alone.
func (h *Handlers) Taste(w http.ResponseWriter, r *http.Request) {
	var req tasteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	keywords := compactStrings(req.Keywords)
	if len(keywords) == 0 {
		writeError(w, http.StatusBadRequest, "missing_keywords", "at least one keyword is required", nil)
		return
	}

	result := h.taste.Correlate(r.Context(), keywords, req.Categories)
	writeSuccess(w, r, result, "")
}

type assetsRequest struct {
	Keywords      []string `json:"keywords"`
	IncludeTokens *bool    `json:"include_tokens,omitempty"`
	IncludeNFTs   *bool    `json:"include_nfts,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// Assets runs raw asset discovery without scoring.
func (h *Handlers) Assets(w http.ResponseWriter, r *http.Request) {
	var req assetsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	keywords := compactStrings(req.Keywords)
	if len(keywords) == 0 {
		writeError(w, http.StatusBadRequest, "missing_keywords", "at least one keyword is required", nil)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		writeError(w, http.StatusBadRequest, "limit_too_large", "limit must be at most 50", nil)
		return
	}

	includeTokens := req.IncludeTokens == nil || *req.IncludeTokens
	includeNFTs := req.IncludeNFTs == nil || *req.IncludeNFTs

	assets := []domain.NormalizedAsset{}
	if includeTokens {
		assets = append(assets, h.tokens.FindRelevantTokens(r.Context(), keywords, limit)...)
	}
	if includeNFTs {
		assets = append(assets, h.nfts.FindRelevantCollections(r.Context(), keywords, limit)...)
	}
	writeSuccess(w, r, assets, "")
}

type searchRequest struct {
	Vibe    string                `json:"vibe"`
	Options *domain.SearchOptions `json:"options,omitempty"`
}

// Search runs the full pipeline. The response is 200 even when the pipeline
// fails entirely; Processing.Errors carries the diagnostics.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	vibe, opts, errResp := h.parseSearch(r)
	if errResp != nil {
		errResp(w)
		return
	}

	result := h.pipeline.Run(r.Context(), vibe, opts)

	message := ""
	if len(result.Processing.Errors) > 0 && len(result.AssetMatches) == 0 && result.OverallScore == 0 {
		message = "analysis incomplete, see processing errors"
	}
	writeSuccess(w, r, result, message)
}

// defaultPortfolioSize is the simulated capital in USD when the caller
// supplies none.
const defaultPortfolioSize = 10_000.0

type simulateRequest struct {
	Vibe          string                `json:"vibe"`
	PortfolioSize float64               `json:"portfolio_size,omitempty"`
	RiskTolerance domain.RiskTolerance  `json:"risk_tolerance,omitempty"`
	TimeHorizon   string                `json:"time_horizon,omitempty"`
	Options       *domain.SearchOptions `json:"options,omitempty"`
}

// Simulate runs the pipeline and builds a hypothetical portfolio from the
// matches. The response carries both the full analysis and the simulation.
func (h *Handlers) Simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	if req.PortfolioSize < 0 {
		writeError(w, http.StatusBadRequest, "invalid_portfolio_size", "portfolio_size must be positive", nil)
		return
	}

	// Top-level fields override the nested options.
	options := domain.DefaultSearchOptions()
	if req.Options != nil {
		options = *req.Options
	}
	if req.RiskTolerance != "" {
		options.RiskTolerance = req.RiskTolerance
	}
	if req.TimeHorizon != "" {
		options.TimeHorizon = req.TimeHorizon
	}

	vibe, opts, errResp := validateSearch(req.Vibe, &options)
	if errResp != nil {
		errResp(w)
		return
	}

	size := req.PortfolioSize
	if size == 0 {
		size = defaultPortfolioSize
	}

	analysis := h.pipeline.Run(r.Context(), vibe, opts)
	portfolio := sim.BuildPortfolio(analysis.AssetMatches, opts.RiskTolerance)

	writeSuccess(w, r, map[string]interface{}{
		"analysis": analysis,
		"simulation": map[string]interface{}{
			"portfolio":      portfolio,
			"projections":    sim.Project(portfolio),
			"portfolio_size": size,
			"tolerance":      opts.RiskTolerance,
			"time_horizon":   opts.TimeHorizon,
		},
	}, "")
}

type backtestRequest struct {
	Assets        []domain.ScoredAsset `json:"assets"`
	StartDate     time.Time            `json:"start_date"`
	EndDate       time.Time            `json:"end_date"`
	InitialValue  float64              `json:"initial_value,omitempty"`
	RiskTolerance domain.RiskTolerance `json:"risk_tolerance,omitempty"`
}

// Backtest builds a portfolio from caller-supplied scored assets and walks it
// through a synthetic price history spanning the requested date range.
func (h *Handlers) Backtest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	if len(req.Assets) == 0 {
		writeError(w, http.StatusBadRequest, "missing_assets", "at least one scored asset is required", nil)
		return
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		writeError(w, http.StatusBadRequest, "missing_date_range", "start_date and end_date are required", nil)
		return
	}
	if !req.EndDate.After(req.StartDate) {
		writeError(w, http.StatusBadRequest, "invalid_date_range", "end_date must be after start_date", nil)
		return
	}

	tolerance := req.RiskTolerance
	switch tolerance {
	case "":
		tolerance = domain.ToleranceMedium
	case domain.ToleranceLow, domain.ToleranceMedium, domain.ToleranceHigh:
	default:
		writeError(w, http.StatusBadRequest, "invalid_risk_tolerance", "risk_tolerance must be low, medium or high", nil)
		return
	}

	days := int(req.EndDate.Sub(req.StartDate).Hours() / 24)
	portfolio := sim.BuildPortfolio(req.Assets, tolerance)
	backtest := sim.RunBacktest(portfolio, days, req.InitialValue)

	writeSuccess(w, r, map[string]interface{}{
		"portfolio":  portfolio,
		"backtest":   backtest,
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
		"tolerance":  tolerance,
	}, "")
}

func (h *Handlers) parseSearch(r *http.Request) (string, domain.SearchOptions, func(http.ResponseWriter)) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		return "", domain.SearchOptions{}, func(w http.ResponseWriter) {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		}
	}
	return validateSearch(req.Vibe, req.Options)
}

// validateSearch normalizes the vibe and merges caller options over the
// defaults, rejecting out-of-range values.
func validateSearch(vibe string, options *domain.SearchOptions) (string, domain.SearchOptions, func(http.ResponseWriter)) {
	badRequest := func(code, message string) func(http.ResponseWriter) {
		return func(w http.ResponseWriter) {
			writeError(w, http.StatusBadRequest, code, message, nil)
		}
	}

	vibe = strings.TrimSpace(vibe)
	if vibe == "" {
		return "", domain.SearchOptions{}, badRequest("missing_vibe", "vibe is required")
	}
	if len(vibe) > maxVibeLength {
		return "", domain.SearchOptions{}, badRequest("vibe_too_long",
			fmt.Sprintf("vibe must be at most %d characters", maxVibeLength))
	}

	opts := domain.DefaultSearchOptions()
	if options != nil {
		opts = *options
	}

	if opts.MaxAssets <= 0 {
		opts.MaxAssets = domain.DefaultSearchOptions().MaxAssets
	}
	if opts.MaxAssets > 50 {
		return "", domain.SearchOptions{}, badRequest("max_assets_too_large", "max_assets must be at most 50")
	}
	if opts.MinConfidence < 0 || opts.MinConfidence > 1 {
		return "", domain.SearchOptions{}, badRequest("invalid_min_confidence", "min_confidence must be between 0 and 1")
	}
	if !opts.IncludeTokens && !opts.IncludeNFTs {
		return "", domain.SearchOptions{}, badRequest("no_asset_types", "at least one of include_tokens or include_nfts must be true")
	}
	switch opts.RiskTolerance {
	case "":
		opts.RiskTolerance = domain.ToleranceMedium
	case domain.ToleranceLow, domain.ToleranceMedium, domain.ToleranceHigh:
	default:
		return "", domain.SearchOptions{}, badRequest("invalid_risk_tolerance", "risk_tolerance must be low, medium or high")
	}

	return vibe, opts, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// compactStrings drops blank entries into a fresh slice; the input is left
// untouched.
func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
