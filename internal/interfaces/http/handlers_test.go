package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibearb/vibearb/internal/config"
	"github.com/vibearb/vibearb/internal/domain"
	"github.com/vibearb/vibearb/internal/providers/guard"
	"github.com/vibearb/vibearb/internal/providers/llm"
)

type fakeRunner struct {
	result *domain.TrendResult
	vibe   string
	opts   domain.SearchOptions
}

func (f *fakeRunner) Run(ctx context.Context, vibe string, opts domain.SearchOptions) *domain.TrendResult {
	f.vibe = vibe
	f.opts = opts
	return f.result
}

type fakeExpander struct {
	expansion *domain.ThemeExpansion
	err       error
}

func (f *fakeExpander) Available() bool { return f.err == nil }

func (f *fakeExpander) ExpandTheme(ctx context.Context, theme string, opts llm.ExpandOptions) (*domain.ThemeExpansion, error) {
	return f.expansion, f.err
}

func (f *fakeExpander) SummarizeFindings(ctx context.Context, vibe string, assets []domain.ScoredAsset) (*domain.Recommendations, error) {
	return nil, errors.New("not used")
}

type fakeTaste struct {
	result   domain.TasteResult
	keywords []string
}

func (f *fakeTaste) Correlate(ctx context.Context, keywords, categories []string) domain.TasteResult {
	f.keywords = keywords
	return f.result
}

type fakeTokens struct{ assets []domain.NormalizedAsset }

func (f *fakeTokens) FindRelevantTokens(ctx context.Context, keywords []string, limit int) []domain.NormalizedAsset {
	return f.assets
}

type fakeNFTs struct{ assets []domain.NormalizedAsset }

func (f *fakeNFTs) FindRelevantCollections(ctx context.Context, keywords []string, limit int) []domain.NormalizedAsset {
	return f.assets
}

func goodResult() *domain.TrendResult {
	return &domain.TrendResult{
		OriginalVibe: "solarpunk optimism",
		AssetMatches: []domain.ScoredAsset{
			{
				Asset: domain.NormalizedAsset{ID: "solar-dao", Name: "SolarDAO", Type: domain.AssetTypeToken},
				Scores: domain.AssetScores{
					Relevance:  72,
					Confidence: 0.8,
					Risk:       domain.RiskAssessment{Level: domain.RiskMedium, Score: 35},
				},
			},
		},
		OverallScore: 68,
		Confidence:   0.75,
	}
}

func newTestServer(t *testing.T, runner TrendRunner) *Server {
	t.Helper()
	handlers := NewHandlers(
		runner,
		&fakeExpander{expansion: &domain.ThemeExpansion{OriginalTheme: "solarpunk", ExpandedKeywords: []string{"solarpunk"}, Confidence: 0.8}},
		&fakeTaste{result: domain.TasteResult{Source: "static"}},
		&fakeTokens{assets: []domain.NormalizedAsset{{ID: "solar-dao", Type: domain.AssetTypeToken}}},
		&fakeNFTs{},
		func() []guard.Health {
			return []guard.Health{{Provider: "market", CircuitOpen: false}}
		},
		NewHub(),
	)

	cfg := config.ServerConfig{
		Host: "127.0.0.1", Port: 0,
		ReadTimeout:  config.Duration(5 * time.Second),
		WriteTimeout: config.Duration(5 * time.Second),
		IdleTimeout:  config.Duration(5 * time.Second),
		CORSOrigins:  []string{"*"},
	}
	return NewServer(cfg, handlers)
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestSearch_HappyPath(t *testing.T) {
	runner := &fakeRunner{result: goodResult()}
	server := newTestServer(t, runner)

	rec := doJSON(t, server, http.MethodPost, "/api/search", map[string]interface{}{
		"vibe": "solarpunk optimism",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "solarpunk optimism", data["original_vibe"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "solarpunk optimism", runner.vibe)
	assert.Equal(t, 10, runner.opts.MaxAssets, "defaults applied when options omitted")
}

func TestSearch_MissingVibe(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodPost, "/api/search", map[string]interface{}{})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "missing_vibe", errObj["code"])
	assert.Equal(t, float64(http.StatusBadRequest), errObj["statusCode"])
}

func TestSearch_PipelineFailureStillOK(t *testing.T) {
	failed := &domain.TrendResult{
		OriginalVibe: "solarpunk optimism",
		Processing:   domain.ProcessingInfo{Errors: []string{"theme_expansion: llm provider has no credentials"}},
	}
	server := newTestServer(t, &fakeRunner{result: failed})

	rec := doJSON(t, server, http.MethodPost, "/api/search", map[string]interface{}{
		"vibe": "solarpunk optimism",
	})

	require.Equal(t, http.StatusOK, rec.Code, "pipeline failure is data, not a transport error")
	envelope := decodeEnvelope(t, rec)
	assert.Contains(t, envelope["message"], "analysis incomplete")
}

func TestSearch_InvalidOptions(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	tests := []struct {
		name string
		opts map[string]interface{}
		code string
	}{
		{"max assets", map[string]interface{}{"max_assets": 100, "include_tokens": true, "min_confidence": 0.3, "risk_tolerance": "medium"}, "max_assets_too_large"},
		{"confidence", map[string]interface{}{"max_assets": 10, "include_tokens": true, "min_confidence": 1.5, "risk_tolerance": "medium"}, "invalid_min_confidence"},
		{"no types", map[string]interface{}{"max_assets": 10, "min_confidence": 0.3, "risk_tolerance": "medium"}, "no_asset_types"},
		{"tolerance", map[string]interface{}{"max_assets": 10, "include_tokens": true, "min_confidence": 0.3, "risk_tolerance": "yolo"}, "invalid_risk_tolerance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, server, http.MethodPost, "/api/search", map[string]interface{}{
				"vibe":    "solarpunk",
				"options": tt.opts,
			})
			require.Equal(t, http.StatusBadRequest, rec.Code)
			envelope := decodeEnvelope(t, rec)
			assert.Equal(t, tt.code, envelope["error"].(map[string]interface{})["code"])
		})
	}
}

func TestExpand(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodPost, "/api/expand", map[string]interface{}{"theme": "solarpunk"})
	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "solarpunk", data["original_theme"])

	rec = doJSON(t, server, http.MethodPost, "/api/expand", map[string]interface{}{"theme": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaste_RequiresKeywords(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodPost, "/api/taste", map[string]interface{}{"keywords": []string{" "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/taste", map[string]interface{}{"keywords": []string{"solarpunk"}})
	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "static", envelope["data"].(map[string]interface{})["source"])
}

func TestAssets_LimitValidation(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodPost, "/api/assets", map[string]interface{}{
		"keywords": []string{"solarpunk"}, "limit": 99,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/assets", map[string]interface{}{
		"keywords": []string{"solarpunk"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Len(t, envelope["data"], 1)
}

func TestSimulate_ReturnsAnalysisAndPortfolio(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodPost, "/api/simulate", map[string]interface{}{
		"vibe":           "solarpunk optimism",
		"portfolio_size": 5000,
		"risk_tolerance": "high",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})

	analysis := data["analysis"].(map[string]interface{})
	assert.Equal(t, "solarpunk optimism", analysis["original_vibe"])

	simulation := data["simulation"].(map[string]interface{})
	assert.Equal(t, float64(5000), simulation["portfolio_size"])
	assert.Equal(t, "high", simulation["tolerance"])

	portfolio := simulation["portfolio"].(map[string]interface{})
	positions := portfolio["positions"].([]interface{})
	require.Len(t, positions, 1)

	total := 0.0
	for _, p := range positions {
		total += p.(map[string]interface{})["allocation_pct"].(float64)
	}
	assert.InDelta(t, 100, total, 0.01)
}

func TestBacktest_IncludesSeries(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodPost, "/api/simulate/backtest", map[string]interface{}{
		"assets":        goodResult().AssetMatches,
		"start_date":    "2026-06-01T00:00:00Z",
		"end_date":      "2026-07-01T00:00:00Z",
		"initial_value": 5000,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	backtest := envelope["data"].(map[string]interface{})["backtest"].(map[string]interface{})
	assert.Equal(t, float64(30), backtest["days"])
	assert.Equal(t, float64(5000), backtest["initial_value"])
	assert.Len(t, backtest["series"], 31)
}

func TestBacktest_Validation(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	tests := []struct {
		name string
		body map[string]interface{}
		code string
	}{
		{"no assets", map[string]interface{}{
			"start_date": "2026-06-01T00:00:00Z", "end_date": "2026-07-01T00:00:00Z",
		}, "missing_assets"},
		{"no dates", map[string]interface{}{
			"assets": goodResult().AssetMatches,
		}, "missing_date_range"},
		{"inverted range", map[string]interface{}{
			"assets":     goodResult().AssetMatches,
			"start_date": "2026-07-01T00:00:00Z", "end_date": "2026-06-01T00:00:00Z",
		}, "invalid_date_range"},
		{"bad tolerance", map[string]interface{}{
			"assets":     goodResult().AssetMatches,
			"start_date": "2026-06-01T00:00:00Z", "end_date": "2026-07-01T00:00:00Z",
			"risk_tolerance": "yolo",
		}, "invalid_risk_tolerance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, server, http.MethodPost, "/api/simulate/backtest", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			envelope := decodeEnvelope(t, rec)
			assert.Equal(t, tt.code, envelope["error"].(map[string]interface{})["code"])
		})
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.Len(t, data["providers"], 1)
}

func TestTaste_BlankKeywordsDroppedBeforeCorrelate(t *testing.T) {
	taste := &fakeTaste{result: domain.TasteResult{Source: "static"}}
	handlers := NewHandlers(
		&fakeRunner{result: goodResult()},
		&fakeExpander{expansion: &domain.ThemeExpansion{OriginalTheme: "solarpunk"}},
		taste, &fakeTokens{}, &fakeNFTs{}, nil, NewHub(),
	)
	cfg := config.ServerConfig{
		Host: "127.0.0.1", Port: 0,
		ReadTimeout:  config.Duration(5 * time.Second),
		WriteTimeout: config.Duration(5 * time.Second),
		IdleTimeout:  config.Duration(5 * time.Second),
		CORSOrigins:  []string{"*"},
	}
	server := NewServer(cfg, handlers)

	sent := []string{"", "solarpunk", "", "art"}
	rec := doJSON(t, server, http.MethodPost, "/api/taste", map[string]interface{}{
		"keywords": sent,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"solarpunk", "art"}, taste.keywords,
		"blanks must be dropped without duplicating survivors")
}

func TestCompactStrings_LeavesInputIntact(t *testing.T) {
	in := []string{"", "solarpunk", "", "art"}
	out := compactStrings(in)

	assert.Equal(t, []string{"solarpunk", "art"}, out)
	assert.Equal(t, []string{"", "solarpunk", "", "art"}, in)
}

func TestProviderHealth(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodGet, "/api/market/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "market", data["provider"])
	assert.Equal(t, false, data["circuit_open"])

	rec = doJSON(t, server, http.MethodGet, "/api/nonesuch/health", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	envelope = decodeEnvelope(t, rec)
	assert.Equal(t, "unknown_provider", envelope["error"].(map[string]interface{})["code"])
}

func TestSimulate_IncludesProjections(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodPost, "/api/simulate", map[string]interface{}{
		"vibe": "solarpunk optimism",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	simulation := envelope["data"].(map[string]interface{})["simulation"].(map[string]interface{})
	projections := simulation["projections"].(map[string]interface{})
	assert.Greater(t, projections["volatility_pct"].(float64), 0.0)
	assert.Len(t, projections["correlations"], 1)
}

func TestNotFound(t *testing.T) {
	server := newTestServer(t, &fakeRunner{result: goodResult()})

	rec := doJSON(t, server, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "endpoint_not_found", envelope["error"].(map[string]interface{})["code"])
}
