package taste

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/config"
	"github.com/vibearb/vibearb/internal/domain"
	"github.com/vibearb/vibearb/internal/providers/guard"
)

type fakeReconstructor struct {
	available bool
	result    *domain.TasteResult
	err       error
	calls     int
}

func (f *fakeReconstructor) Available() bool { return f.available }

func (f *fakeReconstructor) ReconstructTaste(ctx context.Context, keywords, categories []string) (*domain.TasteResult, error) {
	f.calls++
	return f.result, f.err
}

func testConfig(t *testing.T, baseURL string, withKey bool) config.ProviderConfig {
	t.Helper()
	keyEnv := "TASTE_UNSET_KEY"
	if withKey {
		keyEnv = "TASTE_TEST_KEY"
		t.Setenv(keyEnv, "test-key")
	}
	return config.ProviderConfig{
		BaseURL:   baseURL,
		APIKeyEnv: keyEnv,
		RPS:       100,
		Burst:     100,
		TimeoutMS: 2000,
		TTLClass:  "medium",
		Circuit: config.CircuitConfig{
			FailureThreshold: 10,
			Interval:         config.Duration(time.Minute),
			Timeout:          config.Duration(time.Minute),
		},
		Enabled: true,
	}
}

func newTestAdapter(t *testing.T, handler http.Handler, withKey bool, rec Reconstructor) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := cache.NewMemory(100, time.Minute)
	t.Cleanup(store.Stop)

	cfg := testConfig(t, server.URL, withKey)
	return New(cfg, guard.New("taste", cfg, store), store, rec)
}

func tasteStub(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"name": "Studio Ghibli", "type": "film", "popularity": 0.9,
					"properties": map[string]interface{}{
						"demographic": "millennials", "affinity": 0.8, "trending": 0.6,
					},
				},
				{
					"name": "Cottagecore", "type": "aesthetic", "popularity": 0.7,
					"properties": map[string]interface{}{
						"demographic": "gen-z", "affinity": 0.75, "trending": 0.9,
					},
				},
			},
		})
	})
	return mux
}

func TestCorrelate_APITier(t *testing.T) {
	adapter := newTestAdapter(t, tasteStub(t), true, nil)

	result := adapter.Correlate(context.Background(), []string{"solarpunk"}, []string{"art"})

	assert.Equal(t, SourceAPI, result.Source)
	require.Len(t, result.Correlations, 2)
	assert.Equal(t, "Studio Ghibli", result.Correlations[0].Item)
	assert.InDelta(t, 90, result.Correlations[0].RelevanceScore, 0.001)
	assert.InDelta(t, 0.8, result.Correlations[0].ConfidenceLevel, 0.001)
	assert.ElementsMatch(t, []string{"millennials", "gen-z"}, result.Profile.Demographics)
}

func TestCorrelate_FallsBackToLLM(t *testing.T) {
	rec := &fakeReconstructor{
		available: true,
		result: &domain.TasteResult{
			Correlations: []domain.TasteCorrelation{{Item: "Ghibli", RelevanceScore: 80, ConfidenceLevel: 0.6}},
			Source:       SourceLLM,
		},
	}
	broken := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	adapter := newTestAdapter(t, broken, true, rec)

	result := adapter.Correlate(context.Background(), []string{"solarpunk"}, nil)

	assert.Equal(t, SourceLLM, result.Source)
	assert.Equal(t, 1, rec.calls)
}

func TestCorrelate_StaticTierNeverFails(t *testing.T) {
	rec := &fakeReconstructor{available: true, err: errors.New("model down")}
	broken := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	adapter := newTestAdapter(t, broken, true, rec)

	result := adapter.Correlate(context.Background(), []string{"solarpunk", "cottagecore"}, []string{"art"})

	assert.Equal(t, SourceStatic, result.Source)
	require.Len(t, result.Correlations, 2)
	for _, c := range result.Correlations {
		assert.InDelta(t, staticConfidence, c.ConfidenceLevel, 0.001)
		assert.InDelta(t, 50, c.RelevanceScore, 0.001)
	}
}

func TestCorrelate_NoKeySkipsStraightToFallback(t *testing.T) {
	called := false
	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	adapter := newTestAdapter(t, stub, false, nil)

	result := adapter.Correlate(context.Background(), []string{"solarpunk"}, nil)

	assert.Equal(t, SourceStatic, result.Source)
	assert.False(t, called, "a keyless adapter must not hit the upstream")
}

func TestCorrelate_CachesResult(t *testing.T) {
	calls := 0
	stub := tasteStub(t)
	counting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		stub.ServeHTTP(w, r)
	})
	adapter := newTestAdapter(t, counting, true, nil)

	ctx := context.Background()
	adapter.Correlate(ctx, []string{"solarpunk"}, []string{"art"})
	after := calls
	adapter.Correlate(ctx, []string{"solarpunk"}, []string{"art"})

	assert.Equal(t, after, calls, "second identical correlation must hit the cache")
}

func TestCorrelate_UnreconstructedLLMTierSkipped(t *testing.T) {
	rec := &fakeReconstructor{available: false}
	broken := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	adapter := newTestAdapter(t, broken, true, rec)

	result := adapter.Correlate(context.Background(), []string{"solarpunk"}, nil)

	assert.Equal(t, SourceStatic, result.Source)
	assert.Zero(t, rec.calls)
}
