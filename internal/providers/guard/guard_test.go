package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/config"
)

func testGuard(t *testing.T, handler http.HandlerFunc, threshold uint32) (*Guard, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := cache.NewMemory(100, time.Minute)
	t.Cleanup(store.Stop)

	cfg := config.ProviderConfig{
		RPS:       100,
		Burst:     100,
		TimeoutMS: 2000,
		TTLClass:  "short",
		Circuit: config.CircuitConfig{
			FailureThreshold: threshold,
			Interval:         config.Duration(time.Minute),
			Timeout:          config.Duration(time.Minute),
		},
	}
	return New("test", cfg, store), server
}

func get(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestDo_CachesSuccessfulResponses(t *testing.T) {
	calls := 0
	g, server := testGuard(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"ok":true}`))
	}, 3)

	ctx := context.Background()
	first, err := g.Do(ctx, "key", get(t, server.URL))
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := g.Do(ctx, "key", get(t, server.URL))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Data, second.Data)

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), g.APICalls(), "cache hits do not count as upstream calls")
}

func TestDo_EmptyKeySkipsCache(t *testing.T) {
	calls := 0
	g, server := testGuard(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{}`))
	}, 3)

	ctx := context.Background()
	_, err := g.Do(ctx, "", get(t, server.URL))
	require.NoError(t, err)
	_, err = g.Do(ctx, "", get(t, server.URL))
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestDo_NonSuccessStatusIsProviderError(t *testing.T) {
	g, server := testGuard(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}, 10)

	_, err := g.Do(context.Background(), "key", get(t, server.URL))
	require.Error(t, err)

	providerErr, ok := err.(*ProviderError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, providerErr.StatusCode)
	assert.Equal(t, "test", providerErr.Provider)
}

func TestDo_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	g, server := testGuard(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}, 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := g.Do(ctx, "", get(t, server.URL))
		require.Error(t, err)
	}

	assert.True(t, g.Health().CircuitOpen)

	_, err := g.Do(ctx, "", get(t, server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestHealth_Snapshot(t *testing.T) {
	g, server := testGuard(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, 3)

	_, err := g.Do(context.Background(), "", get(t, server.URL))
	require.NoError(t, err)

	health := g.Health()
	assert.Equal(t, "test", health.Provider)
	assert.False(t, health.CircuitOpen)
	assert.Equal(t, int64(1), health.APICalls)
}
