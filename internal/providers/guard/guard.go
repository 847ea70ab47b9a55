// Package guard wraps upstream provider calls with rate limiting, circuit
// breaking, response caching and per-call timeouts. Every adapter routes its
// HTTP traffic through one Guard instance.
package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/config"
	"github.com/vibearb/vibearb/internal/metrics"
)

// ErrRateLimited is returned when the provider's token bucket is exhausted
// and the context deadline does not allow waiting.
var ErrRateLimited = errors.New("provider rate limit exceeded")

// ProviderError carries provider identity and status for a failed call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s error: %s", e.Provider, e.Message)
}

// Response is the cached, byte-level result of a guarded call.
type Response struct {
	Data       []byte
	StatusCode int
	Cached     bool
}

// Guard applies rate limiting, circuit breaking and caching around one
// provider's HTTP calls.
type Guard struct {
	name     string
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	store    cache.Store
	client   *http.Client
	ttl      time.Duration
	apiCalls int64
}

// New creates a guard for the named provider from its config.
func New(name string, cfg config.ProviderConfig, store cache.Store) *Guard {
	settings := gobreaker.Settings{
		Name:     name,
		Interval: cfg.Circuit.Interval.Std(),
		Timeout:  cfg.Circuit.Timeout.Std(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Circuit.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit state change")
		},
	}

	return &Guard{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		store:   store,
		client:  &http.Client{Timeout: cfg.Timeout()},
		ttl:     ttlForClass(cfg.TTLClass),
	}
}

// TTL returns the guard's cache lifetime for normalized adapter output.
func (g *Guard) TTL() time.Duration { return g.ttl }

// APICalls returns the number of upstream calls actually issued (cache hits
// excluded).
func (g *Guard) APICalls() int64 { return atomic.LoadInt64(&g.apiCalls) }

// Do executes an HTTP request through the guard. Responses with 2xx status
// are cached under cacheKey for the guard's TTL class; a cache hit skips the
// upstream entirely. Non-2xx statuses and transport errors count against the
// circuit breaker.
func (g *Guard) Do(ctx context.Context, cacheKey string, req *http.Request) (*Response, error) {
	if cacheKey != "" {
		if cached, ok := g.store.Get("guard:" + g.name + ":" + cacheKey); ok {
			if data, ok := cached.([]byte); ok {
				metrics.ProviderCacheHits.WithLabelValues(g.name).Inc()
				return &Response{Data: data, StatusCode: http.StatusOK, Cached: true}, nil
			}
		}
		metrics.ProviderCacheMisses.WithLabelValues(g.name).Inc()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, g.name)
	}

	start := time.Now()
	result, err := g.breaker.Execute(func() (interface{}, error) {
		atomic.AddInt64(&g.apiCalls, 1)
		metrics.ProviderCalls.WithLabelValues(g.name).Inc()

		resp, err := g.client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, &ProviderError{Provider: g.name, Message: err.Error()}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &ProviderError{Provider: g.name, Message: "failed to read response body"}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &ProviderError{Provider: g.name, StatusCode: resp.StatusCode, Message: "upstream error"}
		}
		return &Response{Data: body, StatusCode: resp.StatusCode}, nil
	})
	metrics.ProviderLatency.WithLabelValues(g.name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProviderErrors.WithLabelValues(g.name).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ProviderError{Provider: g.name, Message: "circuit breaker open"}
		}
		return nil, err
	}

	resp := result.(*Response)
	if cacheKey != "" {
		g.store.Set("guard:"+g.name+":"+cacheKey, resp.Data, g.ttl)
	}
	return resp, nil
}

// Health summarizes the guard's current state for health endpoints.
type Health struct {
	Provider    string `json:"provider"`
	CircuitOpen bool   `json:"circuit_open"`
	APICalls    int64  `json:"api_calls"`
}

// Health returns the guard's health snapshot.
func (g *Guard) Health() Health {
	return Health{
		Provider:    g.name,
		CircuitOpen: g.breaker.State() == gobreaker.StateOpen,
		APICalls:    g.APICalls(),
	}
}

func ttlForClass(class string) time.Duration {
	switch class {
	case "short":
		return cache.TTLShort
	case "long":
		return cache.TTLLong
	default:
		return cache.TTLMedium
	}
}
