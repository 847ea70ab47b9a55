package cache

import (
	"path"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Memory is an in-process Store with per-entry TTL, capacity-based eviction
// and a background sweep. It starts empty and is rebuilt from live traffic;
// nothing is persisted.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*memEntry
	maxEntries int
	stats      memStats

	stopOnce sync.Once
	stopCh   chan struct{}
}

type memEntry struct {
	value    interface{}
	expires  time.Time
	inserted time.Time
}

type memStats struct {
	hits      int64
	misses    int64
	evictions int64
	sweeps    int64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries   int     `json:"entries"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
}

// NewMemory creates a memory store capped at maxEntries. The sweep goroutine
// removes expired entries every sweepInterval; lazy expiry on read still
// applies between sweeps.
func NewMemory(maxEntries int, sweepInterval time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	m := &Memory{
		entries:    make(map[string]*memEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go m.sweep(sweepInterval)
	return m
}

// Get retrieves a value if present and unexpired. An expired entry is
// deleted on the spot so stale data is never returned between sweeps.
func (m *Memory) Get(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		m.stats.misses++
		return nil, false
	}
	if time.Now().After(entry.expires) {
		delete(m.entries, key)
		m.stats.misses++
		return nil, false
	}
	m.stats.hits++
	return entry.value, true
}

// Set stores value under key for ttl, evicting the oldest 10% of entries by
// insertion time when the store is full.
func (m *Memory) Set(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}

	now := time.Now()
	m.entries[key] = &memEntry{
		value:    value,
		expires:  now.Add(ttl),
		inserted: now,
	}
}

// Has reports whether key holds an unexpired value.
func (m *Memory) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// GetOrSet returns the cached value, calling factory only on a miss.
func (m *Memory) GetOrSet(key string, factory func() (interface{}, error), ttl time.Duration) (interface{}, error) {
	if value, ok := m.Get(key); ok {
		return value, nil
	}
	value, err := factory()
	if err != nil {
		return nil, err
	}
	m.Set(key, value, ttl)
	return value, nil
}

// MGet returns values for keys in order, nil where absent.
func (m *Memory) MGet(keys []string) []interface{} {
	values := make([]interface{}, len(keys))
	for i, key := range keys {
		if value, ok := m.Get(key); ok {
			values[i] = value
		}
	}
	return values
}

// MSet stores every pair with the same ttl.
func (m *Memory) MSet(pairs map[string]interface{}, ttl time.Duration) {
	for key, value := range pairs {
		m.Set(key, value, ttl)
	}
}

// Keys returns unexpired keys matching pattern (`*` wildcard; empty matches
// all), sorted for deterministic output.
func (m *Memory) Keys(pattern string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var keys []string
	for key, entry := range m.entries {
		if now.After(entry.expires) {
			continue
		}
		if pattern == "" || matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// DeleteByPattern removes all keys matching pattern.
func (m *Memory) DeleteByPattern(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		if matchPattern(pattern, key) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of cache counters.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.stats.hits + m.stats.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(m.stats.hits) / float64(total)
	}
	return Stats{
		Entries:   len(m.entries),
		Hits:      m.stats.hits,
		Misses:    m.stats.misses,
		Evictions: m.stats.evictions,
		HitRatio:  ratio,
	}
}

// Stop halts the sweep goroutine. Safe to call more than once.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// evictOldest drops the oldest 10% of entries by insertion time. Caller must
// hold the write lock.
func (m *Memory) evictOldest() {
	type aged struct {
		key      string
		inserted time.Time
	}
	all := make([]aged, 0, len(m.entries))
	for key, entry := range m.entries {
		all = append(all, aged{key: key, inserted: entry.inserted})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].inserted.Before(all[j].inserted) })

	count := len(all) / 10
	if count < 1 {
		count = 1
	}
	for _, candidate := range all[:count] {
		delete(m.entries, candidate.key)
		m.stats.evictions++
	}

	log.Debug().Int("evicted", count).Int("remaining", len(m.entries)).Msg("Cache capacity eviction")
}

func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, entry := range m.entries {
		if now.After(entry.expires) {
			delete(m.entries, key)
		}
	}
	m.stats.sweeps++
}

// matchPattern reports whether key matches a `*`-wildcard pattern.
func matchPattern(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
