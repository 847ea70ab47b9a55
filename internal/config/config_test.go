package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Contains(t, cfg.Providers, "llm")
	assert.Contains(t, cfg.Providers, "taste")
	assert.Contains(t, cfg.Providers, "market")
	assert.Contains(t, cfg.Providers, "nft")
	assert.Contains(t, cfg.Providers, "twitter")
	assert.Contains(t, cfg.Providers, "farcaster")
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vibearb.yaml")
	content := `
server:
  port: 9090
cache:
  backend: redis
  redis_addr: localhost:6379
  max_entries: 500
pipeline:
  result_ttl_success: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.ResultTTLSuccess.Std())

	// Untouched sections keep their defaults.
	assert.Equal(t, 4, cfg.Pipeline.MaxSocialKeywords)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisAddr = "" }},
		{"bad ttl class", func(c *Config) {
			p := c.Providers["market"]
			p.TTLClass = "forever"
			c.Providers["market"] = p
		}},
		{"zero rps", func(c *Config) {
			p := c.Providers["llm"]
			p.RPS = 0
			c.Providers["llm"] = p
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestProviderConfig_APIKey(t *testing.T) {
	t.Setenv("VIBEARB_TEST_KEY", "sekrit")

	withKey := ProviderConfig{APIKeyEnv: "VIBEARB_TEST_KEY"}
	assert.Equal(t, "sekrit", withKey.APIKey())

	unset := ProviderConfig{APIKeyEnv: "VIBEARB_TEST_MISSING"}
	assert.Empty(t, unset.APIKey())
}

func TestProviderConfig_TimeoutFloor(t *testing.T) {
	assert.Equal(t, 15*time.Second, ProviderConfig{}.Timeout())
	assert.Equal(t, 2*time.Second, ProviderConfig{TimeoutMS: 2000}.Timeout())
}
