package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete vibearb configuration, loaded from YAML with
// environment-variable indirection for secrets.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Cache     CacheConfig               `yaml:"cache"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Pipeline  PipelineConfig            `yaml:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
	CORSOrigins  []string `yaml:"cors_origins"`
}

// CacheConfig selects and sizes the cache backend.
type CacheConfig struct {
	Backend       string   `yaml:"backend"` // memory | redis
	MaxEntries    int      `yaml:"max_entries"`
	SweepInterval Duration `yaml:"sweep_interval"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisDB       int      `yaml:"redis_db"`
}

// ProviderConfig configures one upstream data provider. APIKeyEnv names the
// environment variable holding the credential; an empty or unset variable
// puts the adapter in fallback-only mode (hard error for the LLM provider
// only, enforced by the pipeline).
type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Model     string        `yaml:"model,omitempty"` // LLM provider only
	RPS       float64       `yaml:"rps"`
	Burst     int           `yaml:"burst"`
	TimeoutMS int           `yaml:"timeout_ms"`
	TTLClass  string        `yaml:"ttl_class"` // short | medium | long
	Circuit   CircuitConfig `yaml:"circuit"`
	Enabled   bool          `yaml:"enabled"`
}

// CircuitConfig configures a provider's circuit breaker.
type CircuitConfig struct {
	FailureThreshold uint32   `yaml:"failure_threshold"`
	Interval         Duration `yaml:"interval"`
	Timeout          Duration `yaml:"timeout"`
}

// PipelineConfig holds orchestration defaults.
type PipelineConfig struct {
	MaxSocialKeywords   int      `yaml:"max_social_keywords"`   // vibe + top N expanded keywords
	MaxConcurrentSocial int      `yaml:"max_concurrent_social"` // social fan-out bound
	ResultTTLSuccess    Duration `yaml:"result_ttl_success"`
	ResultTTLFailure    Duration `yaml:"result_ttl_failure"`
}

// Duration wraps time.Duration with YAML string parsing ("30s", "5m").
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// APIKey resolves the provider's credential from the environment. Empty
// means fallback-only mode.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Timeout returns the per-call HTTP timeout with a sane floor.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutMS <= 0 {
		return 15 * time.Second
	}
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// Load reads and validates configuration from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3001,
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(60 * time.Second),
			IdleTimeout:  Duration(90 * time.Second),
			CORSOrigins:  []string{"http://localhost:3000"},
		},
		Cache: CacheConfig{
			Backend:       "memory",
			MaxEntries:    1000,
			SweepInterval: Duration(time.Minute),
		},
		Providers: map[string]ProviderConfig{
			"llm": {
				BaseURL:   "https://api.openai.com/v1",
				APIKeyEnv: "OPENAI_API_KEY",
				Model:     "gpt-4o-mini",
				RPS:       2,
				Burst:     4,
				TimeoutMS: 30000,
				TTLClass:  "long",
				Circuit:   defaultCircuit(),
				Enabled:   true,
			},
			"taste": {
				BaseURL:   "https://hackathon.api.qloo.com",
				APIKeyEnv: "QLOO_API_KEY",
				RPS:       2,
				Burst:     4,
				TimeoutMS: 15000,
				TTLClass:  "medium",
				Circuit:   defaultCircuit(),
				Enabled:   true,
			},
			"market": {
				BaseURL:   "https://api.coingecko.com/api/v3",
				APIKeyEnv: "COINGECKO_API_KEY",
				RPS:       1,
				Burst:     3,
				TimeoutMS: 15000,
				TTLClass:  "medium",
				Circuit:   defaultCircuit(),
				Enabled:   true,
			},
			"nft": {
				BaseURL:   "https://api.opensea.io/api/v2",
				APIKeyEnv: "OPENSEA_API_KEY",
				RPS:       1,
				Burst:     2,
				TimeoutMS: 15000,
				TTLClass:  "medium",
				Circuit:   defaultCircuit(),
				Enabled:   true,
			},
			"twitter": {
				BaseURL:   "https://api.twitter.com/2",
				APIKeyEnv: "TWITTER_BEARER_TOKEN",
				RPS:       1,
				Burst:     2,
				TimeoutMS: 10000,
				TTLClass:  "short",
				Circuit:   defaultCircuit(),
				Enabled:   true,
			},
			"farcaster": {
				BaseURL:   "https://api.neynar.com/v2",
				APIKeyEnv: "NEYNAR_API_KEY",
				RPS:       2,
				Burst:     4,
				TimeoutMS: 10000,
				TTLClass:  "short",
				Circuit:   defaultCircuit(),
				Enabled:   true,
			},
		},
		Pipeline: PipelineConfig{
			MaxSocialKeywords:   4,
			MaxConcurrentSocial: 4,
			ResultTTLSuccess:    Duration(30 * time.Minute),
			ResultTTLFailure:    Duration(5 * time.Minute),
		},
	}
}

func defaultCircuit() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 3,
		Interval:         Duration(60 * time.Second),
		Timeout:          Duration(60 * time.Second),
	}
}

// Validate ensures the configuration is consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend redis requires redis_addr")
		}
	default:
		return fmt.Errorf("cache backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be positive, got %d", c.Cache.MaxEntries)
	}

	for name, provider := range c.Providers {
		if err := provider.validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}

	if c.Pipeline.MaxSocialKeywords <= 0 {
		return fmt.Errorf("pipeline max_social_keywords must be positive")
	}
	if c.Pipeline.MaxConcurrentSocial <= 0 {
		return fmt.Errorf("pipeline max_concurrent_social must be positive")
	}
	return nil
}

func (p ProviderConfig) validate() error {
	if !p.Enabled {
		return nil
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %f", p.RPS)
	}
	if p.Burst <= 0 {
		return fmt.Errorf("burst must be positive, got %d", p.Burst)
	}
	switch p.TTLClass {
	case "short", "medium", "long":
	default:
		return fmt.Errorf("ttl_class must be short, medium or long, got %q", p.TTLClass)
	}
	return nil
}
