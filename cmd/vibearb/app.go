package main

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/vibearb/vibearb/internal/cache"
	"github.com/vibearb/vibearb/internal/config"
	apihttp "github.com/vibearb/vibearb/internal/interfaces/http"
	"github.com/vibearb/vibearb/internal/pipeline"
	"github.com/vibearb/vibearb/internal/providers/guard"
	"github.com/vibearb/vibearb/internal/providers/llm"
	"github.com/vibearb/vibearb/internal/providers/market"
	"github.com/vibearb/vibearb/internal/providers/nft"
	"github.com/vibearb/vibearb/internal/providers/social"
	"github.com/vibearb/vibearb/internal/providers/taste"
	"github.com/vibearb/vibearb/internal/scoring"
)

// app is the fully wired dependency graph shared by every subcommand.
type app struct {
	cfg      *config.Config
	store    *cache.Memory
	orch     *pipeline.Orchestrator
	hub      *apihttp.Hub
	handlers *apihttp.Handlers
	guards   []*guard.Guard
}

// buildApp loads configuration and constructs every adapter, the pipeline and
// the HTTP handlers.
func buildApp(configPath string) (*app, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	store := cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.SweepInterval.Std())

	var results cache.ResultStore = cache.NewMemoryResultStore(store)
	if cfg.Cache.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		results = cache.NewRedisResultStore(client)
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Using Redis result cache")
	}

	providerCfg := func(name string) (config.ProviderConfig, error) {
		pc, ok := cfg.Providers[name]
		if !ok {
			return config.ProviderConfig{}, fmt.Errorf("provider %q missing from config", name)
		}
		return pc, nil
	}

	var guards []*guard.Guard
	newGuard := func(name string, pc config.ProviderConfig) *guard.Guard {
		g := guard.New(name, pc, store)
		guards = append(guards, g)
		return g
	}

	llmCfg, err := providerCfg("llm")
	if err != nil {
		return nil, err
	}
	llmAdapter := llm.New(llmCfg, newGuard("llm", llmCfg), store)

	tasteCfg, err := providerCfg("taste")
	if err != nil {
		return nil, err
	}
	tasteAdapter := taste.New(tasteCfg, newGuard("taste", tasteCfg), store, llmAdapter)

	filler := scoring.NewPseudoFiller(time.Now().UnixNano())

	marketCfg, err := providerCfg("market")
	if err != nil {
		return nil, err
	}
	marketAdapter := market.New(marketCfg, newGuard("market", marketCfg), store, filler)

	nftCfg, err := providerCfg("nft")
	if err != nil {
		return nil, err
	}
	nftAdapter := nft.New(nftCfg, newGuard("nft", nftCfg), store, filler)

	var platforms []social.Platform
	if twitterCfg, ok := cfg.Providers["twitter"]; ok && twitterCfg.Enabled {
		platforms = append(platforms, social.NewTwitterClient(twitterCfg, newGuard("twitter", twitterCfg)))
	}
	if farcasterCfg, ok := cfg.Providers["farcaster"]; ok && farcasterCfg.Enabled {
		platforms = append(platforms, social.NewFarcasterClient(farcasterCfg, newGuard("farcaster", farcasterCfg)))
	}
	socialAdapter := social.New(platforms, store, cache.TTLShort)

	hub := apihttp.NewHub()

	orch := pipeline.New(cfg.Pipeline, pipeline.Deps{
		LLM:     llmAdapter,
		Taste:   tasteAdapter,
		Social:  socialAdapter,
		Tokens:  marketAdapter,
		NFTs:    nftAdapter,
		Results: results,
		Guards:  guards,
	}, pipeline.WithProgress(hub.Broadcast))

	healths := func() []guard.Health {
		out := make([]guard.Health, 0, len(guards))
		for _, g := range guards {
			out = append(out, g.Health())
		}
		return out
	}

	handlers := apihttp.NewHandlers(orch, llmAdapter, tasteAdapter, marketAdapter, nftAdapter, healths, hub)

	return &app{
		cfg:      cfg,
		store:    store,
		orch:     orch,
		hub:      hub,
		handlers: handlers,
		guards:   guards,
	}, nil
}

// Close releases background resources.
func (a *app) Close() {
	a.store.Stop()
}
