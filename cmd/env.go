package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolver-cli/internal/config"
	"github.com/sells-group/resolver-cli/internal/cost"
	"github.com/sells-group/resolver-cli/internal/research"
	"github.com/sells-group/resolver-cli/internal/resilience"
	"github.com/sells-group/resolver-cli/internal/resolver"
	"github.com/sells-group/resolver-cli/internal/store"
	"github.com/sells-group/resolver-cli/pkg/anthropic"
	"github.com/sells-group/resolver-cli/pkg/jina"
	"github.com/sells-group/resolver-cli/pkg/perplexity"
)

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		st = pg
	default:
		sq, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		st = sq
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// costCalculator builds the pricing calculator from defaults overlaid with
// any rates set in config.
func costCalculator() *cost.Calculator {
	rates := cost.DefaultRates()
	for name, p := range cfg.Pricing.Anthropic {
		rates.Anthropic[name] = modelRate(p)
	}
	for name, p := range cfg.Pricing.OpenAI {
		rates.OpenAI[name] = modelRate(p)
	}
	if cfg.Pricing.Jina.PerMTok > 0 {
		rates.Jina.PerMTok = cfg.Pricing.Jina.PerMTok
	}
	if cfg.Pricing.Perplexity.PerQuery > 0 {
		rates.Perplexity.PerQuery = cfg.Pricing.Perplexity.PerQuery
	}
	return cost.NewCalculator(rates)
}

func modelRate(p config.ModelPricing) cost.ModelRate {
	r := cost.ModelRate{Input: p.Input, Output: p.Output}
	if p.CacheWriteMul > 0 {
		r.CacheWriteMul = p.CacheWriteMul
	}
	if p.CacheReadMul > 0 {
		r.CacheReadMul = p.CacheReadMul
	}
	return r
}

// buildCollector assembles the configured evidence provider with its retry,
// circuit-breaker and cache decorators.
func buildCollector(calc *cost.Calculator) (research.Collector, error) {
	var provider research.Collector
	switch cfg.Research.Provider {
	case "perplexity":
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		)
		provider = research.NewPerplexityCollector(client, cfg.Perplexity.Model, cfg.Research.MaxResults, calc)
	case "jina":
		client := jina.NewClient(cfg.Jina.Key,
			jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL),
			jina.WithBaseURL(cfg.Jina.ReaderBaseURL),
		)
		var jinaOpts []research.JinaCollectorOption
		if cfg.Research.SiteFilter != "" {
			jinaOpts = append(jinaOpts, research.WithSearchSite(cfg.Research.SiteFilter))
		}
		if cfg.Research.DeepReads > 0 {
			jinaOpts = append(jinaOpts, research.WithDeepReads(cfg.Research.DeepReads))
		}
		provider = research.NewJinaCollector(client, cfg.Research.MaxResults, calc, jinaOpts...)
	default:
		return nil, eris.Errorf("unknown research provider %q", cfg.Research.Provider)
	}

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	var collector research.Collector = research.NewResilientCollector(provider, cfg.Research.Retries, breaker)

	if !cfg.Research.CacheDisabled {
		ttl := time.Duration(cfg.Research.CacheTTLMins) * time.Minute
		collector = research.NewCachedCollector(collector, ttl)
	}
	return collector, nil
}

// buildSynthesizer assembles the configured rationale synthesizer, or nil
// for the deterministic-only path.
func buildSynthesizer(calc *cost.Calculator) (resolver.Synthesizer, error) {
	switch cfg.Synthesizer.Provider {
	case "anthropic":
		client := anthropic.NewClient(cfg.Anthropic.Key)
		return resolver.NewAnthropicSynthesizer(client, cfg.Anthropic.Model, calc), nil
	case "openai":
		client := resolver.NewOpenAIClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL)
		return resolver.NewOpenAISynthesizer(client, cfg.OpenAI.Model, calc), nil
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("unknown synthesizer provider %q", cfg.Synthesizer.Provider)
	}
}

// buildResolver wires the full resolution stack from config.
func buildResolver() (*resolver.Resolver, error) {
	calc := costCalculator()

	collector, err := buildCollector(calc)
	if err != nil {
		return nil, err
	}
	synth, err := buildSynthesizer(calc)
	if err != nil {
		return nil, err
	}

	return resolver.New(collector, resolver.Opts{Synthesizer: synth}), nil
}
