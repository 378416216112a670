package models

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/config"
)

const (
	responseCacheSize = 256
	responseCacheTTL  = time.Hour
)

// BuildRouter constructs a Router from the persisted LLM configuration,
// registering every enabled provider. Providers that fail to construct are
// logged and skipped so one bad key does not take the whole router down.
// When cacheDir is non-empty, each provider is wrapped in a persistent
// response cache.
func BuildRouter(ctx context.Context, cfg config.LLMConfig, cacheDir string, logger zerolog.Logger) *Router {
	r := NewRouter(RouterOptions{
		DefaultProvider: cfg.DefaultProvider,
		FailoverOrder:   cfg.FailoverOrder,
		Logger:          logger,
	})

	for name, settings := range cfg.Providers {
		if !settings.Enabled {
			continue
		}

		var (
			p   Provider
			err error
		)
		switch name {
		case "ollama":
			p, err = NewOllamaProvider(settings.Model, settings.BaseURL)
		case "anthropic":
			p, err = NewAnthropicProvider(settings.Model, settings.APIKey)
		case "openai":
			p, err = NewOpenAIProvider(settings.Model, settings.APIKey)
		case "google":
			p, err = NewGeminiProvider(ctx, settings.Model, settings.APIKey)
		default:
			logger.Warn().Str("provider", name).Msg("unknown provider in config, skipping")
			continue
		}
		if err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("provider init failed, skipping")
			continue
		}
		if cacheDir != "" {
			p = NewCachedProvider(p, responseCacheSize, responseCacheTTL,
				filepath.Join(cacheDir, name+"_cache.json"))
		}
		if err := r.Register(p); err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("provider registration failed")
		}
	}
	return r
}
