package embed

import (
	"context"
	"fmt"
	"strings"

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderStatic = "static"
)

// New creates the configured provider wrapped with the cache and rate
// limit decorators. The decorator order puts the cache outermost so
// cache hits never spend rate tokens.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var embedder Embedder

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		inner, err := NewOllamaEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		embedder = inner
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	default:
		return nil, brewerrors.New(brewerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embedding provider %q (want %s or %s)",
				cfg.Provider, ProviderOllama, ProviderStatic), nil)
	}

	embedder = NewRateLimitedEmbedder(embedder, cfg.RateLimit)

	if cfg.CacheSize >= 0 {
		size := cfg.CacheSize
		if size == 0 {
			size = DefaultCacheSize
		}
		embedder = NewCachedEmbedder(embedder, size)
	}

	return embedder, nil
}
