package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/jcascante/brew-master-ai/internal/embed"
	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// embedderProbeTimeout bounds the provider check so doctor stays
// responsive when Ollama is down.
const embedderProbeTimeout = 5 * time.Second

// CheckEmbedder checks that the embedding provider answers and serves
// the configured model. Reconcile has no fallback provider, so an
// unreachable embedder fails the check.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: true,
	}

	probeCtx, cancel := context.WithTimeout(ctx, embedderProbeTimeout)
	defer cancel()

	// Provider construction runs its own health check, so a reachable
	// provider comes back ready.
	embedder, err := embed.New(probeCtx, c.cfg.Embeddings)
	if err != nil {
		result.Status = StatusFail
		if brewerrors.GetCategory(err) == brewerrors.CategoryConfig {
			result.Message = err.Error()
		} else {
			result.Message = fmt.Sprintf("%s unreachable: %v",
				providerName(c.cfg.Embeddings.Provider), err)
			result.Details = "Start Ollama or set embeddings.provider to static"
		}
		return result
	}
	defer func() { _ = embedder.Close() }()

	if !embedder.Available(probeCtx) {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("model %s not served by %s",
			embedder.ModelName(), providerName(c.cfg.Embeddings.Provider))
		result.Details = "Pull the model with 'ollama pull' or change embeddings.model"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("model %s ready (%d dimensions)",
		embedder.ModelName(), embedder.Dimensions())
	return result
}

// providerName resolves the empty default to its effective provider.
func providerName(provider string) string {
	if provider == "" {
		return embed.ProviderOllama
	}
	return provider
}
