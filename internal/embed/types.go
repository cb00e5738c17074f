// Package embed turns chunk text into vectors. The default provider is
// an Ollama HTTP client; a deterministic static provider covers tests
// and offline runs. Decorators add LRU caching and client-side rate
// limiting.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the number of texts sent per API call.
	DefaultBatchSize = 32

	// MaxBatchSize caps configured batch sizes.
	MaxBatchSize = 256

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of attempts for transient failures.
	DefaultMaxRetries = 3

	// DefaultCacheSize is the number of chunk embeddings kept in the LRU.
	DefaultCacheSize = 1024
)

// Ollama defaults.
const (
	DefaultOllamaEndpoint = "http://localhost:11434"
	DefaultOllamaModel    = "nomic-embed-text"
)

// StaticDimensions is the embedding dimension of the static provider.
const StaticDimensions = 256

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider is ready to serve.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Config selects and configures a provider. Zero values mean defaults.
type Config struct {
	// Provider is "ollama" (default) or "static".
	Provider string `yaml:"provider" json:"provider"`

	// Endpoint is the Ollama base URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`

	// Dimensions overrides auto-detection when set.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize is the number of texts per API call.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Timeout bounds each embedding request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// MaxRetries bounds attempts for transient failures.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// CacheSize is the embedding LRU capacity; negative disables the
	// cache entirely.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// RateLimit is the client-side request rate in calls per second;
	// 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`

	// SkipHealthCheck bypasses the startup connectivity probe.
	SkipHealthCheck bool `yaml:"-" json:"-"`
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
