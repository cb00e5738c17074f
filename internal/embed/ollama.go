package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// ollamaPoolSize bounds idle connections to the Ollama server.
const ollamaPoolSize = 4

// OllamaEmbedder generates embeddings through Ollama's HTTP API.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    Config
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaEmbedder creates an Ollama embedder. Unless SkipHealthCheck
// is set it verifies the server is reachable, resolves the model, and
// auto-detects the embedding dimension.
func NewOllamaEmbedder(ctx context.Context, cfg Config) (*OllamaEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOllamaEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	// Request timeouts come from per-call contexts, not the client, so
	// short-lived runs stay interruptible.
	transport := &http.Transport{
		MaxIdleConns:        ollamaPoolSize,
		MaxIdleConnsPerHost: ollamaPoolSize,
		MaxConnsPerHost:     ollamaPoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if cfg.SkipHealthCheck {
		if e.dims <= 0 {
			transport.CloseIdleConnections()
			return nil, brewerrors.ConfigError(
				"embedding dimensions must be set when the health check is skipped", nil)
		}
		return e, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	model, err := e.resolveModel(checkCtx)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, err
	}
	e.modelName = model

	if e.dims <= 0 {
		dims, err := e.detectDimensions(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}
		e.dims = dims
	}

	return e, nil
}

// Embed generates the embedding for a single text. Whitespace-only
// input maps to a zero vector without an API call.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	embeddings, err := e.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, brewerrors.New(brewerrors.ErrCodeEmbedFailed,
			"no embedding returned", nil)
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting the
// work into API batches. Whitespace-only entries become zero vectors.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	type indexedText struct {
		idx  int
		text string
	}
	var nonEmpty []indexedText
	results := make([][]float32, len(texts))

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
		} else {
			nonEmpty = append(nonEmpty, indexedText{i, text})
		}
	}

	for start := 0; start < len(nonEmpty); start += e.config.BatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := min(start+e.config.BatchSize, len(nonEmpty))
		batch := nonEmpty[start:end]
		batchTexts := make([]string, len(batch))
		for i, it := range batch {
			batchTexts[i] = it.text
		}

		embeddings, err := e.embedWithRetry(ctx, batchTexts)
		if err != nil {
			return nil, err
		}
		if len(embeddings) != len(batch) {
			return nil, brewerrors.New(brewerrors.ErrCodeEmbedFailed,
				fmt.Sprintf("expected %d embeddings, got %d", len(batch), len(embeddings)), nil)
		}
		for i, emb := range embeddings {
			results[batch[i].idx] = emb
		}
	}

	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the resolved model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.modelName
}

// Available reports whether Ollama answers and serves the model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.checkOpen() != nil {
		return false
	}
	models, err := e.listModels(ctx)
	if err != nil {
		return false
	}
	want := strings.ToLower(e.modelName)
	for _, m := range models {
		name := strings.ToLower(m)
		if name == want || strings.Split(name, ":")[0] == strings.Split(want, ":")[0] {
			return true
		}
	}
	return false
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}

func (e *OllamaEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return brewerrors.New(brewerrors.ErrCodeEmbedFailed, "embedder is closed", nil)
	}
	return nil
}

// embedWithRetry runs one batch with bounded backoff. Timeouts and
// transport errors retry; a 4xx from Ollama (bad model, bad request)
// stops immediately.
func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	retryCfg := brewerrors.RetryConfig{
		MaxRetries:   e.config.MaxRetries,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}

	var out [][]float32
	err := brewerrors.Retry(ctx, retryCfg, func() error {
		var embedErr error
		out, embedErr = e.doEmbed(ctx, texts)
		return embedErr
	})
	if err == nil {
		return out, nil
	}

	var be *brewerrors.BrewError
	if errors.As(err, &be) {
		return nil, be
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, brewerrors.New(brewerrors.ErrCodeEmbedTimeout,
			fmt.Sprintf("embedding timed out after %s", e.config.Timeout), err)
	}
	return nil, brewerrors.New(brewerrors.ErrCodeEmbedFailed,
		fmt.Sprintf("embedding failed after %d attempts", e.config.MaxRetries+1), err)
}

// doEmbed performs a single embedding request.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	// Single string for one text, array for batches.
	var input any
	if len(texts) == 1 {
		input = texts[0]
	} else {
		input = texts
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, brewerrors.New(brewerrors.ErrCodeEmbedFailed,
			"failed to encode embed request", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		e.config.Endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, brewerrors.New(brewerrors.ErrCodeEmbedFailed,
			"failed to create embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, brewerrors.New(brewerrors.ErrCodeEmbedTimeout,
				fmt.Sprintf("embedding timed out after %s", e.config.Timeout), err)
		}
		// Transient transport failures stay raw so the retry loop
		// keeps trying.
		return nil, fmt.Errorf("ollama unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("embedding failed with status %d: %s",
			resp.StatusCode, string(respBody))
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%s", msg)
		}
		return nil, brewerrors.New(brewerrors.ErrCodeEmbedFailed, msg, nil)
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		embeddings[i] = normalizeVector(vec)
	}
	return embeddings, nil
}

// listModels fetches the model list from /api/tags.
func (e *OllamaEmbedder) listModels(ctx context.Context) ([]string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet,
		e.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// resolveModel matches the configured model against what the server
// actually has, accepting tag-less matches ("nomic-embed-text" finds
// "nomic-embed-text:latest").
func (e *OllamaEmbedder) resolveModel(ctx context.Context) (string, error) {
	models, err := e.listModels(ctx)
	if err != nil {
		return "", brewerrors.New(brewerrors.ErrCodeEmbedFailed,
			"failed to connect to ollama", err).
			WithSuggestion("start the server with 'ollama serve' or use the static provider")
	}

	want := strings.ToLower(e.config.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, name := range models {
		lower := strings.ToLower(name)
		if lower == want || strings.Split(lower, ":")[0] == wantBase {
			return name, nil
		}
	}

	return "", brewerrors.New(brewerrors.ErrCodeEmbedFailed,
		fmt.Sprintf("model %q not found on ollama server", e.config.Model), nil).
		WithSuggestion(fmt.Sprintf("pull it with 'ollama pull %s'", e.config.Model))
}

// detectDimensions probes the model with a one-off embedding.
func (e *OllamaEmbedder) detectDimensions(ctx context.Context) (int, error) {
	embeddings, err := e.doEmbed(ctx, []string{"dimension detection"})
	if err != nil {
		return 0, brewerrors.New(brewerrors.ErrCodeEmbedFailed,
			"failed to detect embedding dimensions", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return 0, brewerrors.New(brewerrors.ErrCodeEmbedFailed,
			"empty embedding returned during dimension detection", nil)
	}
	return len(embeddings[0]), nil
}
