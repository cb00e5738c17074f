package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// qdrantPoolSize bounds idle connections to the Qdrant server.
const qdrantPoolSize = 8

// QdrantStore is a REST client to a Qdrant collection.
type QdrantStore struct {
	baseURL     string
	apiKey      string
	collection  string
	distance    string
	timeout     time.Duration
	scrollLimit int

	client    *http.Client
	transport *http.Transport

	mu     sync.RWMutex
	closed bool
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore creates a Qdrant-backed store. No network call is made
// until the first operation.
func NewQdrantStore(cfg Config) *QdrantStore {
	cfg = cfg.withDefaults()

	transport := &http.Transport{
		MaxIdleConns:        qdrantPoolSize,
		MaxIdleConnsPerHost: qdrantPoolSize,
		MaxConnsPerHost:     qdrantPoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// Per-request timeouts come from context so callers can tighten
	// them; the client itself carries none.
	return &QdrantStore{
		baseURL:     cfg.URL,
		apiKey:      cfg.APIKey,
		collection:  cfg.Collection,
		distance:    cfg.Distance,
		timeout:     cfg.Timeout,
		scrollLimit: cfg.ScrollLimit,
		client:      &http.Client{Transport: transport},
		transport:   transport,
	}
}

// EnsureCollection creates the collection with the given vector
// dimension if it does not already exist. An existing collection is
// accepted as-is: dimension drift surfaces on the first upsert.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dim int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if dim <= 0 {
		return brewerrors.New(brewerrors.ErrCodeCollectionFailed,
			fmt.Sprintf("invalid vector dimension %d", dim), nil)
	}

	exists, _, err := s.collectionInfo(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": s.distance,
		},
	}
	url := fmt.Sprintf("%s/collections/%s", s.baseURL, s.collection)
	if err := s.doJSON(ctx, http.MethodPut, url, body, nil); err != nil {
		return brewerrors.New(brewerrors.ErrCodeCollectionFailed,
			fmt.Sprintf("failed to create collection %s", s.collection), err)
	}
	return nil
}

// Scroll pages through the whole collection and returns every record's
// ID and payload. Vectors are not fetched.
func (s *QdrantStore) Scroll(ctx context.Context) ([]ScrollPoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	type scrollRequest struct {
		Limit       int  `json:"limit"`
		WithPayload bool `json:"with_payload"`
		WithVector  bool `json:"with_vector"`
		Offset      any  `json:"offset,omitempty"`
	}
	type scrollResponse struct {
		Result struct {
			Points []struct {
				ID      any            `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
			NextPageOffset any `json:"next_page_offset"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/scroll", s.baseURL, s.collection)

	var points []ScrollPoint
	var offset any
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req := scrollRequest{
			Limit:       s.scrollLimit,
			WithPayload: true,
			WithVector:  false,
			Offset:      offset,
		}
		var resp scrollResponse
		if err := s.doJSON(ctx, http.MethodPost, url, req, &resp); err != nil {
			return nil, err
		}

		for _, p := range resp.Result.Points {
			points = append(points, ScrollPoint{
				ID:      formatPointID(p.ID),
				Payload: p.Payload,
			})
		}

		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			return points, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// Upsert writes records with wait=true so the call returns only after
// the points are durable.
func (s *QdrantStore) Upsert(ctx context.Context, recs []Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	points := make([]map[string]any, len(recs))
	for i, r := range recs {
		points[i] = map[string]any{
			"id":      r.ID,
			"vector":  r.Vector,
			"payload": r.Payload,
		}
	}
	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.baseURL, s.collection)
	return s.doJSON(ctx, http.MethodPut, url, body, nil)
}

// Delete removes records by ID with wait=true.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	body := map[string]any{"points": ids}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.baseURL, s.collection)
	return s.doJSON(ctx, http.MethodPost, url, body, nil)
}

// Count returns the number of stored points. A missing collection
// counts as zero so status reporting works before the first run.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	exists, count, err := s.collectionInfo(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	return count, nil
}

// Close releases idle connections. Subsequent calls fail.
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.transport.CloseIdleConnections()
	return nil
}

func (s *QdrantStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return brewerrors.New(brewerrors.ErrCodeStoreRequest, "store is closed", nil)
	}
	return nil
}

// collectionInfo fetches collection existence and point count in one
// GET. A 404 means the collection does not exist yet.
func (s *QdrantStore) collectionInfo(ctx context.Context) (exists bool, count int, err error) {
	type infoResponse struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s", s.baseURL, s.collection)
	var resp infoResponse
	err = s.doJSON(ctx, http.MethodGet, url, nil, &resp)
	if err != nil {
		var be *brewerrors.BrewError
		if errors.As(err, &be) && be.Code == brewerrors.ErrCodeStoreRequest &&
			be.Details["status"] == strconv.Itoa(http.StatusNotFound) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, resp.Result.PointsCount, nil
}

// doJSON performs one request with the configured timeout, the api-key
// header, and JSON encoding on both sides. Status >= 300 becomes a
// structured error carrying the response body.
func (s *QdrantStore) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return brewerrors.New(brewerrors.ErrCodeStoreRequest,
				"failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	reqCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		return brewerrors.New(brewerrors.ErrCodeStoreRequest,
			"failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return brewerrors.New(brewerrors.ErrCodeStoreTimeout,
				fmt.Sprintf("%s %s timed out after %s", method, url, s.timeout), err)
		}
		return brewerrors.New(brewerrors.ErrCodeStoreUnavailable,
			fmt.Sprintf("%s %s: store unreachable", method, url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("%s %s failed with status %d: %s",
			method, url, resp.StatusCode, string(respBody))
		code := brewerrors.ErrCodeStoreRequest
		if resp.StatusCode >= 500 {
			code = brewerrors.ErrCodeStoreUnavailable
		}
		return brewerrors.New(code, msg, nil).
			WithDetail("status", strconv.Itoa(resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return brewerrors.New(brewerrors.ErrCodeStoreRequest,
				"failed to decode response", err)
		}
	}
	return nil
}

// formatPointID renders a scroll point ID as a string. Qdrant IDs may
// be UUID strings or integers depending on who wrote them.
func formatPointID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
