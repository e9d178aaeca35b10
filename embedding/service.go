package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mumpsdb/core"
	"mumpsdb/monitoring"
)

// Config holds the embedding collaborator configuration
type Config struct {
	Enabled   bool
	BaseURL   string
	Model     string
	Threshold float64
}

// Service talks to an Ollama-compatible embedding endpoint and keeps the
// resulting vectors in memory. When disabled, every operation degrades to
// empty results.
type Service struct {
	cfg     Config
	client  *http.Client
	storage *Storage
	metrics *monitoring.Metrics
	log     *logrus.Entry
}

// Hit is one similarity or exact-search match
type Hit struct {
	Global     string
	Path       core.Path
	Value      core.Value
	Similarity float64
}

// NewService creates the embedding service. A disabled service is a valid
// no-op collaborator.
func NewService(cfg Config, metrics *monitoring.Metrics, log *logrus.Entry) *Service {
	return &Service{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		storage: NewStorage(),
		metrics: metrics,
		log:     log,
	}
}

// Enabled reports whether the collaborator is active
func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Enabled
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed obtains the vector for a text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if !s.Enabled() {
		return nil, errors.New("embedding is disabled")
	}
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	body, err := json.Marshal(embedRequest{Model: s.cfg.Model, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.EmbeddingErrors.Inc()
		return nil, errors.Wrap(err, "embedding request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.metrics.EmbeddingErrors.Inc()
		return nil, fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		s.metrics.EmbeddingErrors.Inc()
		return nil, errors.Wrap(err, "failed to decode embedding response")
	}
	if len(decoded.Embedding) == 0 {
		s.metrics.EmbeddingErrors.Inc()
		return nil, errors.New("embedding server returned an empty vector")
	}

	vec := make([]float32, len(decoded.Embedding))
	for i, f := range decoded.Embedding {
		vec[i] = float32(f)
	}
	s.metrics.EmbeddingGenerated.Inc()
	return vec, nil
}

// Store embeds the value's text and records the vector for the node.
// Failures are logged and counted, never surfaced to the client.
func (s *Service) Store(ctx context.Context, global string, path core.Path, value core.Value) {
	if !s.Enabled() || value.IsNull() {
		return
	}
	vec, err := s.Embed(ctx, value.Text())
	if err != nil {
		s.log.WithError(err).WithField("global", global).Debug("embedding failed")
		return
	}
	s.storage.Put(global, path, value, vec)
}

// Remove drops the vector for one node
func (s *Service) Remove(global string, path core.Path) {
	if !s.Enabled() {
		return
	}
	s.storage.Remove(global, path)
}

// RemoveGlobal drops every vector under a global
func (s *Service) RemoveGlobal(global string) {
	if !s.Enabled() {
		return
	}
	s.storage.RemoveGlobal(global)
}

// SimilaritySearch ranks stored vectors against the query by cosine
// similarity, keeping hits at or above the configured threshold.
func (s *Service) SimilaritySearch(ctx context.Context, query string, topK int, global string) ([]Hit, error) {
	if !s.Enabled() {
		return nil, nil
	}
	queryVec, err := s.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.storage.Nearest(queryVec, topK, global, s.cfg.Threshold), nil
}

// Count returns the number of stored vectors; 0 when disabled
func (s *Service) Count() int {
	if !s.Enabled() {
		return 0
	}
	return s.storage.Count()
}

// CosineSimilarity computes the cosine of the angle between two vectors
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
