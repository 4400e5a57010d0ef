// Package store persists completed triage results.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mikey/mail-triage/internal/core"
)

// MemoryStore keeps results in process memory. Results are stored encoded
// so callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string][]byte
	stats   statsAccumulator
}

// NewMemoryStore creates an empty in-memory result store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string][]byte)}
}

// Save stores a result, assigning an id when it has none
func (s *MemoryStore) Save(ctx context.Context, result *core.TriageResult) (string, error) {
	if result == nil || result.Classification == nil {
		return "", fmt.Errorf("cannot save an incomplete result")
	}

	id := result.ID
	if id == "" {
		id = uuid.NewString()
	}

	stored := *result
	stored.ID = id
	data, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[id]; !exists {
		s.stats.add(result.Classification, result.ProcessedAt)
	}
	s.results[id] = data
	return id, nil
}

// Get returns a stored result, or nil when the id is unknown
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.TriageResult, error) {
	s.mu.RLock()
	data, ok := s.results[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	var result core.TriageResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", id, err)
	}
	return &result, nil
}

// Stats aggregates every stored result
func (s *MemoryStore) Stats(ctx context.Context) (*core.ProcessingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.snapshot(), nil
}

type statsAccumulator struct {
	total      int
	productive int
	confidence float64
	lastAt     time.Time
}

func (a *statsAccumulator) add(cls *core.ClassificationResult, at time.Time) {
	a.total++
	if cls.Label == core.LabelProductive {
		a.productive++
	}
	a.confidence += cls.Confidence
	if at.After(a.lastAt) {
		a.lastAt = at
	}
}

func (a *statsAccumulator) snapshot() *core.ProcessingStats {
	stats := &core.ProcessingStats{
		Total:        a.total,
		Productive:   a.productive,
		Unproductive: a.total - a.productive,
	}
	if a.total > 0 {
		stats.AverageConfidence = a.confidence / float64(a.total)
	}
	if !a.lastAt.IsZero() {
		last := a.lastAt
		stats.LastProcessedAt = &last
	}
	return stats
}
