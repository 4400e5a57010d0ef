package cache

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/mikey/mail-triage/internal/core"
)

var (
	// ErrNotFound is returned when a cache entry is not found
	ErrNotFound = fmt.Errorf("%w: entry not found", core.ErrCacheMiss)
	// ErrExpired is returned when a cache entry has expired
	ErrExpired = fmt.Errorf("%w: entry expired", core.ErrCacheMiss)
)

func encodeResult(result *core.TriageResult) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached result: %w", err)
	}
	return data, nil
}

func decodeResult(data []byte) (*core.TriageResult, error) {
	var result core.TriageResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return &result, nil
}
