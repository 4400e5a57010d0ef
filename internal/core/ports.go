package core

import (
	"context"
)

// Normalizer turns raw text into its canonical representation
type Normalizer interface {
	Normalize(body, subject string, hasAttachments bool) *NormalizedMessage
}

// LocalClassifier scores a normalized message without any I/O
type LocalClassifier interface {
	Classify(msg *NormalizedMessage) *ClassificationResult
	Summary() RuleSummary
}

// ReplyBuilder selects and renders a reply for a classified message
type ReplyBuilder interface {
	BuildReply(raw *RawMessage, msg *NormalizedMessage, cls *ClassificationResult, extra map[string]string) (*SuggestedReply, error)
}

// ExternalClassifier is a remote classifier consulted on escalation
type ExternalClassifier interface {
	// ClassifyMessage returns a label, confidence and reasoning for a message
	ClassifyMessage(ctx context.Context, msg *NormalizedMessage, extra map[string]string) (*ClassificationResult, error)
}

// ExternalResponder is a remote reply generator consulted on escalation
type ExternalResponder interface {
	// SuggestReply drafts a reply for an already classified message
	SuggestReply(ctx context.Context, raw *RawMessage, msg *NormalizedMessage, cls *ClassificationResult) (*SuggestedReply, error)
}

// CacheRepository defines the interface for memoizing pipeline results
type CacheRepository interface {
	// Get retrieves a cached entry for a fingerprint
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, fingerprint string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// ResultRepository persists completed pipeline results
type ResultRepository interface {
	// Save stores a result and returns its id
	Save(ctx context.Context, result *TriageResult) (string, error)

	// Get returns a stored result, or nil when the id is unknown
	Get(ctx context.Context, id string) (*TriageResult, error)

	// Stats aggregates every stored result
	Stats(ctx context.Context) (*ProcessingStats, error)
}

// Notifier records pipeline events. Failures never affect a run.
type Notifier interface {
	Record(ctx context.Context, event string, fields map[string]any) error
}
