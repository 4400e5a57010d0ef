// Package ports declares the inbound surfaces that drive the triage service.
package ports

import (
	"context"

	"github.com/mikey/mail-triage/internal/core"
)

// Triager runs messages through the pipeline
type Triager interface {
	Process(ctx context.Context, req *core.TriageRequest) (*core.TriageResult, error)
	ProcessBatch(ctx context.Context, reqs []*core.TriageRequest, concurrency int) ([]core.BatchItem, error)
}

// MessageFilter is a long running message ingress
type MessageFilter interface {
	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
