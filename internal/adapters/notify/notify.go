// Package notify implements the pipeline event sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

// DefaultStream is the Redis stream events are appended to
const DefaultStream = "triage:events"

// LogNotifier writes every event to the logger
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs events at info level
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Record implements core.Notifier
func (n *LogNotifier) Record(_ context.Context, event string, fields map[string]any) error {
	zfields := make([]zap.Field, 0, len(fields)+1)
	zfields = append(zfields, zap.String("event", event))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zfields = append(zfields, zap.Any(k, fields[k]))
	}

	n.logger.Info("Pipeline event", zfields...)
	return nil
}

// streamEvent is the payload stored under the "data" field of each entry
type streamEvent struct {
	Event      string         `json:"event"`
	Fields     map[string]any `json:"fields,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// StreamNotifier appends events to a Redis stream
type StreamNotifier struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewStreamNotifier creates a Redis stream notifier. maxLen > 0 caps the
// stream length approximately.
func NewStreamNotifier(client redis.Cmdable, stream string, maxLen int64) *StreamNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamNotifier{client: client, stream: stream, maxLen: maxLen}
}

// Record implements core.Notifier
func (n *StreamNotifier) Record(ctx context.Context, event string, fields map[string]any) error {
	data, err := json.Marshal(streamEvent{Event: event, Fields: fields, RecordedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: n.stream,
		ID:     "*",
		Values: map[string]any{
			"event": event,
			"data":  string(data),
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}

	if err := n.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.stream, err)
	}
	return nil
}

// Multi fans an event out to several notifiers and joins their errors
type Multi []core.Notifier

// Record implements core.Notifier
func (m Multi) Record(ctx context.Context, event string, fields map[string]any) error {
	var errs []error
	for _, n := range m {
		if err := n.Record(ctx, event, fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
