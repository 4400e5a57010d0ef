package filter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/ports"
)

const previewBytes = 500

// CliFilter runs messages through the pipeline and prints the outcome
type CliFilter struct {
	service    ports.Triager
	logger     *zap.Logger
	out        io.Writer
	verbose    bool
	jsonOutput bool
}

// NewCliFilter creates a new CLI filter writing to out
func NewCliFilter(service ports.Triager, logger *zap.Logger, out io.Writer, verbose, jsonOutput bool) *CliFilter {
	return &CliFilter{
		service:    service,
		logger:     logger,
		out:        out,
		verbose:    verbose,
		jsonOutput: jsonOutput,
	}
}

// ProcessMessage triages one message and prints the result
func (f *CliFilter) ProcessMessage(ctx context.Context, req *core.TriageRequest) (*core.TriageResult, error) {
	f.logger.Debug("Processing message", zap.String("sender", req.Sender))

	if !f.jsonOutput {
		fmt.Fprintf(f.out, "\n=== Message ===\n")
		fmt.Fprintf(f.out, "From: %s\n", req.Sender)
		fmt.Fprintf(f.out, "To: %v\n", req.Recipients)
		fmt.Fprintf(f.out, "Subject: %s\n", req.Subject)
		fmt.Fprintf(f.out, "Body length: %d bytes\n", len(req.Body))
		if f.verbose {
			preview := req.Body
			if len(preview) > previewBytes {
				preview = preview[:previewBytes] + "..."
			}
			fmt.Fprintf(f.out, "\nBody preview:\n%s\n", preview)
		}
	}

	start := time.Now()
	result, err := f.service.Process(ctx, req)
	if err != nil {
		f.logger.Error("Failed to triage message", zap.Error(err))
		return nil, err
	}

	if f.jsonOutput {
		return result, f.writeJSON(result)
	}
	f.writeResult(result, time.Since(start))
	return result, nil
}

// ProcessBatch triages messages concurrently and prints one line per
// message followed by totals. names label the messages in the output.
func (f *CliFilter) ProcessBatch(ctx context.Context, names []string, reqs []*core.TriageRequest, concurrency int) ([]core.BatchItem, error) {
	items, err := f.service.ProcessBatch(ctx, reqs, concurrency)

	if f.jsonOutput {
		type line struct {
			Name   string             `json:"name"`
			Result *core.TriageResult `json:"result,omitempty"`
			Error  string             `json:"error,omitempty"`
		}
		lines := make([]line, len(items))
		for i, item := range items {
			lines[i] = line{Name: names[i], Result: item.Result}
			if item.Err != nil {
				lines[i].Error = item.Err.Error()
			}
		}
		if werr := f.writeJSON(lines); werr != nil {
			return items, werr
		}
		return items, err
	}

	var productive, unproductive, failed int
	fmt.Fprintf(f.out, "\n=== Batch (%d messages) ===\n", len(items))
	for i, item := range items {
		if item.Err != nil {
			failed++
			fmt.Fprintf(f.out, "%-40s FAILED     %s\n", names[i], core.Code(item.Err))
			continue
		}
		cls := item.Result.Classification
		if cls.Label == core.LabelProductive {
			productive++
		} else {
			unproductive++
		}
		fmt.Fprintf(f.out, "%-40s %-12s %.2f  %s\n", names[i], cls.Label, cls.Confidence, item.Result.Priority)
	}
	fmt.Fprintf(f.out, "\nProductive: %d  Unproductive: %d  Failed: %d\n", productive, unproductive, failed)

	return items, err
}

func (f *CliFilter) writeResult(result *core.TriageResult, duration time.Duration) {
	cls := result.Classification
	fmt.Fprintf(f.out, "\n=== Classification ===\n")
	fmt.Fprintf(f.out, "Label: %s\n", cls.Label)
	fmt.Fprintf(f.out, "Confidence: %.4f\n", cls.Confidence)
	fmt.Fprintf(f.out, "Reasoning: %s\n", cls.Reasoning)
	fmt.Fprintf(f.out, "Model used: %s\n", cls.ModelUsed)
	fmt.Fprintf(f.out, "Priority: %s\n", result.Priority)
	fmt.Fprintf(f.out, "Escalated: %t\n", result.Escalated)
	for _, w := range result.Warnings {
		fmt.Fprintf(f.out, "Warning: %s\n", w)
	}

	if reply := result.Reply; reply != nil {
		fmt.Fprintf(f.out, "\n=== Suggested reply ===\n")
		if reply.Subject != nil {
			fmt.Fprintf(f.out, "Subject: %s\n", *reply.Subject)
		}
		if reply.ETA != "" {
			fmt.Fprintf(f.out, "Expected response: %s\n", reply.ETA)
		}
		fmt.Fprintf(f.out, "\n%s\n", reply.Body)
	}

	fmt.Fprintf(f.out, "\nProcessing time: %v\n", duration)
}

func (f *CliFilter) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintf(f.out, "%s\n", data)
	return err
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
