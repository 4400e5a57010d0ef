package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/filter"
	"github.com/mikey/mail-triage/internal/adapters/parser"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/di"
	"github.com/mikey/mail-triage/internal/factory"
)

var errFailedMessages = errors.New("one or more messages failed")

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	cli *filter.CliFilter,
	service *core.TriageService,
	resources *factory.Resources,
) error {
	defer logger.Sync()
	defer resources.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.Rules {
		summary := service.RulesSummary()
		fmt.Printf("Rules: %d (productive %d, unproductive %d)\n", summary.Total, summary.Productive, summary.Unproductive)
		for _, name := range summary.Rules {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	if flags.InputDir != "" {
		return runBatch(ctx, flags, logger, cli, service)
	}

	req, err := readRequest(flags, logger)
	if err != nil {
		return err
	}
	_, err = cli.ProcessMessage(ctx, req)
	return err
}

func runBatch(ctx context.Context, flags *di.CLIFlags, logger *zap.Logger, cli *filter.CliFilter, service *core.TriageService) error {
	names, reqs, err := readDir(flags.InputDir, logger)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return fmt.Errorf("no supported messages in %s", flags.InputDir)
	}

	items, err := cli.ProcessBatch(ctx, names, reqs, flags.Concurrency)
	if err != nil {
		return err
	}

	if !flags.JSON {
		if stats, err := service.Stats(ctx); err == nil && stats.Total > 0 {
			fmt.Printf("Average confidence: %.2f\n", stats.AverageConfidence)
		}
	}

	for _, item := range items {
		if item.Err != nil {
			return errFailedMessages
		}
	}
	return nil
}

// readRequest builds the request from -text, -file or stdin, in that order
func readRequest(flags *di.CLIFlags, logger *zap.Logger) (*core.TriageRequest, error) {
	if flags.Text != "" {
		return parser.ParseText(flags.Text, flags.Subject), nil
	}

	if flags.InputFile != "" {
		data, err := os.ReadFile(flags.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		logger.Info("Reading message from file", zap.String("file", flags.InputFile))
		req, err := parser.ParseFile(flags.InputFile, data)
		if err != nil {
			return nil, err
		}
		if flags.Subject != "" {
			req.Subject = flags.Subject
		}
		return req, nil
	}

	logger.Info("Reading message from stdin")
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}

	// stdin may carry a full message or pasted text
	if msg, err := parser.ParseEML(bytes.NewReader(data)); err == nil && (msg.Subject != "" || msg.From != "") {
		req := msg.Request()
		if flags.Subject != "" {
			req.Subject = flags.Subject
		}
		return req, nil
	}
	return parser.ParseText(string(data), flags.Subject), nil
}

// readDir parses every supported file in dir. os.ReadDir sorts by name.
func readDir(dir string, logger *zap.Logger) ([]string, []*core.TriageRequest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	var reqs []*core.TriageRequest
	for _, entry := range entries {
		if entry.IsDir() || !parser.Supported(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Skipping unreadable file", zap.String("file", path), zap.Error(err))
			continue
		}
		req, err := parser.ParseFile(entry.Name(), data)
		if err != nil {
			logger.Warn("Skipping unparseable file", zap.String("file", path), zap.Error(err))
			continue
		}
		names = append(names, entry.Name())
		reqs = append(reqs, req)
	}
	return names, reqs, nil
}
