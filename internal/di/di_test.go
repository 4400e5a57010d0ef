package di

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/mail-triage/internal/adapters/filter"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/factory"
	"github.com/mikey/mail-triage/internal/ports"
)

func TestParseFlagSet(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("triage-cli", flag.ContinueOnError)
	flags, err := ParseFlagSet(fs, []string{"-text", "Qual o status?", "-threshold", "0.6", "-json"})
	if err != nil {
		t.Fatalf("ParseFlagSet() error = %v", err)
	}
	if flags.Text != "Qual o status?" || flags.Threshold != 0.6 || !flags.JSON || flags.Strategy != "local_rules" {
		t.Errorf("ParseFlagSet() = %+v", flags)
	}

	fs = flag.NewFlagSet("triage-cli", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	if _, err := ParseFlagSet(fs, []string{"-unknown"}); err == nil {
		t.Error("ParseFlagSet() with unknown flag error = nil")
	}
}

func TestBuildCLIContainer(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("triage-cli", flag.ContinueOnError)
	flags, err := ParseFlagSet(fs, nil)
	if err != nil {
		t.Fatalf("ParseFlagSet() error = %v", err)
	}

	var out bytes.Buffer
	container, err := BuildCLIContainer(flags, &out)
	if err != nil {
		t.Fatalf("BuildCLIContainer() error = %v", err)
	}

	err = container.Invoke(func(cli *filter.CliFilter, service *core.TriageService, resources *factory.Resources) error {
		defer resources.Close()

		result, err := cli.ProcessMessage(context.Background(), &core.TriageRequest{
			Subject: "Erro no sistema",
			Body:    "O sistema apresenta erro ao gerar o relatório, preciso de retorno urgente.",
		})
		if err != nil {
			return err
		}
		if result.Classification.Label != core.LabelProductive {
			t.Errorf("label = %s, want %s", result.Classification.Label, core.LabelProductive)
		}

		stats, err := service.Stats(context.Background())
		if err != nil {
			return err
		}
		if stats.Total != 1 {
			t.Errorf("stats.Total = %d, want 1", stats.Total)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !strings.Contains(out.String(), "Label: PRODUCTIVE") {
		t.Errorf("CLI output:\n%s", out.String())
	}
}

func TestBuildContainer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := `
cache:
  type: sqlite
  sqlite_path: ` + filepath.Join(dir, "cache.db") + `
store:
  type: sqlite
  sqlite_path: ` + filepath.Join(dir, "triage.db") + `
notify:
  sinks: [log]
logging:
  level: error
`
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	container, err := BuildContainer(path)
	if err != nil {
		t.Fatalf("BuildContainer() error = %v", err)
	}

	err = container.Invoke(func(_ ports.MessageFilter, service *core.TriageService, resources *factory.Resources) error {
		defer resources.Close()

		result, err := service.Process(context.Background(), &core.TriageRequest{Body: "Obrigado pela ajuda, feliz natal!"})
		if err != nil {
			return err
		}
		stored, err := service.Get(context.Background(), result.ID)
		if err != nil {
			return err
		}
		if stored == nil || stored.Classification.Label != result.Classification.Label {
			t.Errorf("Get(%q) = %+v, want label %s", result.ID, stored, result.Classification.Label)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
}

func TestBuildContainer_RemoteWithoutKey(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("triage:\n  strategy: remote\nllm:\n  provider: openai\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	container, err := BuildContainer(path)
	if err != nil {
		t.Fatalf("BuildContainer() error = %v", err)
	}
	if err := container.Invoke(func(*core.TriageService) {}); err == nil {
		t.Error("Invoke() with remote strategy and no API key error = nil")
	}
}
