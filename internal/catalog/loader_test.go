package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/catalog"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/rules"
	"github.com/mikey/mail-triage/internal/templates"
)

const sampleCatalog = `
rules:
  - name: billing
    label: productive
    keywords: ["fatura", "boleto"]
    weight: 0.9
  - name: invoice_number
    label: PRODUCTIVE
    patterns: ['\bNF-?\d{4,}\b']
    weight: 0.5
templates:
  - id: pt-billing
    label: PRODUCTIVE
    body: "Recebemos sua mensagem sobre {topic}. O financeiro vai responder."
    variables: [topic]
    language: pt
  - id: pt-disabled
    label: UNPRODUCTIVE
    body: "Inativo."
    active: false
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestParse(t *testing.T) {
	t.Parallel()

	f, err := catalog.Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Rules) != 2 || len(f.Templates) != 2 {
		t.Fatalf("Parse() = %d rules, %d templates, want 2 and 2", len(f.Rules), len(f.Templates))
	}
	if f.Rules[0].Label != core.LabelProductive {
		t.Errorf("Rules[0].Label = %q, want %q", f.Rules[0].Label, core.LabelProductive)
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	f, err := catalog.Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if len(f.Rules) != 0 || len(f.Templates) != 0 || f.ReplaceDefaults {
		t.Errorf("Parse(nil) = %+v, want empty", f)
	}
}

func TestParse_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := catalog.Parse([]byte("rulez: []\n"))
	var catErr *core.CatalogConfigurationError
	if !errors.As(err, &catErr) {
		t.Errorf("Parse() error = %v, want CatalogConfigurationError", err)
	}
}

func TestBuild_Defaults(t *testing.T) {
	t.Parallel()

	c, err := catalog.Build("", zap.NewNop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got, want := c.Engine.Summary().Total, len(rules.DefaultRules()); got != want {
		t.Errorf("rules = %d, want %d", got, want)
	}
	if got, want := len(c.Templates.List("")), len(templates.DefaultTemplates()); got != want {
		t.Errorf("templates = %d, want %d", got, want)
	}
}

func TestBuild_AppendsToDefaults(t *testing.T) {
	t.Parallel()

	c, err := catalog.Build(writeFile(t, sampleCatalog), zap.NewNop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got, want := c.Engine.Summary().Total, len(rules.DefaultRules())+2; got != want {
		t.Errorf("rules = %d, want %d", got, want)
	}

	res := c.Engine.Classify(&core.NormalizedMessage{CleanText: "segue a nf-12345"})
	if res.Reasoning != "invoice_number" {
		t.Errorf("Reasoning = %q, want invoice_number", res.Reasoning)
	}

	tpl, ok := c.Templates.Get("pt-billing")
	if !ok {
		t.Fatal("template pt-billing not loaded")
	}
	if !tpl.Active || tpl.Tone != "professional" {
		t.Errorf("pt-billing = %+v, want active with default tone", tpl)
	}
	disabled, _ := c.Templates.Get("pt-disabled")
	if disabled.Active || disabled.Language != core.DefaultLanguage {
		t.Errorf("pt-disabled = %+v, want inactive in the default language", disabled)
	}
}

func TestBuild_ReplaceDefaults(t *testing.T) {
	t.Parallel()

	c, err := catalog.Build(writeFile(t, "replace_defaults: true\n"+sampleCatalog), zap.NewNop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := c.Engine.Summary().Total; got != 2 {
		t.Errorf("rules = %d, want 2", got)
	}
	if got := c.Templates.Default().ID; got != "pt-billing" {
		t.Errorf("Default() = %q, want pt-billing", got)
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml")},
		{"bad regex", writeFile(t, "rules:\n  - name: r\n    label: PRODUCTIVE\n    patterns: ['(']\n    weight: 1\n")},
		{"bad weight", writeFile(t, "rules:\n  - name: r\n    label: PRODUCTIVE\n    keywords: [x]\n    weight: 0\n")},
		{"empty replacement", writeFile(t, "replace_defaults: true\n")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := catalog.Build(tt.path, zap.NewNop())
			if core.Code(err) != core.CodeCatalog {
				t.Errorf("Build() error = %v, want code %s", err, core.CodeCatalog)
			}
		})
	}
}
