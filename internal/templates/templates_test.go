package templates_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/templates"
)

func productive(conf float64) *core.ClassificationResult {
	return &core.ClassificationResult{Label: core.LabelProductive, Confidence: conf}
}

func unproductive(conf float64) *core.ClassificationResult {
	return &core.ClassificationResult{Label: core.LabelUnproductive, Confidence: conf}
}

func normalized(lang string, tokens ...string) *core.NormalizedMessage {
	return &core.NormalizedMessage{Language: lang, Tokens: tokens, WordCount: len(tokens)}
}

func mustCatalog(t *testing.T, tpls []core.ResponseTemplate) *templates.Catalog {
	t.Helper()
	c, err := templates.NewCatalog(tpls)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return c
}

func TestSelect_PrefersSimpleProductiveTemplate(t *testing.T) {
	t.Parallel()

	catalog := mustCatalog(t, []core.ResponseTemplate{
		{ID: "complex", Label: core.LabelProductive, Body: "Sobre {topic}: falta {missing_info}", Variables: []string{"topic", "missing_info"}, Language: "pt", Active: true},
		{ID: "simple", Label: core.LabelProductive, Body: "Recebido.", Language: "pt", Active: true},
	})

	got := catalog.Select(normalized("pt"), productive(0.9))
	if got.ID != "simple" {
		t.Errorf("Select() = %q, want %q", got.ID, "simple")
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	catalog := mustCatalog(t, templates.DefaultTemplates())

	tests := []struct {
		name string
		msg  *core.NormalizedMessage
		cls  *core.ClassificationResult
		want string
	}{
		{"pt productive uses first compatible", normalized("pt"), productive(0.9), "pt-productive-ack"},
		{"pt unproductive", normalized("pt"), unproductive(0.9), "pt-unproductive-satisfied"},
		{"en productive", normalized("en"), productive(0.6), "en-productive-ack"},
		{"en unproductive", normalized("en"), unproductive(0.6), "en-unproductive-thanks"},
		{"unknown language falls back to default", normalized("fr"), unproductive(0.6), "pt-productive-ack"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := catalog.Select(tt.msg, tt.cls); got.ID != tt.want {
				t.Errorf("Select() = %q, want %q", got.ID, tt.want)
			}
		})
	}
}

func TestSelect_SkipsInactive(t *testing.T) {
	t.Parallel()

	catalog := mustCatalog(t, templates.DefaultTemplates())
	if err := catalog.Deactivate("en-unproductive-thanks"); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	if got := catalog.Select(normalized("en"), unproductive(0.9)); got.ID != "pt-productive-ack" {
		t.Errorf("Select() = %q, want the default template", got.ID)
	}

	if err := catalog.Activate("en-unproductive-thanks"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if got := catalog.Select(normalized("en"), unproductive(0.9)); got.ID != "en-unproductive-thanks" {
		t.Errorf("Select() after Activate = %q, want en-unproductive-thanks", got.ID)
	}

	if err := catalog.Activate("missing"); err == nil {
		t.Error("Activate() of an unknown id should fail")
	}
}

func TestNewCatalog_Invalid(t *testing.T) {
	t.Parallel()

	valid := core.ResponseTemplate{ID: "a", Label: core.LabelProductive, Body: "ok", Language: "pt", Active: true}

	tests := []struct {
		name string
		tpls []core.ResponseTemplate
	}{
		{"empty catalog", nil},
		{"missing id", []core.ResponseTemplate{{Label: core.LabelProductive, Body: "ok", Language: "pt"}}},
		{"bad label", []core.ResponseTemplate{{ID: "a", Label: "X", Body: "ok", Language: "pt"}}},
		{"empty body", []core.ResponseTemplate{{ID: "a", Label: core.LabelProductive, Body: " ", Language: "pt"}}},
		{"no language", []core.ResponseTemplate{{ID: "a", Label: core.LabelProductive, Body: "ok"}}},
		{"bad variable name", []core.ResponseTemplate{{ID: "a", Label: core.LabelProductive, Body: "ok", Language: "pt", Variables: []string{"two words"}}}},
		{"undeclared placeholder", []core.ResponseTemplate{{ID: "a", Label: core.LabelProductive, Body: "{topic}", Language: "pt"}}},
		{"duplicate id", []core.ResponseTemplate{valid, valid}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := templates.NewCatalog(tt.tpls)
			var catErr *core.CatalogConfigurationError
			if !errors.As(err, &catErr) {
				t.Errorf("NewCatalog() error = %v, want CatalogConfigurationError", err)
			}
		})
	}
}

func TestNewCatalog_CopiesInput(t *testing.T) {
	t.Parallel()

	tpls := templates.DefaultTemplates()
	catalog := mustCatalog(t, tpls)

	tpls[0].Body = "changed"
	tpls[0].Variables[0] = "changed"

	got := catalog.Default()
	if got.Body == "changed" || got.Variables[0] == "changed" {
		t.Error("catalog shares memory with the slice it was built from")
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	tpl := core.ResponseTemplate{
		ID:        "t",
		Body:      "Sobre {topic}, precisamos de {missing_info}. {topic}!",
		Variables: []string{"topic", "missing_info"},
	}
	vars := map[string]string{"topic": "faturas", "missing_info": "o CNPJ"}
	want := "Sobre faturas, precisamos de o CNPJ. faturas!"

	first, err := templates.Render(tpl, vars)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	second, err := templates.Render(tpl, vars)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if first != want || second != want {
		t.Errorf("Render() = %q then %q, want %q", first, second, want)
	}
	if tpl.Body != "Sobre {topic}, precisamos de {missing_info}. {topic}!" {
		t.Errorf("Render() modified the template body: %q", tpl.Body)
	}
	if !reflect.DeepEqual(tpl.Variables, []string{"topic", "missing_info"}) {
		t.Errorf("Render() modified the template variables: %v", tpl.Variables)
	}
}

func TestRender_MissingVariable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tpl  core.ResponseTemplate
		vars map[string]string
		want string
	}{
		{
			name: "declared variable",
			tpl:  core.ResponseTemplate{ID: "t", Body: "Conta {account_id}", Variables: []string{"account_id"}},
			vars: map[string]string{"topic": "x"},
			want: "account_id",
		},
		{
			name: "undeclared placeholder",
			tpl:  core.ResponseTemplate{ID: "t", Body: "Olá {name}"},
			vars: map[string]string{},
			want: "name",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := templates.Render(tt.tpl, tt.vars)
			if !errors.Is(err, core.ErrMissingVariable) {
				t.Fatalf("Render() error = %v, want ErrMissingVariable", err)
			}
			var mv *core.MissingVariableError
			if !errors.As(err, &mv) || mv.Variable != tt.want {
				t.Errorf("Render() error = %v, want missing %q", err, tt.want)
			}
		})
	}
}

func TestBind(t *testing.T) {
	t.Parallel()

	tpl := core.ResponseTemplate{ID: "t", Language: "pt", Variables: []string{"topic", "missing_info"}}

	tests := []struct {
		name  string
		raw   *core.RawMessage
		msg   *core.NormalizedMessage
		extra map[string]string
		want  map[string]string
	}{
		{
			name: "subject wins",
			raw:  &core.RawMessage{Subject: "Contrato 2024"},
			msg:  normalized("pt", "revisão", "contrato"),
			want: map[string]string{"topic": "Contrato 2024", "missing_info": "detalhes específicos da solicitação"},
		},
		{
			name: "first tokens",
			raw:  &core.RawMessage{},
			msg:  normalized("pt", "um", "dois", "tres", "quatro", "cinco", "seis"),
			want: map[string]string{"topic": "um dois tres quatro cinco", "missing_info": "detalhes específicos da solicitação"},
		},
		{
			name:  "context overrides",
			raw:   &core.RawMessage{Subject: "Assunto"},
			msg:   normalized("pt"),
			extra: map[string]string{"topic": "faturamento", "missing_info": "o CNPJ", "priority": "alta"},
			want:  map[string]string{"topic": "faturamento", "missing_info": "o CNPJ", "priority": "alta"},
		},
		{
			name: "defaults",
			raw:  &core.RawMessage{},
			msg:  normalized("pt"),
			want: map[string]string{"topic": "sua solicitação", "missing_info": "detalhes específicos da solicitação"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := templates.Bind(tt.raw, tt.msg, tpl, tt.extra)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Bind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBind_EnglishDefaults(t *testing.T) {
	t.Parallel()

	tpl := core.ResponseTemplate{ID: "t", Language: "en", Variables: []string{"topic"}}
	got := templates.Bind(&core.RawMessage{}, normalized("en"), tpl, nil)
	if got["topic"] != "your request" {
		t.Errorf("topic = %q, want %q", got["topic"], "your request")
	}
	if _, ok := got["missing_info"]; ok {
		t.Error("missing_info should only be defaulted when the template declares it")
	}
}

func TestBuildReply(t *testing.T) {
	t.Parallel()

	renderer := templates.NewRenderer(mustCatalog(t, templates.DefaultTemplates()), zap.NewNop())

	tests := []struct {
		name        string
		raw         *core.RawMessage
		msg         *core.NormalizedMessage
		cls         *core.ClassificationResult
		extra       map[string]string
		wantSubject string
		wantETA     string
		wantTone    string
		wantPrefix  string
		wantBody    string
	}{
		{
			name:        "productive with subject",
			raw:         &core.RawMessage{Subject: "Acesso ao sistema"},
			msg:         normalized("pt", "acesso", "sistema"),
			cls:         productive(0.9),
			wantSubject: "Re: Acesso ao sistema",
			wantETA:     "2-4 horas",
			wantTone:    "professional",
			wantBody:    "Acesso ao sistema",
		},
		{
			name:        "productive without subject",
			raw:         &core.RawMessage{},
			msg:         normalized("pt", "solicito", "análise"),
			cls:         productive(0.8),
			wantSubject: "Resposta à sua solicitação",
			wantETA:     "4-8 horas",
			wantTone:    "professional",
			wantBody:    "solicito análise",
		},
		{
			name:     "unproductive has no subject",
			raw:      &core.RawMessage{Subject: "Obrigado"},
			msg:      normalized("pt"),
			cls:      unproductive(0.99),
			wantETA:  "24 horas",
			wantTone: "friendly",
		},
		{
			name:        "english",
			raw:         &core.RawMessage{},
			msg:         normalized("en", "invoice"),
			cls:         productive(0.95),
			wantSubject: "Response to your request",
			wantETA:     "2-4 hours",
			wantTone:    "professional",
			wantBody:    "invoice",
		},
		{
			name:        "customizations",
			raw:         &core.RawMessage{},
			msg:         normalized("pt"),
			cls:         unproductive(0.5),
			extra:       map[string]string{"tone": "formal", "urgency": "high", "subject": "Aviso"},
			wantSubject: "Aviso",
			wantETA:     "24 horas",
			wantTone:    "formal",
			wantPrefix:  "URGENTE: ",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reply, err := renderer.BuildReply(tt.raw, tt.msg, tt.cls, tt.extra)
			if err != nil {
				t.Fatalf("BuildReply() error = %v", err)
			}

			switch {
			case tt.wantSubject == "" && reply.Subject != nil:
				t.Errorf("Subject = %q, want nil", *reply.Subject)
			case tt.wantSubject != "" && (reply.Subject == nil || *reply.Subject != tt.wantSubject):
				t.Errorf("Subject = %v, want %q", reply.Subject, tt.wantSubject)
			}
			if reply.ETA != tt.wantETA {
				t.Errorf("ETA = %q, want %q", reply.ETA, tt.wantETA)
			}
			if reply.Tone != tt.wantTone {
				t.Errorf("Tone = %q, want %q", reply.Tone, tt.wantTone)
			}
			if !strings.HasPrefix(reply.Body, tt.wantPrefix) {
				t.Errorf("Body = %q, want prefix %q", reply.Body, tt.wantPrefix)
			}
			if !strings.Contains(reply.Body, tt.wantBody) {
				t.Errorf("Body = %q, want it to contain %q", reply.Body, tt.wantBody)
			}
			if strings.ContainsAny(reply.Body, "{}") {
				t.Errorf("Body = %q, has unrendered placeholders", reply.Body)
			}
		})
	}
}

func TestBuildReply_MissingVariableIsRenderError(t *testing.T) {
	t.Parallel()

	catalog := mustCatalog(t, []core.ResponseTemplate{
		{ID: "needs-account", Label: core.LabelProductive, Body: "Conta {account_id} bloqueada.", Variables: []string{"account_id"}, Language: "pt", Active: true},
	})
	renderer := templates.NewRenderer(catalog, zap.NewNop())

	reply, err := renderer.BuildReply(&core.RawMessage{}, normalized("pt"), productive(0.9), nil)
	if reply != nil {
		t.Errorf("BuildReply() reply = %+v, want nil", reply)
	}

	var renderErr *core.TemplateRenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("BuildReply() error = %v, want TemplateRenderError", err)
	}
	if !errors.Is(err, core.ErrMissingVariable) {
		t.Errorf("BuildReply() error = %v, want it to wrap ErrMissingVariable", err)
	}
	if core.Code(err) != core.CodeTemplateRender {
		t.Errorf("Code() = %q, want %q", core.Code(err), core.CodeTemplateRender)
	}
}

func TestEstimateResponseTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cls  *core.ClassificationResult
		lang string
		want string
	}{
		{productive(0.81), "pt", "2-4 horas"},
		{productive(0.8), "pt", "4-8 horas"},
		{unproductive(0.99), "pt", "24 horas"},
		{unproductive(0.1), "en", "24 hours"},
		{productive(0.5), "xx", "4-8 horas"},
	}

	for _, tt := range tests {
		if got := templates.EstimateResponseTime(tt.cls, tt.lang); got != tt.want {
			t.Errorf("EstimateResponseTime(%s %v, %q) = %q, want %q", tt.cls.Label, tt.cls.Confidence, tt.lang, got, tt.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	got := templates.Placeholders("{a} and {b} and {a} but not {1x} or { c }")
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Placeholders() = %v, want [a b]", got)
	}
}
