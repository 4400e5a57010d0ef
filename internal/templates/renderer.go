package templates

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

// topicTokens is how many normalized tokens make up a derived topic
const topicTokens = 5

// Context keys with a meaning beyond plain template variables
const (
	ContextSubject  = "subject"
	ContextTone     = "tone"
	ContextLanguage = "language"
	ContextUrgency  = "urgency"
)

// phrases holds the language dependent fixed strings of a reply
type phrases struct {
	topic          string
	missingInfo    string
	genericSubject string
	etaFast        string
	etaSlow        string
	etaStandard    string
	urgentPrefix   string
}

var phrasebook = map[string]phrases{
	core.LanguagePortuguese: {
		topic:          "sua solicitação",
		missingInfo:    "detalhes específicos da solicitação",
		genericSubject: "Resposta à sua solicitação",
		etaFast:        "2-4 horas",
		etaSlow:        "4-8 horas",
		etaStandard:    "24 horas",
		urgentPrefix:   "URGENTE: ",
	},
	core.LanguageEnglish: {
		topic:          "your request",
		missingInfo:    "specific details of the request",
		genericSubject: "Response to your request",
		etaFast:        "2-4 hours",
		etaSlow:        "4-8 hours",
		etaStandard:    "24 hours",
		urgentPrefix:   "URGENT: ",
	},
}

func phrasesFor(language string) phrases {
	if p, ok := phrasebook[language]; ok {
		return p
	}
	return phrasebook[core.DefaultLanguage]
}

// Render substitutes every {name} placeholder in the template body. It fails
// with a MissingVariableError if a declared variable or a placeholder has no
// value. The template is not modified.
func Render(tpl core.ResponseTemplate, vars map[string]string) (string, error) {
	for _, name := range tpl.Variables {
		if _, ok := vars[name]; !ok {
			return "", &core.MissingVariableError{TemplateID: tpl.ID, Variable: name}
		}
	}

	var missing string
	body := placeholderPattern.ReplaceAllStringFunc(tpl.Body, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", &core.MissingVariableError{TemplateID: tpl.ID, Variable: missing}
	}
	return body, nil
}

// Renderer builds suggested replies from a Catalog
type Renderer struct {
	catalog *Catalog
	logger  *zap.Logger
}

// NewRenderer creates a Renderer over catalog
func NewRenderer(catalog *Catalog, logger *zap.Logger) *Renderer {
	return &Renderer{
		catalog: catalog,
		logger:  logger,
	}
}

// Catalog returns the catalog the renderer selects from
func (r *Renderer) Catalog() *Catalog {
	return r.catalog
}

// Bind resolves the variables for tpl. topic comes from the subject or the
// first normalized tokens, caller context overrides it, and documented
// defaults fill in topic and missing_info when the template declares them
// and they are still unresolved.
func Bind(raw *core.RawMessage, msg *core.NormalizedMessage, tpl core.ResponseTemplate, extra map[string]string) map[string]string {
	vars := make(map[string]string, len(extra)+2)

	if raw != nil && strings.TrimSpace(raw.Subject) != "" {
		vars["topic"] = strings.TrimSpace(raw.Subject)
	} else if msg != nil && len(msg.Tokens) > 0 {
		n := min(len(msg.Tokens), topicTokens)
		vars["topic"] = strings.Join(msg.Tokens[:n], " ")
	}

	for k, v := range extra {
		vars[k] = v
	}

	p := phrasesFor(tpl.Language)
	defaults := map[string]string{
		"topic":        p.topic,
		"missing_info": p.missingInfo,
	}
	for _, name := range tpl.Variables {
		if strings.TrimSpace(vars[name]) != "" {
			continue
		}
		if d, ok := defaults[name]; ok {
			vars[name] = d
		}
	}
	return vars
}

// BuildReply selects a template for the classified message, renders it and
// attaches subject, tone and ETA.
func (r *Renderer) BuildReply(
	raw *core.RawMessage,
	msg *core.NormalizedMessage,
	cls *core.ClassificationResult,
	extra map[string]string,
) (*core.SuggestedReply, error) {
	tpl := r.catalog.Select(msg, cls)

	body, err := Render(tpl, Bind(raw, msg, tpl, extra))
	if err != nil {
		r.logger.Error("Failed to render reply template",
			zap.String("template", tpl.ID),
			zap.Error(err))
		return nil, core.NewTemplateRenderError(fmt.Sprintf("render template %q", tpl.ID), err)
	}

	reply := &core.SuggestedReply{
		Subject:  replySubject(raw, cls, tpl.Language, extra),
		Body:     body,
		Tone:     tpl.Tone,
		Language: tpl.Language,
		ETA:      EstimateResponseTime(cls, tpl.Language),
	}
	Customize(reply, extra)

	r.logger.Debug("Reply built",
		zap.String("template", tpl.ID),
		zap.String("label", string(cls.Label)),
		zap.String("language", tpl.Language))

	return reply, nil
}

func replySubject(raw *core.RawMessage, cls *core.ClassificationResult, language string, extra map[string]string) *string {
	if s := strings.TrimSpace(extra[ContextSubject]); s != "" {
		return &s
	}
	if cls.Label != core.LabelProductive {
		return nil
	}
	if raw != nil && strings.TrimSpace(raw.Subject) != "" {
		s := "Re: " + strings.TrimSpace(raw.Subject)
		return &s
	}
	s := phrasesFor(language).genericSubject
	return &s
}

// EstimateResponseTime returns the expected response window for a
// classification, in the given language.
func EstimateResponseTime(cls *core.ClassificationResult, language string) string {
	p := phrasesFor(language)
	if cls.Label != core.LabelProductive {
		return p.etaStandard
	}
	if cls.Confidence > 0.8 {
		return p.etaFast
	}
	return p.etaSlow
}

// Customize applies caller overrides to a built reply: tone and language
// replace the template's, and urgency "high" prefixes the body.
func Customize(reply *core.SuggestedReply, extra map[string]string) {
	if tone := strings.TrimSpace(extra[ContextTone]); tone != "" {
		reply.Tone = tone
	}
	if lang := strings.TrimSpace(extra[ContextLanguage]); lang != "" {
		reply.Language = lang
	}
	if strings.EqualFold(strings.TrimSpace(extra[ContextUrgency]), "high") {
		reply.Body = phrasesFor(reply.Language).urgentPrefix + reply.Body
	}
}
