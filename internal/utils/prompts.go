package utils

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mikey/mail-triage/internal/core"
)

// System prompts sent with every request
const (
	ClassifierSystemPrompt = "You classify business emails as PRODUCTIVE or UNPRODUCTIVE. Respond only with JSON."
	ResponderSystemPrompt  = "You draft short, professional replies to business emails. Respond only with JSON."
)

const classificationPrompt = `Classify the following email.

PRODUCTIVE: the email requires a specific action or answer (support, questions, requests, status updates).
UNPRODUCTIVE: the email requires no immediate action (thanks, greetings, marketing).

Language: %s
Word count: %d
Text:
%s
%s
Respond with a JSON object containing:
- label: "PRODUCTIVE" or "UNPRODUCTIVE"
- confidence: number between 0 and 1
- reasoning: short explanation of the decision

Respond only with the JSON object and nothing else.`

const replyPrompt = `Draft a reply to the following email.

Subject: %s
Text:
%s

Classification: %s (confidence %.2f)
Reasoning: %s

Guidelines:
- PRODUCTIVE emails: offer help and ask for missing information if needed
- UNPRODUCTIVE emails: thank the sender and keep a cordial tone
- Write in the language of the original email (%s)
- Keep the reply to two or three sentences

Respond with a JSON object containing:
- subject: reply subject, or an empty string when none is needed
- body: the reply text
- tone: "professional", "friendly" or "warm"
- language: "pt" or "en"
- eta: estimated response time, or an empty string

Respond only with the JSON object and nothing else.`

// ClassificationPrompt renders the user prompt for a classification call.
// Context entries are listed in key order.
func (tp *TextProcessor) ClassificationPrompt(msg *core.NormalizedMessage, extra map[string]string, maxBodySize int) string {
	var contextBlock strings.Builder
	if len(extra) > 0 {
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextBlock.WriteString("\nAdditional context:\n")
		for _, k := range keys {
			fmt.Fprintf(&contextBlock, "- %s: %s\n", k, extra[k])
		}
	}

	return fmt.Sprintf(classificationPrompt,
		msg.Language,
		msg.WordCount,
		tp.ProcessText(msg.CleanText, maxBodySize),
		contextBlock.String())
}

// ReplyPrompt renders the user prompt for a reply call
func (tp *TextProcessor) ReplyPrompt(raw *core.RawMessage, msg *core.NormalizedMessage, cls *core.ClassificationResult, maxBodySize int) string {
	subject := raw.Subject
	if subject == "" {
		subject = "(none)"
	}
	return fmt.Sprintf(replyPrompt,
		subject,
		tp.ProcessText(raw.Body, maxBodySize),
		cls.Label,
		cls.Confidence,
		cls.Reasoning,
		msg.Language)
}

type classificationResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ParseClassification decodes a model response. An unknown label is an
// error; confidence is clamped to [0, 1].
func ParseClassification(text, model string) (*core.ClassificationResult, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var resp classificationResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}

	label, ok := core.ParseLabel(resp.Label)
	if !ok {
		return nil, fmt.Errorf("unknown label %q in classification response", resp.Label)
	}

	return &core.ClassificationResult{
		Label:      label,
		Confidence: math.Max(0, math.Min(1, resp.Confidence)),
		Reasoning:  strings.TrimSpace(resp.Reasoning),
		ModelUsed:  model,
	}, nil
}

type replyResponse struct {
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Tone     string `json:"tone"`
	Language string `json:"language"`
	ETA      string `json:"eta"`
}

// ParseReply decodes a model reply. Unknown tones fall back to
// professional and unknown languages to language.
func ParseReply(text, language string) (*core.SuggestedReply, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var resp replyResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse reply response: %w", err)
	}

	body := strings.TrimSpace(resp.Body)
	if body == "" {
		return nil, fmt.Errorf("reply response has an empty body")
	}

	reply := &core.SuggestedReply{
		Body:     body,
		Tone:     "professional",
		Language: language,
		ETA:      strings.TrimSpace(resp.ETA),
	}
	switch resp.Tone {
	case "professional", "friendly", "warm":
		reply.Tone = resp.Tone
	}
	switch resp.Language {
	case core.LanguagePortuguese, core.LanguageEnglish:
		reply.Language = resp.Language
	}

	subject := strings.TrimSpace(resp.Subject)
	switch strings.ToLower(subject) {
	case "", "sem assunto", "no subject":
	default:
		reply.Subject = &subject
	}

	return reply, nil
}
