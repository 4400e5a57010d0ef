package core

import (
	"strings"
	"time"
)

// Label is the outcome of classifying a message
type Label string

const (
	// LabelProductive marks a message that requires action
	LabelProductive Label = "PRODUCTIVE"
	// LabelUnproductive marks a message that does not require action
	LabelUnproductive Label = "UNPRODUCTIVE"
)

// Valid reports whether l is one of the two known labels
func (l Label) Valid() bool {
	return l == LabelProductive || l == LabelUnproductive
}

// ParseLabel converts a string into a Label, case-insensitively
func ParseLabel(s string) (Label, bool) {
	switch Label(strings.ToUpper(strings.TrimSpace(s))) {
	case LabelProductive:
		return LabelProductive, true
	case LabelUnproductive:
		return LabelUnproductive, true
	}
	return "", false
}

// Supported language codes
const (
	LanguagePortuguese = "pt"
	LanguageEnglish    = "en"
	DefaultLanguage    = LanguagePortuguese
)

// Priority is the processing priority derived from a classification
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Stage is the lifecycle state of one pipeline run
type Stage string

const (
	StagePending    Stage = "PENDING"
	StageNormalized Stage = "NORMALIZED"
	StageClassified Stage = "CLASSIFIED"
	StageCompleted  Stage = "COMPLETED"
	StageFailed     Stage = "FAILED"
)

// RawMessage is a message as received, before any processing
type RawMessage struct {
	Body           string
	Subject        string
	Sender         string
	Recipients     []string
	ReceivedAt     time.Time
	HasAttachments bool
}

// NormalizedMessage is the canonical, tokenized form of a RawMessage
type NormalizedMessage struct {
	CleanText      string   `json:"clean_text"`
	Tokens         []string `json:"tokens"`
	Language       string   `json:"language"`
	WordCount      int      `json:"word_count"`
	HasAttachments bool     `json:"has_attachments"`
}

// ClassificationResult is the label assigned to a message and the evidence for it
type ClassificationResult struct {
	Label          Label         `json:"label"`
	Confidence     float64       `json:"confidence"`
	Reasoning      string        `json:"reasoning"`
	ModelUsed      string        `json:"model_used,omitempty"`
	ProcessingTime time.Duration `json:"processing_time,omitempty"`
}

// Priority derives the processing priority of a classified message
func (c *ClassificationResult) Priority() Priority {
	switch {
	case c == nil:
		return PriorityLow
	case c.Label == LabelProductive:
		return PriorityHigh
	case c.Confidence < 0.7:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ResponseTemplate is a reply body with named {placeholders}
type ResponseTemplate struct {
	ID        string   `json:"id" yaml:"id"`
	Label     Label    `json:"label" yaml:"label"`
	Body      string   `json:"body" yaml:"body"`
	Variables []string `json:"variables" yaml:"variables"`
	Tone      string   `json:"tone" yaml:"tone"`
	Language  string   `json:"language" yaml:"language"`
	Active    bool     `json:"active" yaml:"active"`
}

// SuggestedReply is the reply produced for one pipeline run
type SuggestedReply struct {
	Subject  *string `json:"subject"`
	Body     string  `json:"body"`
	Tone     string  `json:"tone"`
	Language string  `json:"language"`
	ETA      string  `json:"eta,omitempty"`
}

// Metadata summarizes the normalized form of a processed message
type Metadata struct {
	WordCount      int    `json:"word_count"`
	Language       string `json:"language"`
	HasAttachments bool   `json:"has_attachments"`
}

// TriageRequest is the input accepted by the pipeline
type TriageRequest struct {
	Body           string
	Subject        string
	Sender         string
	Recipients     []string
	HasAttachments bool
	Context        map[string]string
}

// TriageResult is the complete output of a successful pipeline run
type TriageResult struct {
	ID             string                `json:"id"`
	Subject        string                `json:"subject,omitempty"`
	Sender         string                `json:"sender,omitempty"`
	Classification *ClassificationResult `json:"classification"`
	Reply          *SuggestedReply       `json:"reply"`
	Metadata       Metadata              `json:"metadata"`
	Priority       Priority              `json:"priority"`
	Escalated      bool                  `json:"escalated"`
	Warnings       []string              `json:"warnings,omitempty"`
	Stage          Stage                 `json:"stage"`
	ProcessedAt    time.Time             `json:"processed_at"`
}

// CacheEntry is a memoized pipeline result keyed by message fingerprint
type CacheEntry struct {
	Fingerprint string
	Result      *TriageResult
	LastSeen    time.Time
	ExpiresAt   time.Time
}

// ProcessingStats aggregates the results held by a ResultRepository
type ProcessingStats struct {
	Total             int        `json:"total"`
	Productive        int        `json:"productive"`
	Unproductive      int        `json:"unproductive"`
	AverageConfidence float64    `json:"average_confidence"`
	LastProcessedAt   *time.Time `json:"last_processed_at,omitempty"`
}

// RuleSummary describes a rule catalog
type RuleSummary struct {
	Total        int      `json:"total"`
	Productive   int      `json:"productive"`
	Unproductive int      `json:"unproductive"`
	Rules        []string `json:"rules"`
}
