// Package rules implements the weighted keyword/regex rule engine used for
// local classification.
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

// ModelName is reported as ModelUsed on every local classification
const ModelName = "heuristic_rules"

// NoMatchReasoning is the reasoning reported when no rule matched
const NoMatchReasoning = "no rule matched"

// Rule is a weighted matcher for one label. Exactly one of Keywords or
// Patterns must be set.
type Rule struct {
	Name          string     `yaml:"name"`
	Label         core.Label `yaml:"label"`
	Keywords      []string   `yaml:"keywords"`
	Patterns      []string   `yaml:"patterns"`
	Weight        float64    `yaml:"weight"`
	CaseSensitive bool       `yaml:"case_sensitive"`
}

// compiledRule is a validated Rule ready for matching
type compiledRule struct {
	Rule
	keywords []string
	patterns []*regexp.Regexp
}

func compile(r Rule) (*compiledRule, error) {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return nil, core.NewCatalogConfigurationError("rule has no name", nil)
	case !r.Label.Valid():
		return nil, core.NewCatalogConfigurationError(fmt.Sprintf("rule %q: invalid label %q", r.Name, r.Label), nil)
	case r.Weight <= 0:
		return nil, core.NewCatalogConfigurationError(fmt.Sprintf("rule %q: weight must be positive, got %v", r.Name, r.Weight), nil)
	case len(r.Keywords) == 0 && len(r.Patterns) == 0:
		return nil, core.NewCatalogConfigurationError(fmt.Sprintf("rule %q: no keywords or patterns", r.Name), nil)
	case len(r.Keywords) > 0 && len(r.Patterns) > 0:
		return nil, core.NewCatalogConfigurationError(fmt.Sprintf("rule %q: keywords and patterns are mutually exclusive", r.Name), nil)
	}

	cr := &compiledRule{Rule: r}
	for _, kw := range r.Keywords {
		if kw == "" {
			return nil, core.NewCatalogConfigurationError(fmt.Sprintf("rule %q: empty keyword", r.Name), nil)
		}
		if !r.CaseSensitive {
			kw = strings.ToLower(kw)
		}
		cr.keywords = append(cr.keywords, kw)
	}
	for _, p := range r.Patterns {
		expr := p
		if !r.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, core.NewCatalogConfigurationError(fmt.Sprintf("rule %q: invalid pattern %q", r.Name, p), err)
		}
		cr.patterns = append(cr.patterns, re)
	}
	return cr, nil
}

// matches expects lower to be the lower-cased form of text
func (r *compiledRule) matches(text, lower string) bool {
	if len(r.patterns) > 0 {
		for _, re := range r.patterns {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}

	haystack := lower
	if r.CaseSensitive {
		haystack = text
	}
	for _, kw := range r.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// Engine classifies normalized messages against an ordered rule catalog.
// Classify is safe for concurrent use with AddRule.
type Engine struct {
	mu     sync.Mutex
	rules  atomic.Pointer[[]*compiledRule]
	logger *zap.Logger
}

// NewEngine validates and compiles the catalog. Any malformed rule is a
// CatalogConfigurationError.
func NewEngine(rules []Rule, logger *zap.Logger) (*Engine, error) {
	compiled := make([]*compiledRule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if _, dup := seen[r.Name]; dup {
			return nil, core.NewCatalogConfigurationError(fmt.Sprintf("duplicate rule name %q", r.Name), nil)
		}
		cr, err := compile(r)
		if err != nil {
			return nil, err
		}
		seen[r.Name] = struct{}{}
		compiled = append(compiled, cr)
	}

	e := &Engine{logger: logger}
	e.rules.Store(&compiled)

	logger.Debug("Rule engine initialized", zap.Int("rules", len(compiled)))
	return e, nil
}

// Classify scores msg against every rule. It never fails.
func (e *Engine) Classify(msg *core.NormalizedMessage) *core.ClassificationResult {
	start := time.Now()
	rules := *e.rules.Load()

	text := ""
	if msg != nil {
		text = msg.CleanText
	}
	lower := strings.ToLower(text)

	var productive, unproductive float64
	var matched []string
	for _, r := range rules {
		if !r.matches(text, lower) {
			continue
		}
		if r.Label == core.LabelProductive {
			productive += r.Weight
		} else {
			unproductive += r.Weight
		}
		matched = append(matched, r.Name)
	}

	result := &core.ClassificationResult{ModelUsed: ModelName}

	total := productive + unproductive
	if total == 0 {
		result.Label = core.LabelUnproductive
		result.Confidence = 0.5
		result.Reasoning = NoMatchReasoning
	} else {
		pConf := productive / total
		uConf := unproductive / total
		// PRODUCTIVE needs a strict majority; ties go to UNPRODUCTIVE
		if pConf > uConf {
			result.Label = core.LabelProductive
			result.Confidence = pConf
		} else {
			result.Label = core.LabelUnproductive
			result.Confidence = uConf
		}
		result.Reasoning = strings.Join(matched, ", ")
	}
	result.ProcessingTime = time.Since(start)

	return result
}

// AddRule appends a rule to the catalog. In-flight classifications keep
// using the catalog they started with.
func (e *Engine) AddRule(rule Rule) error {
	cr, err := compile(rule)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := *e.rules.Load()
	for _, r := range current {
		if r.Name == rule.Name {
			return core.NewCatalogConfigurationError(fmt.Sprintf("duplicate rule name %q", rule.Name), nil)
		}
	}

	next := make([]*compiledRule, len(current), len(current)+1)
	copy(next, current)
	next = append(next, cr)
	e.rules.Store(&next)

	e.logger.Info("Rule added",
		zap.String("rule", rule.Name),
		zap.String("label", string(rule.Label)),
		zap.Float64("weight", rule.Weight))
	return nil
}

// Summary returns rule counts per label and the rule names in catalog order
func (e *Engine) Summary() core.RuleSummary {
	rules := *e.rules.Load()
	s := core.RuleSummary{Total: len(rules), Rules: make([]string, 0, len(rules))}
	for _, r := range rules {
		if r.Label == core.LabelProductive {
			s.Productive++
		} else {
			s.Unproductive++
		}
		s.Rules = append(s.Rules, r.Name)
	}
	return s
}
