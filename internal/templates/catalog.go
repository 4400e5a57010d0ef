// Package templates holds the reply template catalog and renders suggested
// replies from it.
package templates

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/mikey/mail-triage/internal/core"
)

var (
	placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	variableName       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Catalog is the ordered set of reply templates. The first entry is the
// fallback used when nothing is compatible.
type Catalog struct {
	mu        sync.RWMutex
	templates []core.ResponseTemplate
}

// NewCatalog validates the templates and returns a catalog holding copies
// of them.
func NewCatalog(templates []core.ResponseTemplate) (*Catalog, error) {
	if len(templates) == 0 {
		return nil, core.NewCatalogConfigurationError("template catalog is empty", nil)
	}

	seen := make(map[string]struct{}, len(templates))
	owned := make([]core.ResponseTemplate, 0, len(templates))
	for _, t := range templates {
		if err := validate(t); err != nil {
			return nil, err
		}
		if _, dup := seen[t.ID]; dup {
			return nil, core.NewCatalogConfigurationError(fmt.Sprintf("duplicate template id %q", t.ID), nil)
		}
		seen[t.ID] = struct{}{}
		owned = append(owned, clone(t))
	}

	return &Catalog{templates: owned}, nil
}

func validate(t core.ResponseTemplate) error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return core.NewCatalogConfigurationError("template has no id", nil)
	case !t.Label.Valid():
		return core.NewCatalogConfigurationError(fmt.Sprintf("template %q: invalid label %q", t.ID, t.Label), nil)
	case strings.TrimSpace(t.Body) == "":
		return core.NewCatalogConfigurationError(fmt.Sprintf("template %q: empty body", t.ID), nil)
	case t.Language == "":
		return core.NewCatalogConfigurationError(fmt.Sprintf("template %q: no language", t.ID), nil)
	}

	declared := make(map[string]struct{}, len(t.Variables))
	for _, v := range t.Variables {
		if !variableName.MatchString(v) {
			return core.NewCatalogConfigurationError(fmt.Sprintf("template %q: invalid variable name %q", t.ID, v), nil)
		}
		declared[v] = struct{}{}
	}
	for _, name := range Placeholders(t.Body) {
		if _, ok := declared[name]; !ok {
			return core.NewCatalogConfigurationError(fmt.Sprintf("template %q: placeholder {%s} is not declared", t.ID, name), nil)
		}
	}
	return nil
}

// Placeholders returns the distinct placeholder names in body, in order of
// first appearance.
func Placeholders(body string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

func clone(t core.ResponseTemplate) core.ResponseTemplate {
	t.Variables = append([]string(nil), t.Variables...)
	return t
}

// Compatible reports whether t may answer msg classified as cls
func Compatible(t core.ResponseTemplate, msg *core.NormalizedMessage, cls *core.ClassificationResult) bool {
	return t.Active && t.Label == cls.Label && t.Language == msg.Language
}

// Select picks the template for a classified message. PRODUCTIVE messages
// prefer the first compatible template without variables. When nothing is
// compatible the default template is returned, whatever its label.
func (c *Catalog) Select(msg *core.NormalizedMessage, cls *core.ClassificationResult) core.ResponseTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var compatible []core.ResponseTemplate
	for _, t := range c.templates {
		if Compatible(t, msg, cls) {
			compatible = append(compatible, t)
		}
	}

	if len(compatible) == 0 {
		return clone(c.templates[0])
	}

	if cls.Label == core.LabelProductive {
		for _, t := range compatible {
			if len(t.Variables) == 0 {
				return clone(t)
			}
		}
	}
	return clone(compatible[0])
}

// Default returns the fallback template
func (c *Catalog) Default() core.ResponseTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.templates[0])
}

// Get returns the template with the given id
func (c *Catalog) Get(id string) (core.ResponseTemplate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.templates {
		if t.ID == id {
			return clone(t), true
		}
	}
	return core.ResponseTemplate{}, false
}

// List returns the templates targeting label, or every template when label
// is empty.
func (c *Catalog) List(label core.Label) []core.ResponseTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.ResponseTemplate, 0, len(c.templates))
	for _, t := range c.templates {
		if label == "" || t.Label == label {
			out = append(out, clone(t))
		}
	}
	return out
}

// Activate marks a template usable
func (c *Catalog) Activate(id string) error {
	return c.setActive(id, true)
}

// Deactivate marks a template unusable. Selection still falls back to the
// default template if it is inactive.
func (c *Catalog) Deactivate(id string) error {
	return c.setActive(id, false)
}

func (c *Catalog) setActive(id string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.templates {
		if c.templates[i].ID == id {
			c.templates[i].Active = active
			return nil
		}
	}
	return fmt.Errorf("template %q not found", id)
}
