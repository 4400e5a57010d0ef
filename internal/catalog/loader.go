// Package catalog loads the rule and template catalogs, merging optional
// YAML definitions with the built-in ones.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/rules"
	"github.com/mikey/mail-triage/internal/templates"
)

// File is the on-disk catalog format
type File struct {
	// ReplaceDefaults drops the built-in rules and templates instead of
	// appending to them
	ReplaceDefaults bool           `yaml:"replace_defaults"`
	Rules           []rules.Rule   `yaml:"rules"`
	Templates       []templateSpec `yaml:"templates"`
}

// templateSpec mirrors core.ResponseTemplate; Active defaults to true
type templateSpec struct {
	ID        string     `yaml:"id"`
	Label     core.Label `yaml:"label"`
	Body      string     `yaml:"body"`
	Variables []string   `yaml:"variables"`
	Tone      string     `yaml:"tone"`
	Language  string     `yaml:"language"`
	Active    *bool      `yaml:"active"`
}

func (s templateSpec) toTemplate() core.ResponseTemplate {
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	tone := s.Tone
	if tone == "" {
		tone = "professional"
	}
	language := s.Language
	if language == "" {
		language = core.DefaultLanguage
	}
	return core.ResponseTemplate{
		ID:        s.ID,
		Label:     core.Label(strings.ToUpper(string(s.Label))),
		Body:      s.Body,
		Variables: s.Variables,
		Tone:      tone,
		Language:  language,
		Active:    active,
	}
}

// Parse decodes a catalog document. Unknown fields are rejected and an
// empty document is an empty catalog.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, core.NewCatalogConfigurationError("failed to parse catalog", err)
	}
	for i := range f.Rules {
		f.Rules[i].Label = core.Label(strings.ToUpper(string(f.Rules[i].Label)))
	}
	return &f, nil
}

// Load reads a catalog file from path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewCatalogConfigurationError(fmt.Sprintf("failed to read catalog %s", path), err)
	}
	return Parse(data)
}

// Catalogs is the result of building both catalogs
type Catalogs struct {
	Engine    *rules.Engine
	Templates *templates.Catalog
}

// Build constructs the rule engine and template catalog. An empty path
// yields the built-in catalogs.
func Build(path string, logger *zap.Logger) (*Catalogs, error) {
	ruleSet := rules.DefaultRules()
	templateSet := templates.DefaultTemplates()

	if path != "" {
		f, err := Load(path)
		if err != nil {
			return nil, err
		}
		if f.ReplaceDefaults {
			ruleSet = nil
			templateSet = nil
		}
		ruleSet = append(ruleSet, f.Rules...)
		for _, s := range f.Templates {
			templateSet = append(templateSet, s.toTemplate())
		}

		logger.Info("Loaded catalog file",
			zap.String("path", path),
			zap.Bool("replace_defaults", f.ReplaceDefaults),
			zap.Int("rules", len(f.Rules)),
			zap.Int("templates", len(f.Templates)))
	}

	engine, err := rules.NewEngine(ruleSet, logger)
	if err != nil {
		return nil, err
	}
	catalog, err := templates.NewCatalog(templateSet)
	if err != nil {
		return nil, err
	}

	return &Catalogs{Engine: engine, Templates: catalog}, nil
}
