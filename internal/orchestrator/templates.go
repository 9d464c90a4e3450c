package orchestrator

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// ResponseTemplate is one entry the response generator expands (§4.10 step
// 8: "template expansion + suggestions").
type ResponseTemplate struct {
	ID          string
	Text        *template.Template
	Suggestions []string
}

// TemplateStore holds every ResponseTemplate, keyed by id.
type TemplateStore struct {
	templates map[string]*ResponseTemplate
}

// defTemplateDocument mirrors the dialog package's YAML loading shape
// (internal/dialog/yaml.go), applied to response templates instead of
// flow definitions.
type defTemplateDocument struct {
	Templates []defTemplate `yaml:"templates"`
}

type defTemplate struct {
	ID          string   `yaml:"id"`
	Text        string   `yaml:"text"`
	Suggestions []string `yaml:"suggestions,omitempty"`
}

// LoadTemplatesFromYAML parses a template-definition document.
func LoadTemplatesFromYAML(data []byte) (*TemplateStore, error) {
	var doc defTemplateDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("orchestrator: parsing templates: %w", err)
	}

	store := &TemplateStore{templates: make(map[string]*ResponseTemplate, len(doc.Templates))}
	for _, t := range doc.Templates {
		parsed, err := template.New(t.ID).Parse(t.Text)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: parsing template %q: %w", t.ID, err)
		}
		store.templates[t.ID] = &ResponseTemplate{ID: t.ID, Text: parsed, Suggestions: t.Suggestions}
	}
	return store, nil
}

// LoadTemplatesFromFile reads and parses a template-definition file.
func LoadTemplatesFromFile(path string) (*TemplateStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: reading template file: %w", err)
	}
	return LoadTemplatesFromYAML(data)
}

// NewTemplateStore builds a store directly from in-memory templates,
// primarily for tests and the built-in default set.
func NewTemplateStore(templates map[string]*ResponseTemplate) *TemplateStore {
	return &TemplateStore{templates: templates}
}

// unknownTemplateText is rendered, unexpanded, when a Dialog Action names a
// template id the store has no entry for — a configuration gap, not a
// runtime error the caller should see as a failure.
const unknownTemplateText = "I'm not sure how to respond to that yet."

// Render expands the named template with params, returning its rendered
// text and suggestion list. An unknown template id degrades to a generic
// apology rather than failing the turn.
func (s *TemplateStore) Render(templateID string, params map[string]any) (string, []string) {
	tpl, ok := s.templates[templateID]
	if !ok {
		return unknownTemplateText, nil
	}

	var buf bytes.Buffer
	if err := tpl.Text.Execute(&buf, params); err != nil {
		return unknownTemplateText, tpl.Suggestions
	}
	return buf.String(), tpl.Suggestions
}
