// Package prompts owns the engine's prompt surface: seven named templates,
// each with a declared variable bundle and (for structured calls) an output
// schema. Template text can be swapped via on-disk overrides without
// rebuilding, as long as the variables and schema contracts are preserved.
package prompts

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Template names. Stages refer to prompts by name; the capability adapter
// also uses the name to pick a model capability.
const (
	SeedQueries             = "seed_queries"
	EvaluateResearch        = "evaluate_research"
	RefinementQueries       = "refinement_queries"
	PlanModules             = "plan_modules"
	PlanSubmodulesForModule = "plan_submodules_for_module"
	SubmoduleQueries        = "submodule_queries"
	SubmoduleContent        = "submodule_content"
)

// Names lists all template names in pipeline order.
var Names = []string{
	SeedQueries,
	EvaluateResearch,
	RefinementQueries,
	PlanModules,
	PlanSubmodulesForModule,
	SubmoduleQueries,
	SubmoduleContent,
}

// Library holds parsed templates and renders them with typed variable
// bundles. A Library starts with the built-in defaults; overrides replace
// individual templates by name.
type Library struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewLibrary creates a library with the built-in default templates.
// Panics on a malformed default, which is a programming error.
func NewLibrary() *Library {
	lib := &Library{templates: make(map[string]*template.Template)}
	for name, text := range defaultTexts {
		tmpl, err := template.New(name).Parse(text)
		if err != nil {
			panic(fmt.Sprintf("default prompt template %q: %v", name, err))
		}
		lib.templates[name] = tmpl
	}
	return lib
}

// Render executes the named template with the given variable bundle.
func (l *Library) Render(name string, vars any) (string, error) {
	l.mu.RLock()
	tmpl, ok := l.templates[name]
	l.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("unknown prompt template: %s", name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return sb.String(), nil
}

// Set replaces the template for name with new text. Unknown names are
// rejected: overrides may change wording, never the template set.
func (l *Library) Set(name, text string) error {
	if _, ok := defaultTexts[name]; !ok {
		return fmt.Errorf("unknown prompt template: %s", name)
	}

	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return fmt.Errorf("parse prompt override %s: %w", name, err)
	}

	l.mu.Lock()
	l.templates[name] = tmpl
	l.mu.Unlock()
	return nil
}

// Reset restores the built-in default for name.
func (l *Library) Reset(name string) error {
	text, ok := defaultTexts[name]
	if !ok {
		return fmt.Errorf("unknown prompt template: %s", name)
	}
	return l.Set(name, text)
}
