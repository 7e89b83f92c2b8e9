// Package prompts holds the instruction templates of every generative
// capability. Templates are data: files in an override directory replace the
// embedded ones by name.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"text/template"
)

// Template names.
const (
	MilestonePlanner     = "milestone_planner"
	TechStackAdvisor     = "tech_stack_advisor"
	RiskAnalyzer         = "risk_analyzer"
	CostEstimator        = "cost_estimator"
	RequirementExtractor = "requirement_extractor"
)

//go:embed templates/*.gotmpl
var templateFS embed.FS

// Data is the template input.
type Data struct {
	Feedback []string
	Budget   string

	MinPhases       int
	MaxPhases       int
	MinDeliverables int
	MaxDeliverables int
	MinRisks        int
	MaxRisks        int
}

// Set is a parsed collection of templates.
type Set struct {
	t *template.Template
}

// Load parses the embedded templates and then any *.gotmpl files in dir.
// An empty dir uses the embedded templates only.
func Load(dir string) (*Set, error) {
	t, err := template.New("prompts").Option("missingkey=error").ParseFS(templateFS, "templates/*.gotmpl")
	if err != nil {
		return nil, fmt.Errorf("parse embedded prompts: %w", err)
	}
	if dir != "" {
		overrides, err := filepath.Glob(filepath.Join(dir, "*.gotmpl"))
		if err != nil {
			return nil, fmt.Errorf("list prompt overrides: %w", err)
		}
		if len(overrides) > 0 {
			if t, err = t.ParseFiles(overrides...); err != nil {
				return nil, fmt.Errorf("parse prompt overrides in %s: %w", dir, err)
			}
		}
	}
	return &Set{t: t}, nil
}

// Default returns the embedded templates.
func Default() *Set {
	s, err := Load("")
	if err != nil {
		panic(err)
	}
	return s
}

// Render executes the named template.
func (s *Set) Render(name string, data Data) (string, error) {
	var buf bytes.Buffer
	if err := s.t.ExecuteTemplate(&buf, name+".gotmpl", data); err != nil {
		return "", fmt.Errorf("execute prompt template %q: %w", name, err)
	}
	return buf.String(), nil
}
