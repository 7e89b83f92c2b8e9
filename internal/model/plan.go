package model

import (
	"fmt"
	"strconv"
	"strings"
)

// RiskSeverity is the four-value enum used by the risk analyzer.
type RiskSeverity string

const (
	RiskLow      RiskSeverity = "Low"
	RiskMedium   RiskSeverity = "Medium"
	RiskHigh     RiskSeverity = "High"
	RiskCritical RiskSeverity = "Critical"
)

// Valid reports whether s is one of the four risk levels.
func (s RiskSeverity) Valid() bool {
	switch s {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Milestone is one phase of a project plan.
type Milestone struct {
	Phase        string   `json:"phase"`
	Duration     string   `json:"duration"`
	Deliverables []string `json:"deliverables"`
	Dependencies []string `json:"dependencies"`
}

// TechStack holds the four recommended technology areas.
type TechStack struct {
	Frontend       string `json:"frontend"`
	Backend        string `json:"backend"`
	Database       string `json:"database"`
	Infrastructure string `json:"infrastructure"`
}

// Fields returns the stack as ordered name/value pairs.
func (t TechStack) Fields() [][2]string {
	return [][2]string{
		{"frontend", t.Frontend},
		{"backend", t.Backend},
		{"database", t.Database},
		{"infrastructure", t.Infrastructure},
	}
}

// Risk is a single identified project risk.
type Risk struct {
	Risk       string       `json:"risk"`
	Severity   RiskSeverity `json:"severity" jsonschema:"enum=Low,enum=Medium,enum=High,enum=Critical"`
	Mitigation string       `json:"mitigation"`
}

// ProjectPlan is the merged output of the planning stage.
type ProjectPlan struct {
	Milestones      []Milestone `json:"milestones"`
	TechStack       TechStack   `json:"techStack"`
	Risks           []Risk      `json:"risks"`
	EstimatedCost   float64     `json:"estimatedCost"`
	Timeline        string      `json:"timeline"`
	TeamComposition string      `json:"teamComposition,omitempty"`
	// Degraded lists the fragments replaced by defaults after a generator failure.
	Degraded []string `json:"degraded,omitempty"`
}

// Clone returns a deep copy of the plan.
func (p ProjectPlan) Clone() ProjectPlan {
	out := p
	out.Milestones = make([]Milestone, len(p.Milestones))
	for i, m := range p.Milestones {
		m.Deliverables = append([]string(nil), m.Deliverables...)
		m.Dependencies = append([]string(nil), m.Dependencies...)
		out.Milestones[i] = m
	}
	out.Risks = append([]Risk(nil), p.Risks...)
	out.Degraded = append([]string(nil), p.Degraded...)
	return out
}

// IsDegraded reports whether any fragment was substituted.
func (p ProjectPlan) IsDegraded() bool {
	return len(p.Degraded) > 0
}

// ValidateDependencies checks that phase names are unique and that every
// dependency references a phase defined earlier in the sequence.
func ValidateDependencies(milestones []Milestone) error {
	seen := make(map[string]struct{}, len(milestones))
	for i, m := range milestones {
		phase := strings.TrimSpace(m.Phase)
		if phase == "" {
			return fmt.Errorf("milestone[%d]: phase is required", i)
		}
		for _, dep := range m.Dependencies {
			dep = strings.TrimSpace(dep)
			if dep == phase {
				return fmt.Errorf("milestone[%d] %q: depends on itself", i, phase)
			}
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("milestone[%d] %q: dependency %q is not an earlier phase", i, phase, dep)
			}
		}
		if _, dup := seen[phase]; dup {
			return fmt.Errorf("milestone[%d]: duplicate phase %q", i, phase)
		}
		seen[phase] = struct{}{}
	}
	return nil
}

// Validate checks the structural invariants of a plan.
func (p ProjectPlan) Validate() error {
	if err := ValidateDependencies(p.Milestones); err != nil {
		return err
	}
	for i, m := range p.Milestones {
		if len(m.Deliverables) == 0 {
			return fmt.Errorf("milestone[%d] %q: at least one deliverable is required", i, m.Phase)
		}
	}
	for i, r := range p.Risks {
		if !r.Severity.Valid() {
			return fmt.Errorf("risk[%d]: unknown severity %q", i, r.Severity)
		}
	}
	if p.EstimatedCost < 0 {
		return fmt.Errorf("estimated cost must not be negative")
	}
	return nil
}

// FormatMoney renders an amount with thousands separators and no cents
// when the amount is whole.
func FormatMoney(v float64) string {
	whole := v == float64(int64(v))
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if whole {
		s = strconv.FormatInt(int64(v), 10)
	}
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String()
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
