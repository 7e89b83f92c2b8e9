package model

// Severity ranks a project evaluation issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from 0 (low) to 3 (critical).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Issue categories emitted by the project evaluator.
const (
	CategoryBudget      = "budget"
	CategoryTimeline    = "timeline"
	CategoryScope       = "scope"
	CategoryTechnical   = "technical"
	CategoryMilestones  = "milestones"
	CategoryRequirement = "requirement"
)

// Issue is a single misalignment between a requirement and a plan.
type Issue struct {
	Category       string   `json:"category"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

// ProjectEvaluation is the verdict of comparing a plan against its requirement.
type ProjectEvaluation struct {
	IsValid  bool    `json:"isValid"`
	Feedback string  `json:"feedback"`
	Issues   []Issue `json:"issues"`
	Summary  string  `json:"summary"`
}

// Count returns the number of issues with exactly the given severity.
func (e ProjectEvaluation) Count(sev Severity) int {
	n := 0
	for _, is := range e.Issues {
		if is.Severity == sev {
			n++
		}
	}
	return n
}

// Has reports whether any issue matches category with at least severity min.
func (e ProjectEvaluation) Has(category string, min Severity) bool {
	for _, is := range e.Issues {
		if is.Category == category && is.Severity.AtLeast(min) {
			return true
		}
	}
	return false
}

// Weight scores an evaluation so that fewer severe issues compare lower.
func (e ProjectEvaluation) Weight() int {
	return e.Count(SeverityCritical)*1000 + e.Count(SeverityHigh)*100 + e.Count(SeverityMedium)*10 + e.Count(SeverityLow)
}
