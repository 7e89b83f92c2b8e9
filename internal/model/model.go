// Package model defines the data contracts shared by every workflow stage.
package model

import (
	"strings"
)

// NextAction is the routing signal emitted by the requirement evaluator.
type NextAction string

const (
	ActionProceedToPlanning NextAction = "proceed_to_planning"
	ActionGatherMoreInfo    NextAction = "gather_more_info"
)

// Requirement is the accumulated project request.
// Only Description is required; the rest contribute to quality.
type Requirement struct {
	Name           string  `json:"name,omitempty"`
	Description    string  `json:"description"`
	Budget         float64 `json:"budget,omitempty"`
	Timeline       string  `json:"timeline,omitempty"`
	AdditionalInfo string  `json:"additionalInfo,omitempty"`
}

// Merge overlays the non-empty fields of update onto r and returns the result.
// Empty strings and non-positive budgets never overwrite existing values.
func (r Requirement) Merge(update Requirement) Requirement {
	out := r
	if v := strings.TrimSpace(update.Name); v != "" {
		out.Name = v
	}
	if v := strings.TrimSpace(update.Description); v != "" {
		out.Description = v
	}
	if update.Budget > 0 {
		out.Budget = update.Budget
	}
	if v := strings.TrimSpace(update.Timeline); v != "" {
		out.Timeline = v
	}
	if v := strings.TrimSpace(update.AdditionalInfo); v != "" {
		out.AdditionalInfo = v
	}
	return out
}

// IsZero reports whether no field has been collected yet.
func (r Requirement) IsZero() bool {
	return r == Requirement{}
}

// Text renders the requirement as the free-text input handed to generators.
func (r Requirement) Text() string {
	var b strings.Builder
	if r.Name != "" {
		b.WriteString("Project name: " + r.Name + "\n")
	}
	b.WriteString("Description: " + r.Description + "\n")
	if r.Budget > 0 {
		b.WriteString("Budget (USD): " + FormatMoney(r.Budget) + "\n")
	}
	if r.Timeline != "" {
		b.WriteString("Timeline: " + r.Timeline + "\n")
	}
	if r.AdditionalInfo != "" {
		b.WriteString("Additional information: " + r.AdditionalInfo + "\n")
	}
	return b.String()
}

// RequirementValidationResult is derived from a Requirement on every evaluation.
type RequirementValidationResult struct {
	IsComplete       bool        `json:"isComplete"`
	NeedsImprovement bool        `json:"needsImprovement"`
	MissingFields    []string    `json:"missingFields"`
	IncompleteFields []string    `json:"incompleteFields"`
	Feedback         []string    `json:"feedback"`
	Requirement      Requirement `json:"requirement"`
	NextAction       NextAction  `json:"nextAction"`
}
