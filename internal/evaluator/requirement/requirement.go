// Package requirement scores a requirement draft for completeness.
package requirement

import (
	"fmt"
	"strings"

	"github.com/metalagman/consultant/internal/config"
	"github.com/metalagman/consultant/internal/model"
	"github.com/rs/zerolog/log"
)

const (
	FieldName           = "name"
	FieldDescription    = "description"
	FieldBudget         = "budget"
	FieldTimeline       = "timeline"
	FieldAdditionalInfo = "additionalInfo"
)

// Fallback feedback when evaluation itself fails.
const safeDefaultFeedback = "Please provide a project description"

type check func(r model.Requirement, p config.RequirementPolicy, res *model.RequirementValidationResult)

// Evaluator applies the requirement policy. It holds no per-call state.
type Evaluator struct {
	policy config.RequirementPolicy
	checks []check
}

// New returns an evaluator for policy.
func New(policy config.RequirementPolicy) *Evaluator {
	return &Evaluator{
		policy: policy,
		checks: []check{checkDescription, checkBudget},
	}
}

// Evaluate derives a validation result from r. It never panics: an internal
// failure yields a safe default asking for the description.
func (e *Evaluator) Evaluate(r model.Requirement) (res model.RequirementValidationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("requirement evaluation failed, returning safe default")
			res = safeDefault(r)
		}
	}()

	res = model.RequirementValidationResult{
		MissingFields:    []string{},
		IncompleteFields: []string{},
		Feedback:         []string{},
		Requirement:      r,
	}
	for _, c := range e.checks {
		c(r, e.policy, &res)
	}

	res.IsComplete = len(res.MissingFields) == 0
	res.NeedsImprovement = len(res.IncompleteFields) > 0
	res.NextAction = model.ActionGatherMoreInfo
	if res.IsComplete {
		res.NextAction = model.ActionProceedToPlanning
	}

	log.Debug().
		Bool("complete", res.IsComplete).
		Strs("missing", res.MissingFields).
		Strs("incomplete", res.IncompleteFields).
		Msg("requirement evaluated")
	return res
}

func checkDescription(r model.Requirement, p config.RequirementPolicy, res *model.RequirementValidationResult) {
	desc := strings.TrimSpace(r.Description)
	n := len([]rune(desc))
	switch {
	case n == 0:
		res.MissingFields = append(res.MissingFields, FieldDescription)
		res.Feedback = append(res.Feedback, "Please provide a brief description of what you want to build")
	case n < p.MinDescriptionLength:
		res.MissingFields = append(res.MissingFields, FieldDescription)
		res.Feedback = append(res.Feedback, fmt.Sprintf(
			"Project description is too short (at least %d characters); explain the purpose and key features", p.MinDescriptionLength))
	case n < p.DetailedDescriptionLength:
		res.IncompleteFields = append(res.IncompleteFields, FieldDescription)
		res.Feedback = append(res.Feedback,
			"Description could be more detailed - consider adding target audience, key features, or technical requirements")
	}
}

func checkBudget(r model.Requirement, p config.RequirementPolicy, res *model.RequirementValidationResult) {
	switch {
	case r.Budget < 0:
		res.Feedback = append(res.Feedback, "Budget must be a positive number; the provided value was ignored")
	case r.Budget > 0 && r.Budget < p.BudgetFloor:
		res.IncompleteFields = append(res.IncompleteFields, FieldBudget)
		res.Feedback = append(res.Feedback, "Budget seems low - please confirm this is realistic for your project scope")
	}
}

func safeDefault(r model.Requirement) model.RequirementValidationResult {
	return model.RequirementValidationResult{
		IsComplete:       false,
		MissingFields:    []string{FieldDescription},
		IncompleteFields: []string{},
		Feedback:         []string{safeDefaultFeedback},
		Requirement:      r,
		NextAction:       model.ActionGatherMoreInfo,
	}
}
