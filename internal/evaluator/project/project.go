// Package project checks a generated plan against the requirement it was
// built from.
package project

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/metalagman/consultant/internal/config"
	"github.com/metalagman/consultant/internal/model"
	"github.com/rs/zerolog/log"
)

var genericValues = map[string]struct{}{
	"tbd":              {},
	"to be determined": {},
	"any":              {},
	"n/a":              {},
	"na":               {},
	"none":             {},
	"standard":         {},
	"various":          {},
	"other":            {},
}

// Evaluator applies the project policy.
type Evaluator struct {
	policy config.ProjectPolicy
}

// New returns an evaluator for policy.
func New(policy config.ProjectPolicy) *Evaluator {
	return &Evaluator{policy: policy}
}

// Evaluate compares plan against req and returns the verdict.
func (e *Evaluator) Evaluate(req model.Requirement, plan model.ProjectPlan) model.ProjectEvaluation {
	var issues []model.Issue
	overage, budgetIssues := e.checkBudget(req, plan)
	issues = append(issues, budgetIssues...)
	issues = append(issues, e.checkTimeline(req, plan)...)
	issues = append(issues, checkScope(req, plan)...)
	issues = append(issues, checkTechStack(plan.TechStack)...)
	issues = append(issues, checkMilestones(plan.Milestones)...)

	ev := model.ProjectEvaluation{Issues: issues}
	if ev.Issues == nil {
		ev.Issues = []model.Issue{}
	}
	ev.IsValid = ev.Count(model.SeverityCritical) == 0 && overage <= e.policy.CriticalOverage
	if !ev.IsValid {
		escalateRequirementIssues(ev.Issues)
	}
	sort.SliceStable(ev.Issues, func(i, j int) bool {
		return ev.Issues[i].Severity.Rank() > ev.Issues[j].Severity.Rank()
	})
	ev.Summary = summarize(ev)
	ev.Feedback = feedback(ev)

	log.Debug().
		Bool("valid", ev.IsValid).
		Int("issues", len(ev.Issues)).
		Float64("overage", overage).
		Msg("plan evaluated")
	return ev
}

// escalateRequirementIssues raises requirement issues to high on a rejected
// plan: a revision cannot fix an ambiguous requirement, so the user is asked.
func escalateRequirementIssues(issues []model.Issue) {
	for i := range issues {
		if issues[i].Category == model.CategoryRequirement && !issues[i].Severity.AtLeast(model.SeverityHigh) {
			issues[i].Severity = model.SeverityHigh
		}
	}
}

// checkBudget returns the relative overage (zero when not applicable) and
// any budget issues.
func (e *Evaluator) checkBudget(req model.Requirement, plan model.ProjectPlan) (float64, []model.Issue) {
	if req.Budget <= 0 {
		return 0, nil
	}
	if plan.EstimatedCost <= 0 {
		return 0, []model.Issue{{
			Category:       model.CategoryBudget,
			Severity:       model.SeverityHigh,
			Description:    "The plan has no cost estimate to compare against the budget",
			Recommendation: "Provide an estimated cost derived from team size and duration",
		}}
	}

	deviation := (plan.EstimatedCost - req.Budget) / req.Budget
	switch {
	case deviation > e.policy.CriticalOverage:
		return deviation, []model.Issue{{
			Category: model.CategoryBudget,
			Severity: model.SeverityCritical,
			Description: fmt.Sprintf("Estimated cost $%s exceeds the $%s budget by %.1f%%",
				model.FormatMoney(plan.EstimatedCost), model.FormatMoney(req.Budget), deviation*100),
			Recommendation: fmt.Sprintf("Reduce scope or team size to bring the estimate within $%s",
				model.FormatMoney(req.Budget*(1+e.policy.MediumOverage))),
		}}
	case deviation > e.policy.MediumOverage:
		return deviation, []model.Issue{{
			Category: model.CategoryBudget,
			Severity: model.SeverityMedium,
			Description: fmt.Sprintf("Minor overage: estimated cost $%s is %.1f%% above the budget; plan still valid",
				model.FormatMoney(plan.EstimatedCost), deviation*100),
			Recommendation: "Look for optional deliverables that can move to a later phase",
		}}
	}
	return math.Max(deviation, 0), nil
}

func (e *Evaluator) checkTimeline(req model.Requirement, plan model.ProjectPlan) []model.Issue {
	requested := strings.TrimSpace(req.Timeline)
	if requested == "" {
		return nil
	}
	want, ok := model.ParseDays(requested)
	if !ok {
		return []model.Issue{{
			Category:       model.CategoryRequirement,
			Severity:       model.SeverityMedium,
			Description:    fmt.Sprintf("Ambiguous timeline %q could not be interpreted as a duration", requested),
			Recommendation: "Confirm the target duration, for example \"6 months\"",
		}}
	}

	need, ok := planDays(plan)
	if !ok {
		return []model.Issue{{
			Category:       model.CategoryTimeline,
			Severity:       model.SeverityLow,
			Description:    "Milestone durations could not be interpreted, so timeline fit is unverified",
			Recommendation: "Express milestone durations in days, weeks or months",
		}}
	}
	if need > want*e.policy.TimelineTolerance {
		return []model.Issue{{
			Category: model.CategoryTimeline,
			Severity: model.SeverityHigh,
			Description: fmt.Sprintf("Milestones need about %s but the requested timeline is %s",
				humanDays(need), requested),
			Recommendation: "Compress or parallelize phases, or reduce scope to fit the timeline",
		}}
	}
	return nil
}

// planDays sums milestone durations, falling back to the plan timeline.
func planDays(plan model.ProjectPlan) (float64, bool) {
	total := 0.0
	parsed := 0
	for _, m := range plan.Milestones {
		if d, ok := model.ParseDays(m.Duration); ok {
			total += d
			parsed++
		}
	}
	if parsed > 0 {
		return total, true
	}
	return model.ParseDays(plan.Timeline)
}

func humanDays(days float64) string {
	switch {
	case days >= 60:
		return fmt.Sprintf("%.1f months", days/30)
	case days >= 14:
		return fmt.Sprintf("%.1f weeks", days/7)
	}
	return fmt.Sprintf("%.0f days", days)
}

func checkScope(req model.Requirement, plan model.ProjectPlan) []model.Issue {
	features := extractFeatures(req.Description, req.AdditionalInfo)
	if len(features) == 0 {
		return nil
	}

	texts := make([]string, 0, len(plan.Milestones)*4+4)
	for _, m := range plan.Milestones {
		texts = append(texts, m.Phase)
		texts = append(texts, m.Deliverables...)
	}
	for _, f := range plan.TechStack.Fields() {
		texts = append(texts, f[1])
	}
	vocab := newVocabulary(texts...)

	var issues []model.Issue
	for _, f := range features {
		if vocab.covers(f) {
			continue
		}
		issues = append(issues, model.Issue{
			Category:       model.CategoryScope,
			Severity:       model.SeverityMedium,
			Description:    fmt.Sprintf("Requested feature %q is not covered by any deliverable", f.Phrase),
			Recommendation: fmt.Sprintf("Add a deliverable for %q", f.Phrase),
		})
	}
	return issues
}

func checkTechStack(ts model.TechStack) []model.Issue {
	var issues []model.Issue
	for _, f := range ts.Fields() {
		name, value := f[0], strings.TrimSpace(f[1])
		if value == "" {
			issues = append(issues, model.Issue{
				Category:       model.CategoryTechnical,
				Severity:       model.SeverityHigh,
				Description:    fmt.Sprintf("Tech stack has no %s recommendation", name),
				Recommendation: fmt.Sprintf("Recommend a concrete %s technology", name),
			})
			continue
		}
		if _, generic := genericValues[strings.ToLower(value)]; generic {
			issues = append(issues, model.Issue{
				Category:       model.CategoryTechnical,
				Severity:       model.SeverityLow,
				Description:    fmt.Sprintf("Tech stack %s recommendation %q is generic", name, value),
				Recommendation: fmt.Sprintf("Name a specific %s technology", name),
			})
		}
	}
	return issues
}

func checkMilestones(milestones []model.Milestone) []model.Issue {
	if len(milestones) == 0 {
		return []model.Issue{{
			Category:       model.CategoryMilestones,
			Severity:       model.SeverityHigh,
			Description:    "The plan has no milestones",
			Recommendation: "Break the work into sequential phases with deliverables",
		}}
	}
	var issues []model.Issue
	if err := model.ValidateDependencies(milestones); err != nil {
		issues = append(issues, model.Issue{
			Category:       model.CategoryMilestones,
			Severity:       model.SeverityHigh,
			Description:    "Milestone dependencies are invalid: " + err.Error(),
			Recommendation: "Make every dependency reference an earlier phase",
		})
	}
	for _, m := range milestones {
		if len(m.Deliverables) == 0 {
			issues = append(issues, model.Issue{
				Category:       model.CategoryMilestones,
				Severity:       model.SeverityMedium,
				Description:    fmt.Sprintf("Phase %q has no deliverables", m.Phase),
				Recommendation: fmt.Sprintf("List concrete deliverables for %q", m.Phase),
			})
		}
	}
	return issues
}

func summarize(ev model.ProjectEvaluation) string {
	if len(ev.Issues) == 0 {
		return "The plan aligns with the requirement; no issues found."
	}

	var b strings.Builder
	if ev.IsValid {
		b.WriteString("The plan is acceptable with ")
	} else {
		b.WriteString("The plan needs revision: ")
	}
	fmt.Fprintf(&b, "%d issue(s)", len(ev.Issues))

	var counts []string
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
		if n := ev.Count(sev); n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	b.WriteString(" (" + strings.Join(counts, ", ") + ")")

	seen := make(map[string]struct{})
	var cats []string
	for _, is := range ev.Issues {
		if _, ok := seen[is.Category]; ok {
			continue
		}
		seen[is.Category] = struct{}{}
		cats = append(cats, is.Category)
	}
	b.WriteString(", mainly in " + strings.Join(cats, ", ") + ".")
	return b.String()
}

func feedback(ev model.ProjectEvaluation) string {
	if len(ev.Issues) == 0 {
		return "Plan is technically sound and aligned with requirements."
	}
	lines := make([]string, 0, len(ev.Issues))
	for _, is := range ev.Issues {
		lines = append(lines, fmt.Sprintf("[%s/%s] %s", is.Category, is.Severity, is.Recommendation))
	}
	return strings.Join(lines, "\n")
}
