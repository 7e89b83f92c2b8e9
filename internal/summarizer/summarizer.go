// Package summarizer renders the final project brief as markdown.
package summarizer

import (
	"fmt"
	"strings"

	"github.com/metalagman/consultant/internal/model"
)

const notSpecified = "Not specified"

// Section headings in render order.
const (
	HeadingExecutiveSummary = "## Executive Summary"
	HeadingRequirements     = "## Project Requirements"
	HeadingPlan             = "## Project Plan"
	HeadingMilestones       = "### Milestones & Deliverables"
	HeadingTechStack        = "### Technology Stack"
	HeadingRisks            = "### Risk Assessment"
	HeadingEstimates        = "## Resource Estimates"
	HeadingNextSteps        = "## Next Steps"
	HeadingUnresolved       = "### Unresolved issues"
)

// Options adjusts the brief.
type Options struct {
	// Unresolved issues are listed when the revision bound was reached.
	Unresolved []model.Issue
}

// Summarize renders req and plan. Every present field is rendered and
// absent optional fields are shown as "Not specified".
func Summarize(req model.Requirement, plan model.ProjectPlan, opts Options) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Project Brief: %s\n\n", orDefault(req.Name, "Untitled Project"))

	b.WriteString(HeadingExecutiveSummary + "\n\n")
	b.WriteString(executiveSummary(req, plan))
	b.WriteString("\n\n")

	b.WriteString(HeadingRequirements + "\n\n")
	fmt.Fprintf(&b, "- **Project Name**: %s\n", orDefault(req.Name, notSpecified))
	fmt.Fprintf(&b, "- **Description**: %s\n", orDefault(req.Description, notSpecified))
	fmt.Fprintf(&b, "- **Budget**: %s\n", money(req.Budget))
	fmt.Fprintf(&b, "- **Timeline**: %s\n", orDefault(req.Timeline, notSpecified))
	fmt.Fprintf(&b, "- **Additional Requirements**: %s\n\n", orDefault(req.AdditionalInfo, notSpecified))

	b.WriteString(HeadingPlan + "\n\n")
	writeMilestones(&b, plan.Milestones)
	writeTechStack(&b, plan.TechStack)
	writeRisks(&b, plan.Risks)

	b.WriteString(HeadingEstimates + "\n\n")
	fmt.Fprintf(&b, "- **Total Cost**: %s\n", money(plan.EstimatedCost))
	fmt.Fprintf(&b, "- **Project Duration**: %s\n", orDefault(plan.Timeline, notSpecified))
	fmt.Fprintf(&b, "- **Team Composition**: %s\n\n", orDefault(plan.TeamComposition, notSpecified))

	b.WriteString(HeadingNextSteps + "\n\n")
	writeNextSteps(&b, plan, opts)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func executiveSummary(req model.Requirement, plan model.ProjectPlan) string {
	name := orDefault(req.Name, "This project")
	desc := strings.TrimRight(strings.TrimSpace(req.Description), ".")
	var s strings.Builder
	if desc != "" {
		fmt.Fprintf(&s, "%s: %s.", name, desc)
	} else {
		fmt.Fprintf(&s, "%s.", name)
	}
	if n := len(plan.Milestones); n > 0 {
		fmt.Fprintf(&s, " The plan delivers the work in %d phase(s)", n)
		if plan.Timeline != "" {
			fmt.Fprintf(&s, " over %s", plan.Timeline)
		}
		if plan.EstimatedCost > 0 {
			fmt.Fprintf(&s, " at an estimated cost of $%s", model.FormatMoney(plan.EstimatedCost))
		}
		s.WriteString(".")
	}
	if be := strings.TrimSpace(plan.TechStack.Backend); be != "" {
		fmt.Fprintf(&s, " It is built on %s", be)
		if fe := strings.TrimSpace(plan.TechStack.Frontend); fe != "" {
			fmt.Fprintf(&s, " with a %s frontend", fe)
		}
		s.WriteString(".")
	}
	return s.String()
}

func writeMilestones(b *strings.Builder, milestones []model.Milestone) {
	b.WriteString(HeadingMilestones + "\n\n")
	if len(milestones) == 0 {
		b.WriteString(notSpecified + "\n\n")
		return
	}
	for i, m := range milestones {
		fmt.Fprintf(b, "%d. **%s** (%s)\n", i+1, m.Phase, orDefault(m.Duration, notSpecified))
		for _, d := range m.Deliverables {
			fmt.Fprintf(b, "   - %s\n", d)
		}
		if len(m.Dependencies) > 0 {
			fmt.Fprintf(b, "   - _Depends on_: %s\n", strings.Join(m.Dependencies, ", "))
		}
	}
	b.WriteString("\n")
}

func writeTechStack(b *strings.Builder, ts model.TechStack) {
	b.WriteString(HeadingTechStack + "\n\n")
	fmt.Fprintf(b, "- **Frontend**: %s\n", orDefault(ts.Frontend, notSpecified))
	fmt.Fprintf(b, "- **Backend**: %s\n", orDefault(ts.Backend, notSpecified))
	fmt.Fprintf(b, "- **Database**: %s\n", orDefault(ts.Database, notSpecified))
	fmt.Fprintf(b, "- **Infrastructure**: %s\n\n", orDefault(ts.Infrastructure, notSpecified))
}

func writeRisks(b *strings.Builder, risks []model.Risk) {
	b.WriteString(HeadingRisks + "\n\n")
	if len(risks) == 0 {
		b.WriteString("No risks identified.\n\n")
		return
	}
	b.WriteString("| Risk | Severity | Mitigation |\n")
	b.WriteString("|------|----------|------------|\n")
	for _, r := range risks {
		fmt.Fprintf(b, "| %s | %s | %s |\n", cell(r.Risk), cell(string(r.Severity)), cell(r.Mitigation))
	}
	b.WriteString("\n")
}

func writeNextSteps(b *strings.Builder, plan model.ProjectPlan, opts Options) {
	steps := []string{
		"Review this brief with stakeholders and confirm scope, budget and timeline",
	}
	if len(plan.Milestones) > 0 {
		steps = append(steps, fmt.Sprintf("Kick off %q and staff the team", plan.Milestones[0].Phase))
	}
	steps = append(steps, "Set up the repository, CI pipeline and environments")
	if len(plan.Risks) > 0 {
		steps = append(steps, "Assign an owner to each risk and schedule mitigation reviews")
	}
	for i, s := range steps {
		fmt.Fprintf(b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\n")

	if plan.IsDegraded() {
		fmt.Fprintf(b, "> **Note**: some sections were generated from defaults and need a follow-up planning session: %s.\n\n",
			strings.Join(plan.Degraded, ", "))
	}

	if len(opts.Unresolved) > 0 {
		b.WriteString(HeadingUnresolved + "\n\n")
		b.WriteString("The plan was finalized after the maximum number of revision cycles. These issues remain open:\n\n")
		for _, is := range opts.Unresolved {
			fmt.Fprintf(b, "- **[%s/%s]** %s", is.Category, is.Severity, is.Description)
			if is.Recommendation != "" {
				fmt.Fprintf(b, " _Recommendation_: %s", is.Recommendation)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}

func money(v float64) string {
	if v <= 0 {
		return notSpecified
	}
	return "$" + model.FormatMoney(v)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// cell escapes a value for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
