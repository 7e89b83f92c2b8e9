// Package pm assembles a project plan from the planning capabilities.
package pm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/metalagman/consultant/internal/agents/leaf"
	"github.com/metalagman/consultant/internal/model"
	"github.com/rs/zerolog/log"
)

// Fragment names recorded in ProjectPlan.Degraded.
const (
	FragmentMilestones = "milestones"
	FragmentTechStack  = "techStack"
	FragmentRisks      = "risks"
	FragmentEstimate   = "estimate"
)

// Cost heuristic used when the estimator fails.
const (
	fallbackWeeks       = 12
	fallbackWeeklyRate  = 4000
	fallbackOverhead    = 1.10
	fallbackBaseTeam    = 3
	placeholderDuration = "2 weeks"
	undeterminedStack   = "To be determined"
)

// Generator produces one fragment.
type Generator[T any] interface {
	Generate(ctx context.Context, req leaf.Request) (T, error)
}

// Leaves are the capabilities the PM agent composes.
type Leaves struct {
	Milestones Generator[leaf.Milestones]
	TechStack  Generator[leaf.Stack]
	Risks      Generator[leaf.Risks]
	Estimator  Generator[leaf.Estimate]
}

// Agent is the planning composite.
type Agent struct {
	leaves Leaves
}

// New returns a PM agent over leaves.
func New(leaves Leaves) *Agent {
	return &Agent{leaves: leaves}
}

// Plan runs the three planning capabilities concurrently and merges their
// fragments. A failed capability is replaced by a default and recorded in
// Degraded; Plan fails only when all three fail or ctx is done.
func (a *Agent) Plan(ctx context.Context, req model.Requirement, feedback []string) (model.ProjectPlan, error) {
	if err := ctx.Err(); err != nil {
		return model.ProjectPlan{}, err
	}

	lreq := leaf.Request{Input: req.Text(), Feedback: feedback}

	var (
		wg                            sync.WaitGroup
		milestones                    leaf.Milestones
		stack                         leaf.Stack
		risks                         leaf.Risks
		milestonesErr, stackErr, rErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		milestones, milestonesErr = a.leaves.Milestones.Generate(ctx, lreq)
	}()
	go func() {
		defer wg.Done()
		stack, stackErr = a.leaves.TechStack.Generate(ctx, lreq)
	}()
	go func() {
		defer wg.Done()
		risks, rErr = a.leaves.Risks.Generate(ctx, lreq)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return model.ProjectPlan{}, err
	}
	if milestonesErr != nil && stackErr != nil && rErr != nil {
		return model.ProjectPlan{}, fmt.Errorf("all planning capabilities failed: %w",
			errors.Join(milestonesErr, stackErr, rErr))
	}

	plan := model.ProjectPlan{
		Milestones: milestones.Milestones,
		TechStack:  stack.TechStack,
		Risks:      risks.Risks,
	}
	if milestonesErr != nil {
		plan.Milestones = defaultMilestones()
		degrade(&plan, FragmentMilestones, milestonesErr)
	}
	if stackErr != nil {
		plan.TechStack = defaultTechStack()
		degrade(&plan, FragmentTechStack, stackErr)
	}
	if rErr != nil {
		plan.Risks = []model.Risk{}
		degrade(&plan, FragmentRisks, rErr)
	}

	est, err := a.leaves.Estimator.Generate(ctx, leaf.Request{
		Input:    estimateInput(req, plan),
		Feedback: feedback,
		Budget:   req.Budget,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.ProjectPlan{}, ctxErr
		}
		est = fallbackEstimate(plan)
		degrade(&plan, FragmentEstimate, err)
	}
	plan.EstimatedCost = est.EstimatedCost
	plan.Timeline = est.Timeline
	plan.TeamComposition = est.TeamComposition

	log.Info().
		Int("milestones", len(plan.Milestones)).
		Int("risks", len(plan.Risks)).
		Float64("estimated_cost", plan.EstimatedCost).
		Strs("degraded", plan.Degraded).
		Msg("plan assembled")
	return plan, nil
}

func degrade(plan *model.ProjectPlan, fragment string, err error) {
	plan.Degraded = append(plan.Degraded, fragment)
	log.Warn().Err(err).Str("fragment", fragment).Msg("degraded plan")
}

func defaultMilestones() []model.Milestone {
	return []model.Milestone{{
		Phase:    "Discovery & Planning",
		Duration: placeholderDuration,
		Deliverables: []string{
			"Refined requirements",
			"Detailed milestone breakdown",
			"Delivery plan",
		},
		Dependencies: []string{},
	}}
}

func defaultTechStack() model.TechStack {
	return model.TechStack{
		Frontend:       undeterminedStack,
		Backend:        undeterminedStack,
		Database:       undeterminedStack,
		Infrastructure: undeterminedStack,
	}
}

// estimateInput describes the merged scope for the cost estimator.
func estimateInput(req model.Requirement, plan model.ProjectPlan) string {
	var b strings.Builder
	b.WriteString(req.Text())
	b.WriteString("\nPlanned milestones:\n")
	for _, m := range plan.Milestones {
		fmt.Fprintf(&b, "- %s (%s): %s\n", m.Phase, m.Duration, strings.Join(m.Deliverables, "; "))
	}
	b.WriteString("\nTechnology stack:\n")
	for _, f := range plan.TechStack.Fields() {
		fmt.Fprintf(&b, "- %s: %s\n", f[0], f[1])
	}
	severe := 0
	for _, r := range plan.Risks {
		if r.Severity == model.RiskHigh || r.Severity == model.RiskCritical {
			severe++
		}
	}
	fmt.Fprintf(&b, "\nIdentified risks: %d (%d high or critical)\n", len(plan.Risks), severe)
	return b.String()
}

// fallbackEstimate derives cost from milestone durations and a team sized by
// the number of phases.
func fallbackEstimate(plan model.ProjectPlan) leaf.Estimate {
	days := 0.0
	for _, m := range plan.Milestones {
		if d, ok := model.ParseDays(m.Duration); ok {
			days += d
		}
	}
	weeks := math.Ceil(days / 7)
	if weeks <= 0 {
		weeks = fallbackWeeks
	}
	team := fallbackBaseTeam
	if len(plan.Milestones) >= leaf.MaxPhases-1 {
		team++
	}
	cost := math.Round(weeks*float64(team)*fallbackWeeklyRate*fallbackOverhead/100) * 100

	return leaf.Estimate{
		EstimatedCost:   cost,
		Timeline:        fmt.Sprintf("%.0f weeks", weeks),
		TeamComposition: fmt.Sprintf("%d people (developers, designer, QA)", team),
		Rationale:       "Heuristic: team size x duration x blended weekly rate, plus infrastructure overhead",
	}
}
