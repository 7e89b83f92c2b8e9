// Package leaftest provides conforming leaf fragments for tests.
package leaftest

import (
	"github.com/metalagman/consultant/internal/agents/leaf"
	"github.com/metalagman/consultant/internal/llm/llmtest"
	"github.com/metalagman/consultant/internal/model"
)

// Milestones returns five phases for a team task manager, 22 weeks in total.
func Milestones() leaf.Milestones {
	return leaf.Milestones{Milestones: []model.Milestone{
		{
			Phase:        "Planning & Requirements",
			Duration:     "2 weeks",
			Deliverables: []string{"Requirements document", "Wireframes", "Product backlog"},
			Dependencies: []string{},
		},
		{
			Phase:        "Core Task Management",
			Duration:     "6 weeks",
			Deliverables: []string{"Task boards", "Assignments and due dates", "Notifications"},
			Dependencies: []string{"Planning & Requirements"},
		},
		{
			Phase:        "Team Collaboration",
			Duration:     "8 weeks",
			Deliverables: []string{"Shared workspaces", "Comments and mentions", "Slack integration"},
			Dependencies: []string{"Core Task Management"},
		},
		{
			Phase:        "Testing & QA",
			Duration:     "4 weeks",
			Deliverables: []string{"Automated test suite", "Load tests", "Security review"},
			Dependencies: []string{"Team Collaboration"},
		},
		{
			Phase:        "Deployment & Launch",
			Duration:     "2 weeks",
			Deliverables: []string{"Production rollout", "Runbooks", "User onboarding guide"},
			Dependencies: []string{"Testing & QA"},
		},
	}}
}

// Stack returns a concrete four-field stack.
func Stack() leaf.Stack {
	return leaf.Stack{TechStack: model.TechStack{
		Frontend:       "React with TypeScript",
		Backend:        "Go with gin",
		Database:       "PostgreSQL",
		Infrastructure: "AWS ECS with GitHub Actions",
	}}
}

// Risks returns five risks.
func Risks() leaf.Risks {
	return leaf.Risks{Risks: []model.Risk{
		{Risk: "Scope creep during development", Severity: model.RiskHigh, Mitigation: "Change control and fortnightly reviews"},
		{Risk: "Slack API changes", Severity: model.RiskMedium, Mitigation: "Pin API versions and monitor deprecations"},
		{Risk: "Key developer unavailable", Severity: model.RiskMedium, Mitigation: "Pair programming and documentation"},
		{Risk: "Data breach", Severity: model.RiskCritical, Mitigation: "Security review and encryption at rest"},
		{Risk: "Low adoption", Severity: model.RiskLow, Mitigation: "Early beta with target teams"},
	}}
}

// Estimate returns an estimate of cost.
func Estimate(cost float64) leaf.Estimate {
	return leaf.Estimate{
		EstimatedCost:   cost,
		Timeline:        "5-6 months",
		TeamComposition: "2 developers, 1 designer, 1 QA engineer",
		Rationale:       "Four people for 22 weeks at blended rates",
	}
}

// Requirement matches the fixtures above.
func Requirement() model.Requirement {
	return model.Requirement{
		Name:           "TaskMaster Pro",
		Description:    "A collaborative task management tool for teams",
		Budget:         50000,
		Timeline:       "6 months",
		AdditionalInfo: "Slack integration",
	}
}

// Script sets standing responses for every leaf on b.
func Script(b *llmtest.Backend, cost float64) *llmtest.Backend {
	return b.
		JSON(leaf.NameMilestones, Milestones()).
		JSON(leaf.NameTechStack, Stack()).
		JSON(leaf.NameRisks, Risks()).
		JSON(leaf.NameEstimate, Estimate(cost))
}
