// Package leaf contains the single-purpose planning capabilities. Each one
// wraps one prompt and one strict output schema.
package leaf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/consultant/internal/llm"
	"github.com/metalagman/consultant/internal/model"
	"github.com/metalagman/consultant/internal/prompts"
)

// Fragment bounds.
const (
	MinPhases       = 4
	MaxPhases       = 6
	MinDeliverables = 3
	MaxDeliverables = 5
	MinRisks        = 5
	MaxRisks        = 8
)

// Capability names, also used as schema names.
const (
	NameMilestones = "milestone_planner"
	NameTechStack  = "tech_stack_advisor"
	NameRisks      = "risk_analyzer"
	NameEstimate   = "cost_estimator"
)

// Milestones is the Milestone Planner output.
type Milestones struct {
	Milestones []model.Milestone `json:"milestones"`
}

// Stack is the Tech Stack Advisor output.
type Stack struct {
	TechStack model.TechStack `json:"techStack"`
}

// Risks is the Risk Analyzer output.
type Risks struct {
	Risks []model.Risk `json:"risks"`
}

// Estimate is the Cost Estimator output.
type Estimate struct {
	EstimatedCost   float64 `json:"estimatedCost"`
	Timeline        string  `json:"timeline"`
	TeamComposition string  `json:"teamComposition"`
	Rationale       string  `json:"rationale"`
}

// Request is the input to a leaf call.
type Request struct {
	Input    string
	Feedback []string
	Budget   float64
}

// Agent generates one schema-validated fragment of type T.
type Agent[T any] struct {
	name    string
	backend llm.Backend
	prompts *prompts.Set
	schema  *llm.Schema
	timeout time.Duration
	check   func(T) error
}

// Name returns the capability name.
func (a *Agent[T]) Name() string {
	return a.name
}

// Generate calls the backend under the agent's timeout.
func (a *Agent[T]) Generate(ctx context.Context, req Request) (T, error) {
	var zero T
	data := prompts.Data{
		Feedback:        req.Feedback,
		MinPhases:       MinPhases,
		MaxPhases:       MaxPhases,
		MinDeliverables: MinDeliverables,
		MaxDeliverables: MaxDeliverables,
		MinRisks:        MinRisks,
		MaxRisks:        MaxRisks,
	}
	if req.Budget > 0 {
		data.Budget = model.FormatMoney(req.Budget)
	}
	instructions, err := a.prompts.Render(a.name, data)
	if err != nil {
		return zero, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	return llm.Structured(ctx, a.backend, llm.Call[T]{
		Invocation: llm.Invocation{
			Name:         a.name,
			Instructions: instructions,
			Input:        req.Input,
			Schema:       a.schema,
		},
		Check: a.check,
	})
}

func newAgent[T any](name string, b llm.Backend, p *prompts.Set, timeout time.Duration, check func(T) error) *Agent[T] {
	if p == nil {
		p = prompts.Default()
	}
	return &Agent[T]{
		name:    name,
		backend: b,
		prompts: p,
		schema:  llm.MustSchema[T](name),
		timeout: timeout,
		check:   check,
	}
}

// NewMilestonePlanner returns the Milestone Planner.
func NewMilestonePlanner(b llm.Backend, p *prompts.Set, timeout time.Duration) *Agent[Milestones] {
	return newAgent(NameMilestones, b, p, timeout, CheckMilestones)
}

// NewTechStackAdvisor returns the Tech Stack Advisor.
func NewTechStackAdvisor(b llm.Backend, p *prompts.Set, timeout time.Duration) *Agent[Stack] {
	return newAgent(NameTechStack, b, p, timeout, CheckStack)
}

// NewRiskAnalyzer returns the Risk Analyzer.
func NewRiskAnalyzer(b llm.Backend, p *prompts.Set, timeout time.Duration) *Agent[Risks] {
	return newAgent(NameRisks, b, p, timeout, CheckRisks)
}

// NewCostEstimator returns the Cost Estimator.
func NewCostEstimator(b llm.Backend, p *prompts.Set, timeout time.Duration) *Agent[Estimate] {
	return newAgent(NameEstimate, b, p, timeout, CheckEstimate)
}

// CheckMilestones enforces phase and deliverable counts and the
// forward-only dependency order.
func CheckMilestones(m Milestones) error {
	n := len(m.Milestones)
	if n < MinPhases || n > MaxPhases {
		return fmt.Errorf("expected %d-%d phases, got %d", MinPhases, MaxPhases, n)
	}
	for i, ms := range m.Milestones {
		d := len(ms.Deliverables)
		if d < MinDeliverables || d > MaxDeliverables {
			return fmt.Errorf("milestone[%d] %q: expected %d-%d deliverables, got %d", i, ms.Phase, MinDeliverables, MaxDeliverables, d)
		}
		if strings.TrimSpace(ms.Duration) == "" {
			return fmt.Errorf("milestone[%d] %q: duration is required", i, ms.Phase)
		}
	}
	return model.ValidateDependencies(m.Milestones)
}

// CheckStack requires all four fields to be non-empty.
func CheckStack(s Stack) error {
	var missing []string
	for _, f := range s.TechStack.Fields() {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("tech stack fields must be non-empty: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CheckRisks enforces the risk count and severity enum.
func CheckRisks(r Risks) error {
	n := len(r.Risks)
	if n < MinRisks || n > MaxRisks {
		return fmt.Errorf("expected %d-%d risks, got %d", MinRisks, MaxRisks, n)
	}
	for i, risk := range r.Risks {
		if !risk.Severity.Valid() {
			return fmt.Errorf("risk[%d]: severity %q is not one of Low, Medium, High, Critical", i, risk.Severity)
		}
		if strings.TrimSpace(risk.Risk) == "" || strings.TrimSpace(risk.Mitigation) == "" {
			return fmt.Errorf("risk[%d]: risk and mitigation are required", i)
		}
	}
	return nil
}

// CheckEstimate requires a positive cost and a timeline.
func CheckEstimate(e Estimate) error {
	if e.EstimatedCost <= 0 {
		return fmt.Errorf("estimatedCost must be positive, got %v", e.EstimatedCost)
	}
	if strings.TrimSpace(e.Timeline) == "" {
		return fmt.Errorf("timeline is required")
	}
	return nil
}
