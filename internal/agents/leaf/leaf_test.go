package leaf_test

import (
	"context"
	"testing"
	"time"

	"github.com/metalagman/consultant/internal/agents/leaf"
	"github.com/metalagman/consultant/internal/agents/leaf/leaftest"
	"github.com/metalagman/consultant/internal/llm"
	"github.com/metalagman/consultant/internal/llm/llmtest"
	"github.com/metalagman/consultant/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilestonePlanner_ReturnsConformingFragment(t *testing.T) {
	t.Parallel()

	backend := llmtest.New().JSON(leaf.NameMilestones, leaftest.Milestones())
	planner := leaf.NewMilestonePlanner(backend, nil, time.Second)

	got, err := planner.Generate(context.Background(), leaf.Request{Input: leaftest.Requirement().Text()})
	require.NoError(t, err)
	assert.Len(t, got.Milestones, 5)

	calls := backend.Calls(leaf.NameMilestones)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Instructions, "Create 4-6 phases")
	assert.Contains(t, calls[0].Input, "TaskMaster Pro")
	require.NotNil(t, calls[0].Schema)
	assert.Equal(t, leaf.NameMilestones, calls[0].Schema.Name)
}

func TestMilestonePlanner_RetriesTooFewPhasesThenFails(t *testing.T) {
	t.Parallel()

	short := leaftest.Milestones()
	short.Milestones = short.Milestones[:3]
	backend := llmtest.New().JSON(leaf.NameMilestones, short)

	_, err := leaf.NewMilestonePlanner(backend, nil, time.Second).
		Generate(context.Background(), leaf.Request{Input: "x"})
	require.ErrorIs(t, err, llm.ErrSchemaViolation)
	assert.Contains(t, err.Error(), "expected 4-6 phases, got 3")
	assert.Len(t, backend.Calls(leaf.NameMilestones), 2)
}

func TestMilestonePlanner_RecoversOnCorrectedRetry(t *testing.T) {
	t.Parallel()

	forward := leaftest.Milestones()
	forward.Milestones[0].Dependencies = []string{"Deployment & Launch"}

	backend := llmtest.New().Push(leaf.NameMilestones,
		llmtest.Response{Text: llmtest.MustJSON(forward)},
		llmtest.Response{Text: llmtest.MustJSON(leaftest.Milestones())},
	)

	got, err := leaf.NewMilestonePlanner(backend, nil, time.Second).
		Generate(context.Background(), leaf.Request{Input: "x"})
	require.NoError(t, err)
	require.NoError(t, model.ValidateDependencies(got.Milestones))

	calls := backend.Calls(leaf.NameMilestones)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Instructions, "not an earlier phase")
}

func TestCheckMilestones(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*leaf.Milestones)
		wantErr string
	}{
		{name: "valid", mutate: func(*leaf.Milestones) {}},
		{
			name:    "too many deliverables",
			mutate:  func(m *leaf.Milestones) { m.Milestones[1].Deliverables = []string{"a", "b", "c", "d", "e", "f"} },
			wantErr: "expected 3-5 deliverables",
		},
		{
			name:    "self dependency",
			mutate:  func(m *leaf.Milestones) { m.Milestones[2].Dependencies = []string{m.Milestones[2].Phase} },
			wantErr: "depends on itself",
		},
		{
			name:    "missing duration",
			mutate:  func(m *leaf.Milestones) { m.Milestones[0].Duration = " " },
			wantErr: "duration is required",
		},
		{
			name: "seven phases",
			mutate: func(m *leaf.Milestones) {
				extra := leaftest.Milestones().Milestones[:2]
				extra[0].Phase, extra[1].Phase = "Extra A", "Extra B"
				extra[1].Dependencies = []string{"Extra A"}
				m.Milestones = append(m.Milestones, extra...)
			},
			wantErr: "expected 4-6 phases, got 7",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := leaftest.Milestones()
			tc.mutate(&m)
			err := leaf.CheckMilestones(m)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCheckStack_RequiresAllFields(t *testing.T) {
	t.Parallel()

	s := leaftest.Stack()
	require.NoError(t, leaf.CheckStack(s))

	s.TechStack.Database = ""
	s.TechStack.Infrastructure = "  "
	err := leaf.CheckStack(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database, infrastructure")
}

func TestCheckRisks(t *testing.T) {
	t.Parallel()

	r := leaftest.Risks()
	require.NoError(t, leaf.CheckRisks(r))

	few := leaf.Risks{Risks: r.Risks[:4]}
	assert.ErrorContains(t, leaf.CheckRisks(few), "expected 5-8 risks")

	bad := leaftest.Risks()
	bad.Risks[0].Severity = "Severe"
	assert.ErrorContains(t, leaf.CheckRisks(bad), "not one of Low, Medium, High, Critical")
}

func TestRiskAnalyzer_EnumViolationIsSchemaViolation(t *testing.T) {
	t.Parallel()

	bad := leaftest.Risks()
	bad.Risks[2].Severity = "Extreme"
	backend := llmtest.New().JSON(leaf.NameRisks, bad)

	_, err := leaf.NewRiskAnalyzer(backend, nil, time.Second).
		Generate(context.Background(), leaf.Request{Input: "x"})
	require.ErrorIs(t, err, llm.ErrSchemaViolation)
}

func TestCostEstimator_PassesBudgetAndFeedback(t *testing.T) {
	t.Parallel()

	backend := llmtest.New().JSON(leaf.NameEstimate, leaftest.Estimate(42000))

	got, err := leaf.NewCostEstimator(backend, nil, time.Second).Generate(context.Background(), leaf.Request{
		Input:    "plan",
		Budget:   45000,
		Feedback: []string{"Reduce scope to fit the budget"},
	})
	require.NoError(t, err)
	assert.Equal(t, 42000.0, got.EstimatedCost)

	calls := backend.Calls(leaf.NameEstimate)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Instructions, "$45,000")
	assert.Contains(t, calls[0].Instructions, "- Reduce scope to fit the budget")
}

func TestCheckEstimate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, leaf.CheckEstimate(leaftest.Estimate(1)))
	assert.ErrorContains(t, leaf.CheckEstimate(leaftest.Estimate(0)), "must be positive")

	e := leaftest.Estimate(100)
	e.Timeline = ""
	assert.ErrorContains(t, leaf.CheckEstimate(e), "timeline is required")
}

func TestTechStackAdvisor_TimesOut(t *testing.T) {
	t.Parallel()

	backend := llmtest.New().Always(leaf.NameTechStack, llmtest.Response{
		Text:  llmtest.MustJSON(leaftest.Stack()),
		Delay: time.Second,
	})

	_, err := leaf.NewTechStackAdvisor(backend, nil, 20*time.Millisecond).
		Generate(context.Background(), leaf.Request{Input: "x"})
	require.ErrorIs(t, err, llm.ErrTimeout)
}
