package requirement

import (
	"testing"

	"github.com/metalagman/consultant/internal/config"
	"github.com/metalagman/consultant/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator() *Evaluator {
	return New(config.Default().Policy.Requirement)
}

func TestEvaluate_ShortDescriptionIsMissing(t *testing.T) {
	t.Parallel()

	res := newEvaluator().Evaluate(model.Requirement{Description: "app"})

	assert.False(t, res.IsComplete)
	assert.Equal(t, []string{FieldDescription}, res.MissingFields)
	assert.Empty(t, res.IncompleteFields)
	assert.Equal(t, model.ActionGatherMoreInfo, res.NextAction)
	require.NotEmpty(t, res.Feedback)
}

func TestEvaluate_CompleteRequirementProceeds(t *testing.T) {
	t.Parallel()

	req := model.Requirement{
		Name:           "TaskMaster Pro",
		Description:    "A collaborative task management tool for teams",
		Budget:         50000,
		Timeline:       "6 months",
		AdditionalInfo: "Slack integration",
	}
	res := newEvaluator().Evaluate(req)

	assert.True(t, res.IsComplete)
	assert.Equal(t, model.ActionProceedToPlanning, res.NextAction)
	assert.Empty(t, res.MissingFields)
	assert.Equal(t, []string{FieldDescription}, res.IncompleteFields)
	assert.True(t, res.NeedsImprovement)
	assert.Equal(t, req, res.Requirement)
}

func TestEvaluate_Policy(t *testing.T) {
	t.Parallel()

	detailed := "An online marketplace connecting local farmers with restaurants, with ordering and invoicing"

	tests := []struct {
		name           string
		req            model.Requirement
		wantMissing    []string
		wantIncomplete []string
		wantFeedback   int
	}{
		{
			name:         "empty",
			req:          model.Requirement{},
			wantMissing:  []string{FieldDescription},
			wantFeedback: 1,
		},
		{
			name:         "whitespace description",
			req:          model.Requirement{Description: "    "},
			wantMissing:  []string{FieldDescription},
			wantFeedback: 1,
		},
		{
			name:           "exactly minimum length",
			req:            model.Requirement{Description: "0123456789"},
			wantIncomplete: []string{FieldDescription},
			wantFeedback:   1,
		},
		{
			name:         "detailed description only",
			req:          model.Requirement{Description: detailed},
			wantFeedback: 0,
		},
		{
			name:           "low budget",
			req:            model.Requirement{Description: detailed, Budget: 500},
			wantIncomplete: []string{FieldBudget},
			wantFeedback:   1,
		},
		{
			name:         "negative budget is ignored",
			req:          model.Requirement{Description: detailed, Budget: -10},
			wantFeedback: 1,
		},
		{
			name:           "short description and low budget",
			req:            model.Requirement{Description: "a todo app", Budget: 10},
			wantIncomplete: []string{FieldDescription, FieldBudget},
			wantFeedback:   2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := newEvaluator().Evaluate(tc.req)
			assert.ElementsMatch(t, tc.wantMissing, res.MissingFields)
			assert.ElementsMatch(t, tc.wantIncomplete, res.IncompleteFields)
			assert.Len(t, res.Feedback, tc.wantFeedback)
			assert.Equal(t, len(res.MissingFields) == 0, res.IsComplete)
		})
	}
}

func TestEvaluate_NeverMissingAndIncomplete(t *testing.T) {
	t.Parallel()

	e := newEvaluator()
	descriptions := []string{"", "a", "short one", "0123456789", "a moderately long description", string(make([]byte, 80))}
	budgets := []float64{-1, 0, 1, 999, 1000, 1e6}

	for _, d := range descriptions {
		for _, b := range budgets {
			res := e.Evaluate(model.Requirement{Description: d, Budget: b})
			assert.Equal(t, len(res.MissingFields) == 0, res.IsComplete)
			for _, f := range res.MissingFields {
				assert.NotContains(t, res.IncompleteFields, f, "description=%q budget=%v", d, b)
			}
		}
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	t.Parallel()

	e := newEvaluator()
	req := model.Requirement{Description: "A small inventory tracker", Budget: 800, Timeline: "2 months"}

	assert.Equal(t, e.Evaluate(req), e.Evaluate(req))
}

func TestEvaluate_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	e := newEvaluator()
	e.checks = append(e.checks, func(model.Requirement, config.RequirementPolicy, *model.RequirementValidationResult) {
		panic("boom")
	})

	req := model.Requirement{Description: "A perfectly reasonable and detailed description of a booking system"}
	res := e.Evaluate(req)

	assert.False(t, res.IsComplete)
	assert.Equal(t, []string{FieldDescription}, res.MissingFields)
	assert.Equal(t, []string{safeDefaultFeedback}, res.Feedback)
	assert.Equal(t, model.ActionGatherMoreInfo, res.NextAction)
	assert.Equal(t, req, res.Requirement)
}
