package ba_test

import (
	"context"
	"testing"
	"time"

	"github.com/metalagman/consultant/internal/agents/ba"
	"github.com/metalagman/consultant/internal/config"
	"github.com/metalagman/consultant/internal/evaluator/requirement"
	"github.com/metalagman/consultant/internal/llm"
	"github.com/metalagman/consultant/internal/llm/llmtest"
	"github.com/metalagman/consultant/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgent(b llm.Backend, timeout time.Duration) *ba.Agent {
	return ba.New(b, nil, requirement.New(config.Default().Policy.Requirement), timeout)
}

func TestCollect_MergesExtractionIntoDraft(t *testing.T) {
	t.Parallel()

	backend := llmtest.New().JSON(ba.NameExtractor, ba.Extraction{
		Description:    "A collaborative task management tool for teams",
		Budget:         50000,
		Timeline:       "6 months",
		AdditionalInfo: "Slack integration",
	})
	draft := model.Requirement{Name: "TaskMaster Pro"}

	res, err := newAgent(backend, time.Second).Collect(context.Background(), draft, "task tool for teams, 50k, 6 months, Slack", nil)
	require.NoError(t, err)

	assert.Equal(t, "TaskMaster Pro", res.Requirement.Name)
	assert.Equal(t, 50000.0, res.Requirement.Budget)
	assert.True(t, res.Validation.IsComplete)
	assert.Equal(t, model.ActionProceedToPlanning, res.Validation.NextAction)
	assert.Empty(t, res.Question)
	assert.False(t, res.Heuristic)

	calls := backend.Calls(ba.NameExtractor)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Input, `"name": "TaskMaster Pro"`)
	assert.Contains(t, calls[0].Input, "User message:\ntask tool for teams")
}

func TestCollect_ShortDescriptionAsksFollowUp(t *testing.T) {
	t.Parallel()

	backend := llmtest.New().JSON(ba.NameExtractor, ba.Extraction{
		Description: "app",
		Question:    "What should the app help people do?",
	})

	res, err := newAgent(backend, time.Second).Collect(context.Background(), model.Requirement{}, "an app", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{requirement.FieldDescription}, res.Validation.MissingFields)
	assert.Equal(t, model.ActionGatherMoreInfo, res.Validation.NextAction)
	assert.Contains(t, res.Question, "What should the app help people do?")
	assert.Contains(t, res.Question, "a project name, a budget, a target timeline and integrations or constraints")
}

func TestCollect_EmptyFieldsNeverOverwrite(t *testing.T) {
	t.Parallel()

	draft := model.Requirement{
		Name:        "TaskMaster Pro",
		Description: "A collaborative task management tool for teams",
		Budget:      50000,
		Timeline:    "6 months",
	}
	backend := llmtest.New().JSON(ba.NameExtractor, ba.Extraction{AdditionalInfo: "Slack integration"})

	res, err := newAgent(backend, time.Second).Collect(context.Background(), draft, "oh and Slack", nil)
	require.NoError(t, err)

	want := draft
	want.AdditionalInfo = "Slack integration"
	assert.Equal(t, want, res.Requirement)
}

func TestCollect_NegativeBudgetIsIgnoredWithFeedback(t *testing.T) {
	t.Parallel()

	backend := llmtest.New().JSON(ba.NameExtractor, ba.Extraction{
		Description: "A collaborative task management tool for remote teams",
		Budget:      -5000,
	})

	res, err := newAgent(backend, time.Second).Collect(context.Background(), model.Requirement{}, "x", nil)
	require.NoError(t, err)

	assert.Zero(t, res.Requirement.Budget)
	assert.True(t, res.Validation.IsComplete)
	assert.Contains(t, res.Validation.Feedback, "Budget must be a positive number; the provided value was ignored")
}

func TestCollect_SchemaViolationUsesHeuristic(t *testing.T) {
	t.Parallel()

	backend := llmtest.New().Always(ba.NameExtractor, llmtest.Response{Text: "Sure! Tell me more."})
	text := "A booking app for hair salons with online payments. Budget is $20,000 and we need it in 3 months."

	res, err := newAgent(backend, time.Second).Collect(context.Background(), model.Requirement{}, text, nil)
	require.NoError(t, err)

	assert.True(t, res.Heuristic)
	assert.Len(t, backend.Calls(ba.NameExtractor), 1+llm.SchemaRetries)
	assert.Equal(t, "A booking app for hair salons with online payments", res.Requirement.Description)
	assert.Equal(t, 20000.0, res.Requirement.Budget)
	assert.Equal(t, "3 months", res.Requirement.Timeline)
	assert.True(t, res.Validation.IsComplete)
}

func TestCollect_TimeoutIsReturned(t *testing.T) {
	t.Parallel()

	backend := llmtest.New().Always(ba.NameExtractor, llmtest.Response{
		Text:  llmtest.MustJSON(ba.Extraction{Description: "late"}),
		Delay: time.Second,
	})
	draft := model.Requirement{Name: "Kept"}

	_, err := newAgent(backend, 20*time.Millisecond).Collect(context.Background(), draft, "x", nil)
	require.ErrorIs(t, err, llm.ErrTimeout)
}

func TestCollect_ClarificationFeedbackReachesExtractor(t *testing.T) {
	t.Parallel()

	backend := llmtest.New().JSON(ba.NameExtractor, ba.Extraction{Timeline: "9 months"})
	draft := model.Requirement{Description: "A collaborative task management tool for teams", Timeline: "asap"}

	res, err := newAgent(backend, time.Second).Collect(context.Background(), draft, "let's say 9 months",
		[]string{`Confirm the target duration, for example "6 months"`})
	require.NoError(t, err)
	assert.Equal(t, "9 months", res.Requirement.Timeline)

	calls := backend.Calls(ba.NameExtractor)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Instructions, "Points to clarify with the user:")
	assert.Contains(t, calls[0].Instructions, "Confirm the target duration")
}

func TestFollowUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		val       model.RequirementValidationResult
		suggested string
		want      string
	}{
		{
			name: "evaluator feedback when no suggestion",
			val: model.RequirementValidationResult{
				Feedback:    []string{"Please provide a brief description of what you want to build"},
				Requirement: model.Requirement{Name: "X", Budget: 10, Timeline: "1 month", AdditionalInfo: "y"},
			},
			want: "Please provide a brief description of what you want to build.",
		},
		{
			name: "optional fields in order",
			val: model.RequirementValidationResult{
				Requirement: model.Requirement{Name: "X", Budget: 10},
			},
			suggested: "What does it do?",
			want:      "What does it do?\nIf you have them, it would also help to know a target timeline and integrations or constraints.",
		},
		{
			name: "generic prompt",
			val:  model.RequirementValidationResult{Requirement: model.Requirement{Name: "X", Budget: 1, Timeline: "t", AdditionalInfo: "a"}},
			want: "Could you tell me more about what you want to build?",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ba.FollowUp(tc.val, tc.suggested))
		})
	}
}

func TestHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		draft model.Requirement
		text  string
		want  ba.Extraction
	}{
		{
			name: "name budget timeline integration",
			text: "It's called TaskMaster Pro, a task tool that must integrate with Slack. $50k over 6 months",
			want: ba.Extraction{
				Name:           "TaskMaster Pro",
				Description:    "It's called TaskMaster Pro, a task tool that must integrate with Slack",
				Budget:         50000,
				Timeline:       "6 months",
				AdditionalInfo: "integrate with Slack",
			},
		},
		{
			name:  "appends detail to existing description",
			draft: model.Requirement{Description: "A task app"},
			text:  "It should also support recurring tasks",
			want:  ba.Extraction{Description: "A task app. It should also support recurring tasks"},
		},
		{
			name:  "budget only keeps description",
			draft: model.Requirement{Description: "A task app"},
			text:  "Budget is 5000 USD",
			want:  ba.Extraction{Budget: 5000},
		},
		{
			name: "dollars suffix",
			text: "We can spend 12,500 dollars",
			want: ba.Extraction{Description: "We can spend", Budget: 12500},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ba.Heuristic(tc.draft, tc.text))
		})
	}
}
