package orchestrator

import (
	"time"

	"github.com/metalagman/consultant/internal/model"
)

// State is a workflow state.
type State string

const (
	StateCollecting  State = "COLLECTING_REQUIREMENTS"
	StatePlanning    State = "PLANNING"
	StateValidating  State = "VALIDATING_PLAN"
	StateClarifying  State = "CLARIFYING_REQUIREMENTS"
	StateRevising    State = "REVISING_PLAN"
	StateSummarizing State = "SUMMARIZING"
	StateDone        State = "DONE"
)

// Candidate is a plan together with its evaluation.
type Candidate struct {
	Plan       model.ProjectPlan       `json:"plan"`
	Evaluation model.ProjectEvaluation `json:"evaluation"`
}

// Session is the complete state of one workflow instance. It is a value:
// Turn returns a new Session and never mutates its input.
type Session struct {
	ID          string                             `json:"id"`
	State       State                              `json:"state"`
	Requirement model.Requirement                  `json:"requirement"`
	Validation  *model.RequirementValidationResult `json:"validation,omitempty"`
	Plan        *model.ProjectPlan                 `json:"plan,omitempty"`
	Evaluation  *model.ProjectEvaluation           `json:"evaluation,omitempty"`
	Best        *Candidate                         `json:"best,omitempty"`
	// Cycles counts revisions and clarifications together.
	Cycles    int `json:"cycles"`
	Revisions int `json:"revisions"`
	// Feedback is handed to the planner on the next planning pass.
	Feedback []string `json:"feedback,omitempty"`
	// Clarify is handed to the requirement extractor on the next user turn.
	Clarify    []string           `json:"clarify,omitempty"`
	Unresolved []model.Issue      `json:"unresolved,omitempty"`
	Brief      string             `json:"brief,omitempty"`
	Journal    []model.Transition `json:"journal"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// NewSession returns an empty session in the initial state.
func NewSession(id string) Session {
	now := time.Now().UTC()
	return Session{
		ID:        id,
		State:     StateCollecting,
		Journal:   []model.Transition{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := s
	if s.Validation != nil {
		v := *s.Validation
		v.MissingFields = append([]string(nil), v.MissingFields...)
		v.IncompleteFields = append([]string(nil), v.IncompleteFields...)
		v.Feedback = append([]string(nil), v.Feedback...)
		out.Validation = &v
	}
	if s.Plan != nil {
		p := s.Plan.Clone()
		out.Plan = &p
	}
	if s.Evaluation != nil {
		e := cloneEvaluation(*s.Evaluation)
		out.Evaluation = &e
	}
	if s.Best != nil {
		out.Best = &Candidate{Plan: s.Best.Plan.Clone(), Evaluation: cloneEvaluation(s.Best.Evaluation)}
	}
	out.Feedback = append([]string(nil), s.Feedback...)
	out.Clarify = append([]string(nil), s.Clarify...)
	out.Unresolved = append([]model.Issue(nil), s.Unresolved...)
	out.Journal = append([]model.Transition{}, s.Journal...)
	return out
}

// Done reports whether the session reached the terminal state.
func (s Session) Done() bool {
	return s.State == StateDone
}

func cloneEvaluation(e model.ProjectEvaluation) model.ProjectEvaluation {
	e.Issues = append([]model.Issue(nil), e.Issues...)
	return e
}

func (s *Session) transition(to State, reason string) {
	s.Journal = append(s.Journal, model.Transition{
		From:   string(s.State),
		To:     string(to),
		Reason: reason,
		At:     time.Now().UTC(),
	})
	s.State = to
}
