// Package orchestrator drives a consulting session through requirement
// collection, planning, validation and summarization.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/consultant/internal/agents/ba"
	"github.com/metalagman/consultant/internal/llm"
	"github.com/metalagman/consultant/internal/model"
	"github.com/metalagman/consultant/internal/summarizer"
	"github.com/rs/zerolog/log"
)

// Stage names reported in TurnError.
const (
	StageCollect = "collect"
	StagePlan    = "plan"
)

// User-facing replies.
const (
	TimeoutMessage = "This is taking too long. Your progress is saved; send your message again to retry."
	DoneHint       = "This session is complete and the brief is shown below. Start a new session to plan another project."
	GreetMessage   = "Tell me about the project you want to build. What should it do, and for whom?"
)

// Collector gathers the requirement from user text.
type Collector interface {
	Collect(ctx context.Context, draft model.Requirement, text string, feedback []string) (ba.Result, error)
}

// Planner produces a project plan.
type Planner interface {
	Plan(ctx context.Context, req model.Requirement, feedback []string) (model.ProjectPlan, error)
}

// PlanEvaluator checks a plan against its requirement.
type PlanEvaluator interface {
	Evaluate(req model.Requirement, plan model.ProjectPlan) model.ProjectEvaluation
}

// Archive records finished briefs and session journals.
type Archive interface {
	AppendTransitions(ctx context.Context, sessionID string, ts []model.Transition) error
	SaveBrief(ctx context.Context, b model.Brief) error
}

// Reply is what the user sees after a turn.
type Reply struct {
	Text  string `json:"text"`
	Brief string `json:"brief,omitempty"`
	// Retryable is set when the turn timed out and can be sent again.
	Retryable bool `json:"retryable,omitempty"`
}

// TurnError reports an unexpected stage failure. The session returned with
// it is the unchanged input session.
type TurnError struct {
	Stage string
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// Options tunes the state machine.
type Options struct {
	MaxCycles    int
	StageRetries int
	TurnTimeout  time.Duration
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Collector Collector
	Planner   Planner
	Evaluator PlanEvaluator
	// Archive is optional.
	Archive Archive
}

// Orchestrator is the only entry point into the workflow.
type Orchestrator struct {
	deps Deps
	opts Options
}

// New returns an orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = 3
	}
	if opts.StageRetries < 0 {
		opts.StageRetries = 0
	}
	return &Orchestrator{deps: deps, opts: opts}
}

// Turn feeds one user message to the session and runs every stage that does
// not need user input. The input session is never modified; on failure it is
// returned as-is so the turn can be retried.
func (o *Orchestrator) Turn(ctx context.Context, in Session, text string) (Session, Reply, error) {
	if in.Done() {
		return in, Reply{Text: DoneHint, Brief: in.Brief}, nil
	}
	if in.State == StateCollecting && strings.TrimSpace(text) == "" {
		return in, Reply{Text: GreetMessage}, nil
	}

	if o.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.TurnTimeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return o.fail(in, stageOf(in.State), err)
	}

	s := in.Clone()
	journaled := len(s.Journal)
	logger := log.With().Str("session", s.ID).Logger()

	var (
		reply     Reply
		failStage string
		failErr   error
	)
	err := o.drive(ctx, &s, text, func(ctx context.Context) bool {
		logger.Debug().Str("state", string(s.State)).Msg("running stage")
		r, stage, err := o.advance(ctx, &s, text)
		if err != nil {
			failStage, failErr = stage, err
			return true
		}
		reply = r
		return reply.Text != ""
	})
	switch {
	case failErr != nil:
		return o.fail(in, failStage, failErr)
	case err != nil:
		return o.fail(in, stageOf(s.State), err)
	case reply.Text == "":
		return o.fail(in, stageOf(s.State), fmt.Errorf("no reply after %d stages in state %q", o.maxSteps(), s.State))
	}

	s.UpdatedAt = time.Now().UTC()
	o.record(ctx, s, journaled)

	logger.Info().
		Str("state", string(s.State)).
		Int("cycles", s.Cycles).
		Int("transitions", len(s.Journal)-journaled).
		Msg("turn completed")
	return s, reply, nil
}

// advance runs the stage for the current state of s. An empty reply means
// the next stage runs without user input. On error it also names the stage
// that failed.
func (o *Orchestrator) advance(ctx context.Context, s *Session, text string) (Reply, string, error) {
	switch s.State {
	case StateCollecting:
		var res ba.Result
		err := o.runStage(ctx, StageCollect, func(ctx context.Context) error {
			var err error
			res, err = o.deps.Collector.Collect(ctx, s.Requirement, text, s.Clarify)
			return err
		})
		if err != nil {
			return Reply{}, StageCollect, err
		}
		s.Requirement = res.Requirement
		val := res.Validation
		s.Validation = &val
		if val.NextAction == model.ActionGatherMoreInfo {
			s.transition(StateCollecting, "gather_more_info: "+strings.Join(val.MissingFields, ", "))
			question := res.Question
			if strings.TrimSpace(question) == "" {
				question = ba.FollowUp(val, "")
			}
			return Reply{Text: question}, "", nil
		}
		s.Clarify = nil
		s.transition(StatePlanning, "requirement complete")

	case StatePlanning:
		var plan model.ProjectPlan
		err := o.runStage(ctx, StagePlan, func(ctx context.Context) error {
			var err error
			plan, err = o.deps.Planner.Plan(ctx, s.Requirement, s.Feedback)
			return err
		})
		if err != nil {
			return Reply{}, StagePlan, err
		}
		s.Plan = &plan
		reason := "plan ready"
		if plan.IsDegraded() {
			reason += " (degraded: " + strings.Join(plan.Degraded, ", ") + ")"
		}
		s.transition(StateValidating, reason)

	case StateValidating:
		o.validate(s)
		if s.State == StateCollecting {
			return Reply{Text: clarificationQuestion(*s.Evaluation)}, "", nil
		}

	case StateSummarizing:
		s.Brief = summarizer.Summarize(s.Requirement, *s.Plan, summarizer.Options{Unresolved: s.Unresolved})
		s.transition(StateDone, "brief ready")
		return Reply{Text: s.Brief, Brief: s.Brief}, "", nil

	default:
		return Reply{}, string(s.State), fmt.Errorf("unexpected state %q", s.State)
	}
	return Reply{}, "", nil
}

// stageOf names the stage a session in state st is waiting on.
func stageOf(st State) string {
	if st == StateCollecting {
		return StageCollect
	}
	return StagePlan
}

// validate evaluates the current plan and moves s to SUMMARIZING, to
// REVISING_PLAN and then PLANNING, or to CLARIFYING_REQUIREMENTS and then
// COLLECTING_REQUIREMENTS.
func (o *Orchestrator) validate(s *Session) {
	plan := *s.Plan
	ev := o.deps.Evaluator.Evaluate(s.Requirement, plan)
	s.Evaluation = &ev
	if s.Best == nil || ev.Weight() < s.Best.Evaluation.Weight() {
		s.Best = &Candidate{Plan: plan.Clone(), Evaluation: cloneEvaluation(ev)}
	}

	switch {
	case ev.IsValid:
		s.Unresolved = nil
		s.transition(StateSummarizing, "plan approved: "+ev.Summary)
		return
	case s.Cycles >= o.opts.MaxCycles:
		best := s.Best.Plan.Clone()
		s.Plan = &best
		bestEv := cloneEvaluation(s.Best.Evaluation)
		s.Evaluation = &bestEv
		s.Unresolved = append([]model.Issue(nil), s.Best.Evaluation.Issues...)
		s.transition(StateSummarizing, fmt.Sprintf("revision limit of %d cycles reached", o.opts.MaxCycles))
		return
	}

	s.Cycles++
	if issues := clarifyIssues(ev, s.Revisions); len(issues) > 0 {
		s.Clarify = recommendations(issues)
		s.Feedback = nil
		// Plans for the old requirement are not candidates for the new one.
		s.Best = nil
		s.transition(StateClarifying, "requirement unclear: "+issues[0].Description)
		s.transition(StateCollecting, "awaiting clarification")
		return
	}
	s.Revisions++
	s.Feedback = recommendations(ev.Issues)
	s.transition(StateRevising, "plan needs revision: "+ev.Summary)
	s.transition(StatePlanning, "re-planning with feedback")
}

// clarifyIssues returns the issues whose root cause is the requirement
// itself: a requirement issue of at least high severity, or a critical budget
// overage that survived a revision.
func clarifyIssues(ev model.ProjectEvaluation, revisions int) []model.Issue {
	var out []model.Issue
	for _, is := range ev.Issues {
		switch {
		case is.Category == model.CategoryRequirement && is.Severity.AtLeast(model.SeverityHigh):
			out = append(out, is)
		case is.Category == model.CategoryBudget && is.Severity == model.SeverityCritical && revisions >= 1:
			out = append(out, is)
		}
	}
	return out
}

func recommendations(issues []model.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, is := range issues {
		out = append(out, fmt.Sprintf("[%s/%s] %s", is.Category, is.Severity, is.Recommendation))
	}
	return out
}

func clarificationQuestion(ev model.ProjectEvaluation) string {
	var b strings.Builder
	b.WriteString("Before I finalize the plan I need your input:\n")
	for _, is := range ev.Issues {
		if is.Category != model.CategoryRequirement && !(is.Category == model.CategoryBudget && is.Severity == model.SeverityCritical) {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", is.Description)
	}
	b.WriteString("Could you adjust the budget, timeline or scope so I can re-plan?")
	return b.String()
}

// runStage calls fn and retries it after a timeout while the turn still has
// time left.
func (o *Orchestrator) runStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= o.opts.StageRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !llm.IsTimeout(err) || ctx.Err() != nil {
			return err
		}
		if attempt < o.opts.StageRetries {
			log.Warn().Err(err).Str("stage", stage).Int("attempt", attempt+1).Msg("stage timed out, retrying")
		}
	}
	return err
}

func (o *Orchestrator) fail(in Session, stage string, err error) (Session, Reply, error) {
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Str("session", in.ID).Str("stage", stage).Msg("turn canceled")
		return in, Reply{}, &TurnError{Stage: stage, Err: err}
	case llm.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Str("session", in.ID).Str("stage", stage).Msg("turn timed out")
		return in, Reply{Text: TimeoutMessage, Retryable: true}, nil
	}
	log.Error().Err(err).Str("session", in.ID).Str("stage", stage).Msg("turn failed")
	return in, Reply{}, &TurnError{Stage: stage, Err: err}
}

// record writes new journal entries and a finished brief to the archive.
// Archive failures are logged and never fail the turn.
func (o *Orchestrator) record(ctx context.Context, s Session, from int) {
	if o.deps.Archive == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if from < len(s.Journal) {
		if err := o.deps.Archive.AppendTransitions(ctx, s.ID, s.Journal[from:]); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("archive journal")
		}
	}
	if !s.Done() {
		return
	}
	if err := o.deps.Archive.SaveBrief(ctx, model.Brief{
		SessionID:   s.ID,
		Name:        s.Requirement.Name,
		Markdown:    s.Brief,
		Requirement: s.Requirement,
		Plan:        *s.Plan,
		Evaluation:  s.Evaluation,
		Cycles:      s.Cycles,
		Unresolved:  len(s.Unresolved),
		CreatedAt:   s.UpdatedAt,
	}); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("archive brief")
	}
}
