// Package ba collects the project requirement turn by turn.
package ba

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/consultant/internal/evaluator/requirement"
	"github.com/metalagman/consultant/internal/llm"
	"github.com/metalagman/consultant/internal/model"
	"github.com/metalagman/consultant/internal/prompts"
	"github.com/rs/zerolog/log"
)

// NameExtractor is the capability name of the requirement extractor.
const NameExtractor = prompts.RequirementExtractor

// Extraction is the structured output of one extractor call.
type Extraction struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Budget         float64 `json:"budget"`
	Timeline       string  `json:"timeline"`
	AdditionalInfo string  `json:"additionalInfo"`
	Question       string  `json:"question"`
}

// Requirement returns the requirement fields of e.
func (e Extraction) Requirement() model.Requirement {
	return model.Requirement{
		Name:           e.Name,
		Description:    e.Description,
		Budget:         e.Budget,
		Timeline:       e.Timeline,
		AdditionalInfo: e.AdditionalInfo,
	}
}

// Result is the outcome of one collection turn.
type Result struct {
	Requirement model.Requirement
	Validation  model.RequirementValidationResult
	// Question is the follow-up to ask when the requirement is incomplete.
	Question string
	// Heuristic is set when the structured extractor was unavailable.
	Heuristic bool
}

// Agent is the conversation composite: extractor plus requirement evaluator.
type Agent struct {
	backend   llm.Backend
	prompts   *prompts.Set
	evaluator *requirement.Evaluator
	schema    *llm.Schema
	timeout   time.Duration
}

// New returns a BA agent.
func New(b llm.Backend, p *prompts.Set, ev *requirement.Evaluator, timeout time.Duration) *Agent {
	if p == nil {
		p = prompts.Default()
	}
	return &Agent{
		backend:   b,
		prompts:   p,
		evaluator: ev,
		schema:    llm.MustSchema[Extraction](NameExtractor),
		timeout:   timeout,
	}
}

// Collect extracts fields from text, merges them into draft and evaluates the
// result. Schema violations fall back to the heuristic extractor; timeouts
// and transport errors are returned with draft untouched.
func (a *Agent) Collect(ctx context.Context, draft model.Requirement, text string, feedback []string) (Result, error) {
	ext, err := a.extract(ctx, draft, text, feedback)
	heuristic := false
	if err != nil {
		if !errors.Is(err, llm.ErrSchemaViolation) {
			return Result{}, err
		}
		log.Warn().Err(err).Msg("extractor output rejected, using heuristic extraction")
		ext = Heuristic(draft, text)
		heuristic = true
	}

	update := ext.Requirement()
	merged := draft.Merge(update)
	val := a.evaluator.Evaluate(merged)
	if update.Budget < 0 {
		val.Feedback = append(val.Feedback, "Budget must be a positive number; the provided value was ignored")
	}

	res := Result{
		Requirement: merged,
		Validation:  val,
		Heuristic:   heuristic,
	}
	if val.NextAction == model.ActionGatherMoreInfo {
		res.Question = FollowUp(val, ext.Question)
	}

	log.Debug().
		Bool("complete", val.IsComplete).
		Bool("heuristic", heuristic).
		Msg("requirement collected")
	return res, nil
}

func (a *Agent) extract(ctx context.Context, draft model.Requirement, text string, feedback []string) (Extraction, error) {
	instructions, err := a.prompts.Render(NameExtractor, prompts.Data{Feedback: feedback})
	if err != nil {
		return Extraction{}, err
	}
	input, err := extractorInput(draft, text)
	if err != nil {
		return Extraction{}, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return llm.Structured(ctx, a.backend, llm.Call[Extraction]{
		Invocation: llm.Invocation{
			Name:         NameExtractor,
			Instructions: instructions,
			Input:        input,
			Schema:       a.schema,
		},
	})
}

func extractorInput(draft model.Requirement, text string) (string, error) {
	raw, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal draft: %w", err)
	}
	return fmt.Sprintf("Current draft:\n%s\n\nUser message:\n%s", raw, strings.TrimSpace(text)), nil
}

// Optional fields in the order they are asked about.
var optionalFields = []struct {
	prompt string
	absent func(model.Requirement) bool
}{
	{"a project name", func(r model.Requirement) bool { return strings.TrimSpace(r.Name) == "" }},
	{"a budget", func(r model.Requirement) bool { return r.Budget <= 0 }},
	{"a target timeline", func(r model.Requirement) bool { return strings.TrimSpace(r.Timeline) == "" }},
	{"integrations or constraints", func(r model.Requirement) bool { return strings.TrimSpace(r.AdditionalInfo) == "" }},
}

// FollowUp builds the next question from the evaluator feedback, the model's
// suggested question and the optional fields still absent.
func FollowUp(val model.RequirementValidationResult, suggested string) string {
	var b strings.Builder
	if q := strings.TrimSpace(suggested); q != "" {
		b.WriteString(q)
	} else if len(val.Feedback) > 0 {
		b.WriteString(val.Feedback[0])
		if !strings.HasSuffix(val.Feedback[0], ".") && !strings.HasSuffix(val.Feedback[0], "?") {
			b.WriteString(".")
		}
	} else {
		b.WriteString("Could you tell me more about what you want to build?")
	}

	var extra []string
	for _, f := range optionalFields {
		if f.absent(val.Requirement) {
			extra = append(extra, f.prompt)
		}
	}
	if len(extra) > 0 {
		b.WriteString("\nIf you have them, it would also help to know " + joinList(extra) + ".")
	}
	return b.String()
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
