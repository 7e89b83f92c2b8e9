package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/workflowagents/loopagent"
	adkrunner "google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const appName = "consultant"

// stepFunc runs one stage and reports whether the turn is over.
type stepFunc func(ctx context.Context) bool

// maxSteps bounds the stages of one turn: collection, a planning and a
// validation stage for every cycle plus the last one, and summarization.
func (o *Orchestrator) maxSteps() uint {
	return uint(2*(o.opts.MaxCycles+1) + 2)
}

// drive runs step inside an ADK loop agent until it reports the turn is over
// or the step bound is reached. The session state is mirrored into the ADK
// session after every stage.
func (o *Orchestrator) drive(ctx context.Context, s *Session, text string, step stepFunc) error {
	stageAgent, err := agent.New(agent.Config{
		Name:        "ConsultantStage",
		Description: "Runs the next stage of a consulting session.",
		Run: func(ictx agent.InvocationContext) iter.Seq2[*session.Event, error] {
			return func(yield func(*session.Event, error) bool) {
				if ictx.Ended() {
					return
				}
				steps := 0
				if value, err := ictx.Session().State().Get("steps"); err == nil {
					if parsed, ok := value.(int); ok {
						steps = parsed
					}
				}

				if step(ictx) {
					ictx.EndInvocation()
					return
				}

				if err := ictx.Session().State().Set("state", string(s.State)); err != nil {
					yield(nil, fmt.Errorf("set state in session: %w", err))
					return
				}
				if err := ictx.Session().State().Set("steps", steps+1); err != nil {
					yield(nil, fmt.Errorf("set steps in session: %w", err))
					return
				}
			}
		},
	})
	if err != nil {
		return fmt.Errorf("create stage agent: %w", err)
	}

	loop, err := loopagent.New(loopagent.Config{
		MaxIterations: o.maxSteps(),
		AgentConfig: agent.Config{
			Name:        "ConsultantTurn",
			Description: "Advances a consulting session until it needs the user.",
			SubAgents:   []agent.Agent{stageAgent},
		},
	})
	if err != nil {
		return fmt.Errorf("create turn agent: %w", err)
	}

	svc := session.InMemoryService()
	r, err := adkrunner.New(adkrunner.Config{
		AppName:        appName,
		Agent:          loop,
		SessionService: svc,
	})
	if err != nil {
		return fmt.Errorf("create ADK runner: %w", err)
	}

	userID := s.ID
	if userID == "" {
		userID = "anonymous"
	}
	created, err := svc.Create(ctx, &session.CreateRequest{
		AppName: appName,
		UserID:  userID,
		State: map[string]any{
			"state": string(s.State),
			"steps": 0,
		},
	})
	if err != nil {
		return fmt.Errorf("create ADK session: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		text = "continue"
	}
	input := genai.NewContentFromText(text, genai.RoleUser)
	for _, runErr := range r.Run(ctx, userID, created.Session.ID(), input, agent.RunConfig{}) {
		if runErr != nil {
			return runErr
		}
	}
	return nil
}
