package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/metalagman/consultant/internal/orchestrator"
	"github.com/spf13/cobra"
)

// errTurnTimedOut is returned by quick when a turn keeps timing out.
var errTurnTimedOut = errors.New("turn timed out")

func quickCmd() *cobra.Command {
	var (
		pretty bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "quick <message> [message...]",
		Short: "Run one or more turns non-interactively and print the last reply",
		Long: "Each argument is sent as the next user message of a single session. " +
			"The reply to the last message is printed; it is the brief once the session is done.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			s, reply, err := runTurns(ctx, a.orch, args)
			if err != nil {
				return err
			}
			if asJSON {
				return writeSession(os.Stdout, s)
			}
			text := reply.Text
			if pretty && reply.Brief != "" {
				if render := markdownRenderer(); render != nil {
					if out, err := render(reply.Brief); err == nil {
						text = out
					}
				}
			}
			fmt.Fprintln(os.Stdout, text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "render the brief for the terminal")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the final session as JSON")
	return cmd
}

// runTurns feeds messages to a fresh session in order.
func runTurns(ctx context.Context, t turner, messages []string) (orchestrator.Session, orchestrator.Reply, error) {
	s := orchestrator.NewSession(uuid.NewString())
	var reply orchestrator.Reply
	for _, msg := range messages {
		next, r, err := t.Turn(ctx, s, msg)
		if err != nil {
			return s, r, err
		}
		if r.Retryable {
			return s, r, fmt.Errorf("%w: %s", errTurnTimedOut, r.Text)
		}
		s, reply = next, r
	}
	return s, reply, nil
}

func writeSession(w io.Writer, s orchestrator.Session) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
