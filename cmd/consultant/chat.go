package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/metalagman/consultant/internal/orchestrator"
	"github.com/spf13/cobra"
)

const chatHelp = `Describe your project and answer the follow-up questions.
Commands:
  help   show this help
  new    start a new session
  clear  clear the screen
  exit   leave (also: quit)`

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	stateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Plan a project interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			c := &console{
				in:     os.Stdin,
				out:    os.Stdout,
				turner: a.orch,
				render: markdownRenderer(),
			}
			return c.run(ctx)
		},
	}
}

// turner runs one workflow turn.
type turner interface {
	Turn(ctx context.Context, s orchestrator.Session, text string) (orchestrator.Session, orchestrator.Reply, error)
}

// console is the line-oriented chat loop.
type console struct {
	in     io.Reader
	out    io.Writer
	turner turner
	render func(string) (string, error)
}

func (c *console) run(ctx context.Context) error {
	s := orchestrator.NewSession(uuid.NewString())
	c.println(replyStyle.Render(orchestrator.GreetMessage))
	c.println(stateStyle.Render("Type 'help' for commands."))

	lines := bufio.NewScanner(c.in)
	lines.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(c.out, promptStyle.Render("you> "))
		if !lines.Scan() {
			c.println("")
			return lines.Err()
		}
		text := strings.TrimSpace(lines.Text())

		switch strings.ToLower(text) {
		case "exit", "quit":
			return nil
		case "help":
			c.println(chatHelp)
			continue
		case "clear":
			fmt.Fprint(c.out, "\033[H\033[2J")
			continue
		case "new":
			s = orchestrator.NewSession(uuid.NewString())
			c.println(noticeStyle.Render("Started a new session."))
			c.println(replyStyle.Render(orchestrator.GreetMessage))
			continue
		}

		next, reply, err := c.turner.Turn(ctx, s, text)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			c.println(errorStyle.Render("Something went wrong: " + err.Error()))
			c.println(noticeStyle.Render("Your progress is kept. Send your message again to retry."))
			continue
		}
		s = next
		c.show(reply)
		if s.State != orchestrator.StateDone && s.State != orchestrator.StateCollecting {
			c.println(stateStyle.Render("state: " + string(s.State)))
		}
	}
}

func (c *console) show(reply orchestrator.Reply) {
	switch {
	case reply.Retryable:
		c.println(noticeStyle.Render(reply.Text))
		return
	case reply.Brief == "":
		c.println(replyStyle.Render(reply.Text))
		return
	case reply.Text != reply.Brief:
		c.println(noticeStyle.Render(reply.Text))
	}
	c.println(c.renderBrief(reply.Brief))
}

func (c *console) renderBrief(md string) string {
	if c.render == nil {
		return md
	}
	out, err := c.render(md)
	if err != nil {
		return md
	}
	return out
}

func (c *console) println(s string) {
	fmt.Fprintln(c.out, s)
}

// markdownRenderer renders briefs for the terminal, falling back to the raw
// markdown when no renderer can be built.
func markdownRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return nil
	}
	return r.Render
}
