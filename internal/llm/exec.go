package llm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/metalagman/ainvoke"
	"github.com/metalagman/consultant/internal/config"
)

type agentSpec struct {
	bin               string
	defaultSubcommand string
	extraFlags        []string
}

var agentSpecs = map[string]agentSpec{
	config.AgentTypeCodex: {
		bin:               "codex",
		defaultSubcommand: "exec",
		extraFlags:        []string{"--full-auto", "--skip-git-repo-check"},
	},
	config.AgentTypeOpenCode: {
		bin:               "opencode",
		defaultSubcommand: "run",
	},
	config.AgentTypeGeminiCLI: {
		bin:        "gemini",
		extraFlags: []string{"--output-format", "text", "--approval-mode", "yolo"},
	},
	config.AgentTypeClaude: {
		bin:        "claude",
		extraFlags: []string{"--output-format", "text", "--print", "--dangerously-skip-permissions"},
	},
}

const execInputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "capability": { "type": "string" },
    "input": { "type": "string" }
  },
  "required": ["capability", "input"]
}`

// execInput is written to input.json for file-based agents.
type execInput struct {
	Capability string `json:"capability"`
	Input      string `json:"input"`
}

// textOutput wraps free text for agents that always need an output schema.
type textOutput struct {
	Text string `json:"text"`
}

var textSchema = MustSchema[textOutput]("text")

// Exec runs a CLI agent through ainvoke. Every call gets its own run
// directory holding input.json and output.json.
type Exec struct {
	cmd    []string
	model  string
	kind   string
	runner ainvoke.Runner
}

// NewExec constructs a CLI agent backend.
func NewExec(cfg config.AgentConfig) (*Exec, error) {
	var cmd []string
	if cfg.Type == config.AgentTypeExec {
		if len(cfg.Cmd) == 0 {
			return nil, fmt.Errorf("exec agent requires cmd")
		}
		cmd = cfg.Cmd
	} else if spec, ok := agentSpecs[cfg.Type]; ok {
		cmd = prepareCmd(spec, cfg.Model)
	} else {
		return nil, fmt.Errorf("unknown agent type %q", cfg.Type)
	}

	useTTY := false
	if cfg.UseTTY != nil {
		useTTY = *cfg.UseTTY
	}

	ar, err := ainvoke.NewRunner(ainvoke.AgentConfig{
		Cmd:    cmd,
		UseTTY: useTTY,
	})
	if err != nil {
		return nil, err
	}

	return &Exec{cmd: cmd, model: cfg.Model, kind: cfg.Type, runner: ar}, nil
}

func prepareCmd(spec agentSpec, model string) []string {
	out := []string{spec.bin}
	if spec.defaultSubcommand != "" {
		out = append(out, spec.defaultSubcommand)
	}
	if model != "" {
		out = append(out, "--model", model)
	}
	return append(out, spec.extraFlags...)
}

// Invoke runs the agent once in a fresh run directory.
func (e *Exec) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	runDir, err := os.MkdirTemp("", "consultant-"+inv.Name+"-*")
	if err != nil {
		return Result{}, fmt.Errorf("create run dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(runDir) }()

	schema := inv.Schema
	if schema == nil {
		schema = textSchema
	}

	var stderr bytes.Buffer
	out, _, code, err := e.runner.Run(ctx, ainvoke.Invocation{
		RunDir:       runDir,
		SystemPrompt: inv.Instructions,
		Input:        execInput{Capability: inv.Name, Input: inv.Input},
		InputSchema:  execInputSchema,
		OutputSchema: schema.JSON,
	}, ainvoke.WithStderr(&stderr))
	if err != nil {
		return Result{}, classify(ctx, e.kind+" agent", fmt.Errorf("exit code %d: %w: %s", code, err, tail(stderr.String(), 512)))
	}

	if inv.Schema == nil {
		wrapped, err := Decode[textOutput](textSchema, string(out))
		if err != nil {
			return Result{}, err
		}
		return Result{Text: wrapped.Text}, nil
	}
	return Result{Text: strings.TrimSpace(string(out))}, nil
}

// Describe reports the agent type, model and command.
func (e *Exec) Describe() Info {
	return Info{Type: e.kind, Model: e.model}
}

// Cmd returns the command line the agent is started with.
func (e *Exec) Cmd() []string {
	return append([]string(nil), e.cmd...)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
