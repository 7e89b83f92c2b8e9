package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/metalagman/consultant/internal/config"
)

// New constructs the backend described by cfg.
func New(ctx context.Context, cfg config.AgentConfig) (Backend, error) {
	switch cfg.Type {
	case config.AgentTypeOpenAI:
		return NewOpenAI(cfg, nil)
	case config.AgentTypeAnthropic:
		return NewAnthropic(cfg, nil)
	case config.AgentTypeGemini:
		return NewGemini(ctx, cfg, nil)
	case config.AgentTypeExec, config.AgentTypeCodex, config.AgentTypeClaude,
		config.AgentTypeOpenCode, config.AgentTypeGeminiCLI:
		return NewExec(cfg)
	}
	return nil, fmt.Errorf("unknown agent type %q", cfg.Type)
}

// NewForStages builds one backend per stage, sharing instances between
// stages that resolve to an identical agent config.
func NewForStages(ctx context.Context, agents map[string]config.AgentConfig) (map[string]Backend, error) {
	out := make(map[string]Backend, len(agents))
	built := make(map[string]Backend)
	for _, stage := range config.Stages {
		cfg, ok := agents[stage]
		if !ok {
			return nil, fmt.Errorf("no agent for stage %q", stage)
		}
		key := agentKey(cfg)
		if b, ok := built[key]; ok {
			out[stage] = b
			continue
		}
		b, err := New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage, err)
		}
		built[key] = b
		out[stage] = b
	}
	return out, nil
}

func agentKey(cfg config.AgentConfig) string {
	tty := ""
	if cfg.UseTTY != nil {
		tty = fmt.Sprint(*cfg.UseTTY)
	}
	return strings.Join([]string{
		cfg.Type, strings.Join(cfg.Cmd, "\x00"), cfg.Model, cfg.BaseURL,
		cfg.APIKey, cfg.APIKeyEnv, fmt.Sprint(cfg.MaxTokens), tty,
	}, "\x01")
}

func resolveAPIKey(cfg config.AgentConfig, defaultEnv string) (string, error) {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key, nil
	}
	envKey := strings.TrimSpace(cfg.APIKeyEnv)
	if envKey == "" {
		envKey = defaultEnv
	}
	if key := strings.TrimSpace(os.Getenv(envKey)); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("api key is required (set api_key or %s)", envKey)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
