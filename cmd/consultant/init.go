package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/consultant/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func initCmd() *cobra.Command {
	var (
		format string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long:  "Write a default config file to the --config path. The format follows the file extension unless --format is set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := cfgFile
			if path == "" {
				path = defaultConfigPath
			}
			if format == "" {
				format = configType(path)
			}
			if _, err := os.Stat(path); err == nil && !force {
				log.Info().Str("path", path).Msg("config already exists, skipping")
				return nil
			}

			data, err := renderDefaultConfig(format)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
			log.Info().Str("path", path).Msg("default config installed")
			fmt.Println("consultant initialized successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "config format: json or yaml")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func renderDefaultConfig(format string) ([]byte, error) {
	settings := defaultSettings(config.Default())
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal default config: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("marshal default config: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unsupported config format %q (want json or yaml)", format)
}

// defaultSettings mirrors the config file layout, with durations written as
// strings so both encoders produce loadable files.
func defaultSettings(cfg config.Config) map[string]any {
	agents := make(map[string]any, len(cfg.Agents))
	for name, a := range cfg.Agents {
		agent := map[string]any{"type": a.Type}
		if a.Model != "" {
			agent["model"] = a.Model
		}
		if a.APIKeyEnv != "" {
			agent["api_key_env"] = a.APIKeyEnv
		}
		if len(a.Cmd) > 0 {
			agent["cmd"] = a.Cmd
		}
		agents[name] = agent
	}
	agents["anthropic_primary"] = map[string]any{
		"type": config.AgentTypeAnthropic, "model": "claude-sonnet-4-5", "api_key_env": "ANTHROPIC_API_KEY",
	}
	agents["gemini_primary"] = map[string]any{
		"type": config.AgentTypeGemini, "model": "gemini-2.5-flash", "api_key_env": "GEMINI_API_KEY",
	}
	agents["codex_cli"] = map[string]any{"type": config.AgentTypeCodex, "model": "gpt-5.1-codex-mini"}

	profiles := make(map[string]any, len(cfg.Profiles)+3)
	for name, p := range cfg.Profiles {
		profiles[name] = map[string]any{"default": p.Default}
	}
	profiles["anthropic"] = map[string]any{"default": "anthropic_primary"}
	profiles["gemini"] = map[string]any{"default": "gemini_primary"}
	profiles["mixed"] = map[string]any{
		"default": "openai_primary",
		"stages": map[string]any{
			config.StageRisks:    "anthropic_primary",
			config.StageEstimate: "codex_cli",
		},
	}

	p := cfg.Policy
	return map[string]any{
		"profile":  cfg.Profile,
		"agents":   agents,
		"profiles": profiles,
		"timeouts": map[string]any{
			"extract":  cfg.Timeouts.Extract.String(),
			"leaf":     cfg.Timeouts.Leaf.String(),
			"estimate": cfg.Timeouts.Estimate.String(),
			"turn":     cfg.Timeouts.Turn.String(),
		},
		"policy": map[string]any{
			"max_revision_cycles": p.MaxRevisionCycles,
			"stage_retries":       p.StageRetries,
			"requirement": map[string]any{
				"min_description_length":      p.Requirement.MinDescriptionLength,
				"detailed_description_length": p.Requirement.DetailedDescriptionLength,
				"budget_floor":                p.Requirement.BudgetFloor,
			},
			"project": map[string]any{
				"medium_overage":     p.Project.MediumOverage,
				"critical_overage":   p.Project.CriticalOverage,
				"timeline_tolerance": p.Project.TimelineTolerance,
			},
		},
		"sessions": map[string]any{"max_sessions": cfg.Sessions.MaxSessions},
		"server":   map[string]any{"addr": cfg.Server.Addr},
		"archive":  map[string]any{"path": filepath.Join(".consultant", "archive.db")},
	}
}
