// Package config provides configuration loading and management for consultant.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Agent types understood by the generative backend factory.
const (
	AgentTypeOpenAI    = "openai"
	AgentTypeAnthropic = "anthropic"
	AgentTypeGemini    = "gemini"
	AgentTypeExec      = "exec"
	AgentTypeCodex     = "codex"
	AgentTypeClaude    = "claude"
	AgentTypeOpenCode  = "opencode"
	AgentTypeGeminiCLI = "gemini_cli"
)

// Workflow stages that call the generative backend.
const (
	StageExtract    = "extract"
	StageMilestones = "milestones"
	StageTechStack  = "techstack"
	StageRisks      = "risks"
	StageEstimate   = "estimate"
)

// Stages lists every stage that must resolve to an agent.
var Stages = []string{StageExtract, StageMilestones, StageTechStack, StageRisks, StageEstimate}

// Config is the root configuration.
type Config struct {
	Profile    string                   `json:"profile,omitempty"     mapstructure:"profile"`
	Agents     map[string]AgentConfig   `json:"agents"                mapstructure:"agents"`
	Profiles   map[string]ProfileConfig `json:"profiles"              mapstructure:"profiles"`
	Timeouts   Timeouts                 `json:"timeouts"              mapstructure:"timeouts"`
	Policy     Policy                   `json:"policy"                mapstructure:"policy"`
	PromptsDir string                   `json:"prompts_dir,omitempty" mapstructure:"prompts_dir"`
	Sessions   SessionConfig            `json:"sessions"              mapstructure:"sessions"`
	Server     ServerConfig             `json:"server"                mapstructure:"server"`
	Archive    ArchiveConfig            `json:"archive"               mapstructure:"archive"`
}

// AgentConfig describes how to reach a generative backend.
type AgentConfig struct {
	Type      string   `json:"type"                  mapstructure:"type"`
	Cmd       []string `json:"cmd,omitempty"         mapstructure:"cmd"`
	Model     string   `json:"model,omitempty"       mapstructure:"model"`
	BaseURL   string   `json:"base_url,omitempty"    mapstructure:"base_url"`
	APIKey    string   `json:"api_key,omitempty"     mapstructure:"api_key"`
	APIKeyEnv string   `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	MaxTokens int      `json:"max_tokens,omitempty"  mapstructure:"max_tokens"`
	UseTTY    *bool    `json:"use_tty,omitempty"     mapstructure:"use_tty"`
}

// ProfileConfig maps workflow stages to named agents.
type ProfileConfig struct {
	Default string            `json:"default,omitempty" mapstructure:"default"`
	Stages  map[string]string `json:"stages,omitempty"  mapstructure:"stages"`
}

// Timeouts bounds every generative call by stage.
type Timeouts struct {
	Extract  time.Duration `json:"extract"  mapstructure:"extract"`
	Leaf     time.Duration `json:"leaf"     mapstructure:"leaf"`
	Estimate time.Duration `json:"estimate" mapstructure:"estimate"`
	Turn     time.Duration `json:"turn"     mapstructure:"turn"`
}

// Policy holds the tunable thresholds of both evaluators and the orchestrator.
type Policy struct {
	Requirement       RequirementPolicy `json:"requirement"         mapstructure:"requirement"`
	Project           ProjectPolicy     `json:"project"             mapstructure:"project"`
	MaxRevisionCycles int               `json:"max_revision_cycles" mapstructure:"max_revision_cycles"`
	StageRetries      int               `json:"stage_retries"       mapstructure:"stage_retries"`
}

// RequirementPolicy tunes the requirement evaluator.
type RequirementPolicy struct {
	MinDescriptionLength      int     `json:"min_description_length"      mapstructure:"min_description_length"`
	DetailedDescriptionLength int     `json:"detailed_description_length" mapstructure:"detailed_description_length"`
	BudgetFloor               float64 `json:"budget_floor"                mapstructure:"budget_floor"`
}

// ProjectPolicy tunes the project evaluator.
type ProjectPolicy struct {
	MediumOverage     float64 `json:"medium_overage"     mapstructure:"medium_overage"`
	CriticalOverage   float64 `json:"critical_overage"   mapstructure:"critical_overage"`
	TimelineTolerance float64 `json:"timeline_tolerance" mapstructure:"timeline_tolerance"`
}

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	MaxSessions int `json:"max_sessions" mapstructure:"max_sessions"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// ArchiveConfig configures the optional brief archive. An empty path disables it.
type ArchiveConfig struct {
	Path string `json:"path,omitempty" mapstructure:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Profile: "default",
		Agents: map[string]AgentConfig{
			"openai_primary": {Type: AgentTypeOpenAI, Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
		},
		Profiles: map[string]ProfileConfig{
			"default": {Default: "openai_primary"},
		},
		Timeouts: Timeouts{
			Extract:  30 * time.Second,
			Leaf:     90 * time.Second,
			Estimate: 60 * time.Second,
			Turn:     180 * time.Second,
		},
		Policy: Policy{
			Requirement: RequirementPolicy{
				MinDescriptionLength:      10,
				DetailedDescriptionLength: 50,
				BudgetFloor:               1000,
			},
			Project: ProjectPolicy{
				MediumOverage:     0.10,
				CriticalOverage:   0.25,
				TimelineTolerance: 1.25,
			},
			MaxRevisionCycles: 3,
			StageRetries:      1,
		},
		Sessions: SessionConfig{MaxSessions: 1024},
		Server:   ServerConfig{Addr: ":8080"},
	}
}

// ResolveAgents returns the selected profile name and the agent config for each stage.
func (c Config) ResolveAgents(profile string) (string, map[string]AgentConfig, error) {
	selected := strings.TrimSpace(profile)
	if selected == "" {
		selected = strings.TrimSpace(c.Profile)
	}
	if selected == "" {
		selected = "default"
	}

	prof, ok := c.Profiles[selected]
	if !ok {
		return "", nil, fmt.Errorf("profile %q is not defined (available: %s)", selected, strings.Join(c.profileNames(), ", "))
	}

	resolved := make(map[string]AgentConfig, len(Stages))
	for _, stage := range Stages {
		ref := strings.TrimSpace(prof.Stages[stage])
		if ref == "" {
			ref = strings.TrimSpace(prof.Default)
		}
		if ref == "" {
			return "", nil, fmt.Errorf("profile %q: no agent for stage %q and no default", selected, stage)
		}
		agentCfg, ok := c.Agents[ref]
		if !ok {
			return "", nil, fmt.Errorf("profile %q: stage %q references undefined agent %q", selected, stage, ref)
		}
		resolved[stage] = agentCfg
	}
	for stage := range prof.Stages {
		if !knownStage(stage) {
			return "", nil, fmt.Errorf("profile %q: unknown stage %q", selected, stage)
		}
	}

	return selected, resolved, nil
}

// Validate checks semantic constraints that the JSON schema cannot express.
func (c Config) Validate() error {
	p := c.Policy
	if p.Requirement.MinDescriptionLength <= 0 {
		return fmt.Errorf("policy.requirement.min_description_length must be > 0")
	}
	if p.Requirement.DetailedDescriptionLength < p.Requirement.MinDescriptionLength {
		return fmt.Errorf("policy.requirement.detailed_description_length must be >= min_description_length")
	}
	if p.Project.MediumOverage < 0 || p.Project.CriticalOverage <= p.Project.MediumOverage {
		return fmt.Errorf("policy.project: critical_overage must exceed medium_overage")
	}
	if p.Project.TimelineTolerance < 1 {
		return fmt.Errorf("policy.project.timeline_tolerance must be >= 1")
	}
	if p.MaxRevisionCycles <= 0 {
		return fmt.Errorf("policy.max_revision_cycles must be > 0")
	}
	if p.StageRetries < 0 {
		return fmt.Errorf("policy.stage_retries must be >= 0")
	}
	for name, d := range map[string]time.Duration{
		"extract":  c.Timeouts.Extract,
		"leaf":     c.Timeouts.Leaf,
		"estimate": c.Timeouts.Estimate,
		"turn":     c.Timeouts.Turn,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be > 0", name)
		}
	}
	return nil
}

func (c Config) profileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func knownStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}
