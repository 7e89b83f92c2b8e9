package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAgents_UsesProfileDefaultForUnmappedStages(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Agents: map[string]AgentConfig{
			"openai_primary": {Type: AgentTypeOpenAI, Model: "gpt-4o-mini"},
			"claude_sonnet":  {Type: AgentTypeAnthropic, Model: "claude-sonnet-4-5"},
		},
		Profiles: map[string]ProfileConfig{
			"default": {
				Default: "openai_primary",
				Stages:  map[string]string{StageRisks: "claude_sonnet"},
			},
		},
	}

	profile, agents, err := cfg.ResolveAgents("")
	require.NoError(t, err)
	assert.Equal(t, "default", profile)
	assert.Len(t, agents, len(Stages))
	assert.Equal(t, AgentTypeAnthropic, agents[StageRisks].Type)
	assert.Equal(t, AgentTypeOpenAI, agents[StageMilestones].Type)
	assert.Equal(t, AgentTypeOpenAI, agents[StageExtract].Type)
}

func TestResolveAgents_ReturnsErrorForUndefinedAgentReference(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Agents: map[string]AgentConfig{"defined": {Type: AgentTypeCodex}},
		Profiles: map[string]ProfileConfig{
			"default": {Default: "defined", Stages: map[string]string{StageEstimate: "missing"}},
		},
	}

	_, _, err := cfg.ResolveAgents("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undefined agent "missing"`)
}

func TestResolveAgents_ReturnsErrorForMissingDefault(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Agents: map[string]AgentConfig{"defined": {Type: AgentTypeCodex}},
		Profiles: map[string]ProfileConfig{
			"default": {Stages: map[string]string{StageEstimate: "defined"}},
		},
	}

	_, _, err := cfg.ResolveAgents("")
	require.Error(t, err)
}

func TestResolveAgents_ReturnsErrorForUnknownProfile(t *testing.T) {
	t.Parallel()

	cfg := Default()
	_, _, err := cfg.ResolveAgents("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: default")
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Policy.Requirement.MinDescriptionLength)
	assert.Equal(t, 0.25, cfg.Policy.Project.CriticalOverage)
	assert.Equal(t, 3, cfg.Policy.MaxRevisionCycles)
}

func TestValidate_RejectsInvertedOverageThresholds(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Policy.Project.CriticalOverage = 0.05
	require.Error(t, cfg.Validate())
}

func TestValidateSettings_AllowsOpenAIAgentWithAPIKeyEnv(t *testing.T) {
	t.Parallel()

	settings := map[string]any{
		"profile": "default",
		"agents": map[string]any{
			"openai_primary": map[string]any{
				"type":        AgentTypeOpenAI,
				"model":       "gpt-4o-mini",
				"api_key_env": "OPENAI_API_KEY",
			},
		},
		"profiles": map[string]any{
			"default": map[string]any{"default": "openai_primary"},
		},
		"timeouts": map[string]any{"leaf": "90s", "turn": 180},
		"policy": map[string]any{
			"max_revision_cycles": 3,
		},
	}

	require.NoError(t, ValidateSettings(settings))
}

func TestValidateSettings_RejectsOpenAIAgentWithoutAPIKey(t *testing.T) {
	t.Parallel()

	settings := map[string]any{
		"agents": map[string]any{
			"openai_primary": map[string]any{
				"type":  AgentTypeOpenAI,
				"model": "gpt-4o-mini",
			},
		},
	}

	require.Error(t, ValidateSettings(settings))
}

func TestValidateSettings_RejectsExecAgentWithoutCmd(t *testing.T) {
	t.Parallel()

	settings := map[string]any{
		"agents": map[string]any{
			"local": map[string]any{"type": AgentTypeExec},
		},
	}

	require.Error(t, ValidateSettings(settings))
}

func TestValidateSettings_RejectsUnknownStage(t *testing.T) {
	t.Parallel()

	settings := map[string]any{
		"profiles": map[string]any{
			"default": map[string]any{
				"stages": map[string]any{"summarize": "openai_primary"},
			},
		},
	}

	require.Error(t, ValidateSettings(settings))
}

func TestLoad_ReadsFileOnTopOfDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"agents": {
			"claude": {"type": "anthropic", "model": "claude-sonnet-4-5", "api_key_env": "ANTHROPIC_API_KEY"}
		},
		"profiles": {"default": {"default": "claude"}},
		"timeouts": {"leaf": "45s", "turn": 120},
		"policy": {"max_revision_cycles": 2}
	}`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Timeouts.Leaf)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Turn)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Extract)
	assert.Equal(t, 2, cfg.Policy.MaxRevisionCycles)
	assert.Equal(t, 10, cfg.Policy.Requirement.MinDescriptionLength)

	_, agents, err := cfg.ResolveAgents("")
	require.NoError(t, err)
	assert.Equal(t, AgentTypeAnthropic, agents[StageMilestones].Type)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "absent.json"))
	v.SetConfigType("json")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default().Timeouts, cfg.Timeouts)
}

func TestLoad_EnvOverridesServerAddr(t *testing.T) {
	t.Setenv("CONSULTANT_SERVER_ADDR", ":9090")

	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "absent.json"))
	v.SetConfigType("json")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}
