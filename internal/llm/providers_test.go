package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metalagman/consultant/internal/config"
	"github.com/metalagman/consultant/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestOpenAI_SendsStrictSchemaAndParsesOutput(t *testing.T) {
	const envKey = "CONSULTANT_OPENAI_TEST_KEY"
	t.Setenv(envKey, "test-api-key")

	var gotAuth, gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotBody = captureJSON(t, r)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"frontend\":\"React\",\"backend\":\"Go\"}"}
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`))
	}))
	t.Cleanup(srv.Close)

	backend, err := llm.NewOpenAI(config.AgentConfig{
		Type:      config.AgentTypeOpenAI,
		Model:     "gpt-4o-mini",
		BaseURL:   srv.URL,
		APIKeyEnv: envKey,
	}, srv.Client())
	require.NoError(t, err)

	got, err := llm.Structured(context.Background(), backend, llm.Call[stack]{
		Invocation: llm.Invocation{Name: "tech_stack_advisor", Instructions: "Recommend.", Input: "todo app"},
	})
	require.NoError(t, err)
	assert.Equal(t, stack{Frontend: "React", Backend: "Go"}, got)

	assert.Equal(t, "Bearer test-api-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])

	format, ok := gotBody["response_format"].(map[string]any)
	require.True(t, ok, "response_format missing")
	assert.Equal(t, "json_schema", format["type"])
	schema, ok := format["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tech_stack_advisor", schema["name"])
	assert.Equal(t, true, schema["strict"])

	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAI_RequiresAPIKey(t *testing.T) {
	t.Setenv("CONSULTANT_OPENAI_MISSING_KEY", "")

	_, err := llm.NewOpenAI(config.AgentConfig{
		Type:      config.AgentTypeOpenAI,
		Model:     "gpt-4o-mini",
		APIKeyEnv: "CONSULTANT_OPENAI_MISSING_KEY",
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key is required")
}

func TestOpenAI_SlowServerIsTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	backend, err := llm.NewOpenAI(config.AgentConfig{
		Type:    config.AgentTypeOpenAI,
		Model:   "gpt-4o-mini",
		BaseURL: srv.URL,
		APIKey:  "inline-key",
	}, srv.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = backend.Invoke(ctx, llm.Invocation{Name: "slow", Input: "x"})
	require.ErrorIs(t, err, llm.ErrTimeout)
}

func TestAnthropic_EmbedsSchemaAndJoinsTextBlocks(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		gotBody = captureJSON(t, r)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [
				{"type": "text", "text": "{\"frontend\":\"Vue\","},
				{"type": "text", "text": "\"backend\":\"Rails\"}"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 6}
		}`))
	}))
	t.Cleanup(srv.Close)

	backend, err := llm.NewAnthropic(config.AgentConfig{
		Type:    config.AgentTypeAnthropic,
		Model:   "claude-sonnet-4-5",
		BaseURL: srv.URL,
		APIKey:  "anthropic-key",
	}, srv.Client())
	require.NoError(t, err)

	got, err := llm.Structured(context.Background(), backend, llm.Call[stack]{
		Invocation: llm.Invocation{Name: "tech_stack_advisor", Instructions: "Recommend.", Input: "blog"},
	})
	require.NoError(t, err)
	assert.Equal(t, stack{Frontend: "Vue", Backend: "Rails"}, got)

	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "anthropic-key", gotKey)
	assert.Equal(t, "claude-sonnet-4-5", gotBody["model"])

	system, ok := gotBody["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Contains(t, system[0].(map[string]any)["text"], `"additionalProperties":false`)
}

func TestExec_RunsAgentInRunDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := filepath.Join(dir, "agent.sh")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
cat > /dev/null
RESP='{"frontend":"Svelte","backend":"Elixir"}'
echo "$RESP" > output.json
echo "$RESP"
`), 0o755))

	backend, err := llm.NewExec(config.AgentConfig{Type: config.AgentTypeExec, Cmd: []string{script}})
	require.NoError(t, err)

	got, err := llm.Structured(context.Background(), backend, llm.Call[stack]{
		Invocation: llm.Invocation{Name: "tech_stack_advisor", Instructions: "Recommend.", Input: "chat app"},
	})
	require.NoError(t, err)
	assert.Equal(t, stack{Frontend: "Svelte", Backend: "Elixir"}, got)
}

func TestExec_FailingAgentReportsStderr(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := filepath.Join(dir, "agent.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"boom\" 1>&2\nexit 1\n"), 0o755))

	backend, err := llm.NewExec(config.AgentConfig{Type: config.AgentTypeExec, Cmd: []string{script}})
	require.NoError(t, err)

	_, err = backend.Invoke(context.Background(), llm.Invocation{Name: "tech_stack_advisor", Input: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNew_RejectsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := llm.New(context.Background(), config.AgentConfig{Type: "telepathy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown agent type "telepathy"`)
}

func TestNewForStages_SharesIdenticalAgents(t *testing.T) {
	t.Parallel()

	cfg := config.AgentConfig{Type: config.AgentTypeExec, Cmd: []string{"/bin/true"}}
	agents := make(map[string]config.AgentConfig, len(config.Stages))
	for _, stage := range config.Stages {
		agents[stage] = cfg
	}
	agents[config.StageRisks] = config.AgentConfig{Type: config.AgentTypeExec, Cmd: []string{"/bin/false"}}

	backends, err := llm.NewForStages(context.Background(), agents)
	require.NoError(t, err)
	assert.Same(t, backends[config.StageExtract], backends[config.StageMilestones])
	assert.NotSame(t, backends[config.StageExtract], backends[config.StageRisks])
}
