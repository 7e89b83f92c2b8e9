package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/metalagman/consultant/internal/config"
)

const (
	defaultAnthropicAPIKeyEnv = "ANTHROPIC_API_KEY"
	defaultAnthropicMaxTokens = 4096
)

// Anthropic calls the Messages API. The schema travels in the system prompt
// and is enforced by local validation.
type Anthropic struct {
	model     string
	maxTokens int
	client    anthropic.Client
}

// NewAnthropic constructs an Anthropic backend. httpClient may be nil.
func NewAnthropic(cfg config.AgentConfig, httpClient *http.Client) (*Anthropic, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	apiKey, err := resolveAPIKey(cfg, defaultAnthropicAPIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, anthropicoption.WithHTTPClient(httpClient))
	}

	return &Anthropic{
		model:     model,
		maxTokens: firstPositive(cfg.MaxTokens, defaultAnthropicMaxTokens),
		client:    anthropic.NewClient(opts...),
	}, nil
}

// Invoke sends one message and concatenates the text blocks of the reply.
func (a *Anthropic) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	system := inv.Instructions
	if inv.Schema != nil {
		system = withInlineSchema(system, inv.Schema)
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(firstPositive(inv.MaxTokens, a.maxTokens)),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(inv.Input)),
		},
	})
	if err != nil {
		return Result{}, classify(ctx, "anthropic messages", err)
	}
	if message.StopReason == anthropic.StopReasonMaxTokens {
		return Result{}, fmt.Errorf("%w: %s: output truncated", ErrSchemaViolation, inv.Name)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return Result{
		Text:             strings.TrimSpace(text.String()),
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
	}, nil
}

// Describe reports the provider and model.
func (a *Anthropic) Describe() Info {
	return Info{Type: config.AgentTypeAnthropic, Model: a.model}
}

func withInlineSchema(instructions string, s *Schema) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nRespond with a single JSON document and nothing else. It must validate against this JSON schema:\n")
	b.WriteString(s.JSON)
	b.WriteString("\n")
	return b.String()
}
