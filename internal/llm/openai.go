package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/metalagman/consultant/internal/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIAPIKeyEnv = "OPENAI_API_KEY"
)

// OpenAI calls the chat completions API with a strict JSON-schema response format.
type OpenAI struct {
	model     string
	maxTokens int
	client    openai.Client
}

// NewOpenAI constructs an OpenAI backend. httpClient may be nil.
func NewOpenAI(cfg config.AgentConfig, httpClient *http.Client) (*OpenAI, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("openai model is required")
	}
	apiKey, err := resolveAPIKey(cfg, defaultOpenAIAPIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		// Retries are owned by the orchestrator's stage policy.
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &OpenAI{
		model:     model,
		maxTokens: cfg.MaxTokens,
		client:    openai.NewClient(opts...),
	}, nil
}

// Invoke executes one chat completion.
func (o *OpenAI) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(inv.Instructions),
			openai.UserMessage(inv.Input),
		},
	}
	if n := firstPositive(inv.MaxTokens, o.maxTokens); n > 0 {
		params.MaxTokens = openai.Int(int64(n))
	}
	if inv.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   inv.Schema.Name,
					Schema: inv.Schema.Doc,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, classify(ctx, "openai chat", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("openai chat: no choices in response")
	}
	choice := resp.Choices[0]
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return Result{}, fmt.Errorf("%w: %s: model refused: %s", ErrSchemaViolation, inv.Name, refusal)
	}
	if choice.FinishReason == "length" {
		return Result{}, fmt.Errorf("%w: %s: output truncated", ErrSchemaViolation, inv.Name)
	}

	return Result{
		Text:             strings.TrimSpace(choice.Message.Content),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// Describe reports the provider and model.
func (o *OpenAI) Describe() Info {
	return Info{Type: config.AgentTypeOpenAI, Model: o.model}
}
