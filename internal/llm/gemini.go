package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/metalagman/consultant/internal/config"
	"google.golang.org/genai"
)

const defaultGeminiAPIKeyEnv = "GEMINI_API_KEY"

// Gemini calls GenerateContent with a JSON response schema.
type Gemini struct {
	model     string
	maxTokens int
	client    *genai.Client
}

// NewGemini constructs a Gemini API backend. httpClient may be nil.
func NewGemini(ctx context.Context, cfg config.AgentConfig, httpClient *http.Client) (*Gemini, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}
	apiKey, err := resolveAPIKey(cfg, defaultGeminiAPIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{model: model, maxTokens: cfg.MaxTokens, client: client}, nil
}

// Invoke generates one response.
func (g *Gemini) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(inv.Instructions, genai.RoleUser),
	}
	if n := firstPositive(inv.MaxTokens, g.maxTokens); n > 0 {
		gc.MaxOutputTokens = int32(n)
	}
	if inv.Schema != nil {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseJsonSchema = inv.Schema.Doc
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(inv.Input), gc)
	if err != nil {
		return Result{}, classify(ctx, "gemini generate", err)
	}

	res := Result{Text: strings.TrimSpace(resp.Text())}
	if resp.UsageMetadata != nil {
		res.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		res.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if res.Text == "" {
		return Result{}, fmt.Errorf("%w: %s: empty response", ErrSchemaViolation, inv.Name)
	}
	return res, nil
}

// Describe reports the provider and model.
func (g *Gemini) Describe() Info {
	return Info{Type: config.AgentTypeGemini, Model: g.model}
}
