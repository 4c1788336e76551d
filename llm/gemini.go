package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey  string // used when a request carries no key
	Model   string // used when a request names no model
	BaseURL string // optional API endpoint override
}

// Gemini implements Provider on the Gemini API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
}

func NewGemini(cfg GeminiConfig) *Gemini {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{apiKey: cfg.APIKey, model: model, baseURL: cfg.BaseURL}
}

func (g *Gemini) Name() string {
	return "gemini"
}

// HasDefaultKey reports whether a server-side key is configured.
func (g *Gemini) HasDefaultKey() bool {
	return g.apiKey != ""
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = g.apiKey
	}
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}
	model := req.Model
	if model == "" {
		model = g.model
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return "", fmt.Errorf("creating gemini client: %w", err)
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.TopP > 0 {
		genConfig.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.PresencePenalty != 0 {
		genConfig.PresencePenalty = genai.Ptr(float32(req.PresencePenalty))
	}
	if req.FrequencyPenalty != 0 {
		genConfig.FrequencyPenalty = genai.Ptr(float32(req.FrequencyPenalty))
	}

	resp, err := client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)},
		genConfig)
	if err != nil {
		return "", &APIError{Provider: g.Name(), Message: err.Error()}
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from gemini API")
	}
	return text, nil
}
