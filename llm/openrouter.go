package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenRouterConfig configures the OpenRouter provider.
type OpenRouterConfig struct {
	BaseURL    string // e.g. https://openrouter.ai/api/v1
	Referer    string // sent as HTTP-Referer
	Title      string // sent as X-Title
	HTTPClient *http.Client
}

// OpenRouter implements Provider using the OpenRouter API (OpenAI-compatible).
type OpenRouter struct {
	baseURL string
	referer string
	title   string
	client  *http.Client
}

// NewOpenRouter creates an OpenRouter provider. Keys always come from the
// request.
func NewOpenRouter(cfg OpenRouterConfig) *OpenRouter {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouter{
		baseURL: strings.TrimRight(baseURL, "/"),
		referer: cfg.Referer,
		title:   cfg.Title,
		client:  client,
	}
}

type orRequest struct {
	Model            string      `json:"model"`
	Messages         []orMessage `json:"messages"`
	Temperature      float64     `json:"temperature"`
	MaxTokens        int         `json:"max_tokens,omitempty"`
	TopP             float64     `json:"top_p,omitempty"`
	PresencePenalty  float64     `json:"presence_penalty"`
	FrequencyPenalty float64     `json:"frequency_penalty"`
}

type orMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type orResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *orError `json:"error,omitempty"`
}

type orError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

func (o *OpenRouter) Name() string {
	return "openrouter"
}

func (o *OpenRouter) Complete(ctx context.Context, req Request) (string, error) {
	if req.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	messages := make([]orMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, orMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, orMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(orRequest{
		Model:            req.Model,
		Messages:         messages,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	if o.referer != "" {
		httpReq.Header.Set("HTTP-Referer", o.referer)
	}
	if o.title != "" {
		httpReq.Header.Set("X-Title", o.title)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var orResp orResponse
	parseErr := json.Unmarshal(respBody, &orResp)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if parseErr == nil && orResp.Error != nil && orResp.Error.Message != "" {
			msg = orResp.Error.Message
		}
		return "", &APIError{Provider: o.Name(), Status: resp.StatusCode, Message: msg}
	}
	if parseErr != nil {
		return "", fmt.Errorf("parsing response: %w", parseErr)
	}
	if orResp.Error != nil {
		return "", &APIError{Provider: o.Name(), Message: orResp.Error.Message}
	}
	if len(orResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openrouter API")
	}

	return orResp.Choices[0].Message.Content, nil
}
