// Package reasoning backs ai_agent activities with a generative model.
// OpenAIGenerator speaks the OpenAI chat-completions wire format, which
// OpenRouter and most self-hosted gateways also accept.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/awa-io/awa/internal/actors"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"
)

var _ actors.Generator = (*OpenAIGenerator)(nil)

// OpenAIGenerator implements actors.Generator over an OpenAI-compatible
// chat-completions endpoint.
type OpenAIGenerator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// Option configures an OpenAIGenerator.
type Option func(*OpenAIGenerator)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(g *OpenAIGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithBaseURL points the generator at a compatible gateway. The
// /chat/completions suffix is appended when missing.
func WithBaseURL(baseURL string) Option {
	return func(g *OpenAIGenerator) {
		if baseURL == "" {
			return
		}
		if !strings.HasSuffix(baseURL, "/chat/completions") {
			baseURL = strings.TrimSuffix(baseURL, "/") + "/chat/completions"
		}
		g.baseURL = baseURL
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *OpenAIGenerator) {
		if client != nil {
			g.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *OpenAIGenerator) {
		if log != nil {
			g.log = log
		}
	}
}

// NewOpenAIGenerator builds a generator for the given API key.
func NewOpenAIGenerator(apiKey string, opts ...Option) *OpenAIGenerator {
	g := &OpenAIGenerator{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// chatRequest is the OpenAI chat-completions request format.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the OpenAI chat-completions response format.
type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate implements actors.Generator. The model is asked for a single
// JSON object; its keys become workflow data on the executing token.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, data map[string]any) (map[string]any, error) {
	reqBody := chatRequest{
		Model:       g.model,
		Messages:    buildMessages(prompt, data),
		Temperature: 0.2,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}

	g.log.DebugContext(ctx, "generation complete",
		"model", g.model,
		"prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens)

	return ParseModelOutput(parsed.Choices[0].Message.Content), nil
}

// ParseModelOutput turns model text into a data map. A JSON object is
// decoded as-is, with markdown code fences stripped first. Anything else
// lands under a "text" key so a chatty model never fails the activity.
func ParseModelOutput(content string) map[string]any {
	trimmed := strings.TrimSpace(content)
	trimmed = stripFences(trimmed)

	var out map[string]any
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out
	}
	return map[string]any{"text": strings.TrimSpace(content)}
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
