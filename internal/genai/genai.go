// Package genai provides the LLM-backed oracles used by the conversation
// engine: workflow ranking, clinical fact extraction, clarification question
// generation, and grounded explanation.
//
// All calls go through one chat-completions client pointed at an
// OpenAI-compatible endpoint (Groq by default). Every oracle is best-effort:
// failures are returned as errors and the caller substitutes deterministic
// fallbacks, never surfacing raw failures to the clinician.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Default oracle configuration.
const (
	// DefaultBaseURL is the Groq OpenAI-compatible API endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the default chat model for all oracle calls.
	DefaultModel = "llama-3.1-8b-instant"
	// DefaultTimeout bounds a single oracle call so a hung request is treated
	// as an oracle failure instead of blocking the sender's turn.
	DefaultTimeout = 20 * time.Second
	// DefaultMaxTokens caps oracle completions.
	DefaultMaxTokens = 500
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Opts holds configuration options for the oracle client.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Option defines a configuration option for the oracle client.
type Option func(*Opts)

// WithAPIKey sets the API key for the chat endpoint.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the OpenAI-compatible endpoint base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the chat-completions service behind the four clinical oracles.
type Client struct {
	chat    chatService
	model   string
	timeout time.Duration
}

// NewClient initializes the oracle client. The API key falls back to the
// GROQ_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	slog.Debug("genai.NewClient: oracle client configured", "base_url", cfg.BaseURL, "model", cfg.Model, "timeout", cfg.Timeout)

	return &Client{
		chat:    openai.NewClientWithConfig(config),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// NewClientWithChatService wraps a custom chat service. Used by tests.
func NewClientWithChatService(chat chatService) *Client {
	return &Client{chat: chat, model: DefaultModel, timeout: DefaultTimeout}
}

// completeJSON runs one chat completion in JSON-object mode and returns the
// raw assistant content.
func (c *Client) completeJSON(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0,
		MaxTokens:   DefaultMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// completeText runs one plain-text chat completion.
func (c *Client) completeText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0,
		MaxTokens:   DefaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
