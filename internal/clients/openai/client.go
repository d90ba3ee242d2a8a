// Package openai talks to the chat-completion provider behind a
// config.ServiceConfig: POST {baseUrl}/v1/chat/completions with
// {model, messages, max_tokens, temperature} (spec.md §6).
package openai

import (
	"github.com/netdocs/ragserver/internal/clients/base"
	"github.com/netdocs/ragserver/internal/config"
)

const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
	DefaultTopP        = 0.7
	ServiceName        = "openai"
)

// ChatCompleter is what any answer-synthesis path depends on; fakeable in
// tests. Chat is a "short call" (base.ShortCallTimeout), unlike embedding.
type ChatCompleter interface {
	CreateChatCompletion(req ChatRequest) (*ChatResponse, error)
	CreateChatCompletionWithDefaults(model string, messages []Message) (*ChatResponse, error)
}

type Client struct {
	httpClient *base.HTTPClient
}

var _ ChatCompleter = (*Client)(nil)

func NewClient(cfg config.ServiceConfig) *Client {
	return &Client{httpClient: base.NewHTTPClient(ServiceName, cfg, base.ShortCallTimeout)}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries the wire-documented fields plus the sampling knobs
// CreateChatCompletionWithDefaults fills in.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

func (c *Client) CreateChatCompletion(req ChatRequest) (*ChatResponse, error) {
	var result ChatResponse
	if err := c.httpClient.Post("/chat/completions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateChatCompletionWithDefaults(model string, messages []Message) (*ChatResponse, error) {
	return c.CreateChatCompletion(ChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	})
}
