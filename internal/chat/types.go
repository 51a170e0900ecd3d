// Package chat wraps the completion API used for replies, summaries and
// spam classification.
package chat

import (
	"context"

	"github.com/memohai/supportbot/internal/conversation"
)

// Request is one completion call.
type Request struct {
	Model     string
	System    string
	Messages  []conversation.Message
	MaxTokens int
}

// Usage reports token usage returned by the API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the first completion choice.
type Result struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// Provider produces completions.
type Provider interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (Result, error)

func (f ProviderFunc) Complete(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Ask sends a single user prompt with an optional system instruction and
// returns the reply text.
func Ask(ctx context.Context, p Provider, model, system, prompt string, maxTokens int) (string, error) {
	res, err := p.Complete(ctx, Request{
		Model:     model,
		System:    system,
		Messages:  []conversation.Message{conversation.UserMessage(prompt)},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}
