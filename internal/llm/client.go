// Package llm wraps the hosted completion endpoint behind two narrow
// calls: free text and forced function-call arguments. Everything the
// rest of the service knows about the model lives here, including how to
// recognise a quota failure.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrQuota marks an upstream quota or rate-limit failure, which callers
// surface differently from ordinary model errors.
var ErrQuota = errors.New("upstream model quota exceeded")

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

func NewClient(apiKey, model string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		api:     openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// NewClientWithBaseURL points the client at an alternate endpoint, used
// by tests to stand in a local httptest server.
func NewClientWithBaseURL(apiKey, model, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Complete sends a system prompt plus conversation messages and returns
// the model's free-text reply.
func (c *Client) Complete(ctx context.Context, system string, msgs []Message, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  c.buildMessages(system, msgs),
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStructured forces the model to call the given function and
// returns the raw JSON arguments string. The caller owns defensive
// parsing: the arguments may be truncated or malformed.
func (c *Client) CompleteStructured(ctx context.Context, system string, msgs []Message, fn openai.FunctionDefinition, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:        c.model,
		MaxTokens:    maxTokens,
		Messages:     c.buildMessages(system, msgs),
		Functions:    []openai.FunctionDefinition{fn},
		FunctionCall: openai.FunctionCall{Name: fn.Name},
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	call := resp.Choices[0].Message.FunctionCall
	if call == nil || call.Arguments == "" {
		return "", fmt.Errorf("model did not call %s", fn.Name)
	}
	return call.Arguments, nil
}

func (c *Client) buildMessages(system string, msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: RoleSystem, Content: system})
	}
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// classify maps provider errors onto the taxonomy callers care about.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.Type == "insufficient_quota" {
			return fmt.Errorf("%w: %s", ErrQuota, apiErr.Message)
		}
		return fmt.Errorf("model api error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("model call: %w", err)
}

// IsQuotaError reports whether err represents an upstream quota failure.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuota)
}
