package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/graphquery/internal/retry"
)

// OpenAIProvider implements Provider against the OpenAI chat completions
// API, adapted from the teacher's streaming OpenAIProvider down to a
// single non-streaming call with retry, since none of this pipeline's
// three call sites need incremental tokens.
type OpenAIProvider struct {
	client     *openai.Client
	maxRetries int
}

// NewOpenAIProvider creates an OpenAIProvider. A missing apiKey produces
// a provider whose Complete calls fail with ErrNoAPIKey, following the
// teacher's constructor pattern of never returning nil.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	if apiKey == "" {
		return &OpenAIProvider{maxRetries: 3}
	}
	return &OpenAIProvider{client: openai.NewClient(apiKey), maxRetries: 3}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Complete issues a single chat completion and returns the first
// choice's message content.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	if p.client == nil {
		return "", ErrNoAPIKey
	}

	model := req.Model
	if model == "" {
		model = openai.GPT4o
	}

	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	retryCfg := retry.Exponential(p.maxRetries, 500*time.Millisecond, 5*time.Second)
	text, result := retry.DoWithValue(ctx, retryCfg, func() (string, error) {
		resp, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			if !isRetryableError(err) {
				return "", retry.Permanent(err)
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", retry.Permanent(fmt.Errorf("openai: empty response"))
		}
		return resp.Choices[0].Message.Content, nil
	})
	if result.Err != nil {
		return "", fmt.Errorf("openai completion: %w", result.Err)
	}
	return text, nil
}
