package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/graphquery/internal/retry"
)

// AnthropicProvider implements Provider against the Anthropic Messages
// API, adapted from the teacher's streaming AnthropicProvider down to a
// single non-streaming call: the pipeline only ever needs one finished
// JSON document per call site, never incremental tokens.
type AnthropicProvider struct {
	client       anthropic.Client
	configured   bool
	maxRetries   int
	defaultModel string
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	MaxRetries   int
	DefaultModel string
}

// NewAnthropicProvider creates an AnthropicProvider. A missing APIKey
// produces a provider whose Complete calls fail with ErrNoAPIKey.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.APIKey == "" {
		return &AnthropicProvider{maxRetries: cfg.MaxRetries, defaultModel: cfg.DefaultModel}
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		configured:   true,
		maxRetries:   cfg.MaxRetries,
		defaultModel: cfg.DefaultModel,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete issues a single Messages.New call and concatenates the
// returned text blocks.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	if !p.configured {
		return "", ErrNoAPIKey
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	retryCfg := retry.Exponential(p.maxRetries, 500*time.Millisecond, 5*time.Second)
	text, result := retry.DoWithValue(ctx, retryCfg, func() (string, error) {
		msg, err := p.client.Messages.New(ctx, params)
		if err != nil {
			if !isRetryableError(err) {
				return "", retry.Permanent(err)
			}
			return "", err
		}
		var out string
		for _, block := range msg.Content {
			if block.Type == "text" {
				out += block.Text
			}
		}
		if out == "" {
			return "", retry.Permanent(fmt.Errorf("anthropic: empty response"))
		}
		return out, nil
	})
	if result.Err != nil {
		return "", fmt.Errorf("anthropic completion: %w", result.Err)
	}
	return text, nil
}
