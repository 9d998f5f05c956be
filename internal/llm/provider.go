// Package llm provides the single-shot JSON-completion interface the
// pipeline's three LLM call sites (Decomposer, SubQueryGenerator,
// Synthesizer) share, plus Anthropic and OpenAI backends. Unlike the
// teacher's streaming agent loop, every call here is one request and
// one response: there is no tool calling, no multi-turn state, and no
// vision/attachment handling, so the interface is a fraction of
// agent.LLMProvider's surface, kept otherwise in the teacher's shape.
package llm

import (
	"context"
	"time"
)

// Request describes a single completion call.
type Request struct {
	// Model is the backend-specific model identifier. If empty, the
	// provider's default is used.
	Model string
	// System is the system prompt.
	System string
	// Prompt is the user-turn content, typically an instruction plus
	// the query or intermediate pipeline state to act on.
	Prompt string
	// Temperature controls sampling randomness.
	Temperature float32
	// MaxTokens bounds the response length.
	MaxTokens int
	// JSONMode requests the provider constrain output to valid JSON
	// where the backend supports it natively.
	JSONMode bool
}

// Provider is an LLM backend capable of a single completion call.
type Provider interface {
	// Name returns the provider's identifier ("openai", "anthropic").
	Name() string
	// Complete issues one completion request and returns the raw
	// response text.
	Complete(ctx context.Context, req Request) (string, error)
}

// Model describes a model this provider exposes, for config validation
// and the `graphquery tools`-style discovery surface.
type Model struct {
	ID          string
	ContextSize int
}

// DefaultTimeout bounds a single LLM call when the caller's context
// carries no deadline of its own.
const DefaultTimeout = 30 * time.Second
