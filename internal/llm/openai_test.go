package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOpenAIProvider(t *testing.T, body string, status int) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), maxRetries: 1}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	resp := `{"id":"1","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"{\"skills\":[\"go\"]}"},"finish_reason":"stop"}]}`
	p := newFakeOpenAIProvider(t, resp, http.StatusOK)

	text, err := p.Complete(context.Background(), Request{Prompt: "extract filters", JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"skills":["go"]}`, text)
}

func TestOpenAIProvider_NoAPIKey(t *testing.T) {
	p := NewOpenAIProvider("")
	_, err := p.Complete(context.Background(), Request{Prompt: "x"})
	require.ErrorIs(t, err, ErrNoAPIKey)
}
