// Package toolclient implements the JSON-RPC 2.0 client used to call the
// remote knowledge-graph tool server: the 19-entry tool catalog, request
// encoding/response decoding (including the content[0].text
// double-encoded payload convention), retrying, and health/discovery
// calls.
package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/graphquery/internal/retry"
)

// Config configures a Client.
type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	MaxRetries       int
	MaxConns         int
	MaxConnsPerHost  int
}

// DefaultConfig returns sane defaults for talking to the tool server.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		MaxConns:        100,
		MaxConnsPerHost: 20,
	}
}

// Client calls the tool server's JSON-RPC endpoint over HTTP, following
// the request/response shape of internal/mcp's HTTPTransport but
// specialized to a single call-and-decode path with no SSE listener:
// this pipeline never receives server-initiated notifications.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a Client against the given configuration.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger: logger.With("component", "toolclient"),
	}
}

// Health calls the health_check tool and reports whether the server is
// reachable and healthy.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.Call(ctx, "health_check", nil)
	return err
}

// ListTools calls the server's discovery method and returns the tool
// names it currently advertises, for the `graphquery tools` CLI command.
func (c *Client) ListTools(ctx context.Context) ([]string, error) {
	raw, err := c.request(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	names := make([]string, 0, len(result.Tools))
	for _, t := range result.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// Call invokes a registered tool by name with the given arguments and
// returns the decoded payload. Retries transient failures using
// exponential backoff with jitter, up to cfg.MaxRetries additional
// attempts, following internal/retry's Do loop.
func (c *Client) Call(ctx context.Context, toolName string, args map[string]any) (any, error) {
	if _, ok := Lookup(toolName); toolName != "health_check" && !ok {
		return nil, newCallError(toolName, false, ErrUnknownTool)
	}

	retryCfg := retry.Exponential(c.cfg.MaxRetries+1, 100*time.Millisecond, 5*time.Second)

	var payload any
	result := retry.Do(ctx, retryCfg, func() error {
		raw, err := c.request(ctx, "tools/call", callToolParams{Name: toolName, Arguments: args})
		if err != nil {
			return err
		}
		decoded, decodeErr := decodeCallToolResult(raw)
		if decodeErr != nil {
			return retry.Permanent(decodeErr)
		}
		payload = decoded
		return nil
	})

	if result.Err != nil {
		retryable := !retry.IsPermanent(result.Err)
		return nil, newCallError(toolName, retryable, result.Err)
	}
	return payload, nil
}

// request performs a single JSON-RPC round trip and returns the raw
// result field, or a classified error derived from the HTTP status /
// JSON-RPC error following original_source's base_client._handle_response
// convention (401 -> unauthorized, 403 -> forbidden, everything else
// passed through as a retryable transport error).
func (c *Client) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
	}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("marshal params: %w", err))
		}
		req.Params = paramsJSON
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, retry.Permanent(ErrUnauthorized)
	case http.StatusForbidden:
		return nil, retry.Permanent(ErrForbidden)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tool server HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp jsonrpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}
	if rpcResp.Error != nil {
		retryable := rpcResp.Error.Code == codeInternalError
		if !retryable {
			return nil, retry.Permanent(fmt.Errorf("tool server error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
		}
		return nil, fmt.Errorf("tool server error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
