package toolclient

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers may want to branch on directly,
// following the teacher's agent/errors.go style of exported sentinels
// alongside a richer wrapped-error type for context.
var (
	ErrNotConnected     = errors.New("toolclient: not connected")
	ErrUnauthorized     = errors.New("toolclient: authentication failed")
	ErrForbidden        = errors.New("toolclient: authorization failed")
	ErrUnknownTool      = errors.New("toolclient: tool not registered")
	ErrMalformedPayload = errors.New("toolclient: malformed tool response payload")
)

// CallError wraps a failure to execute a tool call with the tool name
// and whether the failure is safe to retry.
type CallError struct {
	ToolName  string
	Retryable bool
	Err       error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.ToolName, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

func newCallError(tool string, retryable bool, err error) *CallError {
	return &CallError{ToolName: tool, Retryable: retryable, Err: err}
}
