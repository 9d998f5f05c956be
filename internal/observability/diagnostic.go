// Package observability provides diagnostic event types and emission.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// DiagnosticEventType identifies the type of diagnostic event.
type DiagnosticEventType string

const (
	EventTypeModelUsage       DiagnosticEventType = "model.usage"
	EventTypeStageStarted     DiagnosticEventType = "stage.started"
	EventTypeStageCompleted   DiagnosticEventType = "stage.completed"
	EventTypeSubQueryComplete DiagnosticEventType = "subquery.completed"
	EventTypeRunAttempt       DiagnosticEventType = "run.attempt"
)

// DiagnosticEvent is the base event structure every payload embeds.
type DiagnosticEvent struct {
	Type DiagnosticEventType `json:"type"`
	Seq  int64               `json:"seq"`
	Ts   int64               `json:"ts"`
}

// ModelUsageEvent tracks token usage for one LLM stage call.
type ModelUsageEvent struct {
	DiagnosticEvent
	RunID      string          `json:"run_id,omitempty"`
	Stage      string          `json:"stage,omitempty"` // decompose|plan|synthesize
	Provider   string          `json:"provider,omitempty"`
	Model      string          `json:"model,omitempty"`
	Usage      UsageDetails    `json:"usage"`
	Context    *ContextDetails `json:"context,omitempty"`
	CostUSD    float64         `json:"cost_usd,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// UsageDetails contains token usage breakdown.
type UsageDetails struct {
	PromptTokens     int64 `json:"prompt_tokens,omitempty"`
	CompletionTokens int64 `json:"completion_tokens,omitempty"`
	Total            int64 `json:"total,omitempty"`
}

// ContextDetails contains context window information.
type ContextDetails struct {
	Limit int64 `json:"limit,omitempty"`
	Used  int64 `json:"used,omitempty"`
}

// StageStartedEvent tracks a pipeline stage beginning.
type StageStartedEvent struct {
	DiagnosticEvent
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
}

// StageCompletedEvent tracks a pipeline stage finishing.
type StageCompletedEvent struct {
	DiagnosticEvent
	RunID      string `json:"run_id"`
	Stage      string `json:"stage"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SubQueryCompleteEvent tracks one sub-query's tool call finishing.
type SubQueryCompleteEvent struct {
	DiagnosticEvent
	RunID      string `json:"run_id"`
	SubQueryID string `json:"sub_query_id"`
	ToolName   string `json:"tool_name"`
	Success    bool   `json:"success"`
	PersonIDs  int    `json:"person_ids"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunAttemptEvent tracks a retried LLM call within a stage.
type RunAttemptEvent struct {
	DiagnosticEvent
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Attempt int    `json:"attempt"`
}

// DiagnosticEventPayload is a union type for all diagnostic events.
type DiagnosticEventPayload interface {
	EventType() DiagnosticEventType
	Sequence() int64
	Timestamp() int64
}

func (e *DiagnosticEvent) EventType() DiagnosticEventType { return e.Type }
func (e *DiagnosticEvent) Sequence() int64                { return e.Seq }
func (e *DiagnosticEvent) Timestamp() int64               { return e.Ts }

// DiagnosticListener receives diagnostic events.
type DiagnosticListener func(event DiagnosticEventPayload)

// DiagnosticEmitter manages diagnostic event emission to subscribed
// listeners — the CLI's `ask --verbose` mode and internal/tracelog both
// subscribe to record a run's stage-by-stage progress.
type DiagnosticEmitter struct {
	mu        sync.RWMutex
	seq       int64
	enabled   bool
	listeners []DiagnosticListener
}

var globalEmitter = &DiagnosticEmitter{}

// SetDiagnosticsEnabled enables or disables diagnostic events.
func SetDiagnosticsEnabled(enabled bool) {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.enabled = enabled
}

// IsDiagnosticsEnabled returns whether diagnostics are enabled.
func IsDiagnosticsEnabled() bool {
	globalEmitter.mu.RLock()
	defer globalEmitter.mu.RUnlock()
	return globalEmitter.enabled
}

// OnDiagnosticEvent registers a listener for diagnostic events and
// returns an unsubscribe function.
func OnDiagnosticEvent(listener DiagnosticListener) func() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.listeners = append(globalEmitter.listeners, listener)

	idx := len(globalEmitter.listeners) - 1
	return func() {
		globalEmitter.mu.Lock()
		defer globalEmitter.mu.Unlock()
		if idx < len(globalEmitter.listeners) {
			globalEmitter.listeners = append(globalEmitter.listeners[:idx], globalEmitter.listeners[idx+1:]...)
		}
	}
}

func nextSeq() int64 {
	return atomic.AddInt64(&globalEmitter.seq, 1)
}

func emit(event DiagnosticEventPayload) {
	globalEmitter.mu.RLock()
	if !globalEmitter.enabled {
		globalEmitter.mu.RUnlock()
		return
	}
	listeners := make([]DiagnosticListener, len(globalEmitter.listeners))
	copy(listeners, globalEmitter.listeners)
	globalEmitter.mu.RUnlock()

	for _, listener := range listeners {
		func() {
			defer func() { recover() }() // a panicking listener must not break the pipeline
			listener(event)
		}()
	}
}

// EmitModelUsage emits a model usage event.
func EmitModelUsage(e *ModelUsageEvent) {
	e.Type = EventTypeModelUsage
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitStageStarted emits a stage-started event.
func EmitStageStarted(e *StageStartedEvent) {
	e.Type = EventTypeStageStarted
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitStageCompleted emits a stage-completed event.
func EmitStageCompleted(e *StageCompletedEvent) {
	e.Type = EventTypeStageCompleted
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitSubQueryComplete emits a sub-query-completed event.
func EmitSubQueryComplete(e *SubQueryCompleteEvent) {
	e.Type = EventTypeSubQueryComplete
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitRunAttempt emits a run attempt event.
func EmitRunAttempt(e *RunAttemptEvent) {
	e.Type = EventTypeRunAttempt
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// ResetDiagnosticsForTest resets diagnostic state for testing.
func ResetDiagnosticsForTest() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	atomic.StoreInt64(&globalEmitter.seq, 0)
	globalEmitter.listeners = nil
}
