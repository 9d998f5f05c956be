// Package orchestrator wires the pipeline's four stages — Decomposer,
// SubQueryGenerator (planner), Executor, Synthesizer — into a single
// linear run, following the status-transition shape of original_source's
// tool_executor_node and its sibling nodes: update status, run the stage,
// record any error, move on. Each call to Run owns a fresh
// graphmodel.PipelineState; the orchestrator itself holds no per-run
// mutable state, so one Orchestrator value is safe to share and reuse
// across concurrent Run calls.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/haasonsaas/graphquery/internal/decomposer"
	"github.com/haasonsaas/graphquery/internal/executor"
	"github.com/haasonsaas/graphquery/internal/observability"
	"github.com/haasonsaas/graphquery/internal/planner"
	"github.com/haasonsaas/graphquery/internal/synthesizer"
	"github.com/haasonsaas/graphquery/pkg/graphmodel"
)

// Config bounds the run-level defaults the orchestrator applies when a
// caller doesn't specify a desired candidate count.
type Config struct {
	// DesiredCountDefault is used when Run is called with desiredCount <= 0.
	DesiredCountDefault int
	// DesiredCountMax caps whatever desiredCount the caller supplies.
	DesiredCountMax int
}

// DefaultConfig mirrors the config package's pipeline defaults.
func DefaultConfig() Config {
	return Config{DesiredCountDefault: 5, DesiredCountMax: 10}
}

// Orchestrator drives one query through Decompose -> Generate -> Run ->
// Synthesize, recording every stage's outcome on a per-call
// graphmodel.PipelineState.
type Orchestrator struct {
	decomposer  *decomposer.Decomposer
	planner     *planner.Generator
	executor    *executor.Executor
	synthesizer *synthesizer.Synthesizer
	cfg         Config
	logger      *slog.Logger
}

// New creates an Orchestrator from its four already-constructed stages.
func New(d *decomposer.Decomposer, p *planner.Generator, e *executor.Executor, s *synthesizer.Synthesizer, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.DesiredCountDefault <= 0 {
		cfg.DesiredCountDefault = 5
	}
	if cfg.DesiredCountMax <= 0 {
		cfg.DesiredCountMax = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		decomposer:  d,
		planner:     p,
		executor:    e,
		synthesizer: s,
		cfg:         cfg,
		logger:      logger.With("component", "orchestrator"),
	}
}

// Run executes one end-to-end pipeline call for query, clamping
// desiredCount into [1, DesiredCountMax] (substituting DesiredCountDefault
// for a non-positive value), and returns the completed PipelineState
// regardless of whether the run ended in StatusComplete or StatusError —
// callers inspect state.Status and state.Errors rather than a separate
// error return, since a partially-failed run (e.g. a failed sub-query
// that wasn't on the critical path) still carries a usable FinalAnswer.
func (o *Orchestrator) Run(ctx context.Context, query string, desiredCount int) *graphmodel.PipelineState {
	desiredCount = o.clampDesiredCount(desiredCount)
	runID := uuid.NewString()
	ctx = observability.AddRunID(ctx, runID)
	state := graphmodel.NewPipelineState(runID, query, desiredCount)
	log := o.logger.With("run_id", runID)

	log.Info("pipeline run started", "query", query, "desired_count", desiredCount)

	state.SetStatus(graphmodel.StatusPlanning)
	state.Filters = o.decomposer.Decompose(ctx, query)
	log.Info("decomposition complete", "filters", state.Filters)

	plan := o.planner.Generate(ctx, state.Filters)
	state.Plan = plan
	state.SetStatus(graphmodel.StatusPlanReady)
	log.Info("planning complete", "sub_queries", len(plan.SubQueries), "strategy", plan.Strategy)

	if plan.Empty() {
		state.FinalAnswer = "I couldn't determine a search strategy for that query. Please try rephrasing it with more specific criteria."
		state.SetStatus(graphmodel.StatusComplete)
		return state
	}

	state.SetStatus(graphmodel.StatusExecuting)
	results, ranked, err := o.executor.Run(ctx, plan, desiredCount)
	state.ToolResults = results
	if err != nil {
		// all priority-1 sub-queries failed: not fatal on its own (it
		// isn't the composition kind AddError treats as terminal), so
		// the run proceeds into synthesis with zero candidates, which
		// short-circuits there to a "no matches" answer instead of
		// calling the LLM over an empty result set.
		state.AddError(asPipelineError(graphmodel.ErrKindSubQuery, err))
		log.Warn("execution reported all critical sub-queries failed", "error", err)
	}
	state.RankedIDs = ranked
	state.SetStatus(graphmodel.StatusToolsDone)
	log.Info("execution complete", "candidates", len(ranked))

	state.SetStatus(graphmodel.StatusSynthesize)
	answer, profiles, err := o.synthesizer.Synthesize(ctx, query, state.Filters, desiredCount, len(ranked), ranked)
	state.Profiles = profiles
	if err != nil {
		state.AddError(asPipelineError(graphmodel.ErrKindComposition, err))
		log.Error("synthesis failed", "error", err)
		state.SetStatus(graphmodel.StatusError)
		return state
	}

	state.FinalAnswer = answer
	state.SetStatus(graphmodel.StatusComplete)
	log.Info("pipeline run complete", "profiles", len(profiles))
	return state
}

func (o *Orchestrator) clampDesiredCount(desiredCount int) int {
	if desiredCount <= 0 {
		desiredCount = o.cfg.DesiredCountDefault
	}
	if desiredCount > o.cfg.DesiredCountMax {
		desiredCount = o.cfg.DesiredCountMax
	}
	return desiredCount
}

// asPipelineError wraps err as a graphmodel.PipelineError of kind if it
// isn't one already, so AddError's Fatal() check always has a typed
// error to inspect regardless of which stage produced it.
func asPipelineError(kind graphmodel.ErrorKind, err error) *graphmodel.PipelineError {
	if pe, ok := err.(*graphmodel.PipelineError); ok {
		return pe
	}
	return &graphmodel.PipelineError{Kind: kind, Message: err.Error(), Cause: err}
}
