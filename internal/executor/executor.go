// Package executor fans a Plan's sub-queries out to the tool server with
// bounded concurrency, combines the returned person-ID sets according to
// the plan's Strategy, and ranks the combined candidates. The
// concurrency shape (semaphore-bounded goroutines, context-per-call,
// order-preserving result slice, non-blocking completion) follows the
// teacher's ToolExecutor.ExecuteConcurrently.
package executor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/graphquery/internal/toolclient"
	"github.com/haasonsaas/graphquery/pkg/graphmodel"
)

// Config configures the Executor's concurrency and ranking behavior.
type Config struct {
	// MaxConcurrency bounds the number of sub-queries in flight at once.
	MaxConcurrency int
	// PerCallTimeout bounds a single sub-query's tool call.
	PerCallTimeout time.Duration
	// RankCap is the hard ceiling on ranked candidates returned,
	// regardless of desired count (spec default: 20).
	RankCap int
}

// DefaultConfig returns sane defaults: 4-way concurrency, 15s per call,
// capped at 20 ranked candidates.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		PerCallTimeout: 15 * time.Second,
		RankCap:        20,
	}
}

// Executor runs a Plan against a toolclient.Client.
type Executor struct {
	client *toolclient.Client
	cfg    Config
	logger *slog.Logger
}

// New creates an Executor.
func New(client *toolclient.Client, cfg Config, logger *slog.Logger) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = 15 * time.Second
	}
	if cfg.RankCap <= 0 {
		cfg.RankCap = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{client: client, cfg: cfg, logger: logger.With("component", "executor")}
}

// Run executes plan per plan.Strategy, combines the resulting person-ID
// sets, and returns candidates ranked by support score and truncated to
// min(2*desiredCount, RankCap). An error is returned only when every
// priority-1 sub-query failed: that is the fatal "subquery" condition
// spec.md §7 carves out from an otherwise best-effort execution stage.
//
// SEQUENTIAL is dispatched on its own path: each step runs only after
// the previous one completes, so a later step's Arguments can reference
// the IDs the prior step produced. Every other strategy fans out
// concurrently and combines post hoc.
func (e *Executor) Run(ctx context.Context, plan graphmodel.Plan, desiredCount int) ([]graphmodel.ToolResult, []graphmodel.Candidate, error) {
	if plan.Strategy == graphmodel.StrategySequential {
		results, final := e.executeSequential(ctx, plan.SubQueries)
		if allCriticalFailed(plan.SubQueries, results) {
			return results, nil, &graphmodel.PipelineError{
				Kind:    graphmodel.ErrKindSubQuery,
				Message: "all priority-1 sub-queries failed",
			}
		}
		ranked := rank(scoreResults(final), desiredCount, e.cfg.RankCap)
		return results, ranked, nil
	}

	results := e.executeConcurrently(ctx, plan.SubQueries)

	if allCriticalFailed(plan.SubQueries, results) {
		return results, nil, &graphmodel.PipelineError{
			Kind:    graphmodel.ErrKindSubQuery,
			Message: "all priority-1 sub-queries failed",
		}
	}

	combined := combine(plan.Strategy, plan.SubQueries, results)
	ranked := rank(combined, desiredCount, e.cfg.RankCap)
	return results, ranked, nil
}

// executeConcurrently runs each sub-query as the teacher's
// ExecuteConcurrently does: a semaphore bounds in-flight goroutines, each
// call gets its own context.WithTimeout, and results land in the output
// slice at the caller's original index so ordering never depends on
// completion order.
func (e *Executor) executeConcurrently(ctx context.Context, subQueries []graphmodel.SubQuery) []graphmodel.ToolResult {
	results := make([]graphmodel.ToolResult, len(subQueries))
	sem := make(chan struct{}, e.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for i, sq := range subQueries {
		wg.Add(1)
		go func(idx int, sub graphmodel.SubQuery) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = graphmodel.ToolResult{
					SubQueryID: sub.ID,
					ToolName:   sub.ToolName,
					Success:    false,
					Err:        ctx.Err().Error(),
				}
				return
			}

			results[idx] = e.callOne(ctx, sub)
		}(i, sq)
	}

	wg.Wait()
	return results
}

// executeSequential runs subQueries one at a time, in order, substituting
// graphmodel.SequentialPlaceholder in each step's Arguments with the
// first person ID the previous step produced before dispatching the
// call. It returns every step's result (for allCriticalFailed and for
// ToolResults reporting) alongside just the final step's result, which
// is what scenario 3 ("Tell me about John Smith") needs ranked: the
// combined answer is whatever the last step in the chain found.
func (e *Executor) executeSequential(ctx context.Context, subQueries []graphmodel.SubQuery) (all []graphmodel.ToolResult, final []graphmodel.ToolResult) {
	all = make([]graphmodel.ToolResult, len(subQueries))
	var priorID string

	for i, sq := range subQueries {
		if priorID != "" {
			sq.Arguments = substitute(sq.Arguments, priorID)
		}
		res := e.callOne(ctx, sq)
		all[i] = res
		if res.Success && len(res.PersonIDs) > 0 {
			priorID = res.PersonIDs[0]
		}
	}

	if len(all) > 0 {
		final = all[len(all)-1:]
	}
	return all, final
}

// callOne dispatches a single sub-query call under a per-call timeout,
// producing the ToolResult shared by both the concurrent and sequential
// execution paths.
func (e *Executor) callOne(ctx context.Context, sub graphmodel.SubQuery) graphmodel.ToolResult {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.PerCallTimeout)
	payload, err := e.client.Call(callCtx, sub.ToolName, sub.Arguments)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Warn("sub-query failed", "tool", sub.ToolName, "sub_query_id", sub.ID, "error", err)
		return graphmodel.ToolResult{
			SubQueryID:    sub.ID,
			ToolName:      sub.ToolName,
			Success:       false,
			Err:           err.Error(),
			ExecutionTime: elapsed,
		}
	}

	return graphmodel.ToolResult{
		SubQueryID:    sub.ID,
		ToolName:      sub.ToolName,
		Success:       true,
		PersonIDs:     toolclient.ExtractPersonIDs(payload),
		Raw:           payload,
		ExecutionTime: elapsed,
	}
}

// substitute returns a copy of args with every graphmodel.SequentialPlaceholder
// value replaced by priorID.
func substitute(args map[string]any, priorID string) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && s == graphmodel.SequentialPlaceholder {
			out[k] = priorID
			continue
		}
		out[k] = v
	}
	return out
}

func allCriticalFailed(subQueries []graphmodel.SubQuery, results []graphmodel.ToolResult) bool {
	succeededByID := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Success {
			succeededByID[r.SubQueryID] = true
		}
	}
	anyCritical := false
	for _, sq := range subQueries {
		if sq.Priority != 1 {
			continue
		}
		anyCritical = true
		if succeededByID[sq.ID] {
			return false
		}
	}
	return anyCritical
}

// combine merges each successful sub-query's person-ID set according to
// strategy.
func combine(strategy graphmodel.Strategy, subQueries []graphmodel.SubQuery, results []graphmodel.ToolResult) map[string]int {
	switch strategy {
	case graphmodel.StrategyParallelIntersect:
		return combinePriorityIntersect(subQueries, results)
	case graphmodel.StrategyHybrid:
		return combineHybrid(subQueries, results)
	default:
		return scoreResults(results)
	}
}

// combinePriorityIntersect admits only IDs present in every successful
// priority-1 sub-query's set — priority-2/3 sub-queries never remove an
// ID priority-1 admitted — then scores every surviving ID by the count
// of ALL successful sub-queries (any priority) that produced it, so a
// priority-2/3 hit still contributes to ranking.
func combinePriorityIntersect(subQueries []graphmodel.SubQuery, results []graphmodel.ToolResult) map[string]int {
	priority := make(map[string]int, len(subQueries))
	for _, sq := range subQueries {
		priority[sq.ID] = sq.Priority
	}

	var baseSets []map[string]bool
	for _, r := range results {
		if !r.Success || priority[r.SubQueryID] != 1 {
			continue
		}
		baseSets = append(baseSets, toSet(r.PersonIDs))
	}

	base := intersectAll(baseSets)
	scores := map[string]int{}
	if len(base) == 0 {
		return scores
	}

	for _, r := range results {
		if !r.Success {
			continue
		}
		for _, id := range r.PersonIDs {
			if base[id] {
				scores[id]++
			}
		}
	}
	return scores
}

// combineHybrid intersects the results of every Group: GroupIntersect
// sub-query, unions the results of every Group: GroupUnion sub-query,
// and keeps only IDs in both halves. A sub-query carrying no group is
// treated as belonging to the union half, since that is the more
// permissive default.
func combineHybrid(subQueries []graphmodel.SubQuery, results []graphmodel.ToolResult) map[string]int {
	group := make(map[string]graphmodel.Group, len(subQueries))
	for _, sq := range subQueries {
		group[sq.ID] = sq.Group
	}

	var intersectSets []map[string]bool
	unionIDs := map[string]bool{}
	for _, r := range results {
		if !r.Success {
			continue
		}
		if group[r.SubQueryID] == graphmodel.GroupIntersect {
			intersectSets = append(intersectSets, toSet(r.PersonIDs))
			continue
		}
		for _, id := range r.PersonIDs {
			unionIDs[id] = true
		}
	}

	intersected := intersectAll(intersectSets)
	scores := map[string]int{}
	for _, r := range results {
		if !r.Success {
			continue
		}
		for _, id := range r.PersonIDs {
			if len(intersected) > 0 && !intersected[id] {
				continue
			}
			if !unionIDs[id] {
				continue
			}
			scores[id]++
		}
	}
	return scores
}

// scoreResults unions every successful result's person IDs, scoring each
// by the number of successful sub-queries that produced it. This is the
// PARALLEL_UNION algebra, and also what SEQUENTIAL scores over its
// single final-step result.
func scoreResults(results []graphmodel.ToolResult) map[string]int {
	scores := map[string]int{}
	for _, r := range results {
		if !r.Success {
			continue
		}
		for _, id := range r.PersonIDs {
			scores[id]++
		}
	}
	return scores
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// intersectAll returns the intersection of every set in sets, or an
// empty map if sets is empty.
func intersectAll(sets []map[string]bool) map[string]bool {
	if len(sets) == 0 {
		return map[string]bool{}
	}
	result := map[string]bool{}
	for id := range sets[0] {
		inAll := true
		for _, set := range sets[1:] {
			if !set[id] {
				inAll = false
				break
			}
		}
		if inAll {
			result[id] = true
		}
	}
	return result
}

// rank orders candidates by descending score, breaking ties by lowest
// numeric ID (falling back to lexical order for non-numeric IDs), and
// truncates to min(2*desiredCount, rankCap).
func rank(scores map[string]int, desiredCount, rankCap int) []graphmodel.Candidate {
	candidates := make([]graphmodel.Candidate, 0, len(scores))
	for id, score := range scores {
		candidates = append(candidates, graphmodel.Candidate{PersonID: id, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return lessID(candidates[i].PersonID, candidates[j].PersonID)
	})

	limit := 2 * desiredCount
	if limit <= 0 || limit > rankCap {
		limit = rankCap
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit]
}

func lessID(a, b string) bool {
	an, aErr := parseID(a)
	bn, bErr := parseID(b)
	if aErr == nil && bErr == nil {
		return an < bn
	}
	return a < b
}

func parseID(s string) (int64, error) {
	var n int64
	var sign int64 = 1
	i := 0
	if len(s) == 0 {
		return 0, errEmpty
	}
	if s[0] == '-' {
		sign = -1
		i = 1
	}
	if i == len(s) {
		return 0, errEmpty
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errNotNumeric
		}
		n = n*10 + int64(s[i]-'0')
	}
	return n * sign, nil
}
