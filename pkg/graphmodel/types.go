// Package graphmodel defines the data types that flow through the query
// orchestration pipeline: the decomposed Filters, the generated Plan of
// SubQueries, tool execution results, ranked candidates, and the
// PipelineState that tracks a single run end to end.
package graphmodel

import "time"

// WorkflowStatus is the current stage of a pipeline run.
type WorkflowStatus string

const (
	StatusInitialized WorkflowStatus = "initialized"
	StatusPlanning    WorkflowStatus = "planning"
	StatusPlanReady   WorkflowStatus = "planning_complete"
	StatusExecuting   WorkflowStatus = "executing"
	StatusToolsDone   WorkflowStatus = "tools_complete"
	StatusSynthesize  WorkflowStatus = "synthesizing"
	StatusComplete    WorkflowStatus = "complete"
	StatusError       WorkflowStatus = "error"
)

// Terminal reports whether a status is one the pipeline cannot leave.
func (s WorkflowStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Strategy names a set-combination algebra applied to sub-query results.
type Strategy string

const (
	StrategyParallelIntersect Strategy = "parallel_intersect"
	StrategyParallelUnion     Strategy = "parallel_union"
	StrategySequential        Strategy = "sequential"
	StrategyHybrid            Strategy = "hybrid"
)

// ExperienceFilters bounds a person's years of experience. Either bound
// may be zero to mean "unbounded" on that side.
type ExperienceFilters struct {
	MinYears int `json:"min_years,omitempty"`
	MaxYears int `json:"max_years,omitempty"`
}

// Empty reports whether neither bound was set.
func (e ExperienceFilters) Empty() bool {
	return e.MinYears == 0 && e.MaxYears == 0
}

// Filters is the structured output of the Decomposer: the query's
// constraints grouped by category. OtherCriteria carries anything the
// decomposer recognized as a constraint but that doesn't fit one of the
// named categories (e.g. {"role": "founder"}), so the planner can still
// pass it through to a tool argument by key.
type Filters struct {
	Skills            []string          `json:"skills,omitempty"`
	Companies         []string          `json:"companies,omitempty"`
	Institutions      []string          `json:"institutions,omitempty"`
	Locations         []string          `json:"locations,omitempty"`
	JobTitles         []string          `json:"job_titles,omitempty"`
	Names             []string          `json:"names,omitempty"`
	SeniorityFilters  []string          `json:"seniority_filters,omitempty"`
	Experience        string            `json:"experience_level,omitempty"`
	ExperienceFilters ExperienceFilters `json:"experience_filters,omitempty"`
	Keywords          []string          `json:"keywords,omitempty"`
	OtherCriteria     map[string]any    `json:"other_criteria,omitempty"`
}

// Empty reports whether no filter category was populated.
func (f Filters) Empty() bool {
	return len(f.Skills) == 0 && len(f.Companies) == 0 && len(f.Institutions) == 0 &&
		len(f.Locations) == 0 && len(f.JobTitles) == 0 && len(f.Names) == 0 &&
		len(f.SeniorityFilters) == 0 && f.Experience == "" && f.ExperienceFilters.Empty() &&
		len(f.Keywords) == 0 && len(f.OtherCriteria) == 0
}

// Group tags a SubQuery's membership in a HYBRID plan's intersect or
// union half. It is meaningless outside StrategyHybrid.
type Group string

const (
	GroupIntersect Group = "intersect"
	GroupUnion     Group = "union"
)

// SequentialPlaceholder is the sentinel value a SEQUENTIAL SubQuery's
// Arguments may carry in place of a real value; the executor substitutes
// it with the person ID produced by the prior step before dispatching
// the call.
const SequentialPlaceholder = "$prior_person_id"

// SubQuery binds a single registered tool to a set of arguments derived
// from Filters. Priority 1 sub-queries are considered critical: if every
// priority-1 sub-query fails, the pipeline fails the run rather than
// ranking over an empty candidate set. Group only matters under
// StrategyHybrid, where it marks which half of the plan a sub-query
// belongs to.
type SubQuery struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Priority  int            `json:"priority"`
	Group     Group          `json:"group,omitempty"`
}

// Plan is the SubQueryGenerator's output: the sub-queries to execute and
// the strategy for combining their results.
type Plan struct {
	SubQueries []SubQuery `json:"sub_queries"`
	Strategy   Strategy   `json:"strategy"`
}

// Empty reports whether the plan carries no executable work.
func (p Plan) Empty() bool {
	return len(p.SubQueries) == 0
}

// ToolResult is the outcome of executing one SubQuery against the tool
// server, decoded into a slice of person IDs plus the raw payload for
// downstream inspection.
type ToolResult struct {
	SubQueryID    string        `json:"sub_query_id"`
	ToolName      string        `json:"tool_name"`
	Success       bool          `json:"success"`
	PersonIDs     []string      `json:"person_ids,omitempty"`
	Raw           any           `json:"raw,omitempty"`
	Err           string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Candidate is a single ranked person ID with its support score: the
// number of successful sub-queries that produced it.
type Candidate struct {
	PersonID string `json:"person_id"`
	Score    int    `json:"score"`
}

// Profile is a fetched person profile used by the Synthesizer.
type Profile struct {
	PersonID string         `json:"person_id"`
	Data     map[string]any `json:"data"`
}

// ErrorKind classifies where in the pipeline an error originated.
type ErrorKind string

const (
	ErrKindDecomposition ErrorKind = "decomposition"
	ErrKindPlanning      ErrorKind = "planning"
	ErrKindSubQuery      ErrorKind = "subquery"
	ErrKindFetch         ErrorKind = "fetch"
	ErrKindComposition   ErrorKind = "composition"
	ErrKindCancelled     ErrorKind = "cancelled"
)

// PipelineError carries the kind of failure plus structural context
// (which tool, which sub-query) for logging and for PipelineState.Errors.
type PipelineError struct {
	Kind       ErrorKind
	Message    string
	ToolName   string
	SubQueryID string
	Cause      error
}

func (e *PipelineError) Error() string {
	if e.ToolName != "" {
		return string(e.Kind) + ": " + e.Message + " (tool=" + e.ToolName + ")"
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// Fatal reports whether this error kind terminates the pipeline run.
func (e *PipelineError) Fatal() bool {
	return e.Kind == ErrKindComposition
}

// PipelineState is the single mutable record of one pipeline run, owned
// by the orchestrator and passed by pointer through each stage. It is
// never a package-level singleton; every call to the orchestrator
// allocates its own.
type PipelineState struct {
	RunID         string
	Query         string
	DesiredCount  int
	Status        WorkflowStatus
	Filters       Filters
	Plan          Plan
	ToolResults   []ToolResult
	RankedIDs     []Candidate
	Profiles      []Profile
	FinalAnswer   string
	Errors        []*PipelineError
	StartedAt     time.Time
	CompletedAt   time.Time
}

// NewPipelineState creates a fresh run record in the initialized state.
func NewPipelineState(runID, query string, desiredCount int) *PipelineState {
	return &PipelineState{
		RunID:        runID,
		Query:        query,
		DesiredCount: desiredCount,
		Status:       StatusInitialized,
		StartedAt:    time.Now(),
	}
}

// AddError appends a pipeline error and, if it is fatal, transitions the
// run to the error status.
func (s *PipelineState) AddError(err *PipelineError) {
	s.Errors = append(s.Errors, err)
	if err.Fatal() {
		s.Status = StatusError
	}
}

// SetStatus transitions the run to a new status.
func (s *PipelineState) SetStatus(status WorkflowStatus) {
	s.Status = status
	if status.Terminal() {
		s.CompletedAt = time.Now()
	}
}
