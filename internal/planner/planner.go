// Package planner implements the second LLM stage: turning Filters into
// a Plan of SubQueries bound to registered tools, with synonym expansion
// and multi-tool strategy selection, grounded on original_source's
// SubQueryGenerator. Unknown tool names the LLM invents are dropped
// during validation rather than forwarded to the executor.
package planner

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/haasonsaas/graphquery/internal/llm"
	"github.com/haasonsaas/graphquery/internal/toolclient"
	"github.com/haasonsaas/graphquery/pkg/graphmodel"
)

// Config configures the SubQueryGenerator's LLM call.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
	MaxRetries  int
}

// DefaultConfig mirrors the original's slightly-higher-temperature
// generation call (creative synonym expansion needs more variance than
// the Decomposer's strict extraction).
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o",
		Temperature: 0.4,
		MaxTokens:   1500,
		MaxRetries:  2,
	}
}

// Generator produces a Plan from Filters via one LLM call.
type Generator struct {
	provider llm.Provider
	cfg      Config
	logger   *slog.Logger
}

// New creates a Generator.
func New(provider llm.Provider, cfg Config, logger *slog.Logger) *Generator {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, cfg: cfg, logger: logger.With("component", "planner")}
}

// Generate builds a Plan from filters. If filters carries no usable
// constraint, or every attempt at generation fails to parse, an empty
// Plan is returned rather than an error: a plan with nothing to execute
// is a valid (if unhelpful) state for the orchestrator to continue past.
func (g *Generator) Generate(ctx context.Context, filters graphmodel.Filters) graphmodel.Plan {
	if filters.Empty() {
		return graphmodel.Plan{}
	}

	req := llm.Request{
		Model:       g.cfg.Model,
		System:      systemPrompt,
		Prompt:      buildPrompt(filters),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		JSONMode:    true,
	}

	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		text, err := g.provider.Complete(ctx, req)
		if err != nil {
			g.logger.Warn("sub-query generation call failed", "attempt", attempt, "error", err)
			continue
		}
		if err := validateSchema(text); err != nil {
			g.logger.Warn("sub-query generation response failed schema validation", "attempt", attempt, "error", err)
			continue
		}
		plan, err := parsePlan(text)
		if err != nil {
			g.logger.Warn("sub-query generation response unparseable", "attempt", attempt, "error", err)
			continue
		}
		return validate(plan)
	}

	g.logger.Warn("sub-query generation exhausted retries, returning empty plan")
	return graphmodel.Plan{}
}

const systemPrompt = "You are an expert at generating intelligent search sub-queries with synonym expansion and multi-strategy approaches. Always return valid JSON."

func buildPrompt(filters graphmodel.Filters) string {
	filtersJSON, _ := json.MarshalIndent(filters, "", "  ")

	var b strings.Builder
	b.WriteString("You are generating sub-queries for a professional network search system against ")
	b.WriteString("a fixed catalog of 19 tools across system, person_profile, and job_analysis categories.\n\n")
	b.WriteString("AVAILABLE TOOLS:\n")
	for _, name := range orderedToolNames() {
		spec, _ := toolclient.Lookup(name)
		b.WriteString("- " + spec.Name + ": " + spec.Description + "\n")
	}
	b.WriteString("\nYOUR TASK: generate 2-6 sub-queries using multiple search strategies:\n")
	b.WriteString("1. SYNONYM EXPANSION: expand skills/roles with variations ")
	b.WriteString("(Python -> Python, Python developer, Python engineer; AI -> AI, Artificial Intelligence, Machine Learning)\n")
	b.WriteString("2. MULTI-TOOL STRATEGY: use multiple tools per filter category for comprehensive coverage ")
	b.WriteString("(skills -> find_people_by_skill AND search_job_descriptions_by_keywords)\n")
	b.WriteString("3. SMART TOOL SELECTION: skills -> find_people_by_skill/find_people_with_multiple_skills, ")
	b.WriteString("companies -> find_people_by_company/get_company_employees, locations -> find_people_by_location, ")
	b.WriteString("names -> find_person_by_name, institutions -> find_people_by_institution, ")
	b.WriteString("experience -> find_people_by_experience_level, leadership/roles -> find_leadership_indicators\n\n")
	b.WriteString("Each sub-query needs: tool_name (must be one of the listed tools), arguments (object matching ")
	b.WriteString("that tool's declared args), priority (1=primary, 2=secondary, 3=optional).\n\n")
	b.WriteString("Choose a strategy: parallel_intersect (AND logic across priority-1 queries), ")
	b.WriteString("parallel_union (OR logic), sequential (pass results between steps, using the literal ")
	b.WriteString(`string "` + graphmodel.SequentialPlaceholder + `" in a later step's arguments to refer to the prior step's result), `)
	b.WriteString(`or hybrid (tag each sub-query's "group" as "intersect" or "union"; the plan's result is `)
	b.WriteString("intersect(intersect-group) ∩ union(union-group)).\n\n")
	b.WriteString("experience_filters.min_years/max_years and seniority_filters map to find_people_by_experience_level; ")
	b.WriteString("other_criteria is a flat object of constraints not covered by the named categories above — ")
	b.WriteString("pass its entries through as extra tool arguments where a matching tool argument exists.\n\n")
	b.WriteString("EXTRACTED FILTERS:\n")
	b.Write(filtersJSON)
	b.WriteString("\n\nReturn ONLY a JSON object: {\"sub_queries\": [...], \"strategy\": \"...\"}.")
	return b.String()
}

func orderedToolNames() []string {
	names := toolclient.Names()
	// stable, deterministic prompt ordering
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

type rawSubQuery struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Priority  int            `json:"priority"`
	Group     string         `json:"group"`
}

type rawPlan struct {
	SubQueries []rawSubQuery `json:"sub_queries"`
	Strategy   string        `json:"strategy"`
}

func parsePlan(text string) (rawPlan, error) {
	var plan rawPlan
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &plan); err != nil {
		return rawPlan{}, err
	}
	return plan, nil
}

// validate drops sub-queries bound to unregistered tools, assigns
// generated IDs where missing, defaults priority to 2, and falls back to
// parallel_union for an unrecognized or missing strategy — following the
// original's _validate_and_normalize skip-invalid-tool behavior.
func validate(plan rawPlan) graphmodel.Plan {
	out := graphmodel.Plan{Strategy: normalizeStrategy(plan.Strategy)}

	for i, sq := range plan.SubQueries {
		if _, ok := toolclient.Lookup(sq.ToolName); !ok {
			continue
		}
		id := sq.ID
		if id == "" {
			id = "sq" + strconv.Itoa(i+1)
		}
		priority := sq.Priority
		if priority <= 0 {
			priority = 2
		}
		out.SubQueries = append(out.SubQueries, graphmodel.SubQuery{
			ID:        id,
			ToolName:  sq.ToolName,
			Arguments: sq.Arguments,
			Priority:  priority,
			Group:     normalizeGroup(sq.Group),
		})
	}

	if len(out.SubQueries) == 0 {
		return graphmodel.Plan{}
	}
	return out
}

// normalizeGroup accepts only the two group tags HYBRID understands;
// anything else (including an empty string, for non-hybrid plans) is
// dropped rather than defaulted, since Group is meaningless outside
// StrategyHybrid.
func normalizeGroup(g string) graphmodel.Group {
	switch graphmodel.Group(g) {
	case graphmodel.GroupIntersect:
		return graphmodel.GroupIntersect
	case graphmodel.GroupUnion:
		return graphmodel.GroupUnion
	default:
		return ""
	}
}

func normalizeStrategy(s string) graphmodel.Strategy {
	switch graphmodel.Strategy(s) {
	case graphmodel.StrategyParallelIntersect:
		return graphmodel.StrategyParallelIntersect
	case graphmodel.StrategySequential:
		return graphmodel.StrategySequential
	case graphmodel.StrategyHybrid:
		return graphmodel.StrategyHybrid
	default:
		return graphmodel.StrategyParallelUnion
	}
}

