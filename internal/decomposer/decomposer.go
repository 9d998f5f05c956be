// Package decomposer implements the first LLM stage of the pipeline:
// turning a natural-language query into structured graphmodel.Filters.
// The prompt shape, retry-then-empty-fallback behavior, and low
// temperature are grounded on original_source's QueryDecomposer.
package decomposer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/haasonsaas/graphquery/internal/llm"
	"github.com/haasonsaas/graphquery/pkg/graphmodel"
)

// Config configures the Decomposer's LLM call.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
	MaxRetries  int
}

// DefaultConfig mirrors the original's low-temperature, short-budget
// extraction call.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o",
		Temperature: 0.3,
		MaxTokens:   800,
		MaxRetries:  2,
	}
}

// Decomposer extracts Filters from a query via one LLM call, retried up
// to Config.MaxRetries times on parse failure before falling back to an
// empty Filters value — never an error, since an under-specified query
// is a valid (if unhelpful) input to the rest of the pipeline.
type Decomposer struct {
	provider llm.Provider
	cfg      Config
	logger   *slog.Logger
}

// New creates a Decomposer.
func New(provider llm.Provider, cfg Config, logger *slog.Logger) *Decomposer {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{provider: provider, cfg: cfg, logger: logger.With("component", "decomposer")}
}

// Decompose extracts Filters from query, retrying the LLM call on
// malformed JSON and returning an empty Filters value if every attempt
// fails to parse.
func (d *Decomposer) Decompose(ctx context.Context, query string) graphmodel.Filters {
	if strings.TrimSpace(query) == "" {
		return graphmodel.Filters{}
	}

	req := llm.Request{
		Model:       d.cfg.Model,
		System:      systemPrompt,
		Prompt:      buildPrompt(query),
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
		JSONMode:    true,
	}

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		text, err := d.provider.Complete(ctx, req)
		if err != nil {
			d.logger.Warn("decomposition call failed", "attempt", attempt, "error", err)
			continue
		}
		filters, err := parseFilters(text)
		if err != nil {
			d.logger.Warn("decomposition response unparseable", "attempt", attempt, "error", err)
			continue
		}
		return filters
	}

	d.logger.Warn("decomposition exhausted retries, returning empty filters", "query", query)
	return graphmodel.Filters{}
}

const systemPrompt = "You are an expert at extracting structured information from natural language queries about professional networks. Always return valid JSON."

func buildPrompt(query string) string {
	var b strings.Builder
	b.WriteString("You are analyzing a query about a professional network graph with nodes for ")
	b.WriteString("people, companies, and institutions, related by WORKS_AT and STUDIED_AT edges.\n\n")
	b.WriteString("Extract structured filters from the user's query into these categories:\n")
	b.WriteString("1. skills: programming languages, technologies, technical skills\n")
	b.WriteString("2. companies: company names where people work or worked\n")
	b.WriteString("3. institutions: universities or educational institutions\n")
	b.WriteString("4. locations: cities, regions, or countries\n")
	b.WriteString("5. job_titles: job titles mentioned (e.g. Engineer, Designer, Product Manager)\n")
	b.WriteString("6. names: specific person names mentioned\n")
	b.WriteString("7. seniority_filters: seniority keywords (e.g. Senior, Staff, Lead, Junior)\n")
	b.WriteString("8. experience_level: a single free-text seniority/experience descriptor, or empty string\n")
	b.WriteString(`9. experience_filters: {"min_years": N, "max_years": N}, only the bounds the query implies` + "\n")
	b.WriteString("10. keywords: any other relevant free-text criteria\n")
	b.WriteString(`11. other_criteria: a flat object for constraints that fit no category above (e.g. {"role": "founder"})` + "\n\n")
	b.WriteString("Examples:\n")
	b.WriteString(`Query: "Find Python developers at Google"` + "\n")
	b.WriteString(`{"skills":["Python"],"companies":["Google"]}` + "\n\n")
	b.WriteString(`Query: "Senior React developers at Microsoft or Amazon in Seattle"` + "\n")
	b.WriteString(`{"skills":["React","JavaScript"],"companies":["Microsoft","Amazon"],"locations":["Seattle"],"seniority_filters":["Senior"]}` + "\n\n")
	b.WriteString(`Query: "IIT Bombay graduates working in fintech"` + "\n")
	b.WriteString(`{"institutions":["IIT Bombay"],"keywords":["fintech"]}` + "\n\n")
	b.WriteString(`Query: "Startup founders with 5+ years of experience"` + "\n")
	b.WriteString(`{"experience_filters":{"min_years":5},"other_criteria":{"role":"founder"}}` + "\n\n")
	b.WriteString("Return ONLY a JSON object with the categories above, omitting any that are empty.\n\n")
	b.WriteString(`User query: "`)
	b.WriteString(query)
	b.WriteString(`"`)
	return b.String()
}

func parseFilters(text string) (graphmodel.Filters, error) {
	var filters graphmodel.Filters
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &filters); err != nil {
		return graphmodel.Filters{}, err
	}
	return filters, nil
}
