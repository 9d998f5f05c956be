// Package synthesizer implements the pipeline's final stage: fetching
// complete profiles for the top-ranked candidates and composing a single
// natural-language response over them. Grounded on original_source's
// enhanced_synthesizer_node — the parallel get_person_complete_profile
// fan-out, the top-10-by-default cutoff, and the one-shot GPT-4o
// composition call at temperature 0.7.
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/graphquery/internal/llm"
	"github.com/haasonsaas/graphquery/internal/toolclient"
	"github.com/haasonsaas/graphquery/pkg/graphmodel"
)

// Config configures profile fetching and the final composition call.
type Config struct {
	// TopN bounds how many ranked candidates get a full profile fetch
	// (spec default: 10, matching the original's top_n cutoff).
	TopN int
	// MaxConcurrency bounds in-flight profile fetches.
	MaxConcurrency int
	// PerCallTimeout bounds a single profile fetch.
	PerCallTimeout time.Duration

	Model       string
	Temperature float32
	MaxTokens   int
}

// DefaultConfig mirrors the original's top-10 cutoff and its GPT-4o
// composition call (temperature 0.7, 2000 max tokens, no retry: a failed
// composition call is a fatal "composition" pipeline error, not a
// best-effort stage worth retrying with stale profile data).
func DefaultConfig() Config {
	return Config{
		TopN:           10,
		MaxConcurrency: 4,
		PerCallTimeout: 15 * time.Second,
		Model:          "gpt-4o",
		Temperature:    0.7,
		MaxTokens:      2000,
	}
}

// Synthesizer fetches profiles for ranked candidates and composes the
// final natural-language answer.
type Synthesizer struct {
	client   *toolclient.Client
	provider llm.Provider
	cfg      Config
	logger   *slog.Logger
}

// New creates a Synthesizer.
func New(client *toolclient.Client, provider llm.Provider, cfg Config, logger *slog.Logger) *Synthesizer {
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{client: client, provider: provider, cfg: cfg, logger: logger.With("component", "synthesizer")}
}

// Synthesize fetches complete profiles for the top desiredCount ranked
// candidates and returns a composed natural-language response plus the
// profiles fetched. Two short-circuits never reach the LLM: no
// candidates at all (nothing matched the search), and candidates present
// but every profile fetch failed (nothing left to describe). A
// non-positive desiredCount falls back to Config.TopN, matching the
// original's default top_n cutoff.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, filters graphmodel.Filters, desiredCount, totalMatches int, candidates []graphmodel.Candidate) (string, []graphmodel.Profile, error) {
	if len(candidates) == 0 {
		return "I couldn't find any people matching your search criteria. Please try refining your query.", nil, nil
	}

	fetchN := desiredCount
	if fetchN <= 0 {
		fetchN = s.cfg.TopN
	}
	if fetchN > len(candidates) {
		fetchN = len(candidates)
	}
	profiles := s.fetchProfiles(ctx, candidates[:fetchN])

	if len(profiles) == 0 {
		return "I found candidate matches but couldn't retrieve their profile details. Please try again.", nil, nil
	}

	req := llm.Request{
		Model:       s.cfg.Model,
		System:      systemPrompt,
		Prompt:      buildPrompt(query, filters, totalMatches, profiles),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}
	text, err := s.provider.Complete(ctx, req)
	if err != nil {
		return "", profiles, &graphmodel.PipelineError{
			Kind:    graphmodel.ErrKindComposition,
			Message: "response composition failed",
			Cause:   err,
		}
	}
	return text, profiles, nil
}

// fetchProfiles calls get_person_complete_profile for each candidate with
// bounded concurrency, following the same semaphore/WaitGroup shape as
// the executor stage. A candidate whose fetch fails or whose payload
// can't be parsed into a profile is silently dropped, matching the
// original's return_exceptions=True gather semantics.
func (s *Synthesizer) fetchProfiles(ctx context.Context, candidates []graphmodel.Candidate) []graphmodel.Profile {
	profiles := make([]graphmodel.Profile, len(candidates))
	ok := make([]bool, len(candidates))
	sem := make(chan struct{}, s.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for i, c := range candidates {
		wg.Add(1)
		go func(idx int, personID string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			callCtx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
			payload, err := s.client.Call(callCtx, "get_person_complete_profile", map[string]any{"person_id": personID})
			cancel()
			if err != nil {
				s.logger.Warn("profile fetch failed", "person_id", personID, "error", err)
				return
			}

			data := profileData(payload)
			if data == nil {
				s.logger.Warn("profile payload unparseable", "person_id", personID)
				return
			}
			profiles[idx] = graphmodel.Profile{PersonID: personID, Data: data}
			ok[idx] = true
		}(i, c.PersonID)
	}

	wg.Wait()

	out := make([]graphmodel.Profile, 0, len(profiles))
	for i, present := range ok {
		if present {
			out = append(out, profiles[i])
		}
	}
	return out
}

// profileData extracts a single profile map out of a decoded tool
// payload, which may arrive as a bare object or a one-element list.
func profileData(payload any) map[string]any {
	switch v := payload.(type) {
	case map[string]any:
		return v
	case []any:
		if len(v) == 0 {
			return nil
		}
		if m, ok := v[0].(map[string]any); ok {
			return m
		}
	}
	return nil
}

const systemPrompt = "You are a professional recruiter who presents candidate profiles in a clear, structured, and engaging way."

func buildPrompt(query string, filters graphmodel.Filters, totalMatches int, profiles []graphmodel.Profile) string {
	var b strings.Builder
	b.WriteString("You are a professional recruiter presenting candidate profiles to a hiring manager.\n\n")
	fmt.Fprintf(&b, "Original Search Query: %q\n\n", query)
	b.WriteString("Search Results Summary:\n")
	fmt.Fprintf(&b, "- Total matches found: %d\n", totalMatches)
	fmt.Fprintf(&b, "- Top profiles shown: %d\n\n", len(profiles))
	b.WriteString("Extracted Search Criteria:\n")
	b.WriteString(formatFilters(filters))
	b.WriteString("\n\nCandidate Profiles:\n")
	for _, p := range profiles {
		b.WriteString(formatProfileSummary(p))
	}
	b.WriteString("\nYour Task:\nGenerate a professional, human-readable response that:\n")
	b.WriteString("1. Starts with a summary of the search results\n")
	b.WriteString("2. Presents each candidate with name and current role, key matching skills, relevant experience, contact information, and why they're a good match\n")
	b.WriteString("3. Uses clear formatting with sections and bullet points\n")
	b.WriteString("4. Is concise but informative (aim for 500-800 words)\n")
	b.WriteString("5. Maintains a professional yet friendly tone\n")
	return b.String()
}

func formatFilters(filters graphmodel.Filters) string {
	var lines []string
	add := func(label string, values []string) {
		if len(values) > 0 {
			lines = append(lines, "- "+label+": "+strings.Join(values, ", "))
		}
	}
	add("Skills", filters.Skills)
	add("Companies", filters.Companies)
	add("Institutions", filters.Institutions)
	add("Locations", filters.Locations)
	add("Job Titles", filters.JobTitles)
	add("Names", filters.Names)
	add("Seniority", filters.SeniorityFilters)
	if filters.Experience != "" {
		lines = append(lines, "- Experience Level: "+filters.Experience)
	}
	if !filters.ExperienceFilters.Empty() {
		lines = append(lines, fmt.Sprintf("- Experience Range: %d-%d years", filters.ExperienceFilters.MinYears, filters.ExperienceFilters.MaxYears))
	}
	add("Keywords", filters.Keywords)
	for k, v := range filters.OtherCriteria {
		lines = append(lines, fmt.Sprintf("- %s: %v", k, v))
	}
	if len(lines) == 0 {
		return "No specific filters extracted"
	}
	return strings.Join(lines, "\n")
}

func formatProfileSummary(p graphmodel.Profile) string {
	d := p.Data
	var b strings.Builder
	sep := strings.Repeat("=", 60)
	fmt.Fprintf(&b, "\n%s\n", sep)
	fmt.Fprintf(&b, "Profile ID: %s\n", p.PersonID)
	fmt.Fprintf(&b, "Name: %s\n", str(d, "name"))
	fmt.Fprintf(&b, "Headline: %s\n", str(d, "headline"))
	fmt.Fprintf(&b, "Current Role: %s at %s\n", str(d, "current_title"), str(d, "current_company"))
	fmt.Fprintf(&b, "Location: %s\n", str(d, "location"))
	months := intOf(d, "total_experience_months")
	fmt.Fprintf(&b, "Total Experience: %d years %d months\n\n", months/12, months%12)

	if skills := strs(d, "technical_skills"); len(skills) > 0 {
		fmt.Fprintf(&b, "Technical Skills: %s\n", strings.Join(limit(skills, 10), ", "))
	}
	if skills := strs(d, "secondary_skills"); len(skills) > 0 {
		fmt.Fprintf(&b, "Secondary Skills: %s\n", strings.Join(limit(skills, 10), ", "))
	}
	if domains := strs(d, "domain_knowledge"); len(domains) > 0 {
		fmt.Fprintf(&b, "Domain Knowledge: %s\n", strings.Join(limit(domains, 5), ", "))
	}
	b.WriteString("\n")

	if summary := str(d, "summary"); summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n\n", truncate(summary, 300))
	}

	if history := list(d, "work_history"); len(history) > 0 {
		b.WriteString("Recent Work History:\n")
		for i, job := range limit(history, 2) {
			jm, _ := job.(map[string]any)
			fmt.Fprintf(&b, "  %d. %s at %s\n", i+1, str(jm, "title"), str(jm, "company"))
			if desc := str(jm, "description"); desc != "" {
				fmt.Fprintf(&b, "     %s\n", truncate(desc, 200))
			}
		}
		b.WriteString("\n")
	}

	email, linkedin := str(d, "email"), str(d, "linkedin_profile")
	if email != "" || linkedin != "" {
		b.WriteString("Contact Information:\n")
		if email != "" {
			fmt.Fprintf(&b, "  Email: %s\n", email)
		}
		if linkedin != "" {
			fmt.Fprintf(&b, "  LinkedIn: %s\n", linkedin)
		}
	}
	fmt.Fprintf(&b, "%s\n", sep)
	return b.String()
}

func str(d map[string]any, key string) string {
	if d == nil {
		return "N/A"
	}
	if v, ok := d[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "N/A"
}

func strs(d map[string]any, key string) []string {
	v, ok := d[key]
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func list(d map[string]any, key string) []any {
	v, ok := d[key]
	if !ok {
		return nil
	}
	items, _ := v.([]any)
	return items
}

func intOf(d map[string]any, key string) int {
	v, ok := d[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
