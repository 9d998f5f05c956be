package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/graphquery/internal/toolclient"
	"github.com/haasonsaas/graphquery/pkg/graphmodel"
)

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// personObjs turns a list of integer IDs into the {"person_id": N} object
// shape ExtractPersonIDs requires.
func personObjs(ids ...int) []map[string]int {
	out := make([]map[string]int, len(ids))
	for i, id := range ids {
		out[i] = map[string]int{"person_id": id}
	}
	return out
}

// newFakeToolServer returns an httptest server that answers tools/call by
// looking up the tool name in byTool and serving its canned person objects.
// A handler may also be supplied directly via newFakeToolServerFunc for
// tests that need per-call argument inspection (e.g. SEQUENTIAL).
func newFakeToolServer(t *testing.T, byTool map[string][]map[string]int, concurrent, maxConcurrent *int32) *httptest.Server {
	t.Helper()
	return newFakeToolServerFunc(t, func(params callParams) []map[string]int {
		if concurrent != nil {
			cur := atomic.AddInt32(concurrent, 1)
			for {
				old := atomic.LoadInt32(maxConcurrent)
				if cur <= old || atomic.CompareAndSwapInt32(maxConcurrent, old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(concurrent, -1)
		}
		return byTool[params.Name]
	})
}

// newFakeToolServerFunc answers every tools/call with respond(params)'s
// person objects, letting a test inspect the call's arguments.
func newFakeToolServerFunc(t *testing.T, respond func(callParams) []map[string]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env rpcEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))

		var params callParams
		_ = json.Unmarshal(env.Params, &params)

		ids := respond(params)
		idsJSON, _ := json.Marshal(ids)
		textBody, _ := json.Marshal(struct {
			Content []map[string]string `json:"content"`
		}{Content: []map[string]string{{"type": "text", "text": string(idsJSON)}}})

		resp := struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      string          `json:"id"`
			Result  json.RawMessage `json:"result"`
		}{JSONRPC: "2.0", ID: env.ID, Result: textBody}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newExecutorAgainst(srv *httptest.Server, cfg Config) *Executor {
	tcCfg := toolclient.DefaultConfig()
	tcCfg.BaseURL = srv.URL
	client := toolclient.New(tcCfg, nil)
	return New(client, cfg, nil)
}

func TestExecutor_RespectsConcurrencyLimit(t *testing.T) {
	var concurrent, maxConcurrent int32
	byTool := map[string][]map[string]int{"find_people_by_skill": personObjs(1, 2)}
	srv := newFakeToolServer(t, byTool, &concurrent, &maxConcurrent)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 2
	exec := newExecutorAgainst(srv, cfg)

	plan := graphmodel.Plan{Strategy: graphmodel.StrategyParallelUnion}
	for i := 0; i < 6; i++ {
		plan.SubQueries = append(plan.SubQueries, graphmodel.SubQuery{
			ID: "sq" + string(rune('a'+i)), ToolName: "find_people_by_skill",
			Arguments: map[string]any{"skill": "go"}, Priority: 2,
		})
	}

	_, _, err := exec.Run(context.Background(), plan, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxConcurrent), int32(2))
}

func TestExecutor_ParallelUnion(t *testing.T) {
	byTool := map[string][]map[string]int{
		"find_people_by_skill":   personObjs(1, 2, 3),
		"find_people_by_company": personObjs(2, 3, 4),
	}
	srv := newFakeToolServer(t, byTool, nil, nil)
	defer srv.Close()

	exec := newExecutorAgainst(srv, DefaultConfig())
	plan := graphmodel.Plan{
		Strategy: graphmodel.StrategyParallelUnion,
		SubQueries: []graphmodel.SubQuery{
			{ID: "sq1", ToolName: "find_people_by_skill", Arguments: map[string]any{"skill": "go"}, Priority: 1},
			{ID: "sq2", ToolName: "find_people_by_company", Arguments: map[string]any{"company": "acme"}, Priority: 2},
		},
	}

	_, ranked, err := exec.Run(context.Background(), plan, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 4)
	assert.Equal(t, "2", ranked[0].PersonID)
	assert.Equal(t, 2, ranked[0].Score)
	assert.Equal(t, "3", ranked[1].PersonID)
	assert.Equal(t, 2, ranked[1].Score)
}

func TestExecutor_ParallelIntersect(t *testing.T) {
	byTool := map[string][]map[string]int{
		"find_people_by_skill":      personObjs(1, 2, 3),
		"find_people_by_company":    personObjs(2, 3, 4),
		"find_people_by_experience": personObjs(1, 2),
	}
	srv := newFakeToolServer(t, byTool, nil, nil)
	defer srv.Close()

	exec := newExecutorAgainst(srv, DefaultConfig())
	plan := graphmodel.Plan{
		Strategy: graphmodel.StrategyParallelIntersect,
		SubQueries: []graphmodel.SubQuery{
			{ID: "sq1", ToolName: "find_people_by_skill", Arguments: map[string]any{"skill": "go"}, Priority: 1},
			{ID: "sq2", ToolName: "find_people_by_company", Arguments: map[string]any{"company": "acme"}, Priority: 2},
			{ID: "sq3", ToolName: "find_people_by_experience", Arguments: map[string]any{"min_years": 5}, Priority: 3},
		},
	}

	_, ranked, err := exec.Run(context.Background(), plan, 5)
	require.NoError(t, err)
	// Base set is priority-1 only: {1,2,3}. Priority-2/3 sub-queries never
	// remove an ID priority-1 admitted, even though company/experience
	// don't cover all three — they only add to the score.
	require.Len(t, ranked, 3)
	byID := map[string]int{}
	for _, c := range ranked {
		byID[c.PersonID] = c.Score
	}
	assert.Equal(t, 2, byID["1"]) // skill + experience
	assert.Equal(t, 3, byID["2"]) // skill + company + experience
	assert.Equal(t, 2, byID["3"]) // skill + company
}

func TestExecutor_AllCriticalFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exec := newExecutorAgainst(srv, DefaultConfig())
	plan := graphmodel.Plan{
		Strategy: graphmodel.StrategyParallelUnion,
		SubQueries: []graphmodel.SubQuery{
			{ID: "sq1", ToolName: "find_people_by_skill", Arguments: map[string]any{"skill": "go"}, Priority: 1},
		},
	}

	_, _, err := exec.Run(context.Background(), plan, 5)
	require.Error(t, err)
	var perr *graphmodel.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, graphmodel.ErrKindSubQuery, perr.Kind)
}

func TestExecutor_RankCap(t *testing.T) {
	ids := make([]int, 30)
	for i := range ids {
		ids[i] = i
	}
	byTool := map[string][]map[string]int{"find_people_by_skill": personObjs(ids...)}
	srv := newFakeToolServer(t, byTool, nil, nil)
	defer srv.Close()

	exec := newExecutorAgainst(srv, DefaultConfig())
	plan := graphmodel.Plan{
		Strategy:   graphmodel.StrategyParallelUnion,
		SubQueries: []graphmodel.SubQuery{{ID: "sq1", ToolName: "find_people_by_skill", Arguments: nil, Priority: 2}},
	}

	_, ranked, err := exec.Run(context.Background(), plan, 50)
	require.NoError(t, err)
	assert.Len(t, ranked, 20)
}

// TestExecutor_Sequential mirrors scenario 3 ("Tell me about John Smith"):
// find_person_by_name resolves a name to a person ID, and that ID is
// substituted into get_person_complete_profile's arguments before the
// second call is made.
func TestExecutor_Sequential(t *testing.T) {
	srv := newFakeToolServerFunc(t, func(params callParams) []map[string]int {
		switch params.Name {
		case "find_person_by_name":
			return personObjs(42)
		case "get_person_complete_profile":
			require.Equal(t, "42", params.Arguments["person_id"])
			return personObjs(42)
		default:
			t.Fatalf("unexpected tool %q", params.Name)
			return nil
		}
	})
	defer srv.Close()

	exec := newExecutorAgainst(srv, DefaultConfig())
	plan := graphmodel.Plan{
		Strategy: graphmodel.StrategySequential,
		SubQueries: []graphmodel.SubQuery{
			{ID: "sq1", ToolName: "find_person_by_name", Arguments: map[string]any{"name": "John Smith"}, Priority: 1},
			{ID: "sq2", ToolName: "get_person_complete_profile", Arguments: map[string]any{"person_id": graphmodel.SequentialPlaceholder}, Priority: 1},
		},
	}

	results, ranked, err := exec.Run(context.Background(), plan, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, ranked, 1)
	assert.Equal(t, "42", ranked[0].PersonID)
}

func TestExecutor_Hybrid(t *testing.T) {
	byTool := map[string][]map[string]int{
		"find_people_by_skill":    personObjs(1, 2, 3),
		"find_people_by_company":  personObjs(2, 3, 4),
		"find_people_by_location": personObjs(3, 5),
	}
	srv := newFakeToolServer(t, byTool, nil, nil)
	defer srv.Close()

	exec := newExecutorAgainst(srv, DefaultConfig())
	plan := graphmodel.Plan{
		Strategy: graphmodel.StrategyHybrid,
		SubQueries: []graphmodel.SubQuery{
			{ID: "sq1", ToolName: "find_people_by_skill", Arguments: map[string]any{"skill": "go"}, Priority: 1, Group: graphmodel.GroupIntersect},
			{ID: "sq2", ToolName: "find_people_by_company", Arguments: map[string]any{"company": "acme"}, Priority: 1, Group: graphmodel.GroupIntersect},
			{ID: "sq3", ToolName: "find_people_by_location", Arguments: map[string]any{"location": "nyc"}, Priority: 2, Group: graphmodel.GroupUnion},
		},
	}

	// intersect group: {1,2,3} ∩ {2,3,4} = {2,3}. union group: {3,5}.
	// hybrid = {2,3} ∩ {3,5} = {3}.
	_, ranked, err := exec.Run(context.Background(), plan, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "3", ranked[0].PersonID)
}
