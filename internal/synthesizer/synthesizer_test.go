package synthesizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/graphquery/internal/llm"
	"github.com/haasonsaas/graphquery/internal/toolclient"
	"github.com/haasonsaas/graphquery/pkg/graphmodel"
)

type fakeProvider struct {
	response string
	err      error
	calls    int
	lastReq  llm.Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Params  json.RawMessage `json:"params"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// newFakeProfileServer answers get_person_complete_profile with a canned
// profile keyed by person_id, or a JSON-RPC error for IDs not in byID.
func newFakeProfileServer(t *testing.T, byID map[string]map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env rpcEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		var params callParams
		_ = json.Unmarshal(env.Params, &params)

		profile, ok := byID[params.Arguments["person_id"].(string)]
		if !ok {
			resp := struct {
				JSONRPC string `json:"jsonrpc"`
				ID      string `json:"id"`
				Error   struct {
					Code    int    `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}{JSONRPC: "2.0", ID: env.ID}
			resp.Error.Code = -32000
			resp.Error.Message = "not found"
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		profileJSON, _ := json.Marshal(profile)
		textBody, _ := json.Marshal(struct {
			Content []map[string]string `json:"content"`
		}{Content: []map[string]string{{"type": "text", "text": string(profileJSON)}}})

		resp := struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      string          `json:"id"`
			Result  json.RawMessage `json:"result"`
		}{JSONRPC: "2.0", ID: env.ID, Result: textBody}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newSynthesizerAgainst(srv *httptest.Server, provider llm.Provider, cfg Config) *Synthesizer {
	tcCfg := toolclient.DefaultConfig()
	tcCfg.BaseURL = srv.URL
	client := toolclient.New(tcCfg, nil)
	return New(client, provider, cfg, nil)
}

func TestSynthesize_NoCandidatesShortCircuits(t *testing.T) {
	provider := &fakeProvider{response: "should not be used"}
	s := New(nil, provider, DefaultConfig(), nil)

	text, profiles, err := s.Synthesize(context.Background(), "find go devs", graphmodel.Filters{}, 5, 0, nil)
	require.NoError(t, err)
	assert.Nil(t, profiles)
	assert.Contains(t, text, "couldn't find any people")
	assert.Equal(t, 0, provider.calls)
}

func TestSynthesize_FetchesProfilesAndComposes(t *testing.T) {
	byID := map[string]map[string]any{
		"1": {"person_id": "1", "name": "Ada Lovelace", "current_title": "Engineer", "current_company": "Acme",
			"technical_skills": []any{"Go", "Python"}, "total_experience_months": float64(50)},
	}
	srv := newFakeProfileServer(t, byID)
	defer srv.Close()

	provider := &fakeProvider{response: "Here are your candidates: Ada Lovelace."}
	s := newSynthesizerAgainst(srv, provider, DefaultConfig())

	candidates := []graphmodel.Candidate{{PersonID: "1", Score: 2}}
	text, profiles, err := s.Synthesize(context.Background(), "find go devs", graphmodel.Filters{Skills: []string{"Go"}}, 5, 1, candidates)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "1", profiles[0].PersonID)
	assert.Equal(t, "Here are your candidates: Ada Lovelace.", text)
	assert.Equal(t, 1, provider.calls)
	assert.Contains(t, provider.lastReq.Prompt, "Ada Lovelace")
	assert.Equal(t, float32(0.7), provider.lastReq.Temperature)
}

func TestSynthesize_AllProfileFetchesFailShortCircuits(t *testing.T) {
	srv := newFakeProfileServer(t, map[string]map[string]any{})
	defer srv.Close()

	provider := &fakeProvider{response: "should not be used"}
	s := newSynthesizerAgainst(srv, provider, DefaultConfig())

	candidates := []graphmodel.Candidate{{PersonID: "missing", Score: 1}}
	text, profiles, err := s.Synthesize(context.Background(), "find go devs", graphmodel.Filters{}, 5, 1, candidates)
	require.NoError(t, err)
	assert.Empty(t, profiles)
	assert.Contains(t, text, "couldn't retrieve their profile details")
	assert.Equal(t, 0, provider.calls)
}

func TestSynthesize_CompositionErrorIsFatal(t *testing.T) {
	byID := map[string]map[string]any{"1": {"person_id": "1", "name": "Ada"}}
	srv := newFakeProfileServer(t, byID)
	defer srv.Close()

	provider := &fakeProvider{err: errors.New("llm unavailable")}
	s := newSynthesizerAgainst(srv, provider, DefaultConfig())

	_, _, err := s.Synthesize(context.Background(), "q", graphmodel.Filters{}, 5, 1, []graphmodel.Candidate{{PersonID: "1", Score: 1}})
	require.Error(t, err)
	var perr *graphmodel.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, graphmodel.ErrKindComposition, perr.Kind)
	assert.True(t, perr.Fatal())
}

func TestSynthesize_RespectsTopNCutoff(t *testing.T) {
	byID := map[string]map[string]any{}
	var candidates []graphmodel.Candidate
	for i := 0; i < 15; i++ {
		id := string(rune('A' + i))
		byID[id] = map[string]any{"person_id": id, "name": "Person " + id}
		candidates = append(candidates, graphmodel.Candidate{PersonID: id, Score: 1})
	}
	srv := newFakeProfileServer(t, byID)
	defer srv.Close()

	provider := &fakeProvider{response: "composed"}
	cfg := DefaultConfig()
	s := newSynthesizerAgainst(srv, provider, cfg)

	_, profiles, err := s.Synthesize(context.Background(), "q", graphmodel.Filters{}, 0, 15, candidates)
	require.NoError(t, err)
	assert.Len(t, profiles, cfg.TopN)
}

func TestSynthesize_DesiredCountOverridesTopNCutoff(t *testing.T) {
	byID := map[string]map[string]any{}
	var candidates []graphmodel.Candidate
	for i := 0; i < 15; i++ {
		id := string(rune('A' + i))
		byID[id] = map[string]any{"person_id": id, "name": "Person " + id}
		candidates = append(candidates, graphmodel.Candidate{PersonID: id, Score: 1})
	}
	srv := newFakeProfileServer(t, byID)
	defer srv.Close()

	provider := &fakeProvider{response: "composed"}
	s := newSynthesizerAgainst(srv, provider, DefaultConfig())

	_, profiles, err := s.Synthesize(context.Background(), "q", graphmodel.Filters{}, 3, 15, candidates)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)
}
