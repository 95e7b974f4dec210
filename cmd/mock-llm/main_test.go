package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassifyPrompt(t *testing.T) {
	cases := []struct {
		prompt string
		want   string
	}{
		{`You are researching the topic "Rust" to build a structured learning path`, stageSeedQueries},
		{`You are evaluating whether the research collected so far is sufficient`, stageEvaluateResearch},
		{`Research on "Rust" is missing the following aspects:`, stageRefinementQueries},
		{`Design the module outline of a learning path on "Rust"`, stagePlanModules},
		{`You are breaking module 1 of 3 of a learning path into submodules.`, stagePlanSubmodules},
		{`You are researching one submodule of a learning path`, stageSubmoduleQueries},
		{`Write the full content for one submodule of a learning path`, stageSubmoduleContent},
		{`What is the airspeed velocity of an unladen swallow?`, stageUnknown},
	}

	for _, tc := range cases {
		if got := classifyPrompt(tc.prompt); got != tc.want {
			t.Errorf("classifyPrompt(%q) = %q, want %q", tc.prompt, got, tc.want)
		}
	}
}

func TestRequestedCount(t *testing.T) {
	if got := requestedCount(`The "queries" array must contain exactly 5 entries.`, 3); got != 5 {
		t.Errorf("requestedCount = %d, want 5", got)
	}
	if got := requestedCount("no count here", 3); got != 3 {
		t.Errorf("requestedCount fallback = %d, want 3", got)
	}
}

func TestBuiltinRepliesAreValidJSON(t *testing.T) {
	jsonStages := []string{
		stageSeedQueries,
		stageEvaluateResearch,
		stageRefinementQueries,
		stagePlanModules,
		stagePlanSubmodules,
		stageSubmoduleQueries,
	}
	for _, stage := range jsonStages {
		content, ok := builtinReply(stage, "must contain exactly 5 entries")
		if !ok {
			t.Fatalf("no builtin reply for stage %q", stage)
		}
		if !json.Valid([]byte(content)) {
			t.Errorf("stage %q: reply is not valid JSON: %s", stage, content)
		}
	}

	if _, ok := builtinReply(stageUnknown, ""); ok {
		t.Error("unknown stage should have no builtin reply")
	}
}

func TestSeedQueriesHonorRequestedCount(t *testing.T) {
	content, _ := builtinReply(stageSeedQueries, "must contain exactly 5 entries")

	var parsed struct {
		Queries []struct {
			Keywords string `json:"keywords"`
		} `json:"queries"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(parsed.Queries) != 5 {
		t.Errorf("expected 5 queries, got %d", len(parsed.Queries))
	}
}

func postChat(t *testing.T, ts *httptest.Server, prompt string) *http.Response {
	t.Helper()
	body := `{"model":"qwen2.5:14b","messages":[{"role":"user","content":` +
		string(mustJSON(t, prompt)) + `}]}`
	resp, err := http.Post(ts.URL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func decodeContent(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(cr.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(cr.Choices))
	}
	return cr.Choices[0].Message.Content
}

func TestChatCompletionsRoutesByStage(t *testing.T) {
	s := newServer(nil)
	ts := httptest.NewServer(http.HandlerFunc(s.handleChatCompletions))
	defer ts.Close()

	resp := postChat(t, ts, `Design the module outline of a learning path on "Go"`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	content := decodeContent(t, resp)

	var parsed struct {
		Modules []struct {
			Title string `json:"title"`
		} `json:"modules"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		t.Fatalf("unmarshal modules: %v", err)
	}
	if len(parsed.Modules) == 0 {
		t.Fatal("expected at least one module")
	}
}

func TestChatCompletionsUnknownPromptReturns404(t *testing.T) {
	s := newServer(nil)
	ts := httptest.NewServer(http.HandlerFunc(s.handleChatCompletions))
	defer ts.Close()

	resp := postChat(t, ts, "tell me a joke")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestFixtureSequenceThenFallback(t *testing.T) {
	fixtures := map[string][]string{
		stageEvaluateResearch: {
			`{"adequate": false, "missing_aspects": ["history"]}`,
			`{"adequate": true, "missing_aspects": []}`,
		},
	}
	s := newServer(fixtures)
	ts := httptest.NewServer(http.HandlerFunc(s.handleChatCompletions))
	defer ts.Close()

	prompt := "You are evaluating whether the research collected so far is sufficient"

	first := decodeContent(t, postChat(t, ts, prompt))
	if !strings.Contains(first, `"adequate": false`) {
		t.Errorf("first call = %s, want inadequate", first)
	}

	second := decodeContent(t, postChat(t, ts, prompt))
	if !strings.Contains(second, `"adequate": true`) {
		t.Errorf("second call = %s, want adequate", second)
	}

	// Past the sequence the last fixture repeats.
	third := decodeContent(t, postChat(t, ts, prompt))
	if third != second {
		t.Errorf("third call should repeat the last fixture")
	}
}

func TestStatsCountsByStage(t *testing.T) {
	s := newServer(nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/stats", s.handleStats)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	postChat(t, ts, `Design the module outline of a learning path on "Go"`).Body.Close()
	postChat(t, ts, `Design the module outline of a learning path on "Go"`).Body.Close()
	postChat(t, ts, `Write the full content for one submodule of a learning path`).Body.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	defer resp.Body.Close()

	var stats struct {
		TotalCalls   int64            `json:"total_calls"`
		CallsByStage map[string]int64 `json:"calls_by_stage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalCalls != 3 {
		t.Errorf("total_calls = %d, want 3", stats.TotalCalls)
	}
	if stats.CallsByStage[stagePlanModules] != 2 {
		t.Errorf("plan_modules calls = %d, want 2", stats.CallsByStage[stagePlanModules])
	}
}

func TestRequestsCaptureAndFilter(t *testing.T) {
	s := newServer(nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/requests", s.handleRequests)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	postChat(t, ts, `Design the module outline of a learning path on "Go"`).Body.Close()
	postChat(t, ts, `Write the full content for one submodule of a learning path`).Body.Close()

	resp, err := http.Get(ts.URL + "/requests?stage=" + stagePlanModules)
	if err != nil {
		t.Fatalf("get requests: %v", err)
	}
	defer resp.Body.Close()

	var captured struct {
		RequestsByStage map[string][]capturedRequest `json:"requests_by_stage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&captured); err != nil {
		t.Fatalf("decode requests: %v", err)
	}
	if len(captured.RequestsByStage) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(captured.RequestsByStage))
	}
	reqs := captured.RequestsByStage[stagePlanModules]
	if len(reqs) != 1 || reqs[0].CallIndex != 1 {
		t.Errorf("unexpected captured requests: %+v", reqs)
	}
}

func TestLoadFixturesNumberedOrder(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "evaluate_research.2.json", `{"adequate": true}`)
	writeFixture(t, dir, "evaluate_research.1.json", `{"adequate": false}`)
	writeFixture(t, dir, "evaluate_research.json", `{"adequate": true, "missing_aspects": []}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	seq := fixtures["evaluate_research"]
	if len(seq) != 3 {
		t.Fatalf("expected 3 fixtures, got %d", len(seq))
	}
	if !strings.Contains(seq[0], "false") {
		t.Errorf("first fixture should be the inadequate one, got %s", seq[0])
	}
}

func TestLoadFixturesEmptyDirErrors(t *testing.T) {
	if _, err := loadFixtures(t.TempDir()); err == nil {
		t.Error("expected error for empty fixture dir")
	}
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
}
