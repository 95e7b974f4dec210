// Package main implements a mock LLM server for e2e testing.
// It serves OpenAI-compatible /v1/chat/completions responses without a real
// model: each request is classified into a generation stage by markers in the
// prompt text and answered with a deterministic, schema-conforming reply.
// This keeps end-to-end runs fast, offline, and repeatable.
//
// Usage:
//
//	mock-llm -port 11434 [-fixtures /path/to/fixtures]
//
// Fixture files override the built-in replies. They are named by stage
// (e.g. "plan_modules.json" answers module planning requests). Numbered
// files ("evaluate_research.1.json", "evaluate_research.2.json") form a
// per-stage sequence: the Nth call to that stage returns the Nth fixture,
// then the base file repeats. This enables testing inadequate→refine→adequate
// research loops.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Stage classification ---

// Stage names mirror the prompt template names the engine renders.
const (
	stageSeedQueries       = "seed_queries"
	stageEvaluateResearch  = "evaluate_research"
	stageRefinementQueries = "refinement_queries"
	stagePlanModules       = "plan_modules"
	stagePlanSubmodules    = "plan_submodules_for_module"
	stageSubmoduleQueries  = "submodule_queries"
	stageSubmoduleContent  = "submodule_content"
	stageUnknown           = "unknown"
)

// stageMarkers are matched against the prompt in order; the first hit wins.
// Each marker is a phrase unique to one default prompt template.
var stageMarkers = []struct {
	marker string
	stage  string
}{
	{"You are researching the topic", stageSeedQueries},
	{"You are evaluating whether the research", stageEvaluateResearch},
	{"is missing the following aspects", stageRefinementQueries},
	{"Design the module outline", stagePlanModules},
	{"into submodules", stagePlanSubmodules},
	{"You are researching one submodule", stageSubmoduleQueries},
	{"Write the full content for one submodule", stageSubmoduleContent},
}

func classifyPrompt(prompt string) string {
	for _, m := range stageMarkers {
		if strings.Contains(prompt, m.marker) {
			return m.stage
		}
	}
	return stageUnknown
}

// exactCountRe extracts the requested entry count from query prompts
// ("must contain exactly 5 entries").
var exactCountRe = regexp.MustCompile(`exactly (\d+) entries`)

func requestedCount(prompt string, fallback int) int {
	if m := exactCountRe.FindStringSubmatch(prompt); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// --- Built-in replies ---

func queriesReply(count int, label string) string {
	type query struct {
		Keywords  string `json:"keywords"`
		Rationale string `json:"rationale"`
	}
	queries := make([]query, count)
	for i := range queries {
		queries[i] = query{
			Keywords:  fmt.Sprintf("%s query %d", label, i+1),
			Rationale: "deterministic mock query",
		}
	}
	data, _ := json.Marshal(map[string]any{"queries": queries})
	return string(data)
}

func evaluationReply() string {
	return `{"adequate": true, "missing_aspects": []}`
}

func modulesReply() string {
	type module struct {
		Title             string   `json:"title"`
		Description       string   `json:"description"`
		CoreConcept       string   `json:"core_concept"`
		LearningObjective string   `json:"learning_objective"`
		Prerequisites     []string `json:"prerequisites"`
		KeyComponents     []string `json:"key_components"`
		ExpectedOutcomes  []string `json:"expected_outcomes"`
	}
	modules := make([]module, 3)
	for i := range modules {
		modules[i] = module{
			Title:             fmt.Sprintf("Mock Module %d", i+1),
			Description:       "Deterministic module for end-to-end testing.",
			CoreConcept:       "mock concept",
			LearningObjective: "verify the pipeline end to end",
			Prerequisites:     []string{"none"},
			KeyComponents:     []string{"component"},
			ExpectedOutcomes:  []string{"outcome"},
		}
	}
	data, _ := json.Marshal(map[string]any{"modules": modules})
	return string(data)
}

func submodulesReply() string {
	type submodule struct {
		Title             string   `json:"title"`
		Description       string   `json:"description"`
		DepthLevel        string   `json:"depth_level"`
		CoreConcept       string   `json:"core_concept"`
		LearningObjective string   `json:"learning_objective"`
		KeyComponents     []string `json:"key_components"`
	}
	subs := make([]submodule, 2)
	for i := range subs {
		subs[i] = submodule{
			Title:             fmt.Sprintf("Mock Submodule %d", i+1),
			Description:       "Deterministic submodule for end-to-end testing.",
			DepthLevel:        "basic",
			CoreConcept:       "mock concept",
			LearningObjective: "verify submodule authoring",
			KeyComponents:     []string{"component"},
		}
	}
	data, _ := json.Marshal(map[string]any{"submodules": subs})
	return string(data)
}

func contentReply() string {
	return "# Mock Submodule Content\n\nThis content is produced by the mock LLM server. " +
		"It is long enough to exercise summarization and markdown rendering in the CLI, " +
		"while staying fully deterministic across runs.\n"
}

func builtinReply(stage, prompt string) (string, bool) {
	switch stage {
	case stageSeedQueries:
		return queriesReply(requestedCount(prompt, 5), "seed"), true
	case stageEvaluateResearch:
		return evaluationReply(), true
	case stageRefinementQueries:
		return queriesReply(requestedCount(prompt, 3), "refinement"), true
	case stagePlanModules:
		return modulesReply(), true
	case stagePlanSubmodules:
		return submodulesReply(), true
	case stageSubmoduleQueries:
		return queriesReply(requestedCount(prompt, 5), "submodule"), true
	case stageSubmoduleContent:
		return contentReply(), true
	}
	return "", false
}

// --- Server ---

// capturedRequest stores the key fields of an incoming request for test
// verification via /requests.
type capturedRequest struct {
	Model     string        `json:"model"`
	Stage     string        `json:"stage"`
	Messages  []chatMessage `json:"messages"`
	CallIndex int           `json:"call_index"` // 1-indexed per-stage call number
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string // stage → ordered fixture contents
	calls    atomic.Int64        // total calls served

	// Per-stage call counters for sequential fixture selection.
	stageCalls   map[string]*atomic.Int64
	stageCallsMu sync.Mutex

	// Per-stage request capture for prompt verification in e2e tests.
	stageRequests   map[string][]capturedRequest
	stageRequestsMu sync.Mutex
}

func newServer(fixtures map[string][]string) *server {
	return &server{
		fixtures:      fixtures,
		stageCalls:    make(map[string]*atomic.Int64),
		stageRequests: make(map[string][]capturedRequest),
	}
}

func (s *server) captureRequest(stage string, req chatRequest, callIndex int) {
	s.stageRequestsMu.Lock()
	defer s.stageRequestsMu.Unlock()
	s.stageRequests[stage] = append(s.stageRequests[stage], capturedRequest{
		Model:     req.Model,
		Stage:     stage,
		Messages:  req.Messages,
		CallIndex: callIndex,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *server) stageCounter(stage string) *atomic.Int64 {
	s.stageCallsMu.Lock()
	defer s.stageCallsMu.Unlock()
	if c, ok := s.stageCalls[stage]; ok {
		return c
	}
	c := &atomic.Int64{}
	s.stageCalls[stage] = c
	return c
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory of per-stage fixture override files")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}

	fixtures := map[string][]string{}
	if *fixtureDir != "" {
		var err error
		fixtures, err = loadFixtures(*fixtureDir)
		if err != nil {
			log.Fatalf("Failed to load fixtures from %s: %v", *fixtureDir, err)
		}
		log.Printf("Loaded fixture overrides for %d stage(s) from %s", len(fixtures), *fixtureDir)
		for stage, seq := range fixtures {
			log.Printf("  stage: %s (%d fixture(s))", stage, len(seq))
		}
	}

	s := newServer(fixtures)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock LLM server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	prompt := lastUserMessage(req.Messages)
	stage := classifyPrompt(prompt)

	callNum := s.calls.Add(1)
	counter := s.stageCounter(stage)
	callIndex := int(counter.Add(1) - 1) // 0-indexed
	s.captureRequest(stage, req, callIndex+1)

	content, ok := s.reply(stage, prompt, callIndex)
	if !ok {
		log.Printf("[call %d] WARNING: unrecognized prompt (model=%q), returning error", callNum, req.Model)
		http.Error(w, "prompt does not match any known stage", http.StatusNotFound)
		return
	}

	log.Printf("[call %d] stage=%s call_index=%d model=%s", callNum, stage, callIndex+1, req.Model)

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(prompt) / 4, // rough estimate
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(prompt) + len(content)) / 4,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// reply resolves the response content: fixture sequence first, then the
// built-in deterministic reply.
func (s *server) reply(stage, prompt string, callIndex int) (string, bool) {
	if seq, ok := s.fixtures[stage]; ok && len(seq) > 0 {
		if callIndex < len(seq) {
			return seq[callIndex], true
		}
		return seq[len(seq)-1], true
	}
	return builtinReply(stage, prompt)
}

func lastUserMessage(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.stageCallsMu.Lock()
	callsByStage := make(map[string]int64, len(s.stageCalls))
	for stage, counter := range s.stageCalls {
		callsByStage[stage] = counter.Load()
	}
	s.stageCallsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_stage": callsByStage,
	})
}

// handleRequests returns captured request bodies for test assertions.
// Query params:
//   - stage: filter by stage name (optional)
//   - call: filter by call index, 1-indexed (optional)
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	stageFilter := r.URL.Query().Get("stage")
	callFilter := r.URL.Query().Get("call")

	s.stageRequestsMu.Lock()
	result := make(map[string][]capturedRequest)
	for stage, reqs := range s.stageRequests {
		if stageFilter != "" && stage != stageFilter {
			continue
		}
		if callFilter != "" {
			if callIdx, err := strconv.Atoi(callFilter); err == nil {
				for _, req := range reqs {
					if req.CallIndex == callIdx {
						result[stage] = append(result[stage], req)
					}
				}
				continue
			}
		}
		result[stage] = reqs
	}
	s.stageRequestsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requests_by_stage": result,
	})
}

// numberedFileRe matches files like "evaluate_research.1.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadFixtures reads JSON files from dir and returns stage → ordered content
// sequence. Numbered files come first in numeric order; the base file is
// appended as the repeating fallback.
func loadFixtures(dir string) (map[string][]string, error) {
	baseFiles := make(map[string]string)
	numberedFiles := make(map[string]map[int]string)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		content := string(data)

		if matches := numberedFileRe.FindStringSubmatch(info.Name()); matches != nil {
			stage := matches[1]
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[stage] == nil {
				numberedFiles[stage] = make(map[int]string)
			}
			numberedFiles[stage][index] = content
			return nil
		}

		stage := strings.TrimSuffix(info.Name(), ".json")
		baseFiles[stage] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	fixtures := make(map[string][]string)
	allStages := make(map[string]bool)
	for s := range baseFiles {
		allStages[s] = true
	}
	for s := range numberedFiles {
		allStages[s] = true
	}

	for stage := range allStages {
		var seq []string
		if numbered, ok := numberedFiles[stage]; ok {
			indices := make([]int, 0, len(numbered))
			for idx := range numbered {
				indices = append(indices, idx)
			}
			sort.Ints(indices)
			for _, idx := range indices {
				seq = append(seq, numbered[idx])
			}
		}
		if base, ok := baseFiles[stage]; ok {
			seq = append(seq, base)
		}
		if len(seq) > 0 {
			fixtures[stage] = seq
		}
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}
