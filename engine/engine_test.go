package engine_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/engine"
	"github.com/c360studio/learnpath/engine/enginetest"
	"github.com/c360studio/learnpath/metrics"
	"github.com/c360studio/learnpath/prompts"
)

func testConfig() engine.Config {
	return engine.Config{
		InterBatchPause: time.Nanosecond,
		LLMTimeout:      5 * time.Second,
		SearchTimeout:   5 * time.Second,
	}
}

func queriesJSON(n int, prefix string) string {
	var sb strings.Builder
	sb.WriteString(`{"queries":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"keywords":"%s query %d","rationale":"r%d"}`, prefix, i+1, i+1)
	}
	sb.WriteString(`]}`)
	return sb.String()
}

func modulesJSON(n int) string {
	var sb strings.Builder
	sb.WriteString(`{"modules":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"title":"Module %d","description":"about part %d"}`, i+1, i+1)
	}
	sb.WriteString(`]}`)
	return sb.String()
}

func submodulesJSON(module, n int) string {
	var sb strings.Builder
	sb.WriteString(`{"submodules":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"title":"Part %d.%d","description":"covers %d.%d","depth_level":"basic"}`, module, i+1, module, i+1)
	}
	sb.WriteString(`]}`)
	return sb.String()
}

var submoduleTitleRe = regexp.MustCompile(`(?m)^This submodule: ([^:]+):`)

// happyLLM answers every template the way the S1 scenario expects.
func happyLLM(moduleCount, subCount int) *enginetest.StubLLM {
	stub := enginetest.NewStubLLM()
	stub.Reply(prompts.SeedQueries, queriesJSON(5, "seed"))
	stub.Reply(prompts.EvaluateResearch, `{"adequate":true,"missing_aspects":[]}`)
	stub.Reply(prompts.RefinementQueries, queriesJSON(3, "refine"))
	stub.Reply(prompts.PlanModules, modulesJSON(moduleCount))
	stub.On(prompts.PlanSubmodulesForModule, func(call int, _ engine.CompletionRequest) (string, error) {
		return submodulesJSON(call, subCount), nil
	})
	stub.Reply(prompts.SubmoduleQueries, queriesJSON(2, "sub"))
	stub.On(prompts.SubmoduleContent, func(_ int, req engine.CompletionRequest) (string, error) {
		m := submoduleTitleRe.FindStringSubmatch(req.Prompt)
		if m == nil {
			return "", fmt.Errorf("prompt missing submodule marker")
		}
		return "content for " + strings.TrimSpace(m[1]), nil
	})
	return stub
}

func newTestEngine(llmStub engine.LLMCapability, searchStub engine.SearchCapability, opts ...engine.Option) *engine.Engine {
	opts = append([]engine.Option{
		engine.WithConfig(testConfig()),
		engine.WithClock(enginetest.FrozenClock{}),
	}, opts...)
	return engine.New(llmStub, searchStub, opts...)
}

func TestRunHappyPath(t *testing.T) {
	stub := happyLLM(3, 2)
	search := &enginetest.StubSearch{}
	sink := &enginetest.CollectSink{}
	eng := newTestEngine(stub, search)

	result, err := eng.Run(context.Background(), engine.Request{
		Topic:    "Binary search trees",
		Observer: sink,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "Binary search trees", result.Topic)
	assert.Equal(t, "en", result.Language)

	require.Len(t, result.Modules, 3)
	for mi, m := range result.Modules {
		assert.Equal(t, fmt.Sprintf("Module %d", mi+1), m.Title)
		require.Len(t, m.Submodules, 2, "module %d", mi)
		for si, s := range m.Submodules {
			assert.Equal(t, si+1, s.Order)
			assert.True(t, strings.HasPrefix(s.Content, "content for "), "content %q", s.Content)
			assert.NotEmpty(t, s.Summary)
		}
	}

	steps := strings.Join(result.ExecutionSteps, "\n")
	assert.Contains(t, steps, "seed search queries")
	assert.Contains(t, steps, "web searches")
	assert.Contains(t, steps, "Planned 3 modules")
	assert.Contains(t, steps, "Planned submodules")
	assert.Contains(t, steps, "Finalized learning path")

	assert.Equal(t, 1, sink.Count(course.PhaseCompletion, course.ActionCompleted))
	assert.Equal(t, 0, sink.Count(course.PhaseError, course.ActionError))
}

func TestRunRefinementThenSuccess(t *testing.T) {
	stub := happyLLM(3, 2)
	stub.On(prompts.EvaluateResearch, func(call int, _ engine.CompletionRequest) (string, error) {
		if call == 1 {
			return `{"adequate":false,"missing_aspects":["balancing"]}`, nil
		}
		return `{"adequate":true,"missing_aspects":[]}`, nil
	})
	search := &enginetest.StubSearch{}
	eng := newTestEngine(stub, search)

	result, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees"})
	require.NoError(t, err)

	assert.Equal(t, 2, stub.Calls(prompts.EvaluateResearch))
	steps := strings.Join(result.ExecutionSteps, "\n")
	assert.Contains(t, steps, "Executed 5 web searches")
	assert.Contains(t, steps, "Refinement round 1 added 3 results")
	require.Len(t, result.Modules, 3)
}

func TestRunResearchExhausted(t *testing.T) {
	stub := happyLLM(3, 2)
	stub.Reply(prompts.EvaluateResearch, `{"adequate":false,"missing_aspects":["more"]}`)
	eng := newTestEngine(stub, &enginetest.StubSearch{})

	result, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees"})
	require.NoError(t, err)

	// max loops (3) plus the initial evaluation.
	assert.Equal(t, 4, stub.Calls(prompts.EvaluateResearch))
	assert.Equal(t, 1, stub.Calls(prompts.PlanModules))
	require.Len(t, result.Modules, 3)
}

func TestRunPerSubmoduleFailure(t *testing.T) {
	stub := happyLLM(3, 2)
	base := submoduleTitleRe
	stub.On(prompts.SubmoduleContent, func(_ int, req engine.CompletionRequest) (string, error) {
		m := base.FindStringSubmatch(req.Prompt)
		if m == nil {
			return "", errors.New("prompt missing submodule marker")
		}
		title := strings.TrimSpace(m[1])
		if title == "Part 2.2" {
			return "", errors.New("authoring backend exploded")
		}
		return "content for " + title, nil
	})
	eng := newTestEngine(stub, &enginetest.StubSearch{})

	result, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees"})
	require.NoError(t, err)

	require.Len(t, result.Modules, 3)
	assert.Len(t, result.Modules[0].Submodules, 2)
	assert.Len(t, result.Modules[1].Submodules, 1, "failed pair must be absent")
	assert.Len(t, result.Modules[2].Submodules, 2)
	assert.Equal(t, "Part 2.1", result.Modules[1].Submodules[0].Title)

	steps := strings.Join(result.ExecutionSteps, "\n")
	assert.Contains(t, steps, "submodule 1.2 failed")
}

func TestRunDesiredModuleCountTruncation(t *testing.T) {
	stub := happyLLM(5, 2)
	eng := newTestEngine(stub, &enginetest.StubSearch{})

	result, err := eng.Run(context.Background(), engine.Request{
		Topic:              "Binary search trees",
		DesiredModuleCount: 2,
	})
	require.NoError(t, err)

	require.Len(t, result.Modules, 2)
	steps := strings.Join(result.ExecutionSteps, "\n")
	assert.Contains(t, steps, "truncated to 2")
}

func TestRunDesiredModuleCountShortfallWarns(t *testing.T) {
	stub := happyLLM(3, 2)
	eng := newTestEngine(stub, &enginetest.StubSearch{})

	result, err := eng.Run(context.Background(), engine.Request{
		Topic:              "Binary search trees",
		DesiredModuleCount: 5,
	})
	require.NoError(t, err)

	require.Len(t, result.Modules, 3, "no padding with synthetic modules")
	steps := strings.Join(result.ExecutionSteps, "\n")
	assert.Contains(t, steps, "fewer than the 5 requested")
}

func TestRunCancellationMidSubmodule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stub := happyLLM(3, 2)
	stub.On(prompts.SubmoduleContent, func(call int, req engine.CompletionRequest) (string, error) {
		if call > 2 {
			// First batch (submodule_parallelism=2) completed; cancel now.
			cancel()
			return "", ctx.Err()
		}
		m := submoduleTitleRe.FindStringSubmatch(req.Prompt)
		return "content for " + strings.TrimSpace(m[1]), nil
	})
	sink := &enginetest.CollectSink{}
	eng := newTestEngine(stub, &enginetest.StubSearch{})

	result, err := eng.Run(ctx, engine.Request{Topic: "Binary search trees", Observer: sink})
	require.Error(t, err)
	assert.Nil(t, result)

	var runErr *engine.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, engine.KindCancelled, runErr.Kind)

	assert.Equal(t, 1, sink.Count(course.PhaseError, course.ActionError))
	assert.Equal(t, 0, sink.Count(course.PhaseCompletion, course.ActionCompleted))
}

func TestRunInvalidInput(t *testing.T) {
	eng := newTestEngine(happyLLM(3, 2), &enginetest.StubSearch{})

	tests := []struct {
		name string
		req  engine.Request
	}{
		{"empty topic", engine.Request{}},
		{"negative parallelism", engine.Request{Topic: "t", SearchParallelism: -1}},
		{"bad style", engine.Request{Topic: "t", ExplanationStyle: "sarcastic"}},
		{"bad language", engine.Request{Topic: "t", Language: "not a tag!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Run(context.Background(), tt.req)
			var runErr *engine.RunError
			require.ErrorAs(t, err, &runErr)
			assert.Equal(t, engine.KindInvalidInput, runErr.Kind)
		})
	}
}

func TestRunSeedQueryFallback(t *testing.T) {
	stub := happyLLM(3, 1)
	stub.Reply(prompts.SeedQueries, "not json at all")
	search := &enginetest.StubSearch{}
	eng := newTestEngine(stub, search)

	result, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees"})
	require.NoError(t, err)

	// 3 attempts on the seed prompt, then one fallback query.
	assert.Equal(t, 3, stub.Calls(prompts.SeedQueries))
	steps := strings.Join(result.ExecutionSteps, "\n")
	assert.Contains(t, steps, "fallback query")
	assert.Contains(t, steps, "Executed 1 web searches")
}

func TestRunPlannerFailureYieldsEmptyResult(t *testing.T) {
	stub := happyLLM(3, 2)
	stub.Reply(prompts.PlanModules, `{"modules": "garbage"}`)
	sink := &enginetest.CollectSink{}
	eng := newTestEngine(stub, &enginetest.StubSearch{})

	result, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees", Observer: sink})
	require.NoError(t, err)

	assert.Empty(t, result.Modules)
	assert.Equal(t, 1, sink.Count(course.PhaseError, course.ActionError))
	steps := strings.Join(result.ExecutionSteps, "\n")
	assert.Contains(t, steps, "Module planning failed")
}

func TestRunStructureIsDeterministic(t *testing.T) {
	shapes := make([]string, 2)
	for i := range shapes {
		eng := newTestEngine(happyLLM(3, 2), &enginetest.StubSearch{})
		result, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees"})
		require.NoError(t, err)

		var sb strings.Builder
		for _, m := range result.Modules {
			fmt.Fprintf(&sb, "%s(", m.Title)
			for _, s := range m.Submodules {
				fmt.Fprintf(&sb, "%d:%s,", s.Order, s.Title)
			}
			sb.WriteString(")")
		}
		shapes[i] = sb.String()
	}
	assert.Equal(t, shapes[0], shapes[1])
}

func TestRunBoundedConcurrencyCaps(t *testing.T) {
	stub := happyLLM(3, 2)
	stub.Delay = 10 * time.Millisecond
	search := &enginetest.StubSearch{Delay: 10 * time.Millisecond}
	eng := newTestEngine(stub, search)

	_, err := eng.Run(context.Background(), engine.Request{
		Topic:                "Binary search trees",
		SearchParallelism:    3,
		SubmoduleParallelism: 2,
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, search.Peak(), 3, "search concurrency must respect search_parallelism")
	// Outside the developer stage LLM calls are sequential, so the global
	// peak is the submodule pipeline cap.
	assert.LessOrEqual(t, stub.Peak(), 2, "submodule pipelines must respect submodule_parallelism")
}

func TestRunProgressMonotonic(t *testing.T) {
	sink := &enginetest.CollectSink{}
	eng := newTestEngine(happyLLM(3, 2), &enginetest.StubSearch{})

	_, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees", Observer: sink})
	require.NoError(t, err)

	last := -1.0
	seen := 0
	for _, e := range sink.Events() {
		if e.OverallProgress == nil {
			continue
		}
		seen++
		assert.GreaterOrEqual(t, *e.OverallProgress, last, "progress regressed in %q", e.Message)
		last = *e.OverallProgress
	}
	assert.Greater(t, seen, 3)
	assert.Equal(t, 1.0, last)
}

func TestRunSnapshotStoreKeepsLatestOnly(t *testing.T) {
	store := &enginetest.MemorySnapshotStore{}
	eng := newTestEngine(happyLLM(3, 2), &enginetest.StubSearch{}, engine.WithSnapshotStore(store))

	_, err := eng.Run(context.Background(), engine.Request{
		Topic:         "Binary search trees",
		CorrelationID: "run-abc",
	})
	require.NoError(t, err)

	assert.Greater(t, store.Puts(), 1)
	assert.Equal(t, 1, store.Len(), "one key per run, overwritten in place")

	latest, ok := store.Latest("run-abc")
	require.True(t, ok)
	assert.Equal(t, course.PhaseCompletion, latest.Phase)
}

func TestRunBrokenSnapshotStoreDisabledAfterFirstFailure(t *testing.T) {
	store := &enginetest.MemorySnapshotStore{Err: errors.New("kv down")}
	eng := newTestEngine(happyLLM(3, 2), &enginetest.StubSearch{}, engine.WithSnapshotStore(store))

	_, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees"})
	require.NoError(t, err, "a failing snapshot store must not abort the run")
	assert.Equal(t, 1, store.Puts(), "store is abandoned after the first failure")
}

func TestRunSubmoduleQueryFallback(t *testing.T) {
	stub := happyLLM(1, 1)
	stub.Reply(prompts.SubmoduleQueries, "][ nonsense")
	search := &enginetest.StubSearch{}

	var captured []course.SearchQuery
	search.Handler = func(q course.SearchQuery) course.SearchResult {
		captured = append(captured, q)
		return course.SearchResult{Query: q.Keywords, Rationale: q.Rationale}
	}
	eng := newTestEngine(stub, search)

	result, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees"})
	require.NoError(t, err)
	require.Len(t, result.Modules, 1)
	require.Len(t, result.Modules[0].Submodules, 1)

	var fallback *course.SearchQuery
	for i := range captured {
		if captured[i].Rationale == "fallback" {
			fallback = &captured[i]
		}
	}
	require.NotNil(t, fallback, "fallback query should have been searched")
	assert.Equal(t, "Module 1 Part 1.1", fallback.Keywords)
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	eng := newTestEngine(happyLLM(2, 2), &enginetest.StubSearch{}, engine.WithMetrics(rec))

	_, err := eng.Run(context.Background(), engine.Request{Topic: "Binary search trees"})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["learnpath_run_duration_seconds"])
	assert.True(t, names["learnpath_stage_duration_seconds"])
	assert.True(t, names["learnpath_llm_calls_total"])
}
