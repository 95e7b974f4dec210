package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/prompts"
)

// Developer stage progress spans [0.45, 0.95] of the run.
const (
	progressDevelopStart = 0.45
	progressDevelopEnd   = 0.95
)

// initSubmoduleProcessing flattens every (module, submodule) pair in
// row-major order and splits them into batches of submodule_parallelism.
// The batch pump is the only place engine-wide submodule concurrency is
// capped.
func (r *run) initSubmoduleProcessing(ctx context.Context, st *runState) (stateDelta, error) {
	var pairs []pair
	for m, module := range st.EnhancedModules {
		for s := range module.Submodules {
			pairs = append(pairs, pair{M: m, S: s})
		}
	}

	var delta stateDelta
	batches := [][]pair(nil)
	if len(pairs) > 0 {
		batches = Batch(pairs, r.req.SubmoduleParallelism)
	}
	zero := 0
	delta.Batches = &batches
	delta.CurrentBatch = &zero
	delta.Steps = append(delta.Steps,
		fmt.Sprintf("Developing %d submodules in %d batches", len(pairs), len(batches)))
	return delta, nil
}

// processSubmoduleBatch develops one batch of pairs concurrently. Each pair
// runs its own research-then-author sub-pipeline; a failing pair is recorded
// as a step and omitted, never blocking its peers. The node self-loops until
// all batches are consumed.
func (r *run) processSubmoduleBatch(ctx context.Context, st *runState) (stateDelta, error) {
	var delta stateDelta
	if st.CurrentBatch >= len(st.Batches) {
		// Route guard should have moved on already.
		return delta, newRunError(KindInternalInvariant, "batch pump ran past the last batch", nil)
	}

	batch := st.Batches[st.CurrentBatch]
	if r.engine.metrics != nil {
		r.engine.metrics.AddPairsInFlight(float64(len(batch)))
		defer r.engine.metrics.AddPairsInFlight(-float64(len(batch)))
	}

	tasks := make([]Task[course.DevelopedSubmodule], len(batch))
	for i, p := range batch {
		p := p
		tasks[i] = func(ctx context.Context) (course.DevelopedSubmodule, error) {
			return r.processOne(ctx, st, p)
		}
	}

	results := RunBounded(ctx, tasks, r.req.SubmoduleParallelism)

	for i, out := range results {
		p := batch[i]
		if out.Err != nil {
			if ctx.Err() != nil {
				return delta, ctx.Err()
			}
			delta.Steps = append(delta.Steps,
				fmt.Sprintf("submodule %d.%d failed: %s", p.M, p.S+1, sanitizeMessage(out.Err)))
			r.logger.Warn("Submodule development failed",
				"module", p.M, "submodule", p.S, "error", out.Err)
			continue
		}
		delta.Developed = append(delta.Developed, out.Value)
	}
	if err := ctx.Err(); err != nil {
		return delta, err
	}

	next := st.CurrentBatch + 1
	delta.CurrentBatch = &next

	done, total := pairsDone(st.Batches, next)
	p := progressDevelopStart + (progressDevelopEnd-progressDevelopStart)*float64(done)/float64(total)
	r.em.Emit(course.ProgressEvent{
		Message:         fmt.Sprintf("Developed %d of %d submodules", done, total),
		Phase:           course.PhaseSubmoduleContent,
		Action:          course.ActionProcessing,
		OverallProgress: progressPtr(p),
	})
	return delta, nil
}

// processOne runs the per-pair sub-pipeline: submodule-specific queries,
// bounded searches, optional scrape enrichment, then authoring.
func (r *run) processOne(ctx context.Context, st *runState, p pair) (course.DevelopedSubmodule, error) {
	var zero course.DevelopedSubmodule
	if p.M >= len(st.EnhancedModules) || p.S >= len(st.EnhancedModules[p.M].Submodules) {
		return zero, newRunError(KindInternalInvariant,
			fmt.Sprintf("pair (%d,%d) out of range", p.M, p.S), nil)
	}
	module := st.EnhancedModules[p.M]
	sub := module.Submodules[p.S]

	queries, err := r.submoduleQueries(ctx, st, module, sub, p)
	if err != nil {
		return zero, err
	}

	r.em.Emit(course.ProgressEvent{
		Message: fmt.Sprintf("Researching submodule %q", sub.Title),
		Phase:   course.PhaseSubmoduleResearch,
		Action:  course.ActionProcessing,
		Preview: &course.Preview{CurrentModule: module.Title, CurrentSubmodule: sub.Title},
	})

	results, err := r.executeSearches(ctx, queries, r.engine.cfg.InterBatchPause, nil)
	if err != nil {
		return zero, err
	}
	results = course.DeduplicateByURL(results)
	r.enrichResults(ctx, results)

	r.em.Emit(course.ProgressEvent{
		Message: fmt.Sprintf("Writing submodule %q", sub.Title),
		Phase:   course.PhaseSubmoduleContent,
		Action:  course.ActionProcessing,
		Preview: &course.Preview{CurrentModule: module.Title, CurrentSubmodule: sub.Title},
	})

	content, err := r.authorContent(ctx, st, module, sub, p, results)
	if err != nil {
		return zero, err
	}

	return course.DevelopedSubmodule{
		ModuleIndex:    p.M,
		SubmoduleIndex: p.S,
		Title:          sub.Title,
		Description:    sub.Description,
		Queries:        queries,
		Results:        results,
		Content:        content,
	}, nil
}

// submoduleQueries asks for queries specific to this pair. On repeated
// schema violations the pair degrades to a single query built from the
// module and submodule titles.
func (r *run) submoduleQueries(ctx context.Context, st *runState, module course.EnhancedModule, sub course.Submodule, p pair) ([]course.SearchQuery, error) {
	var payload queriesPayload
	err := r.completeStructured(ctx, prompts.SubmoduleQueries, prompts.SubmoduleQueriesVars{
		Topic:                st.Topic,
		Language:             st.Language,
		Style:                string(st.Style),
		ModuleTitle:          module.Title,
		ModuleDescription:    module.Description,
		SubmoduleTitle:       sub.Title,
		SubmoduleDescription: sub.Description,
		Position:             p.S + 1,
		SiblingCount:         len(module.Submodules),
		OutlineBrief:         outlineBrief(st.EnhancedModules),
		ModuleContext:        moduleContext(module, p.S),
		Count:                r.engine.cfg.SubmoduleQueryCount,
	}, schemaQueries, &payload)

	switch {
	case err == nil:
		return payload.Queries, nil
	case isParseError(err):
		r.logger.Warn("Submodule query generation failed, using fallback",
			"module", module.Title, "submodule", sub.Title, "error", err)
		return []course.SearchQuery{{
			Keywords:  module.Title + " " + sub.Title,
			Rationale: "fallback",
		}}, nil
	default:
		return nil, err
	}
}

// authorContent writes the submodule's teaching content. The reply is used
// verbatim apart from whitespace trimming; an empty reply fails the pair.
func (r *run) authorContent(ctx context.Context, st *runState, module course.EnhancedModule, sub course.Submodule, p pair, results []course.SearchResult) (string, error) {
	content, err := r.completeText(ctx, prompts.SubmoduleContent, prompts.SubmoduleContentVars{
		Topic:             st.Topic,
		Language:          st.Language,
		Style:             string(st.Style),
		ModuleSummary:     module.Title + ": " + module.Description,
		SubmoduleSummary:  sub.Title + ": " + sub.Description,
		PreviousSubmodule: adjacentSummary(module.Submodules, p.S-1, "no previous submodule"),
		NextSubmodule:     adjacentSummary(module.Submodules, p.S+1, "no next submodule"),
		SearchResults:     formatResults(results),
		OutlineMarked:     outlineMarked(st.EnhancedModules, p),
	})
	if err != nil {
		return "", err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("authoring returned empty content")
	}
	return content, nil
}

// enrichResults replaces search snippets with scraped page content for the
// top items, when a scraper is configured. Best-effort: a failed fetch keeps
// the snippet.
func (r *run) enrichResults(ctx context.Context, results []course.SearchResult) {
	limit := r.engine.cfg.ScrapeTopResults
	if r.engine.scraper == nil || limit <= 0 {
		return
	}

	scraped := 0
	for ri := range results {
		for ii := range results[ri].Items {
			if scraped >= limit {
				return
			}
			item := &results[ri].Items[ii]
			if item.URL == "" {
				continue
			}

			fetchCtx, cancel := context.WithTimeout(ctx, r.engine.cfg.ScrapeTimeout)
			content, err := r.engine.scraper.Scrape(fetchCtx, item.URL)
			cancel()
			if err != nil {
				r.logger.Debug("Scrape failed, keeping snippet", "url", item.URL, "error", err)
				continue
			}
			item.Content = content
			scraped++
		}
	}
}

// outlineBrief renders module titles and descriptions for global context.
func outlineBrief(modules []course.EnhancedModule) string {
	var sb strings.Builder
	for i, m := range modules {
		fmt.Fprintf(&sb, "Module %d: %s - %s\n", i+1, m.Title, m.Description)
	}
	return sb.String()
}

// moduleContext lists a module's submodules with the current one marked.
func moduleContext(module course.EnhancedModule, current int) string {
	var sb strings.Builder
	for i, s := range module.Submodules {
		marker := " "
		if i == current {
			marker = ">"
		}
		fmt.Fprintf(&sb, "%s %d. %s - %s\n", marker, i+1, s.Title, s.Description)
	}
	return sb.String()
}

// outlineMarked renders the full outline with the current pair marked.
func outlineMarked(modules []course.EnhancedModule, p pair) string {
	var sb strings.Builder
	for mi, m := range modules {
		fmt.Fprintf(&sb, "Module %d: %s\n", mi+1, m.Title)
		for si, s := range m.Submodules {
			marker := " "
			if mi == p.M && si == p.S {
				marker = ">"
			}
			fmt.Fprintf(&sb, "  %s %d.%d %s\n", marker, mi+1, si+1, s.Title)
		}
	}
	return sb.String()
}

func formatResults(results []course.SearchResult) string {
	var sb strings.Builder
	for _, res := range results {
		sb.WriteString(res.FormatForPrompt(0))
		sb.WriteString("\n")
	}
	return sb.String()
}

// adjacentSummary describes a neighbouring submodule or returns the sentinel
// at the edges.
func adjacentSummary(subs []course.Submodule, i int, sentinel string) string {
	if i < 0 || i >= len(subs) {
		return sentinel
	}
	return subs[i].Title + ": " + subs[i].Description
}

// pairsDone counts pairs in consumed batches and the total across all.
func pairsDone(batches [][]pair, consumed int) (done, total int) {
	for i, b := range batches {
		total += len(b)
		if i < consumed {
			done += len(b)
		}
	}
	if total == 0 {
		total = 1
	}
	return done, total
}

// sanitizeMessage strips an error down to its first line for step entries.
func sanitizeMessage(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
