package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/prompts"
)

// Research stage progress spans [0, 0.35] of the run.
const (
	progressSeedQueries   = 0.05
	progressSearchesStart = 0.10
	progressSearchesEnd   = 0.30
	progressEvaluation    = 0.32
	progressResearchEnd   = 0.35
)

// Limits for the abridged research view fed to the evaluator and planner.
const (
	evalItemContentChars = 300
	evalSummaryMaxChars  = 12000
)

// generateSeedQueries asks for the fixed-size seed query set. If the model
// cannot produce a conforming set, the stage degrades to a single query made
// from the topic itself.
func (r *run) generateSeedQueries(ctx context.Context, st *runState) (stateDelta, error) {
	r.em.Emit(course.ProgressEvent{
		Message: "Generating search queries",
		Phase:   course.PhaseSearchQueries,
		Action:  course.ActionStarted,
	})

	var payload seedQueriesPayload
	err := r.completeStructured(ctx, prompts.SeedQueries, prompts.SeedQueriesVars{
		Topic:    st.Topic,
		Language: st.Language,
		Count:    seedQueryCount,
	}, schemaSeedQueries, &payload)

	var delta stateDelta
	switch {
	case err == nil:
		delta.SearchQueries = &payload.Queries
		delta.Steps = append(delta.Steps, fmt.Sprintf("Generated %d seed search queries", len(payload.Queries)))
	case isParseError(err):
		fallback := []course.SearchQuery{{Keywords: st.Topic, Rationale: "fallback"}}
		delta.SearchQueries = &fallback
		delta.Steps = append(delta.Steps, "Seed query generation degraded to fallback query")
		r.logger.Warn("Seed query generation failed, using fallback", "error", err)
	default:
		return delta, err
	}

	r.em.Emit(course.ProgressEvent{
		Message:         fmt.Sprintf("Generated %d search queries", len(*delta.SearchQueries)),
		Phase:           course.PhaseSearchQueries,
		Action:          course.ActionCompleted,
		OverallProgress: progressPtr(progressSeedQueries),
		Preview:         &course.Preview{SearchQueries: *delta.SearchQueries},
	})
	return delta, nil
}

// executeSeedSearches runs the seed queries and records the initial result
// set.
func (r *run) executeSeedSearches(ctx context.Context, st *runState) (stateDelta, error) {
	r.em.Emit(course.ProgressEvent{
		Message:         "Executing web searches",
		Phase:           course.PhaseWebSearches,
		Action:          course.ActionStarted,
		OverallProgress: progressPtr(progressSearchesStart),
	})

	results, err := r.executeSearches(ctx, st.SearchQueries, r.engine.cfg.InterBatchPause,
		func(done, total int) {
			span := progressSearchesEnd - progressSearchesStart
			p := progressSearchesStart + span*float64(done)/float64(total)
			r.em.Emit(course.ProgressEvent{
				Message:         fmt.Sprintf("Completed %d of %d searches", done, total),
				Phase:           course.PhaseWebSearches,
				Action:          course.ActionProcessing,
				OverallProgress: progressPtr(p),
			})
		})

	var delta stateDelta
	if err != nil {
		return delta, err
	}

	results = course.DeduplicateByURL(results)
	delta.SearchResults = &results
	delta.Steps = append(delta.Steps,
		fmt.Sprintf("Executed %d web searches (%d failed)", len(results), countFailed(results)))
	return delta, nil
}

// evaluateResearch asks whether the accumulated research suffices for
// planning. A non-conforming verdict counts as adequate so a flaky evaluator
// cannot stall the run.
func (r *run) evaluateResearch(ctx context.Context, st *runState) (stateDelta, error) {
	r.em.Emit(course.ProgressEvent{
		Message:         "Evaluating research sufficiency",
		Phase:           course.PhaseResearchEvaluation,
		Action:          course.ActionProcessing,
		OverallProgress: progressPtr(progressEvaluation),
	})

	var payload evaluationPayload
	err := r.completeStructured(ctx, prompts.EvaluateResearch, prompts.EvaluateResearchVars{
		Topic:          st.Topic,
		LoopCount:      st.ResearchLoop + 1,
		ResultsSummary: abridgeResults(st.SearchResults),
	}, schemaEvaluation, &payload)

	var delta stateDelta
	switch {
	case err == nil:
	case isParseError(err):
		payload = evaluationPayload{Adequate: true}
		delta.Steps = append(delta.Steps, "Research evaluation unparseable, treating research as adequate")
		r.logger.Warn("Research evaluation failed to parse, treating as adequate", "error", err)
	default:
		return delta, err
	}

	delta.ResearchAdequate = &payload.Adequate
	delta.MissingAspects = &payload.MissingAspects
	if payload.Adequate {
		delta.Steps = append(delta.Steps, "Research judged adequate")
	} else {
		delta.Steps = append(delta.Steps,
			fmt.Sprintf("Research missing %d aspects", len(payload.MissingAspects)))
	}
	return delta, nil
}

// generateRefinementQueries targets the evaluator's missing aspects. On a
// non-conforming reply the round proceeds with no queries; the loop counter
// still advances, so the loop always terminates.
func (r *run) generateRefinementQueries(ctx context.Context, st *runState) (stateDelta, error) {
	r.em.Emit(course.ProgressEvent{
		Message: "Refining research",
		Phase:   course.PhaseResearchRefinement,
		Action:  course.ActionStarted,
	})

	var payload queriesPayload
	err := r.completeStructured(ctx, prompts.RefinementQueries, prompts.RefinementQueriesVars{
		Topic:          st.Topic,
		MissingAspects: st.MissingAspects,
		Count:          r.engine.cfg.RefinementQueryCount,
	}, schemaQueries, &payload)

	var delta stateDelta
	switch {
	case err == nil:
		delta.SearchQueries = &payload.Queries
		delta.Steps = append(delta.Steps,
			fmt.Sprintf("Generated %d refinement queries", len(payload.Queries)))
	case isParseError(err):
		empty := []course.SearchQuery{}
		delta.SearchQueries = &empty
		delta.Steps = append(delta.Steps, "Refinement query generation failed, skipping round")
		r.logger.Warn("Refinement query generation failed", "error", err)
	default:
		return delta, err
	}
	return delta, nil
}

// executeRefinementSearches runs the refinement queries and appends their
// results to the accumulated set, then advances the loop counter.
func (r *run) executeRefinementSearches(ctx context.Context, st *runState) (stateDelta, error) {
	loopProgress := progressEvaluation +
		(progressResearchEnd-progressEvaluation)*float64(st.ResearchLoop+1)/float64(r.engine.cfg.MaxResearchLoops)
	r.em.Emit(course.ProgressEvent{
		Message:         fmt.Sprintf("Executing refinement searches (round %d)", st.ResearchLoop+1),
		Phase:           course.PhaseResearchRefinement,
		Action:          course.ActionProcessing,
		OverallProgress: progressPtr(loopProgress),
	})

	results, err := r.executeSearches(ctx, st.SearchQueries, r.engine.cfg.InterBatchPause, nil)

	var delta stateDelta
	if err != nil {
		return delta, err
	}

	merged := course.DeduplicateByURL(append(append([]course.SearchResult{}, st.SearchResults...), results...))
	nextLoop := st.ResearchLoop + 1
	delta.SearchResults = &merged
	delta.ResearchLoop = &nextLoop
	delta.Steps = append(delta.Steps,
		fmt.Sprintf("Refinement round %d added %d results", nextLoop, len(results)))
	return delta, nil
}

// abridgeResults renders accumulated results compactly for evaluation and
// planning prompts, capped so a long run cannot blow the context window.
func abridgeResults(results []course.SearchResult) string {
	var sb strings.Builder
	for _, res := range results {
		sb.WriteString(res.FormatForPrompt(evalItemContentChars))
		sb.WriteString("\n")
		if sb.Len() > evalSummaryMaxChars {
			break
		}
	}
	s := sb.String()
	if len(s) > evalSummaryMaxChars {
		s = s[:evalSummaryMaxChars] + "\n[truncated]"
	}
	return s
}

func countFailed(results []course.SearchResult) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
