package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/c360studio/learnpath/course"
)

// zeroTemp pins structured calls to deterministic sampling.
var zeroTemp = func() *float64 { v := 0.0; return &v }()

// completeStructured renders the template and calls the LLM, retrying schema
// violations up to cfg.StructuredRetries extra times. Each retry appends the
// violation to the prompt so the model can correct itself. Non-parse errors
// and cancellation return immediately; a final parse error is returned for
// the caller to apply its stage fallback.
func (r *run) completeStructured(ctx context.Context, template string, vars any, schema string, out any) error {
	prompt, err := r.engine.prompts.Render(template, vars)
	if err != nil {
		return newRunError(KindInternalInvariant, fmt.Sprintf("render template %s: %v", template, err), err)
	}

	var lastErr error
	attempt := prompt
	for i := 0; i <= r.engine.cfg.StructuredRetries; i++ {
		if i > 0 {
			attempt = prompt + fmt.Sprintf(
				"\n\nYour previous reply was rejected: %v\nReply again with only the requested JSON.", lastErr)
		}

		callCtx, cancel := context.WithTimeout(ctx, r.engine.cfg.LLMTimeout)
		err := r.engine.llm.CompleteStructured(callCtx, CompletionRequest{
			Template:    template,
			Prompt:      attempt,
			Temperature: zeroTemp,
		}, schema, out)
		cancel()

		if r.engine.metrics != nil {
			r.engine.metrics.RecordLLMCall(template, err)
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isParseError(err) {
			return err
		}

		lastErr = err
		r.logger.Warn("Structured output rejected, retrying",
			"template", template,
			"schema", schema,
			"attempt", i+1,
			"error", err)
	}
	return lastErr
}

// completeText renders the template and returns the free-form completion.
func (r *run) completeText(ctx context.Context, template string, vars any) (string, error) {
	prompt, err := r.engine.prompts.Render(template, vars)
	if err != nil {
		return "", newRunError(KindInternalInvariant, fmt.Sprintf("render template %s: %v", template, err), err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.engine.cfg.LLMTimeout)
	defer cancel()

	content, err := r.engine.llm.CompleteText(callCtx, CompletionRequest{
		Template: template,
		Prompt:   prompt,
	})
	if r.engine.metrics != nil {
		r.engine.metrics.RecordLLMCall(template, err)
	}
	return content, err
}

// executeSearches runs queries through the search capability, batched by
// search_parallelism, preserving query order. pause separates batches when
// positive. Failures arrive inside the results; the only error returned is
// cancellation.
func (r *run) executeSearches(ctx context.Context, queries []course.SearchQuery, pause time.Duration, onBatchDone func(done, total int)) ([]course.SearchResult, error) {
	results := make([]course.SearchResult, 0, len(queries))
	batches := Batch(queries, r.req.SearchParallelism)

	done := 0
	for bi, batch := range batches {
		tasks := make([]Task[course.SearchResult], len(batch))
		for i, q := range batch {
			q := q
			tasks[i] = func(ctx context.Context) (course.SearchResult, error) {
				callCtx, cancel := context.WithTimeout(ctx, r.engine.cfg.SearchTimeout)
				defer cancel()
				res := r.engine.search.Search(callCtx, q, r.req.Language)
				if r.engine.metrics != nil {
					r.engine.metrics.RecordSearch(res.Failed())
				}
				return res, nil
			}
		}

		for _, out := range RunBounded(ctx, tasks, r.req.SearchParallelism) {
			if out.Err != nil {
				// Only cancellation reaches here; searches absorb their own
				// failures.
				return results, out.Err
			}
			results = append(results, out.Value)
		}
		done += len(batch)
		if onBatchDone != nil {
			onBatchDone(done, len(queries))
		}

		if pause > 0 && bi < len(batches)-1 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	return results, nil
}
