package engine

import (
	"context"
	"fmt"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/prompts"
)

const progressModulePlanning = 0.40

// planModules turns accumulated research into the ordered module outline.
// A desired count is honored by truncation when the planner over-delivers;
// under-delivery proceeds as-is with a warning step. If the planner's output
// never conforms, the run continues with an empty outline: the finalizer
// then produces an empty result, and the terminal error event tells
// observers why.
func (r *run) planModules(ctx context.Context, st *runState) (stateDelta, error) {
	r.em.Emit(course.ProgressEvent{
		Message:         "Planning modules",
		Phase:           course.PhaseModules,
		Action:          course.ActionStarted,
		OverallProgress: progressPtr(progressModulePlanning),
	})

	var payload modulesPayload
	err := r.completeStructured(ctx, prompts.PlanModules, prompts.PlanModulesVars{
		Topic:           st.Topic,
		Language:        st.Language,
		ResearchSummary: abridgeResults(st.SearchResults),
		DesiredCount:    r.req.DesiredModuleCount,
		MinCount:        r.engine.cfg.ModuleCountMin,
		MaxCount:        r.engine.cfg.ModuleCountMax,
	}, schemaModules, &payload)

	var delta stateDelta
	switch {
	case err == nil:
	case isParseError(err):
		empty := []course.Module{}
		delta.Modules = &empty
		delta.Steps = append(delta.Steps, "Module planning failed: no conforming module list")
		r.logger.Error("Module planning failed after retries", "error", err)
		r.em.Emit(course.ProgressEvent{
			Message: fmt.Sprintf("module planning failed [%s]", r.req.CorrelationID),
			Phase:   course.PhaseError,
			Action:  course.ActionError,
		})
		return delta, nil
	default:
		return delta, err
	}

	modules := payload.Modules
	if want := r.req.DesiredModuleCount; want > 0 {
		switch {
		case len(modules) > want:
			delta.Steps = append(delta.Steps,
				fmt.Sprintf("Warning: planner returned %d modules, truncated to %d", len(modules), want))
			modules = modules[:want]
		case len(modules) < want:
			delta.Steps = append(delta.Steps,
				fmt.Sprintf("Warning: planner returned %d modules, fewer than the %d requested", len(modules), want))
		}
	}

	delta.Modules = &modules
	delta.Steps = append(delta.Steps, fmt.Sprintf("Planned %d modules", len(modules)))

	r.em.Emit(course.ProgressEvent{
		Message:         fmt.Sprintf("Planned %d modules", len(modules)),
		Phase:           course.PhaseModules,
		Action:          course.ActionCompleted,
		OverallProgress: progressPtr(progressModulePlanning + 0.02),
		Preview:         &course.Preview{Modules: modules},
	})
	return delta, nil
}
