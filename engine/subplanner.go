package engine

import (
	"context"
	"fmt"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/prompts"
)

const progressSubmodulePlanning = 0.45

// planSubmodules breaks each module into ordered submodules. Modules are
// processed sequentially: the cost is one structured call per module, and
// strict ordering keeps positional context in the prompts simple. A module
// whose plan never conforms keeps zero submodules and is noted in the steps.
func (r *run) planSubmodules(ctx context.Context, st *runState) (stateDelta, error) {
	var delta stateDelta
	enhanced := make([]course.EnhancedModule, 0, len(st.Modules))

	for mi, module := range st.Modules {
		r.em.Emit(course.ProgressEvent{
			Message: fmt.Sprintf("Planning submodules for module %d of %d", mi+1, len(st.Modules)),
			Phase:   course.PhaseSubmodulePlanning,
			Action:  course.ActionProcessing,
			Preview: &course.Preview{CurrentModule: module.Title},
		})

		subs, stepNotes, err := r.planOneModule(ctx, st, mi, module)
		if err != nil {
			delta.EnhancedModules = &enhanced
			return delta, err
		}
		delta.Steps = append(delta.Steps, stepNotes...)
		enhanced = append(enhanced, course.EnhancedModule{Module: module, Submodules: subs})
	}

	delta.EnhancedModules = &enhanced
	delta.Steps = append(delta.Steps,
		fmt.Sprintf("Planned submodules for %d modules (%d total)", len(enhanced), totalSubmodules(enhanced)))

	r.em.Emit(course.ProgressEvent{
		Message:         fmt.Sprintf("Planned %d submodules", totalSubmodules(enhanced)),
		Phase:           course.PhaseSubmodulePlanning,
		Action:          course.ActionCompleted,
		OverallProgress: progressPtr(progressSubmodulePlanning),
	})
	return delta, nil
}

func (r *run) planOneModule(ctx context.Context, st *runState, mi int, module course.Module) ([]course.Submodule, []string, error) {
	var payload submodulesPayload
	err := r.completeStructured(ctx, prompts.PlanSubmodulesForModule, prompts.PlanSubmodulesVars{
		Topic:             st.Topic,
		Language:          st.Language,
		ModuleTitle:       module.Title,
		ModuleDescription: module.Description,
		ModulePosition:    mi + 1,
		ModuleCount:       len(st.Modules),
		DesiredCount:      r.req.DesiredSubmoduleCount,
	}, schemaSubmodules, &payload)

	var steps []string
	switch {
	case err == nil:
	case isParseError(err):
		r.logger.Warn("Submodule planning failed for module", "module", module.Title, "error", err)
		return nil, []string{fmt.Sprintf("Warning: no conforming submodule plan for module %d (%s)", mi+1, module.Title)}, nil
	default:
		return nil, nil, err
	}

	subs := payload.Submodules
	if want := r.req.DesiredSubmoduleCount; want > 0 {
		switch {
		case len(subs) > want:
			steps = append(steps,
				fmt.Sprintf("Warning: module %d returned %d submodules, truncated to %d", mi+1, len(subs), want))
			subs = subs[:want]
		case len(subs) < want:
			steps = append(steps,
				fmt.Sprintf("Warning: module %d returned %d submodules, fewer than the %d requested", mi+1, len(subs), want))
		}
	}

	for i := range subs {
		subs[i].Order = i + 1
		if !subs[i].DepthLevel.IsValid() {
			subs[i].DepthLevel = course.DepthBasic
		}
	}
	return subs, steps, nil
}

func totalSubmodules(modules []course.EnhancedModule) int {
	n := 0
	for _, m := range modules {
		n += len(m.Submodules)
	}
	return n
}
