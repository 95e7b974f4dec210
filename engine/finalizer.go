package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/c360studio/learnpath/course"
)

// finalize assembles the developed submodules into the result. Developed
// entries are sorted by (m,s) regardless of completion order; pairs that
// failed are simply absent from their module. The run id is minted here and
// nowhere else.
func (r *run) finalize(ctx context.Context, st *runState) (stateDelta, error) {
	var delta stateDelta

	developed := append([]course.DevelopedSubmodule{}, st.Developed...)
	sort.Slice(developed, func(i, j int) bool {
		if developed[i].ModuleIndex != developed[j].ModuleIndex {
			return developed[i].ModuleIndex < developed[j].ModuleIndex
		}
		return developed[i].SubmoduleIndex < developed[j].SubmoduleIndex
	})

	byModule := make(map[int][]course.DevelopedSubmodule)
	for _, d := range developed {
		if d.ModuleIndex >= len(st.EnhancedModules) ||
			d.SubmoduleIndex >= len(st.EnhancedModules[d.ModuleIndex].Submodules) {
			return delta, newRunError(KindInternalInvariant,
				fmt.Sprintf("developed pair (%d,%d) references no planned submodule", d.ModuleIndex, d.SubmoduleIndex), nil)
		}
		byModule[d.ModuleIndex] = append(byModule[d.ModuleIndex], d)
	}

	pathModules := make([]course.PathModule, 0, len(st.EnhancedModules))
	for mi, em := range st.EnhancedModules {
		pm := course.PathModule{Module: em.Module}
		for _, d := range byModule[mi] {
			planned := em.Submodules[d.SubmoduleIndex]
			pm.Submodules = append(pm.Submodules, course.PathSubmodule{
				Order:             planned.Order,
				Title:             planned.Title,
				Description:       planned.Description,
				DepthLevel:        planned.DepthLevel,
				CoreConcept:       planned.CoreConcept,
				LearningObjective: planned.LearningObjective,
				KeyComponents:     planned.KeyComponents,
				Content:           d.Content,
				Summary:           summarize(d, r.engine.cfg.SummaryMaxChars),
			})
		}
		pathModules = append(pathModules, pm)
	}

	steps := append([]string{}, st.Steps...)
	steps = append(steps, fmt.Sprintf("Finalized learning path with %d modules", len(pathModules)))

	result := &course.LearningPath{
		RunID:          uuid.NewString(),
		Topic:          st.Topic,
		Language:       st.Language,
		Modules:        pathModules,
		ExecutionSteps: steps,
	}
	delta.Result = result
	delta.Steps = steps[len(steps)-1:]

	r.em.Emit(course.ProgressEvent{
		Message:         "Learning path complete",
		Phase:           course.PhaseCompletion,
		Action:          course.ActionCompleted,
		OverallProgress: progressPtr(1.0),
	})
	return delta, nil
}

// summarize returns the submodule's summary, deriving one from the content
// head when the developer did not produce it.
func summarize(d course.DevelopedSubmodule, maxChars int) string {
	if d.Summary != "" {
		return d.Summary
	}
	content := strings.TrimSpace(d.Content)
	if len(content) <= maxChars {
		return content
	}
	return strings.TrimSpace(content[:maxChars]) + "..."
}
