package engine

import "github.com/c360studio/learnpath/course"

// pair identifies one submodule for development: indexes into the enhanced
// module list and into that module's submodule list.
type pair struct {
	M int
	S int
}

// runState is the shared state one run's graph executes over. It is confined
// to the run and mutated only by apply.
type runState struct {
	Topic            string
	Language         string
	Style            course.ExplanationStyle
	SearchQueries    []course.SearchQuery
	SearchResults    []course.SearchResult
	ResearchLoop     int
	ResearchAdequate bool
	MissingAspects   []string
	Modules          []course.Module
	EnhancedModules  []course.EnhancedModule
	Batches          [][]pair
	CurrentBatch     int
	Developed        []course.DevelopedSubmodule
	Steps            []string
	Result           *course.LearningPath
}

// stateDelta is a node's contribution to the run state. Nil pointer fields
// mean "no change"; Steps and Developed always append.
type stateDelta struct {
	Steps     []string
	Developed []course.DevelopedSubmodule

	SearchQueries   *[]course.SearchQuery
	SearchResults   *[]course.SearchResult
	MissingAspects  *[]string
	Modules         *[]course.Module
	EnhancedModules *[]course.EnhancedModule
	Batches         *[][]pair

	ResearchLoop     *int
	ResearchAdequate *bool
	CurrentBatch     *int
	Result           *course.LearningPath
}

// apply merges a delta into the state. Steps append; Developed appends then
// de-duplicates by (m,s) keeping the latest entry; other lists replace when
// the delta provides one; scalars are last-writer-wins.
func (st *runState) apply(d stateDelta) {
	st.Steps = append(st.Steps, d.Steps...)

	if len(d.Developed) > 0 {
		st.Developed = dedupeDeveloped(append(st.Developed, d.Developed...))
	}

	if d.SearchQueries != nil {
		st.SearchQueries = *d.SearchQueries
	}
	if d.SearchResults != nil {
		st.SearchResults = *d.SearchResults
	}
	if d.MissingAspects != nil {
		st.MissingAspects = *d.MissingAspects
	}
	if d.Modules != nil {
		st.Modules = *d.Modules
	}
	if d.EnhancedModules != nil {
		st.EnhancedModules = *d.EnhancedModules
	}
	if d.Batches != nil {
		st.Batches = *d.Batches
	}

	if d.ResearchLoop != nil {
		st.ResearchLoop = *d.ResearchLoop
	}
	if d.ResearchAdequate != nil {
		st.ResearchAdequate = *d.ResearchAdequate
	}
	if d.CurrentBatch != nil {
		st.CurrentBatch = *d.CurrentBatch
	}
	if d.Result != nil {
		st.Result = d.Result
	}
}

// dedupeDeveloped keeps the latest entry per (m,s), preserving the position
// of each pair's first occurrence.
func dedupeDeveloped(developed []course.DevelopedSubmodule) []course.DevelopedSubmodule {
	index := make(map[pair]int, len(developed))
	out := make([]course.DevelopedSubmodule, 0, len(developed))
	for _, d := range developed {
		key := pair{M: d.ModuleIndex, S: d.SubmoduleIndex}
		if at, seen := index[key]; seen {
			out[at] = d
			continue
		}
		index[key] = len(out)
		out = append(out, d)
	}
	return out
}
