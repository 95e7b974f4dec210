package prompts

// Variable bundles. Each template declares its inputs as a struct so callers
// cannot drift from the template contract the way free-form maps allow.

// SeedQueriesVars feeds the seed_queries template.
type SeedQueriesVars struct {
	Topic    string
	Language string
	Count    int
}

// EvaluateResearchVars feeds the evaluate_research template.
// ResultsSummary is an abridged view of accumulated search results.
type EvaluateResearchVars struct {
	Topic          string
	LoopCount      int
	ResultsSummary string
}

// RefinementQueriesVars feeds the refinement_queries template.
type RefinementQueriesVars struct {
	Topic          string
	MissingAspects []string
	Count          int
}

// PlanModulesVars feeds the plan_modules template. DesiredCount is zero when
// the caller leaves the module count to the planner (bounded 3..7 by prompt).
type PlanModulesVars struct {
	Topic           string
	Language        string
	ResearchSummary string
	DesiredCount    int
	MinCount        int
	MaxCount        int
}

// PlanSubmodulesVars feeds the plan_submodules_for_module template.
type PlanSubmodulesVars struct {
	Topic             string
	Language          string
	ModuleTitle       string
	ModuleDescription string
	ModulePosition    int // 1-based
	ModuleCount       int
	DesiredCount      int
}

// SubmoduleQueriesVars feeds the submodule_queries template. OutlineBrief is
// the abridged global outline (module titles and descriptions); ModuleContext
// lists all sibling submodules with the current one marked.
type SubmoduleQueriesVars struct {
	Topic                string
	Language             string
	Style                string
	ModuleTitle          string
	ModuleDescription    string
	SubmoduleTitle       string
	SubmoduleDescription string
	Position             int // 1-based within the module
	SiblingCount         int
	OutlineBrief         string
	ModuleContext        string
	Count                int
}

// SubmoduleContentVars feeds the submodule_content template.
// PreviousSubmodule/NextSubmodule carry "title: description" for the adjacent
// submodules, or a sentinel ("no previous submodule") at the edges.
type SubmoduleContentVars struct {
	Topic             string
	Language          string
	Style             string
	ModuleSummary     string
	SubmoduleSummary  string
	PreviousSubmodule string
	NextSubmodule     string
	SearchResults     string
	OutlineMarked     string
}
