// Package course defines the domain types for generated learning paths:
// planner output (modules, submodules), research artifacts (queries, search
// results), developed content, and the progress events the engine streams
// while a generation run executes.
package course

// DepthLevel classifies how advanced a submodule's treatment is.
type DepthLevel string

const (
	DepthBasic        DepthLevel = "basic"
	DepthIntermediate DepthLevel = "intermediate"
	DepthAdvanced     DepthLevel = "advanced"
	DepthExpert       DepthLevel = "expert"
)

// IsValid checks if the depth level is one of the known values.
func (d DepthLevel) IsValid() bool {
	switch d {
	case DepthBasic, DepthIntermediate, DepthAdvanced, DepthExpert:
		return true
	}
	return false
}

// Module is one planned unit of the learning path, ordered by position in
// the planner's output list.
type Module struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	CoreConcept       string   `json:"core_concept,omitempty"`
	LearningObjective string   `json:"learning_objective,omitempty"`
	Prerequisites     []string `json:"prerequisites,omitempty"`
	KeyComponents     []string `json:"key_components,omitempty"`
	ExpectedOutcomes  []string `json:"expected_outcomes,omitempty"`
}

// Submodule is one planned unit within a module. Order is 1-based and always
// equals the submodule's position in its parent module plus one.
type Submodule struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Order             int        `json:"order"`
	DepthLevel        DepthLevel `json:"depth_level,omitempty"`
	CoreConcept       string     `json:"core_concept,omitempty"`
	LearningObjective string     `json:"learning_objective,omitempty"`
	KeyComponents     []string   `json:"key_components,omitempty"`
}

// EnhancedModule is a planned module together with its planned submodules.
type EnhancedModule struct {
	Module
	Submodules []Submodule `json:"submodules"`
}

// DevelopedSubmodule is the fully authored content for one (module,
// submodule) pair. Produced once by the developer stage and never mutated.
type DevelopedSubmodule struct {
	ModuleIndex    int            `json:"module_index"`
	SubmoduleIndex int            `json:"submodule_index"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Queries        []SearchQuery  `json:"queries,omitempty"`
	Results        []SearchResult `json:"results,omitempty"`
	Content        string         `json:"content"`
	Summary        string         `json:"summary,omitempty"`
}

// ExplanationStyle modifies the authored prose; it never affects structure.
type ExplanationStyle string

const (
	StyleStandard     ExplanationStyle = "standard"
	StyleSimple       ExplanationStyle = "simple"
	StyleTechnical    ExplanationStyle = "technical"
	StyleExample      ExplanationStyle = "example"
	StyleConceptual   ExplanationStyle = "conceptual"
	StyleGrumpyGenius ExplanationStyle = "grumpy_genius"
)

// IsValid checks if the style is one of the supported values.
func (s ExplanationStyle) IsValid() bool {
	switch s {
	case StyleStandard, StyleSimple, StyleTechnical, StyleExample, StyleConceptual, StyleGrumpyGenius:
		return true
	}
	return false
}
