package course

// LearningPath is the final structured artifact of one generation run.
type LearningPath struct {
	// RunID is assigned exactly once, by the finalizer stage.
	RunID    string `json:"run_id"`
	Topic    string `json:"topic"`
	Language string `json:"language"`

	// Modules preserve planner order; submodules within each module preserve
	// planner order and carry the developed content.
	Modules []PathModule `json:"modules"`

	// ExecutionSteps is the append-only audit trail accumulated across stages,
	// including degradation warnings and per-pair failure notes.
	ExecutionSteps []string `json:"execution_steps"`
}

// PathModule is a finalized module: planner metadata plus developed submodules.
type PathModule struct {
	Module
	Submodules []PathSubmodule `json:"submodules"`
}

// PathSubmodule is a finalized submodule with its authored content.
type PathSubmodule struct {
	Order             int        `json:"order"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	DepthLevel        DepthLevel `json:"depth_level,omitempty"`
	CoreConcept       string     `json:"core_concept,omitempty"`
	LearningObjective string     `json:"learning_objective,omitempty"`
	KeyComponents     []string   `json:"key_components,omitempty"`
	Content           string     `json:"content"`
	Summary           string     `json:"summary,omitempty"`
}
