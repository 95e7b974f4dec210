package course

import "time"

// Phase identifies which part of a generation run a progress event describes.
type Phase string

const (
	PhaseInitialization     Phase = "initialization"
	PhaseSearchQueries      Phase = "search_queries"
	PhaseWebSearches        Phase = "web_searches"
	PhaseResearchEvaluation Phase = "research_evaluation"
	PhaseResearchRefinement Phase = "research_refinement"
	PhaseModules            Phase = "modules"
	PhaseSubmodulePlanning  Phase = "submodule_planning"
	PhaseSubmoduleResearch  Phase = "submodule_research"
	PhaseSubmoduleContent   Phase = "submodule_content"
	PhaseCompletion         Phase = "completion"
	PhaseError              Phase = "error"
	PhaseConnection         Phase = "connection"
)

// Action describes the transition an event reports within its phase.
type Action string

const (
	ActionStarted      Action = "started"
	ActionProcessing   Action = "processing"
	ActionCompleted    Action = "completed"
	ActionError        Action = "error"
	ActionConnected    Action = "connected"
	ActionHistorySaved Action = "history_saved"
)

// Preview carries small snapshots of intermediate artifacts so observers can
// render partial results before the run finishes.
type Preview struct {
	Modules          []Module      `json:"modules,omitempty"`
	SearchQueries    []SearchQuery `json:"search_queries,omitempty"`
	CurrentModule    string        `json:"current_module,omitempty"`
	CurrentSubmodule string        `json:"current_submodule,omitempty"`
}

// ProgressEvent is one structured update emitted during a run. Progress
// values, when present, lie in [0,1]; OverallProgress is non-decreasing
// across a run in emission order.
type ProgressEvent struct {
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
	Phase           Phase     `json:"phase,omitempty"`
	Action          Action    `json:"action,omitempty"`
	PhaseProgress   *float64  `json:"phase_progress,omitempty"`
	OverallProgress *float64  `json:"overall_progress,omitempty"`
	Preview         *Preview  `json:"preview,omitempty"`
}
