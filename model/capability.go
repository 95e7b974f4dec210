// Package model provides capability-based model selection for generation
// stages. Instead of hardcoding model names, stages specify capabilities
// (research, planning, authoring) and the registry resolves them to available
// models with fallback chains.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "claude-sonnet", stages specify "planning" or "authoring".
type Capability string

const (
	// CapabilityResearch is for search query generation and topic exploration.
	CapabilityResearch Capability = "research"

	// CapabilityEvaluation is for judging research sufficiency and quality.
	CapabilityEvaluation Capability = "evaluation"

	// CapabilityPlanning is for curriculum structure: modules and submodules.
	CapabilityPlanning Capability = "planning"

	// CapabilityAuthoring is for long-form submodule content generation.
	CapabilityAuthoring Capability = "authoring"

	// CapabilityFast is for quick responses, simple tasks.
	CapabilityFast Capability = "fast"
)

// TemplateCapabilities maps prompt template names to their default capability.
// Used when no explicit capability or model is specified for a stage.
var TemplateCapabilities = map[string]Capability{
	"seed_queries":               CapabilityResearch,
	"evaluate_research":          CapabilityEvaluation,
	"refinement_queries":         CapabilityResearch,
	"plan_modules":               CapabilityPlanning,
	"plan_submodules_for_module": CapabilityPlanning,
	"submodule_queries":          CapabilityResearch,
	"submodule_content":          CapabilityAuthoring,
}

// CapabilityForTemplate returns the default capability for a prompt template.
// Returns CapabilityFast as fallback for unknown templates.
func CapabilityForTemplate(template string) Capability {
	if cap, ok := TemplateCapabilities[template]; ok {
		return cap
	}
	return CapabilityFast
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityResearch, CapabilityEvaluation, CapabilityPlanning, CapabilityAuthoring, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}
