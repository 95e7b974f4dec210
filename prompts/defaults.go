package prompts

// Default template texts. Wording here is replaceable via overrides; the
// variable references and the JSON shapes requested are the contract.
var defaultTexts = map[string]string{

	SeedQueries: `You are researching the topic "{{.Topic}}" to build a structured learning path in language "{{.Language}}".

Generate exactly {{.Count}} web search queries that together cover the topic's fundamentals, terminology, practical applications, and common difficulties.

Respond with a JSON object of the form:
{"queries": [{"keywords": "...", "rationale": "..."}]}

The "queries" array must contain exactly {{.Count}} entries. No other text.`,

	EvaluateResearch: `You are evaluating whether the research collected so far is sufficient to plan a complete learning path on "{{.Topic}}". This is evaluation round {{.LoopCount}}.

Collected research (abridged):
{{.ResultsSummary}}

Decide whether this research adequately covers the topic for curriculum planning. If not, list the specific missing aspects.

Respond with a JSON object:
{"adequate": true|false, "missing_aspects": ["..."]}

No other text.`,

	RefinementQueries: `Research on "{{.Topic}}" is missing the following aspects:
{{range .MissingAspects}}- {{.}}
{{end}}
Generate {{.Count}} targeted web search queries that fill exactly these gaps.

Respond with a JSON object:
{"queries": [{"keywords": "...", "rationale": "..."}]}

No other text.`,

	PlanModules: `Design the module outline of a learning path on "{{.Topic}}" in language "{{.Language}}".

Research summary:
{{.ResearchSummary}}

{{if .DesiredCount}}Produce exactly {{.DesiredCount}} modules.{{else}}Produce between {{.MinCount}} and {{.MaxCount}} modules.{{end}}
Modules must progress from foundations to advanced material. For each module provide a title, a description, the core concept, a learning objective, prerequisites, key components, and expected outcomes.

Respond with a JSON object:
{"modules": [{"title": "...", "description": "...", "core_concept": "...", "learning_objective": "...", "prerequisites": ["..."], "key_components": ["..."], "expected_outcomes": ["..."]}]}

No other text.`,

	PlanSubmodulesForModule: `You are breaking module {{.ModulePosition}} of {{.ModuleCount}} of a learning path on "{{.Topic}}" (language "{{.Language}}") into submodules.

Module: {{.ModuleTitle}}
Description: {{.ModuleDescription}}

{{if .DesiredCount}}Produce exactly {{.DesiredCount}} submodules.{{else}}Produce 2 to 5 submodules.{{end}}
Each submodule needs a title, a description, a depth level (basic, intermediate, advanced, or expert), the core concept, a learning objective, and key components.

Respond with a JSON object:
{"submodules": [{"title": "...", "description": "...", "depth_level": "basic", "core_concept": "...", "learning_objective": "...", "key_components": ["..."]}]}

No other text.`,

	SubmoduleQueries: `You are researching one submodule of a learning path on "{{.Topic}}" (language "{{.Language}}", explanation style "{{.Style}}").

Course outline:
{{.OutlineBrief}}

Current module: {{.ModuleTitle}}
{{.ModuleDescription}}

Module context (current submodule marked):
{{.ModuleContext}}

Target submodule ({{.Position}} of {{.SiblingCount}}): {{.SubmoduleTitle}}
{{.SubmoduleDescription}}

Generate {{.Count}} web search queries that gather the material needed to author this specific submodule without duplicating its siblings.

Respond with a JSON object:
{"queries": [{"keywords": "...", "rationale": "..."}]}

No other text.`,

	SubmoduleContent: `Write the full content for one submodule of a learning path on "{{.Topic}}". Write in language "{{.Language}}" with explanation style "{{.Style}}".

Course outline (current submodule marked):
{{.OutlineMarked}}

Parent module: {{.ModuleSummary}}
This submodule: {{.SubmoduleSummary}}
Previous submodule: {{.PreviousSubmodule}}
Next submodule: {{.NextSubmodule}}

Research gathered for this submodule:
{{.SearchResults}}

Write thorough, well-structured markdown teaching content for this submodule. Build on the previous submodule and set up the next one; do not repeat their material. Ground claims in the research above. Output only the content.`,
}
