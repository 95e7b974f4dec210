package engine

import (
	"fmt"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/llm"
)

// Schema names passed to CompleteStructured. They identify the expected JSON
// shape for logging and parse-error reporting.
const (
	schemaSeedQueries = "seed_queries"
	schemaQueries     = "search_queries"
	schemaEvaluation  = "research_evaluation"
	schemaModules     = "module_list"
	schemaSubmodules  = "submodule_list"
)

// seedQueryCount is how many queries the seed prompt must produce.
const seedQueryCount = 5

// seedQueriesPayload is the seed prompt's output. The count is a hard
// contract; a reply with fewer or more queries is rejected and retried.
type seedQueriesPayload struct {
	Queries []course.SearchQuery `json:"queries"`
}

func (p *seedQueriesPayload) Validate() error {
	if len(p.Queries) != seedQueryCount {
		return llm.NewParseError(schemaSeedQueries,
			fmt.Sprintf("expected exactly %d queries, got %d", seedQueryCount, len(p.Queries)))
	}
	return validateQueries(schemaSeedQueries, p.Queries)
}

// queriesPayload is the output of refinement and submodule query prompts.
type queriesPayload struct {
	Queries []course.SearchQuery `json:"queries"`
}

func (p *queriesPayload) Validate() error {
	if len(p.Queries) == 0 {
		return llm.NewParseError(schemaQueries, "no queries returned")
	}
	return validateQueries(schemaQueries, p.Queries)
}

func validateQueries(schema string, queries []course.SearchQuery) error {
	for i, q := range queries {
		if q.Keywords == "" {
			return llm.NewParseError(schema, fmt.Sprintf("query %d has empty keywords", i))
		}
	}
	return nil
}

// evaluationPayload is the research adequacy verdict.
type evaluationPayload struct {
	Adequate       bool     `json:"adequate"`
	MissingAspects []string `json:"missing_aspects"`
}

// modulesPayload is the module planner's output.
type modulesPayload struct {
	Modules []course.Module `json:"modules"`
}

func (p *modulesPayload) Validate() error {
	if len(p.Modules) == 0 {
		return llm.NewParseError(schemaModules, "no modules returned")
	}
	for i, m := range p.Modules {
		if m.Title == "" {
			return llm.NewParseError(schemaModules, fmt.Sprintf("module %d has empty title", i))
		}
	}
	return nil
}

// submodulesPayload is the per-module submodule planner's output.
type submodulesPayload struct {
	Submodules []course.Submodule `json:"submodules"`
}

func (p *submodulesPayload) Validate() error {
	if len(p.Submodules) == 0 {
		return llm.NewParseError(schemaSubmodules, "no submodules returned")
	}
	for i, s := range p.Submodules {
		if s.Title == "" {
			return llm.NewParseError(schemaSubmodules, fmt.Sprintf("submodule %d has empty title", i))
		}
	}
	return nil
}
