package engine

import (
	"context"
	"fmt"
	"time"
)

// Node names. The research loop and the submodule batch pump are explicit
// edges with guards rather than inline loops, so cancellation checks and
// instrumentation sit in one place.
const (
	nodeGenerateSearchQueries     = "generate_search_queries"
	nodeExecuteWebSearches        = "execute_web_searches"
	nodeEvaluateResearch          = "evaluate_research_sufficiency"
	nodeGenerateRefinementQueries = "generate_refinement_queries"
	nodeExecuteRefinementSearches = "execute_refinement_searches"
	nodeCreateLearningPath        = "create_learning_path"
	nodePlanSubmodules            = "plan_submodules"
	nodeInitSubmoduleProcessing   = "initialize_submodule_processing"
	nodeProcessSubmoduleBatch     = "process_submodule_batch"
	nodeFinalize                  = "finalize"
	nodeEnd                       = "end"
)

// nodeFunc executes one stage against the current state and returns its
// delta. Nodes never mutate the state directly.
type nodeFunc func(ctx context.Context, st *runState) (stateDelta, error)

// graphNode pairs a stage with its outgoing edge. route, when set, picks the
// successor from post-merge state; next is the static edge otherwise.
type graphNode struct {
	fn    nodeFunc
	next  string
	route func(st *runState) string
}

// graph is the declarative stage graph for one run.
type graph struct {
	nodes map[string]graphNode
	start string

	// observe, when set, receives each node's wall-clock duration. now must
	// be set alongside it.
	observe func(node string, d time.Duration)
	now     func() time.Time
}

// run drives the graph from start to the end node. The delta of a failing
// node is still merged before the error propagates, so steps recorded up to
// the failure survive into partial results.
func (g *graph) run(ctx context.Context, st *runState) error {
	current := g.start
	for current != nodeEnd {
		if err := ctx.Err(); err != nil {
			return err
		}

		node, ok := g.nodes[current]
		if !ok {
			return newRunError(KindInternalInvariant,
				fmt.Sprintf("graph references unknown node %q", current), nil)
		}

		var nodeStart time.Time
		if g.observe != nil {
			nodeStart = g.now()
		}

		delta, err := node.fn(ctx, st)
		st.apply(delta)

		if g.observe != nil {
			g.observe(current, g.now().Sub(nodeStart))
		}
		if err != nil {
			return err
		}

		if node.route != nil {
			current = node.route(st)
		} else {
			current = node.next
		}
	}
	return nil
}
