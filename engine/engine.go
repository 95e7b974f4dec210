package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/metrics"
	"github.com/c360studio/learnpath/prompts"
)

// Config holds the engine-wide tuning knobs. Zero values are replaced by the
// listed defaults in New.
type Config struct {
	// MaxResearchLoops bounds the research refinement loop. Default 3.
	MaxResearchLoops int

	// RefinementQueryCount is how many queries each refinement round asks
	// for. Default 3.
	RefinementQueryCount int

	// SubmoduleQueryCount is how many queries each submodule's research asks
	// for. Default 5.
	SubmoduleQueryCount int

	// ModuleCountMin/Max bound the planner when no desired count is given.
	// Defaults 3 and 7.
	ModuleCountMin int
	ModuleCountMax int

	// StructuredRetries is how many extra attempts a structured call gets
	// after a schema violation. Default 2.
	StructuredRetries int

	// LLMTimeout bounds one completion call. Default 120s.
	LLMTimeout time.Duration

	// SearchTimeout bounds one search call. Default 30s.
	SearchTimeout time.Duration

	// ScrapeTimeout bounds one page fetch. Default 10s.
	ScrapeTimeout time.Duration

	// InterBatchPause is the pause between research search batches, to
	// respect provider rate limits. Default 500ms.
	InterBatchPause time.Duration

	// ScrapeTopResults is how many top search items per submodule get their
	// content enriched by scraping. 0 disables scraping.
	ScrapeTopResults int

	// SummaryMaxChars caps the derived submodule summary. Default 200.
	SummaryMaxChars int

	// SnapshotTTL is how long progress snapshots stay readable. Default 24h.
	SnapshotTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxResearchLoops == 0 {
		c.MaxResearchLoops = 3
	}
	if c.RefinementQueryCount == 0 {
		c.RefinementQueryCount = 3
	}
	if c.SubmoduleQueryCount == 0 {
		c.SubmoduleQueryCount = 5
	}
	if c.ModuleCountMin == 0 {
		c.ModuleCountMin = 3
	}
	if c.ModuleCountMax == 0 {
		c.ModuleCountMax = 7
	}
	if c.StructuredRetries == 0 {
		c.StructuredRetries = 2
	}
	if c.LLMTimeout == 0 {
		c.LLMTimeout = 120 * time.Second
	}
	if c.SearchTimeout == 0 {
		c.SearchTimeout = 30 * time.Second
	}
	if c.ScrapeTimeout == 0 {
		c.ScrapeTimeout = 10 * time.Second
	}
	if c.InterBatchPause == 0 {
		c.InterBatchPause = 500 * time.Millisecond
	}
	if c.SummaryMaxChars == 0 {
		c.SummaryMaxChars = 200
	}
	if c.SnapshotTTL == 0 {
		c.SnapshotTTL = DefaultSnapshotTTL
	}
	return c
}

// Engine generates learning paths. One Engine serves many concurrent runs;
// per-run state never crosses runs.
type Engine struct {
	llm     LLMCapability
	search  SearchCapability
	scraper ScrapeCapability
	store   SnapshotStore
	clock   Clock
	prompts *prompts.Library
	metrics *metrics.Recorder
	logger  *slog.Logger
	cfg     Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithScraper enables search-result content enrichment via scraping.
func WithScraper(s ScrapeCapability) Option {
	return func(e *Engine) { e.scraper = s }
}

// WithSnapshotStore enables latest-progress snapshots.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithClock overrides the event clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPrompts overrides the prompt library.
func WithPrompts(lib *prompts.Library) Option {
	return func(e *Engine) { e.prompts = lib }
}

// WithMetrics enables metric recording.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithConfig replaces the tuning knobs. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg.withDefaults() }
}

// New creates an engine over the given LLM and search capabilities.
func New(llmCap LLMCapability, searchCap SearchCapability, opts ...Option) *Engine {
	e := &Engine{
		llm:     llmCap,
		search:  searchCap,
		clock:   SystemClock{},
		prompts: prompts.NewLibrary(),
		logger:  slog.Default(),
		cfg:     Config{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request describes one generation run.
type Request struct {
	// Topic is the subject to build a learning path for. Required.
	Topic string

	// Language is a BCP-47-ish tag. Default "en".
	Language string

	// ExplanationStyle modifies authored prose. Default standard.
	ExplanationStyle course.ExplanationStyle

	// ModuleParallelism is reserved for per-module planning fan-out.
	// Default 2.
	ModuleParallelism int

	// SearchParallelism bounds concurrent searches within one stage.
	// Default 3.
	SearchParallelism int

	// SubmoduleParallelism bounds concurrent submodule sub-pipelines.
	// Default 2.
	SubmoduleParallelism int

	// DesiredModuleCount, when positive, asks the planner for exactly that
	// many modules; surplus is truncated, shortfall is kept with a warning.
	DesiredModuleCount int

	// DesiredSubmoduleCount works like DesiredModuleCount per module.
	DesiredSubmoduleCount int

	// CorrelationID is an opaque caller-supplied id used to key progress
	// snapshots and sanitized error messages. It is not the run id; that is
	// assigned when the run finalizes. Optional.
	CorrelationID string

	// Observer receives progress events. Optional.
	Observer ProgressSink
}

var languageTagRe = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{1,8})*$`)

// normalize applies defaults and validates. Invalid requests are the
// caller's bug, reported as KindInvalidInput.
func (r Request) normalize() (Request, error) {
	if r.Topic == "" {
		return r, errors.New("topic must not be empty")
	}
	if r.Language == "" {
		r.Language = "en"
	}
	if !languageTagRe.MatchString(r.Language) {
		return r, fmt.Errorf("unknown language tag %q", r.Language)
	}
	if r.ExplanationStyle == "" {
		r.ExplanationStyle = course.StyleStandard
	}
	if !r.ExplanationStyle.IsValid() {
		return r, fmt.Errorf("unsupported explanation style %q", r.ExplanationStyle)
	}

	if r.ModuleParallelism == 0 {
		r.ModuleParallelism = 2
	}
	if r.SearchParallelism == 0 {
		r.SearchParallelism = 3
	}
	if r.SubmoduleParallelism == 0 {
		r.SubmoduleParallelism = 2
	}
	if r.ModuleParallelism < 1 || r.SearchParallelism < 1 || r.SubmoduleParallelism < 1 {
		return r, errors.New("parallelism values must be >= 1")
	}
	if r.DesiredModuleCount < 0 || r.DesiredSubmoduleCount < 0 {
		return r, errors.New("desired counts must not be negative")
	}

	if r.CorrelationID == "" {
		r.CorrelationID = uuid.NewString()
	}
	return r, nil
}

// run carries the per-run wiring shared by all stage nodes.
type run struct {
	engine *Engine
	req    Request
	em     *Emitter
	logger *slog.Logger
}

// Run executes one generation end to end. It returns the finished path, or a
// *RunError whose Kind classifies the failure. Cancellation of ctx aborts at
// the next suspension point and reports KindCancelled.
func (e *Engine) Run(ctx context.Context, req Request) (*course.LearningPath, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, newRunError(KindInvalidInput, err.Error(), err)
	}

	logger := e.logger.With("correlation_id", req.CorrelationID, "topic", req.Topic)
	em := newEmitter(req.Observer, e.store, req.CorrelationID, e.cfg.SnapshotTTL, e.clock, logger)

	r := &run{engine: e, req: req, em: em, logger: logger}

	st := &runState{
		Topic:    req.Topic,
		Language: req.Language,
		Style:    req.ExplanationStyle,
	}

	logger.Info("Starting learning path generation",
		"language", req.Language,
		"style", req.ExplanationStyle)
	em.Emit(course.ProgressEvent{
		Message:         "Starting learning path generation",
		Phase:           course.PhaseInitialization,
		Action:          course.ActionStarted,
		OverallProgress: progressPtr(0),
	})

	started := e.clock.Now()
	runErr := r.graph().run(ctx, st)
	if e.metrics != nil {
		e.metrics.ObserveRun(e.clock.Now().Sub(started), runErr == nil)
	}

	if runErr != nil {
		return nil, r.failRun(st, runErr)
	}

	if st.Result == nil {
		return nil, r.failRun(st, newRunError(KindInternalInvariant, "run finished without a result", nil))
	}

	logger.Info("Learning path generation completed",
		"run_id", st.Result.RunID,
		"modules", len(st.Result.Modules))
	return st.Result, nil
}

// failRun converts a graph error into the terminal error event plus the
// returned *RunError. The event message is sanitized: kind plus correlation
// id, never internal detail.
func (r *run) failRun(st *runState, err error) *RunError {
	var re *RunError
	if !errors.As(err, &re) {
		kind := classifyError(err)
		message := err.Error()
		if kind == KindCancelled {
			message = "cancelled"
		}
		re = newRunError(kind, message, err)
	}
	re.Partial = st.Result

	r.logger.Error("Learning path generation failed",
		"kind", re.Kind,
		"error", err)
	r.em.Emit(course.ProgressEvent{
		Message: fmt.Sprintf("generation failed (%s) [%s]", re.Kind, r.req.CorrelationID),
		Phase:   course.PhaseError,
		Action:  course.ActionError,
	})
	return re
}

// graph wires the declarative stage graph for this run.
func (r *run) graph() *graph {
	maxLoops := r.engine.cfg.MaxResearchLoops
	g := &graph{
		start: nodeGenerateSearchQueries,
		nodes: map[string]graphNode{
			nodeGenerateSearchQueries: {fn: r.generateSeedQueries, next: nodeExecuteWebSearches},
			nodeExecuteWebSearches:    {fn: r.executeSeedSearches, next: nodeEvaluateResearch},
			nodeEvaluateResearch: {fn: r.evaluateResearch, route: func(st *runState) string {
				if st.ResearchAdequate || st.ResearchLoop >= maxLoops {
					return nodeCreateLearningPath
				}
				return nodeGenerateRefinementQueries
			}},
			nodeGenerateRefinementQueries: {fn: r.generateRefinementQueries, next: nodeExecuteRefinementSearches},
			nodeExecuteRefinementSearches: {fn: r.executeRefinementSearches, next: nodeEvaluateResearch},
			nodeCreateLearningPath:        {fn: r.planModules, next: nodePlanSubmodules},
			nodePlanSubmodules:            {fn: r.planSubmodules, next: nodeInitSubmoduleProcessing},
			nodeInitSubmoduleProcessing:   {fn: r.initSubmoduleProcessing, next: nodeProcessSubmoduleBatch},
			nodeProcessSubmoduleBatch: {fn: r.processSubmoduleBatch, route: func(st *runState) string {
				if st.CurrentBatch >= len(st.Batches) {
					return nodeFinalize
				}
				return nodeProcessSubmoduleBatch
			}},
			nodeFinalize: {fn: r.finalize, next: nodeEnd},
		},
	}
	if m := r.engine.metrics; m != nil {
		g.now = r.engine.clock.Now
		g.observe = m.ObserveStage
	}
	return g
}
