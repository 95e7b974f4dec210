package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/learnpath/config"
	"github.com/c360studio/learnpath/course"
	"github.com/c360studio/learnpath/engine"
	"github.com/c360studio/learnpath/events"
	"github.com/c360studio/learnpath/llm"
	"github.com/c360studio/learnpath/metrics"
	"github.com/c360studio/learnpath/model"
	"github.com/c360studio/learnpath/prompts"
	"github.com/c360studio/learnpath/scrape"
	"github.com/c360studio/learnpath/search"
)

type generateFlags struct {
	configPath            string
	language              string
	style                 string
	moduleParallelism     int
	searchParallelism     int
	submoduleParallelism  int
	desiredModuleCount    int
	desiredSubmoduleCount int
	output                string
	format                string
	metricsAddr           string
	quiet                 bool
}

func generateCmd() *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate a learning path for a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVarP(&flags.language, "language", "l", "", "Output language tag (default en)")
	cmd.Flags().StringVarP(&flags.style, "style", "s", "", "Explanation style (standard, simple, technical, example, conceptual, grumpy_genius)")
	cmd.Flags().IntVar(&flags.moduleParallelism, "module-parallelism", 0, "Module planning fan-out")
	cmd.Flags().IntVar(&flags.searchParallelism, "search-parallelism", 0, "Concurrent web searches")
	cmd.Flags().IntVar(&flags.submoduleParallelism, "submodule-parallelism", 0, "Concurrent submodule pipelines")
	cmd.Flags().IntVar(&flags.desiredModuleCount, "modules", 0, "Exact module count to request")
	cmd.Flags().IntVar(&flags.desiredSubmoduleCount, "submodules", 0, "Exact submodule count per module to request")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "-", "Output file, or - for stdout")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format (json, markdown)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress progress rendering")

	return cmd
}

func runGenerate(ctx context.Context, topic string, flags generateFlags) error {
	// .env keeps API keys out of shell history; absence is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	correlationID := uuid.NewString()

	eng, publisher, cleanup, err := buildEngine(cfg, correlationID, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.metricsAddr != "" {
		go serveMetrics(flags.metricsAddr, logger)
	}

	sink := events.NewChannelSink(0, logger)
	var observer engine.ProgressSink = sink
	if publisher != nil {
		observer = multiSink{sink, publisher}
	}

	var render sync.WaitGroup
	render.Add(1)
	go func() {
		defer render.Done()
		renderProgress(sink.Events(), flags.quiet)
	}()

	result, err := eng.Run(ctx, engine.Request{
		Topic:                 topic,
		Language:              flags.language,
		ExplanationStyle:      course.ExplanationStyle(flags.style),
		ModuleParallelism:     flags.moduleParallelism,
		SearchParallelism:     flags.searchParallelism,
		SubmoduleParallelism:  flags.submoduleParallelism,
		DesiredModuleCount:    flags.desiredModuleCount,
		DesiredSubmoduleCount: flags.desiredSubmoduleCount,
		CorrelationID:         correlationID,
		Observer:              observer,
	})
	sink.Close()
	render.Wait()

	if err != nil {
		return err
	}
	return writeResult(result, flags.output, flags.format)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.NewLoader(nil).Load()
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// serveMetrics exposes the default Prometheus registry for scraping. The
// server dies with the process; generation runs do not wait on it.
func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics server stopped", "addr", addr, "error", err)
	}
}

// multiSink fans one event out to every wrapped sink.
type multiSink []engine.ProgressSink

func (m multiSink) Emit(event course.ProgressEvent) {
	for _, s := range m {
		s.Emit(event)
	}
}

// buildEngine wires capabilities from config. The returned publisher is
// non-nil when NATS is configured; cleanup closes the NATS connection.
func buildEngine(cfg *config.Config, correlationID string, logger *slog.Logger) (*engine.Engine, *events.Publisher, func(), error) {
	cleanup := func() {}
	var publisher *events.Publisher

	registry := model.NewDefaultRegistry()
	if len(cfg.Models.Capabilities) > 0 || len(cfg.Models.Endpoints) > 0 {
		registry = model.FromConfig(&cfg.Models)
	}

	llmClient := llm.NewClient(registry,
		llm.WithTimeout(cfg.Engine.LLMTimeout),
		llm.WithLogger(logger))

	searchClient, err := search.NewClient(cfg.Search.Provider, cfg.Search.APIKey,
		search.WithBaseURL(cfg.Search.BaseURL),
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithTimeout(cfg.Engine.SearchTimeout),
		search.WithLogger(logger))
	if err != nil {
		return nil, nil, cleanup, err
	}

	lib := prompts.NewLibrary()
	if cfg.Prompts.Dir != "" {
		if err := prompts.LoadOverrides(lib, cfg.Prompts.Dir, logger); err != nil {
			return nil, nil, cleanup, err
		}
		if cfg.Prompts.Watch {
			watcher, err := prompts.WatchOverrides(lib, cfg.Prompts.Dir, logger)
			if err != nil {
				return nil, nil, cleanup, err
			}
			cleanup = func() { _ = watcher.Close() }
		}
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithPrompts(lib),
		engine.WithMetrics(metrics.NewRecorder(prometheus.DefaultRegisterer)),
		engine.WithConfig(engine.Config{
			MaxResearchLoops: cfg.Engine.MaxResearchLoops,
			LLMTimeout:       cfg.Engine.LLMTimeout,
			SearchTimeout:    cfg.Engine.SearchTimeout,
			ScrapeTimeout:    cfg.Scrape.Timeout,
			InterBatchPause:  cfg.Engine.InterBatchPause,
			ScrapeTopResults: cfg.Scrape.TopResults,
			SnapshotTTL:      cfg.Engine.SnapshotTTL,
		}),
	}

	if cfg.Scrape.TopResults > 0 {
		opts = append(opts, engine.WithScraper(scrape.NewScraper(
			scrape.WithMaxChars(cfg.Scrape.MaxChars),
			scrape.WithScrapeTimeout(cfg.Scrape.Timeout),
			scrape.WithLogger(logger))))
	}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(appName))
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("connect to NATS: %w", err)
		}
		prev := cleanup
		cleanup = func() {
			nc.Close()
			prev()
		}

		storeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := events.NewKVSnapshotStore(storeCtx, nc,
			events.WithSnapshotTTL(cfg.Engine.SnapshotTTL),
			events.WithSnapshotLogger(logger))
		cancel()
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("create snapshot store: %w", err)
		}
		opts = append(opts, engine.WithSnapshotStore(store))

		publisher, err = events.NewPublisher(nc, correlationID,
			events.WithPublisherLogger(logger))
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("create progress publisher: %w", err)
		}
	}

	return engine.New(engine.NewLLMAdapter(llmClient), searchClient, opts...), publisher, cleanup, nil
}

// renderProgress draws events as they arrive. Phase transitions get a
// colored prefix; errors go red.
func renderProgress(ch <-chan course.ProgressEvent, quiet bool) {
	phaseColor := color.New(color.FgCyan, color.Bold)
	errColor := color.New(color.FgRed, color.Bold)
	doneColor := color.New(color.FgGreen, color.Bold)

	for event := range ch {
		if quiet {
			continue
		}

		percent := ""
		if event.OverallProgress != nil {
			percent = fmt.Sprintf(" [%3.0f%%]", *event.OverallProgress*100)
		}

		switch {
		case event.Phase == course.PhaseError:
			errColor.Fprintf(os.Stderr, "error%s ", percent)
			fmt.Fprintln(os.Stderr, event.Message)
		case event.Phase == course.PhaseCompletion:
			doneColor.Fprintf(os.Stderr, "done%s ", percent)
			fmt.Fprintln(os.Stderr, event.Message)
		default:
			phaseColor.Fprintf(os.Stderr, "%s%s ", event.Phase, percent)
			fmt.Fprintln(os.Stderr, event.Message)
		}
	}
}

func writeResult(result *course.LearningPath, output, format string) error {
	var data []byte
	switch format {
	case "json":
		var err error
		data, err = json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		data = append(data, '\n')
	case "markdown":
		data = []byte(renderMarkdown(result))
	default:
		return fmt.Errorf("unknown format %q (want json or markdown)", format)
	}

	if output == "-" || output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(output, data, 0644)
}

func renderMarkdown(result *course.LearningPath) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", result.Topic)
	for mi, m := range result.Modules {
		fmt.Fprintf(&sb, "## Module %d: %s\n\n%s\n\n", mi+1, m.Title, m.Description)
		for _, s := range m.Submodules {
			fmt.Fprintf(&sb, "### %d.%d %s\n\n", mi+1, s.Order, s.Title)
			if s.Content != "" {
				sb.WriteString(s.Content)
				sb.WriteString("\n\n")
			}
		}
	}
	return sb.String()
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default user config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.NewLoader(nil).EnsureUserConfig()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(nil).Load()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	})
	return cmd
}
