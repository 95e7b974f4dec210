// Package config provides configuration loading and management for learnpath.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/learnpath/model"
)

// Config represents the complete learnpath configuration.
type Config struct {
	Engine  EngineConfig         `yaml:"engine"`
	Models  model.RegistryConfig `yaml:"models"`
	Search  SearchConfig         `yaml:"search"`
	Scrape  ScrapeConfig         `yaml:"scrape"`
	NATS    NATSConfig           `yaml:"nats"`
	Prompts PromptsConfig        `yaml:"prompts"`
	Log     LogConfig            `yaml:"log"`
}

// EngineConfig tunes the generation pipeline.
type EngineConfig struct {
	// MaxResearchLoops bounds the research refinement loop.
	MaxResearchLoops int `yaml:"max_research_loops"`
	// ModuleParallelism is the default per-request module fan-out.
	ModuleParallelism int `yaml:"module_parallelism"`
	// SearchParallelism is the default concurrent-search cap.
	SearchParallelism int `yaml:"search_parallelism"`
	// SubmoduleParallelism is the default concurrent submodule cap.
	SubmoduleParallelism int `yaml:"submodule_parallelism"`
	// LLMTimeout bounds one completion call.
	LLMTimeout time.Duration `yaml:"llm_timeout"`
	// SearchTimeout bounds one search call.
	SearchTimeout time.Duration `yaml:"search_timeout"`
	// InterBatchPause separates research search batches.
	InterBatchPause time.Duration `yaml:"inter_batch_pause"`
	// SnapshotTTL governs progress snapshot expiry.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// SearchConfig selects and authenticates the web search provider.
type SearchConfig struct {
	// Provider is the search backend ("tavily" or "brave").
	Provider string `yaml:"provider"`
	// APIKey authenticates with the provider. Supports ${ENV} expansion.
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`
	// MaxResults caps results per query.
	MaxResults int `yaml:"max_results"`
}

// ScrapeConfig controls search-result content enrichment.
type ScrapeConfig struct {
	// TopResults is how many items per submodule get scraped. 0 disables.
	TopResults int `yaml:"top_results"`
	// MaxChars caps extracted markdown per page.
	MaxChars int `yaml:"max_chars"`
	// Timeout bounds one page fetch.
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig configures the optional NATS connection for progress delivery.
type NATSConfig struct {
	// URL is the NATS server URL. Empty disables NATS features.
	URL string `yaml:"url"`
}

// PromptsConfig configures prompt template overrides.
type PromptsConfig struct {
	// Dir holds *.tmpl override files. Empty disables overrides.
	Dir string `yaml:"dir"`
	// Watch reloads overrides when files change.
	Watch bool `yaml:"watch"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxResearchLoops:     3,
			ModuleParallelism:    2,
			SearchParallelism:    3,
			SubmoduleParallelism: 2,
			LLMTimeout:           120 * time.Second,
			SearchTimeout:        30 * time.Second,
			InterBatchPause:      500 * time.Millisecond,
			SnapshotTTL:          24 * time.Hour,
		},
		Search: SearchConfig{
			Provider:   "tavily",
			APIKey:     "${TAVILY_API_KEY}",
			MaxResults: 5,
		},
		Scrape: ScrapeConfig{
			TopResults: 0,
			MaxChars:   8192,
			Timeout:    10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.MaxResearchLoops < 0 {
		return fmt.Errorf("engine.max_research_loops must not be negative")
	}
	if c.Engine.SearchParallelism < 1 || c.Engine.SubmoduleParallelism < 1 || c.Engine.ModuleParallelism < 1 {
		return fmt.Errorf("engine parallelism values must be >= 1")
	}
	if c.Search.Provider == "" {
		return fmt.Errorf("search.provider is required")
	}
	if c.Scrape.TopResults < 0 {
		return fmt.Errorf("scrape.top_results must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. ${VAR} references are
// expanded from the environment before parsing, so secrets stay out of the
// file itself.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Engine.MaxResearchLoops != 0 {
		c.Engine.MaxResearchLoops = other.Engine.MaxResearchLoops
	}
	if other.Engine.ModuleParallelism != 0 {
		c.Engine.ModuleParallelism = other.Engine.ModuleParallelism
	}
	if other.Engine.SearchParallelism != 0 {
		c.Engine.SearchParallelism = other.Engine.SearchParallelism
	}
	if other.Engine.SubmoduleParallelism != 0 {
		c.Engine.SubmoduleParallelism = other.Engine.SubmoduleParallelism
	}
	if other.Engine.LLMTimeout != 0 {
		c.Engine.LLMTimeout = other.Engine.LLMTimeout
	}
	if other.Engine.SearchTimeout != 0 {
		c.Engine.SearchTimeout = other.Engine.SearchTimeout
	}
	if other.Engine.InterBatchPause != 0 {
		c.Engine.InterBatchPause = other.Engine.InterBatchPause
	}
	if other.Engine.SnapshotTTL != 0 {
		c.Engine.SnapshotTTL = other.Engine.SnapshotTTL
	}

	if len(other.Models.Capabilities) > 0 || len(other.Models.Endpoints) > 0 {
		c.Models = other.Models
	}

	if other.Search.Provider != "" {
		c.Search.Provider = other.Search.Provider
	}
	if other.Search.APIKey != "" {
		c.Search.APIKey = other.Search.APIKey
	}
	if other.Search.BaseURL != "" {
		c.Search.BaseURL = other.Search.BaseURL
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Scrape.TopResults != 0 {
		c.Scrape.TopResults = other.Scrape.TopResults
	}
	if other.Scrape.MaxChars != 0 {
		c.Scrape.MaxChars = other.Scrape.MaxChars
	}
	if other.Scrape.Timeout != 0 {
		c.Scrape.Timeout = other.Scrape.Timeout
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	if other.Prompts.Dir != "" {
		c.Prompts.Dir = other.Prompts.Dir
		c.Prompts.Watch = other.Prompts.Watch
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}
