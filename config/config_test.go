package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Engine.MaxResearchLoops)
	assert.Equal(t, "tavily", cfg.Search.Provider)
	assert.Equal(t, 0, cfg.Scrape.TopResults, "scraping disabled by default")
	assert.Equal(t, 24*time.Hour, cfg.Engine.SnapshotTTL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative research loops", func(c *Config) { c.Engine.MaxResearchLoops = -1 }},
		{"zero parallelism", func(c *Config) { c.Engine.SearchParallelism = 0 }},
		{"missing provider", func(c *Config) { c.Search.Provider = "" }},
		{"negative scrape results", func(c *Config) { c.Scrape.TopResults = -1 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileExpandsEnv(t *testing.T) {
	t.Setenv("LEARNPATH_TEST_KEY", "secret-123")

	path := filepath.Join(t.TempDir(), "learnpath.yaml")
	content := `
search:
  provider: brave
  api_key: ${LEARNPATH_TEST_KEY}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "brave", cfg.Search.Provider)
	assert.Equal(t, "secret-123", cfg.Search.APIKey)
	assert.Equal(t, 3, cfg.Engine.MaxResearchLoops, "unset fields keep defaults")
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFileDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learnpath.yaml")
	content := `
engine:
  llm_timeout: 90s
  inter_batch_pause: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Engine.LLMTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.InterBatchPause)
}

func TestMergeNonZeroPrecedence(t *testing.T) {
	base := DefaultConfig()
	base.Merge(&Config{
		Engine: EngineConfig{MaxResearchLoops: 5},
		Search: SearchConfig{Provider: "brave"},
	})

	assert.Equal(t, 5, base.Engine.MaxResearchLoops)
	assert.Equal(t, "brave", base.Search.Provider)
	assert.Equal(t, 3, base.Engine.SearchParallelism, "zero values do not override")
	assert.Equal(t, "${TAVILY_API_KEY}", base.Search.APIKey)
}

func TestMergeNilIsNoop(t *testing.T) {
	base := DefaultConfig()
	base.Merge(nil)
	assert.Equal(t, "tavily", base.Search.Provider)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Search.Provider = "brave"
	cfg.Search.APIKey = "plain-key"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "brave", loaded.Search.Provider)
	assert.Equal(t, "plain-key", loaded.Search.APIKey)
}
