package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rankit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "dynamic", cfg.Search.Geo.Strategy)
	assert.Equal(t, 1.0, cfg.Search.Geo.DistanceErrorMargin)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /var/lib/rankit
  retryBaseDelay: 25ms
search:
  rankingRules: [words, typo, "sort:price:asc"]
  typoCeiling: 4
  geo:
    strategy: rtree
    cacheSize: 2
    distanceErrorMargin: 5.5
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/rankit", cfg.Storage.Path)
	assert.Equal(t, 25*time.Millisecond, cfg.Storage.RetryBaseDelay)
	assert.Equal(t, 5, cfg.Storage.ConflictRetries, "unset values keep defaults")
	assert.Equal(t, []string{"words", "typo", "sort:price:asc"}, cfg.Search.RankingRules)
	assert.Equal(t, 4, cfg.Search.TypoCeiling)
	assert.Equal(t, "rtree", cfg.Search.Geo.Strategy)
	assert.Equal(t, 2, cfg.Search.Geo.CacheSize)
	assert.Equal(t, 5.5, cfg.Search.Geo.DistanceErrorMargin)
	assert.Equal(t, 1000, cfg.Search.Geo.MaxBucketSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "search: [unterminated"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeConfig(t, "search:\n  geo:\n    strategy: kdtree\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "kdtree")
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RANKIT_STORAGE_IN_MEMORY", "true")
	t.Setenv("RANKIT_SEARCH_RANKING_RULES", "words, geosort:asc ,")
	t.Setenv("RANKIT_SEARCH_GEO_RTREE_THRESHOLD", "50")
	t.Setenv("RANKIT_SEARCH_GEO_DISTANCE_ERROR_MARGIN", "2.5")
	t.Setenv("RANKIT_METRICS_ENABLED", "1")
	t.Setenv("RANKIT_LOGGING_LEVEL", "warn")

	path := writeConfig(t, "search:\n  geo:\n    rtreeThreshold: 10\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, []string{"words", "geosort:asc"}, cfg.Search.RankingRules)
	assert.Equal(t, uint64(50), cfg.Search.Geo.RtreeThreshold, "environment wins over the file")
	assert.Equal(t, 2.5, cfg.Search.Geo.DistanceErrorMargin)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_EnvMalformed(t *testing.T) {
	t.Setenv("RANKIT_SEARCH_TYPO_CEILING", "many")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no path", func(c *Config) { c.Storage.Path = "" }},
		{"no retries", func(c *Config) { c.Storage.ConflictRetries = 0 }},
		{"small group", func(c *Config) { c.Storage.LevelGroupSize = 1 }},
		{"negative typo ceiling", func(c *Config) { c.Search.TypoCeiling = -1 }},
		{"zero limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"zero bucket", func(c *Config) { c.Search.Geo.MaxBucketSize = 0 }},
		{"negative margin", func(c *Config) { c.Search.Geo.DistanceErrorMargin = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("in memory needs no path", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Path = ""
		cfg.Storage.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}
