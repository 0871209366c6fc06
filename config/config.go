// Package config loads rankit configuration from a YAML file with
// RANKIT_* environment overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig holds the Badger backend and index writer settings.
type StorageConfig struct {
	Path            string        `yaml:"path"`
	InMemory        bool          `yaml:"inMemory"`
	ConflictRetries int           `yaml:"conflictRetries"`
	RetryBaseDelay  time.Duration `yaml:"retryBaseDelay"`
	LevelGroupSize  int           `yaml:"levelGroupSize"`
	MinLevelSize    int           `yaml:"minLevelSize"`
}

// SearchConfig holds the searcher defaults.
type SearchConfig struct {
	// RankingRules overrides the rule order stored in the index when set.
	RankingRules []string  `yaml:"rankingRules"`
	TypoCeiling  int       `yaml:"typoCeiling"`
	DefaultLimit int       `yaml:"defaultLimit"`
	Concurrency  int       `yaml:"concurrency"`
	Geo          GeoConfig `yaml:"geo"`
}

// GeoConfig holds the geo sort parameters.
type GeoConfig struct {
	// Strategy is one of "dynamic", "iterative" or "rtree".
	Strategy            string  `yaml:"strategy"`
	CacheSize           int     `yaml:"cacheSize"`
	RtreeThreshold      uint64  `yaml:"rtreeThreshold"`
	MaxBucketSize       int     `yaml:"maxBucketSize"`
	DistanceErrorMargin float64 `yaml:"distanceErrorMargin"`
}

// LoggingConfig controls the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig controls the Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Load reads a YAML config file (if provided) on top of the defaults,
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file %s: %w", ErrInvalidConfig, path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:            "rankit.db",
			ConflictRetries: 5,
			RetryBaseDelay:  10 * time.Millisecond,
			LevelGroupSize:  4,
			MinLevelSize:    5,
		},
		Search: SearchConfig{
			TypoCeiling:  8,
			DefaultLimit: 20,
			Geo: GeoConfig{
				Strategy:            "dynamic",
				CacheSize:           1000,
				RtreeThreshold:      1000,
				MaxBucketSize:       1000,
				DistanceErrorMargin: 1.0,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "rankit",
		},
	}
}

// Validate checks that every value is in range.
func (c *Config) Validate() error {
	var problems []string
	if !c.Storage.InMemory && c.Storage.Path == "" {
		problems = append(problems, "storage.path is required unless storage.inMemory is set")
	}
	if c.Storage.ConflictRetries < 1 {
		problems = append(problems, fmt.Sprintf("storage.conflictRetries must be positive, got %d", c.Storage.ConflictRetries))
	}
	if c.Storage.RetryBaseDelay < 0 {
		problems = append(problems, fmt.Sprintf("storage.retryBaseDelay must not be negative, got %s", c.Storage.RetryBaseDelay))
	}
	if c.Storage.LevelGroupSize < 2 {
		problems = append(problems, fmt.Sprintf("storage.levelGroupSize must be at least 2, got %d", c.Storage.LevelGroupSize))
	}
	if c.Storage.MinLevelSize < 1 {
		problems = append(problems, fmt.Sprintf("storage.minLevelSize must be positive, got %d", c.Storage.MinLevelSize))
	}
	if c.Search.TypoCeiling < 0 {
		problems = append(problems, fmt.Sprintf("search.typoCeiling must not be negative, got %d", c.Search.TypoCeiling))
	}
	if c.Search.DefaultLimit < 1 {
		problems = append(problems, fmt.Sprintf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit))
	}
	if c.Search.Concurrency < 0 {
		problems = append(problems, fmt.Sprintf("search.concurrency must not be negative, got %d", c.Search.Concurrency))
	}
	switch strings.ToLower(c.Search.Geo.Strategy) {
	case "", "dynamic", "iterative", "rtree":
	default:
		problems = append(problems, fmt.Sprintf("search.geo.strategy %q is not one of dynamic, iterative, rtree", c.Search.Geo.Strategy))
	}
	if c.Search.Geo.CacheSize < 0 {
		problems = append(problems, fmt.Sprintf("search.geo.cacheSize must not be negative, got %d", c.Search.Geo.CacheSize))
	}
	if c.Search.Geo.MaxBucketSize < 1 {
		problems = append(problems, fmt.Sprintf("search.geo.maxBucketSize must be positive, got %d", c.Search.Geo.MaxBucketSize))
	}
	if margin := c.Search.Geo.DistanceErrorMargin; margin < 0 || math.IsNaN(margin) {
		problems = append(problems, fmt.Sprintf("search.geo.distanceErrorMargin must not be negative, got %v", margin))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides reads RANKIT_* environment variables and overrides the
// corresponding config fields. Malformed numbers are reported.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("RANKIT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if err := envBool("RANKIT_STORAGE_IN_MEMORY", &cfg.Storage.InMemory); err != nil {
		return err
	}
	if err := envInt("RANKIT_STORAGE_CONFLICT_RETRIES", &cfg.Storage.ConflictRetries); err != nil {
		return err
	}
	if v := os.Getenv("RANKIT_STORAGE_RETRY_BASE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: RANKIT_STORAGE_RETRY_BASE_DELAY: %w", ErrInvalidConfig, err)
		}
		cfg.Storage.RetryBaseDelay = d
	}
	if v := os.Getenv("RANKIT_SEARCH_RANKING_RULES"); v != "" {
		var rules []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				rules = append(rules, r)
			}
		}
		cfg.Search.RankingRules = rules
	}
	if err := envInt("RANKIT_SEARCH_TYPO_CEILING", &cfg.Search.TypoCeiling); err != nil {
		return err
	}
	if err := envInt("RANKIT_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit); err != nil {
		return err
	}
	if err := envInt("RANKIT_SEARCH_CONCURRENCY", &cfg.Search.Concurrency); err != nil {
		return err
	}
	if v := os.Getenv("RANKIT_SEARCH_GEO_STRATEGY"); v != "" {
		cfg.Search.Geo.Strategy = v
	}
	if err := envInt("RANKIT_SEARCH_GEO_CACHE_SIZE", &cfg.Search.Geo.CacheSize); err != nil {
		return err
	}
	if v := os.Getenv("RANKIT_SEARCH_GEO_RTREE_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: RANKIT_SEARCH_GEO_RTREE_THRESHOLD: %w", ErrInvalidConfig, err)
		}
		cfg.Search.Geo.RtreeThreshold = threshold
	}
	if err := envInt("RANKIT_SEARCH_GEO_MAX_BUCKET_SIZE", &cfg.Search.Geo.MaxBucketSize); err != nil {
		return err
	}
	if v := os.Getenv("RANKIT_SEARCH_GEO_DISTANCE_ERROR_MARGIN"); v != "" {
		margin, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: RANKIT_SEARCH_GEO_DISTANCE_ERROR_MARGIN: %w", ErrInvalidConfig, err)
		}
		cfg.Search.Geo.DistanceErrorMargin = margin
	}
	if v := os.Getenv("RANKIT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if err := envBool("RANKIT_METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("RANKIT_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}
	*dst = b
	return nil
}
