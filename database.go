// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package rankit

import (
	"context"
	"log/slog"

	bdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/rankit/config"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/metrics"
	"github.com/poiesic/rankit/search"
	"github.com/poiesic/rankit/storage"
	"github.com/poiesic/rankit/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
)

const documentIDSequence = "document_id"

type Database struct {
	backend *badger.Backend
	writer  *badger.IndexWriter
	ids     *bdb.Sequence
	config  *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	config   *config.Config
	logger   *slog.Logger
	registry prometheus.Registerer
}

// WithConfig sets the configuration. Default is config.Default().
func WithConfig(cfg *config.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.config = cfg
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithRegisterer sets where search metrics are registered when metrics are
// enabled. Default is prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) DatabaseOption {
	return func(o *databaseOptions) {
		o.registry = reg
	}
}

// NewDatabase opens the index stored at filePath. An empty filePath uses
// the configured storage path.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		config: config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	cfg := options.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if filePath == "" {
		filePath = cfg.Storage.Path
	}

	backend, err := badger.OpenBackend(filePath, cfg.Storage.InMemory, badger.WithBackendLogger(options.logger))
	if err != nil {
		return nil, err
	}

	writer, err := badger.NewIndexWriter(backend,
		badger.WithLevelGrouping(cfg.Storage.LevelGroupSize, cfg.Storage.MinLevelSize),
		badger.WithConflictRetry(cfg.Storage.ConflictRetries, cfg.Storage.RetryBaseDelay),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}

	ids, err := backend.GetSequence(documentIDSequence)
	if err != nil {
		backend.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m, err = metrics.New(cfg.Metrics.Namespace, options.registry)
		if err != nil {
			ids.Release()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend: backend,
		writer:  writer,
		ids:     ids,
		config:  cfg,
		metrics: m,
		logger:  options.logger,
	}, nil
}

func (db *Database) Close() error {
	if err := db.ids.Release(); err != nil {
		db.logger.Error("error releasing document id sequence", "err", err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// IndexWriter returns the writer of the index.
func (db *Database) IndexWriter() *badger.IndexWriter {
	return db.writer
}

// Metrics returns the search metrics, or nil when they are disabled.
func (db *Database) Metrics() *metrics.Metrics {
	return db.metrics
}

// Config returns the configuration the database was opened with.
func (db *Database) Config() *config.Config {
	return db.config
}

// NextDocumentID allocates a document id never handed out before.
func (db *Database) NextDocumentID() (core.DocumentID, error) {
	next, err := db.ids.Next()
	if err != nil {
		return 0, err
	}
	return core.DocumentID(next), nil
}

// Snapshot opens a read-only view of the index. The caller must Close it.
func (db *Database) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	return db.backend.Snapshot(ctx)
}

// Settings returns the settings currently stored in the index.
func (db *Database) Settings(ctx context.Context) (*core.Settings, error) {
	snap, err := db.backend.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Close()
	return snap.Settings()
}

// NewSearcher creates a searcher configured from the database configuration.
// opts are applied after the configured ones.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	cfg := db.config.Search

	strategy, err := search.ParseGeoStrategy(cfg.Geo.Strategy, cfg.Geo.CacheSize, cfg.Geo.RtreeThreshold)
	if err != nil {
		return nil, err
	}
	configured := []search.Option{
		search.WithLogger(db.logger),
		search.WithTypoCeiling(cfg.TypoCeiling),
		search.WithGeoStrategy(strategy),
		search.WithMaxBucketSize(cfg.Geo.MaxBucketSize),
		search.WithDistanceErrorMargin(cfg.Geo.DistanceErrorMargin),
	}
	if len(cfg.RankingRules) > 0 {
		rules, err := search.ParseRuleSpecs(cfg.RankingRules)
		if err != nil {
			return nil, err
		}
		configured = append(configured, search.WithRankingRules(rules...))
	}
	if cfg.Concurrency > 0 {
		configured = append(configured, search.WithConcurrency(cfg.Concurrency))
	}
	if db.metrics != nil {
		configured = append(configured, search.WithMonitor(db.metrics))
	}

	return search.NewSearcher(db.backend, append(configured, opts...)...)
}
