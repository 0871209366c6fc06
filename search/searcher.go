package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/facet"
	"github.com/poiesic/rankit/query"
	"github.com/poiesic/rankit/storage"
)

// DefaultLimit is the page size of a request without a limit.
const DefaultLimit = 20

// NumericFilter restricts a search to documents whose numeric value of
// Field lies between Low and High.
type NumericFilter struct {
	Field string
	Low   facet.Bound
	High  facet.Bound
}

// Request describes one search.
type Request struct {
	// Query is the tree to rank with. It is cloned, never modified.
	Query *query.Operation
	// Mapping maps the leaves of Query to word positions. When nil, leaves
	// are labeled left to right.
	Mapping query.Mapping
	// Text is parsed into a tree when Query is nil. Without either the
	// search ranks every document.
	Text string

	// Rules overrides the ranking rules of the searcher and of the index.
	Rules []RuleSpec

	Offset int
	// Limit defaults to DefaultLimit.
	Limit int

	Filters []NumericFilter

	// Geo overrides the geo parameters of the searcher. Zero fields keep
	// the searcher values.
	Geo *GeoParams
}

// Result is a page of ranked documents.
type Result struct {
	DocumentIDs        []core.DocumentID
	EstimatedTotalHits uint64
}

// Searcher runs ranked searches over snapshots of an index.
// A Searcher is safe for concurrent use.
type Searcher struct {
	snapshots   storage.Snapshotter
	logger      *slog.Logger
	monitor     SearchMonitor
	rules       []RuleSpec
	typoCeiling int
	geo         GeoParams
	pool        *ants.Pool
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMonitor sets the monitor notified of every search.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// WithRankingRules sets the rules used when a request has none.
// Default is the rule order stored in the index settings.
func WithRankingRules(rules ...RuleSpec) Option {
	return func(s *Searcher) error {
		s.rules = rules
		return nil
	}
}

// WithTypoCeiling bounds the typo budget explored by the typo rule.
// Default is DefaultTypoCeiling, also used for zero.
func WithTypoCeiling(ceiling int) Option {
	return func(s *Searcher) error {
		if ceiling < 0 {
			return fmt.Errorf("%w: typo ceiling %d", ErrInvalidOption, ceiling)
		}
		s.typoCeiling = ceiling
		return nil
	}
}

// WithGeoStrategy sets the strategy of geo sorts.
// Default is Dynamic(DefaultGeoRtreeThreshold).
func WithGeoStrategy(strategy GeoStrategy) Option {
	return func(s *Searcher) error {
		if strategy.CacheSize < 0 {
			return fmt.Errorf("%w: geo cache size %d", ErrInvalidOption, strategy.CacheSize)
		}
		s.geo.Strategy = strategy
		return nil
	}
}

// WithMaxBucketSize caps the size of geo sort buckets.
// Default is DefaultMaxBucketSize.
func WithMaxBucketSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			return fmt.Errorf("%w: max bucket size %d", ErrInvalidOption, size)
		}
		s.geo.MaxBucketSize = size
		return nil
	}
}

// WithDistanceErrorMargin sets the distance in meters under which geo
// sorted documents share a bucket.
// Default is DefaultDistanceErrorMargin.
func WithDistanceErrorMargin(meters float64) Option {
	return func(s *Searcher) error {
		if meters < 0 {
			return fmt.Errorf("%w: distance error margin %v", ErrInvalidOption, meters)
		}
		s.geo.DistanceErrorMargin = meters
		return nil
	}
}

// WithConcurrency sets the number of searches SearchMany runs at once.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithConcurrency(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// NewSearcher creates a searcher reading from snapshots.
func NewSearcher(snapshots storage.Snapshotter, opts ...Option) (*Searcher, error) {
	if snapshots == nil {
		return nil, ErrSnapshotterRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		snapshots:   snapshots,
		logger:      slog.Default(),
		monitor:     &noopMonitor{},
		typoCeiling: DefaultTypoCeiling,
		geo:         DefaultGeoParams(),
		pool:        pool,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}

	return s, nil
}

// Release releases the worker pool. The searcher should not be used after
// calling Release.
func (s *Searcher) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Search ranks the documents matching req and returns the requested page.
func (s *Searcher) Search(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		req = &Request{}
	}
	if req.Offset < 0 {
		return nil, fmt.Errorf("%w: offset %d", ErrInvalidOption, req.Offset)
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrInvalidOption, req.Limit)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchAborted, err)
	}
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Close()

	sctx, err := NewContext(ctx, snap, nil)
	if err != nil {
		return nil, err
	}
	sctx.Logger = s.logger
	sctx.Monitor = s.monitor

	tree, mapping, err := s.queryTree(req, sctx.Settings)
	if err != nil {
		return nil, err
	}
	sctx.Mapping = mapping

	label := req.Text
	if tree != nil {
		label = tree.String()
	}
	s.monitor.Start(label)

	universe, err := s.universe(sctx, req.Filters, tree)
	if err != nil {
		s.monitor.Abort(err)
		return nil, err
	}

	rules, err := s.rankingRules(req, sctx.Settings)
	if err != nil {
		s.monitor.Abort(err)
		return nil, err
	}

	sorted, err := BucketSort(sctx, rules, tree, universe, req.Offset, limit)
	if err != nil {
		s.logger.Error("search failed", "query", label, "err", err)
		return nil, err
	}

	s.monitor.Finish(sorted.Documents, sorted.Total)
	return &Result{DocumentIDs: sorted.Documents, EstimatedTotalHits: sorted.Total}, nil
}

// SearchMany runs the requests concurrently, each on its own snapshot.
// Results are in request order; failed searches leave a nil result and
// their errors are joined.
func (s *Searcher) SearchMany(ctx context.Context, reqs ...*Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = s.Search(ctx, req)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

func (s *Searcher) queryTree(req *Request, settings *core.Settings) (*query.Operation, query.Mapping, error) {
	switch {
	case req.Query != nil:
		tree := req.Query.Clone()
		mapping := req.Mapping
		if mapping == nil {
			mapping = query.BuildMapping(tree)
		}
		if err := mapping.Validate(tree); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		return tree, mapping, nil
	case req.Text != "":
		tree, mapping, err := query.Parse(req.Text, settings)
		if errors.Is(err, query.ErrEmptyQuery) {
			return nil, nil, nil
		}
		return tree, mapping, err
	default:
		return nil, nil, nil
	}
}

// universe returns the documents passing the filters and matching tree
// within the typo ceiling.
func (s *Searcher) universe(ctx *Context, filters []NumericFilter, tree *query.Operation) (*roaring.Bitmap, error) {
	universe, err := ctx.Reader.DocumentIDs()
	if err != nil {
		return nil, err
	}

	for _, f := range filters {
		field, ok := ctx.Settings.FieldID(f.Field)
		if !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownField, f.Field)
		}
		docids, err := facet.RangeDocids(ctx.Reader, field, f.Low, f.High)
		if err != nil {
			return nil, err
		}
		universe.And(docids)
	}

	if tree != nil && !universe.IsEmpty() {
		matching, err := resolveTypoBudget(ctx, tree, s.effectiveTypoCeiling())
		if err != nil {
			return nil, err
		}
		universe.And(matching)
	}
	return universe, nil
}

func (s *Searcher) effectiveTypoCeiling() int {
	if s.typoCeiling <= 0 {
		return DefaultTypoCeiling
	}
	return s.typoCeiling
}

func (s *Searcher) rankingRules(req *Request, settings *core.Settings) ([]RankingRule, error) {
	specs := req.Rules
	if len(specs) == 0 {
		specs = s.rules
	}
	if len(specs) == 0 {
		var err error
		if specs, err = ParseRuleSpecs(settings.RankingRules); err != nil {
			return nil, err
		}
	}

	params := s.geo
	if g := req.Geo; g != nil {
		if g.Target != nil {
			params.Target = g.Target
		}
		if g.Strategy != (GeoStrategy{}) {
			params.Strategy = g.Strategy
		}
		if g.MaxBucketSize != 0 {
			params.MaxBucketSize = g.MaxBucketSize
		}
		if g.DistanceErrorMargin != 0 {
			params.DistanceErrorMargin = g.DistanceErrorMargin
		}
	}

	return NewRankingRules(specs, RulesConfig{
		Settings:    settings,
		TypoCeiling: s.effectiveTypoCeiling(),
		Geo:         &params,
	})
}
