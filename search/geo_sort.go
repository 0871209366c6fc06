package search

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/facet"
	"github.com/poiesic/rankit/geo"
	"github.com/poiesic/rankit/query"
	"github.com/poiesic/rankit/storage"
)

// Geo sort defaults.
const (
	DefaultGeoCacheSize        = 1000
	DefaultGeoRtreeThreshold   = 1000
	DefaultMaxBucketSize       = 1000
	DefaultDistanceErrorMargin = 1.0
)

// chordTolerance is the distance on the unit sphere under which two R-tree
// results are treated as equidistant when trimming a refill. It exceeds the
// slack of the index's point rectangles.
const chordTolerance = 1e-7

// GeoStrategyKind selects how the geo sort finds the next closest documents.
type GeoStrategyKind uint8

const (
	// GeoDynamic uses the R-tree while more than Threshold candidates remain.
	GeoDynamic GeoStrategyKind = iota
	// GeoIterative sorts the distances of every remaining candidate once.
	GeoIterative
	// GeoRtree queries an R-tree built over the candidates.
	GeoRtree
)

func (k GeoStrategyKind) String() string {
	switch k {
	case GeoDynamic:
		return "dynamic"
	case GeoIterative:
		return "iterative"
	case GeoRtree:
		return "rtree"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// GeoStrategy configures the cache feeding the geo sort.
type GeoStrategy struct {
	Kind GeoStrategyKind
	// CacheSize is the number of documents fetched per R-tree refill.
	CacheSize int
	// Threshold is the candidate count above which GeoDynamic uses the R-tree.
	Threshold uint64
}

// AlwaysIterative returns a strategy sorting every candidate distance up
// front. cacheSize only matters to the R-tree and is kept for symmetry.
func AlwaysIterative(cacheSize int) GeoStrategy {
	return GeoStrategy{Kind: GeoIterative, CacheSize: cacheSize}
}

// AlwaysRtree returns a strategy querying an R-tree, cacheSize at a time.
func AlwaysRtree(cacheSize int) GeoStrategy {
	return GeoStrategy{Kind: GeoRtree, CacheSize: cacheSize}
}

// Dynamic returns a strategy switching to the R-tree above threshold candidates.
func Dynamic(threshold uint64) GeoStrategy {
	return GeoStrategy{Kind: GeoDynamic, CacheSize: DefaultGeoCacheSize, Threshold: threshold}
}

// ParseGeoStrategy parses "iterative", "rtree" or "dynamic".
func ParseGeoStrategy(name string, cacheSize int, threshold uint64) (GeoStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "iterative":
		return AlwaysIterative(cacheSize), nil
	case "rtree":
		return AlwaysRtree(cacheSize), nil
	case "dynamic", "":
		s := Dynamic(threshold)
		s.CacheSize = cacheSize
		return s, nil
	default:
		return GeoStrategy{}, fmt.Errorf("%w: geo strategy %q", ErrInvalidOption, name)
	}
}

// GeoParams configures a geo sort.
type GeoParams struct {
	Target   *geo.Point
	Strategy GeoStrategy
	// MaxBucketSize caps the number of documents of a bucket.
	MaxBucketSize int
	// DistanceErrorMargin is the distance in meters under which documents
	// share a bucket.
	DistanceErrorMargin float64
}

// DefaultGeoParams returns the default parameters without a target.
func DefaultGeoParams() GeoParams {
	return GeoParams{
		Strategy:            Dynamic(DefaultGeoRtreeThreshold),
		MaxBucketSize:       DefaultMaxBucketSize,
		DistanceErrorMargin: DefaultDistanceErrorMargin,
	}
}

type geoEntry struct {
	doc      core.DocumentID
	point    geo.Point
	distance float64
}

// GeoSort ranks documents by their distance to a target point. Documents
// without coordinates come last, in a single bucket.
type GeoSort struct {
	target    geo.Point
	ascending bool
	strategy  GeoStrategy
	maxBucket int
	margin    float64

	latField   core.FieldID
	lngField   core.FieldID
	candidates *roaring.Bitmap
	// faceted holds every document with coordinates, indexed by rtree
	faceted *roaring.Bitmap
	cache   []geoEntry
	// rtree is built on the first refill that needs it
	rtree *geo.Index
}

// NewGeoSort creates a geo sort rule. Zero sizes take their defaults.
func NewGeoSort(params GeoParams, ascending bool) (*GeoSort, error) {
	if params.Target == nil {
		return nil, ErrGeoTargetRequired
	}
	if err := params.Target.Validate(); err != nil {
		return nil, err
	}

	strategy := params.Strategy
	if strategy.CacheSize == 0 {
		strategy.CacheSize = DefaultGeoCacheSize
	}
	if strategy.Kind == GeoDynamic && strategy.Threshold == 0 {
		strategy.Threshold = DefaultGeoRtreeThreshold
	}
	maxBucket := params.MaxBucketSize
	if maxBucket == 0 {
		maxBucket = DefaultMaxBucketSize
	}

	switch {
	case strategy.Kind > GeoRtree:
		return nil, fmt.Errorf("%w: geo strategy %s", ErrInvalidOption, strategy.Kind)
	case strategy.CacheSize < 0:
		return nil, fmt.Errorf("%w: geo cache size %d", ErrInvalidOption, strategy.CacheSize)
	case maxBucket < 0:
		return nil, fmt.Errorf("%w: max bucket size %d", ErrInvalidOption, maxBucket)
	case params.DistanceErrorMargin < 0 || math.IsNaN(params.DistanceErrorMargin):
		return nil, fmt.Errorf("%w: distance error margin %v", ErrInvalidOption, params.DistanceErrorMargin)
	}

	return &GeoSort{
		target:    *params.Target,
		ascending: ascending,
		strategy:  strategy,
		maxBucket: maxBucket,
		margin:    params.DistanceErrorMargin,
	}, nil
}

func (g *GeoSort) ID() string {
	return RuleSpec{Kind: RuleGeoSort, Ascending: g.ascending}.String()
}

func (g *GeoSort) StartIteration(ctx *Context, universe *roaring.Bitmap, _ *query.Operation) error {
	g.cache = nil
	g.rtree = nil
	g.candidates = roaring.New()
	g.faceted = roaring.New()

	lat, lng, ok := ctx.Settings.GeoFields()
	if !ok {
		return nil
	}
	g.latField, g.lngField = lat, lng

	faceted, err := ctx.Reader.GeoFacetedDocids()
	if err != nil {
		return err
	}
	g.faceted = faceted
	g.candidates = roaring.And(faceted, universe)
	return nil
}

func (g *GeoSort) NextBucket(ctx *Context, universe *roaring.Bitmap) (*Bucket, error) {
	if universe.IsEmpty() {
		return nil, nil
	}

	bucket := roaring.New()
	var reference float64
	for bucket.GetCardinality() < uint64(g.maxBucket) {
		if len(g.cache) == 0 {
			if !g.candidates.Intersects(universe) {
				break
			}
			if err := g.fillCache(ctx, universe); err != nil {
				return nil, err
			}
			if len(g.cache) == 0 {
				break
			}
		}

		entry := g.cache[0]
		if !g.candidates.Contains(uint32(entry.doc)) || !universe.Contains(uint32(entry.doc)) {
			g.cache = g.cache[1:]
			continue
		}
		if bucket.IsEmpty() {
			reference = entry.distance
		} else if math.Abs(entry.distance-reference) > g.margin {
			break
		}
		g.cache = g.cache[1:]
		bucket.Add(uint32(entry.doc))
		g.candidates.Remove(uint32(entry.doc))
	}

	if bucket.IsEmpty() {
		// only documents without coordinates remain
		return &Bucket{Candidates: universe.Clone()}, nil
	}
	return &Bucket{Candidates: bucket}, nil
}

func (g *GeoSort) EndIteration(_ *Context) {
	g.cache = nil
	g.rtree = nil
	g.candidates = nil
	g.faceted = nil
}

func (g *GeoSort) useRtree(live uint64) bool {
	switch g.strategy.Kind {
	case GeoRtree:
		return true
	case GeoDynamic:
		return live > g.strategy.Threshold
	default:
		return false
	}
}

// fillCache loads the next closest (or furthest) live candidates. The
// iterative strategy loads all of them at once.
func (g *GeoSort) fillCache(ctx *Context, universe *roaring.Bitmap) error {
	live := roaring.And(g.candidates, universe)
	if live.IsEmpty() {
		return nil
	}
	if g.useRtree(live.GetCardinality()) {
		return g.fillFromRtree(ctx, live)
	}

	points, err := g.points(ctx, live)
	if err != nil {
		return err
	}
	g.cache = g.sortEntries(points)
	return nil
}

// fillFromRtree caches the CacheSize live candidates nearest to the target,
// or to its antipode when descending. A run of equidistant documents cut by
// the cache boundary is left for the next refill, so ties keep their
// document id order.
func (g *GeoSort) fillFromRtree(ctx *Context, live *roaring.Bitmap) error {
	if g.rtree == nil {
		points, err := g.points(ctx, g.faceted)
		if err != nil {
			return err
		}
		g.rtree = geo.NewIndex(points)
		ctx.Logger.Debug("geo index built", "points", g.rtree.Size())
	}

	from := g.target
	if !g.ascending {
		from = geo.OppositeOf(g.target)
	}
	keep := func(doc core.DocumentID) bool {
		return live.Contains(uint32(doc))
	}

	for k := g.strategy.CacheSize; ; k *= 2 {
		entries := g.sortEntries(g.rtree.Nearest(from, k, keep))
		if len(entries) < k {
			g.cache = entries
			return nil
		}
		if trimmed := trimTies(entries, from); len(trimmed) > 0 {
			g.cache = trimmed
			return nil
		}
	}
}

// sortEntries orders located points by distance to the target in the rule's
// direction, ties by document id.
func (g *GeoSort) sortEntries(located []geo.Located) []geoEntry {
	entries := make([]geoEntry, len(located))
	for i, l := range located {
		entries[i] = geoEntry{doc: l.Doc, point: l.Point, distance: geo.Distance(g.target, l.Point)}
	}
	slices.SortFunc(entries, func(a, b geoEntry) int {
		c := cmp.Compare(a.distance, b.distance)
		if !g.ascending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.doc, b.doc)
	})
	return entries
}

// trimTies drops the entries about as far from from as the furthest one,
// keeping the order of the others. It returns nil when every entry ties.
func trimTies(entries []geoEntry, from geo.Point) []geoEntry {
	origin := from.XYZ()
	chords := make([]float64, len(entries))
	furthest := 0.0
	for i, e := range entries {
		xyz := e.point.XYZ()
		dx, dy, dz := xyz[0]-origin[0], xyz[1]-origin[1], xyz[2]-origin[2]
		chords[i] = math.Sqrt(dx*dx + dy*dy + dz*dz)
		furthest = max(furthest, chords[i])
	}

	var kept []geoEntry
	for i, e := range entries {
		if chords[i] < furthest-chordTolerance {
			kept = append(kept, e)
		}
	}
	return kept
}

// points returns the coordinates of docs, read through the level index of
// the geo fields. Documents without coordinates leave the candidates.
func (g *GeoSort) points(ctx *Context, docs *roaring.Bitmap) ([]geo.Located, error) {
	lats, err := fieldValues(ctx.Reader, g.latField, docs)
	if err != nil {
		return nil, err
	}
	lngs, err := fieldValues(ctx.Reader, g.lngField, docs)
	if err != nil {
		return nil, err
	}

	points := make([]geo.Located, 0, docs.GetCardinality())
	it := docs.Iterator()
	for it.HasNext() {
		doc := core.DocumentID(it.Next())
		lat, latOk := lats[doc]
		lng, lngOk := lngs[doc]
		p := geo.Point{Lat: lat, Lng: lng}
		if !latOk || !lngOk {
			var ok bool
			p, ok, err = Point(ctx.Reader, doc, g.latField, g.lngField)
			if err != nil {
				return nil, err
			}
			if !ok {
				g.candidates.Remove(uint32(doc))
				continue
			}
		}
		points = append(points, geo.Located{Doc: doc, Point: p})
	}
	return points, nil
}

func fieldValues(r storage.Reader, field core.FieldID, docs *roaring.Bitmap) (map[core.DocumentID]float64, error) {
	values := make(map[core.DocumentID]float64, docs.GetCardinality())
	for group, err := range facet.Ascending(r, field, docs) {
		if err != nil {
			return nil, err
		}
		it := group.Docids.Iterator()
		for it.HasNext() {
			values[core.DocumentID(it.Next())] = group.Value
		}
	}
	return values, nil
}

// Point returns the coordinates of doc from its forward facet values. A
// coordinate stored as a string is parsed as a float. ok is false when a
// coordinate is missing or invalid.
func Point(r storage.Reader, doc core.DocumentID, latField, lngField core.FieldID) (p geo.Point, ok bool, err error) {
	lat, ok, err := coordinate(r, doc, latField)
	if err != nil || !ok {
		return geo.Point{}, false, err
	}
	lng, ok, err := coordinate(r, doc, lngField)
	if err != nil || !ok {
		return geo.Point{}, false, err
	}
	p = geo.Point{Lat: lat, Lng: lng}
	if p.Validate() != nil {
		return geo.Point{}, false, nil
	}
	return p, true, nil
}

func coordinate(r storage.Reader, doc core.DocumentID, field core.FieldID) (float64, bool, error) {
	v, ok, err := r.NumberValue(doc, field)
	if err != nil || ok {
		return v, ok, err
	}
	s, ok, err := r.StringValue(doc, field)
	if err != nil || !ok {
		return 0, false, err
	}
	v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, nil
	}
	return v, true, nil
}
