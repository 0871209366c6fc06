package search

import (
	"math"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) place(id core.DocumentID, lat, lng float64) *core.Document {
	return &core.Document{ID: id, Numbers: map[core.FieldID]float64{f.lat: lat, f.lng: lng}}
}

// metersNorth returns the latitude at meters north of the equator.
func metersNorth(meters float64) float64 {
	return meters / (geo.EarthRadius * math.Pi / 180)
}

func geoSort(t *testing.T, params GeoParams, ascending bool) *GeoSort {
	t.Helper()
	rule, err := NewGeoSort(params, ascending)
	require.NoError(t, err)
	return rule
}

func TestGeoSort_DistanceErrorMargin(t *testing.T) {
	f := newFixture(t)
	f.add(t,
		f.place(1, metersNorth(10.0), 0),
		f.place(2, metersNorth(10.3), 0),
		f.place(3, metersNorth(20.0), 0),
	)
	ctx := f.context(t, nil)

	for _, strategy := range []GeoStrategy{AlwaysIterative(1000), AlwaysRtree(1000), AlwaysIterative(1)} {
		t.Run(strategy.Kind.String()+"/"+strconv.Itoa(strategy.CacheSize), func(t *testing.T) {
			params := DefaultGeoParams()
			params.Target = &geo.Point{}
			params.Strategy = strategy
			buckets := drain(t, ctx, geoSort(t, params, true), ids(1, 2, 3), nil)
			assert.Equal(t, [][]uint32{{1, 2}, {3}}, buckets)
		})
	}
}

func TestGeoSort_MaxBucketSize(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.place(1, 0, 0), f.place(2, 0, 0), f.place(3, 0, 0))
	ctx := f.context(t, nil)

	params := DefaultGeoParams()
	params.Target = &geo.Point{Lat: 1, Lng: 1}
	params.MaxBucketSize = 2
	buckets := drain(t, ctx, geoSort(t, params, true), ids(1, 2, 3), nil)
	assert.Equal(t, [][]uint32{{1, 2}, {3}}, buckets)
}

func TestGeoSort_DocumentsWithoutCoordinatesComeLast(t *testing.T) {
	f := newFixture(t)
	f.add(t,
		f.place(1, 10, 10),
		&core.Document{ID: 2, Words: map[core.FieldID][]string{f.body: {"nowhere"}}},
		f.place(3, 1, 1),
		&core.Document{ID: 4, Numbers: map[core.FieldID]float64{f.lat: 5}},
	)
	ctx := f.context(t, nil)

	for _, ascending := range []bool{true, false} {
		params := DefaultGeoParams()
		params.Target = &geo.Point{}
		buckets := drain(t, ctx, geoSort(t, params, ascending), ids(1, 2, 3, 4), nil)
		if ascending {
			assert.Equal(t, [][]uint32{{3}, {1}, {2, 4}}, buckets)
		} else {
			assert.Equal(t, [][]uint32{{1}, {3}, {2, 4}}, buckets)
		}
	}
}

// flatten runs a geo sort through the pipeline and returns every document.
func flatten(t *testing.T, f *fixture, params GeoParams, ascending bool, universe []uint32) []core.DocumentID {
	t.Helper()
	ctx := f.context(t, nil)
	result, err := BucketSort(ctx, []RankingRule{geoSort(t, params, ascending)}, nil, ids(universe...), 0, len(universe)+1)
	require.NoError(t, err)
	return result.Documents
}

func TestGeoSort_StrategiesAgree(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewPCG(7, 11))
	var universe []uint32
	var docs []*core.Document
	for id := core.DocumentID(1); id <= 60; id++ {
		docs = append(docs, f.place(id, rng.Float64()*160-80, rng.Float64()*358-179))
		universe = append(universe, uint32(id))
	}
	docs = append(docs, &core.Document{ID: 61, Words: map[core.FieldID][]string{f.body: {"nowhere"}}})
	universe = append(universe, 61)
	f.add(t, docs...)

	target := &geo.Point{Lat: 48.85, Lng: 2.35}
	for _, ascending := range []bool{true, false} {
		var reference []core.DocumentID
		for _, strategy := range []GeoStrategy{
			AlwaysIterative(1000), AlwaysIterative(2),
			AlwaysRtree(1000), AlwaysRtree(2),
			Dynamic(10),
		} {
			params := GeoParams{Target: target, Strategy: strategy, MaxBucketSize: 1000}
			got := flatten(t, f, params, ascending, universe)
			require.Len(t, got, len(universe))
			assert.Equal(t, core.DocumentID(61), got[len(got)-1])
			if reference == nil {
				reference = got
				continue
			}
			assert.Equal(t, reference, got, "ascending=%v strategy=%s cache=%d", ascending, strategy.Kind, strategy.CacheSize)
		}

		ctx := f.context(t, nil)
		first, ok, err := Point(ctx.Reader, reference[0], f.lat, f.lng)
		require.NoError(t, err)
		require.True(t, ok)
		second, ok, err := Point(ctx.Reader, reference[1], f.lat, f.lng)
		require.NoError(t, err)
		require.True(t, ok)
		if ascending {
			assert.LessOrEqual(t, geo.Distance(*target, first), geo.Distance(*target, second))
		} else {
			assert.GreaterOrEqual(t, geo.Distance(*target, first), geo.Distance(*target, second))
		}
	}
}

func TestGeoSort_StrategiesAgreeOnSplitTies(t *testing.T) {
	f := newFixture(t)
	var universe []uint32
	var docs []*core.Document
	id := core.DocumentID(1)
	for lat := 0; lat < 10; lat++ {
		for lng := 0; lng < 10; lng++ {
			for range 4 {
				docs = append(docs, f.place(id, float64(lat), float64(lng)))
				universe = append(universe, uint32(id))
				id++
			}
		}
	}
	f.add(t, docs...)

	dynamic := Dynamic(50)
	dynamic.CacheSize = 3
	for _, target := range []geo.Point{{Lat: 5, Lng: 5}, {Lat: 2.5, Lng: 7}, {Lat: 0, Lng: 0}} {
		for _, ascending := range []bool{true, false} {
			params := GeoParams{Target: &target, Strategy: AlwaysIterative(1000), MaxBucketSize: 2}
			reference := flatten(t, f, params, ascending, universe)
			require.Len(t, reference, len(universe))

			for _, strategy := range []GeoStrategy{AlwaysRtree(1), AlwaysRtree(3), AlwaysRtree(1000), dynamic} {
				params.Strategy = strategy
				got := flatten(t, f, params, ascending, universe)
				assert.Equal(t, reference, got, "target=%v ascending=%v strategy=%s cache=%d",
					target, ascending, strategy.Kind, strategy.CacheSize)
			}
		}
	}
}

func TestGeoSort_CacheLoading(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.place(1, 0, 0), f.place(2, 1, 1), f.place(3, 2, 2))
	ctx := f.context(t, nil)

	t.Run("iterative sorts every candidate once", func(t *testing.T) {
		params := DefaultGeoParams()
		params.Target = &geo.Point{}
		params.Strategy = AlwaysIterative(1)
		rule := geoSort(t, params, true)
		universe := ids(1, 2, 3)
		require.NoError(t, rule.StartIteration(ctx, universe, nil))
		defer rule.EndIteration(ctx)

		bucket, err := rule.NextBucket(ctx, universe)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, bucket.Candidates.ToArray())
		require.Len(t, rule.cache, 2)
		assert.Equal(t, core.DocumentID(2), rule.cache[0].doc)
		assert.Equal(t, core.DocumentID(3), rule.cache[1].doc)
	})

	t.Run("rtree indexes every faceted document", func(t *testing.T) {
		params := DefaultGeoParams()
		params.Target = &geo.Point{}
		params.Strategy = AlwaysRtree(1)
		rule := geoSort(t, params, true)
		universe := ids(2, 3)
		require.NoError(t, rule.StartIteration(ctx, universe, nil))
		defer rule.EndIteration(ctx)

		bucket, err := rule.NextBucket(ctx, universe)
		require.NoError(t, err)
		assert.Equal(t, []uint32{2}, bucket.Candidates.ToArray())
		require.NotNil(t, rule.rtree)
		assert.Equal(t, 3, rule.rtree.Size())
	})
}

func TestTrimTies(t *testing.T) {
	at := func(doc core.DocumentID, lng float64) geoEntry {
		return geoEntry{doc: doc, point: geo.Point{Lng: lng}}
	}
	origin := geo.Point{}
	entries := []geoEntry{at(1, 1), at(2, 2), at(3, 3), at(4, 3)}

	assert.Equal(t, entries[:2], trimTies(entries, origin))
	assert.Equal(t, entries[:2], trimTies(entries[:3], origin))
	assert.Nil(t, trimTies(entries[2:], origin))
	assert.Equal(t, []geoEntry{at(4, 3)}, trimTies([]geoEntry{at(4, 3), at(1, 1)}, geo.OppositeOf(origin)))
}

func TestGeoSort_EmptyGeoCandidates(t *testing.T) {
	f := newFixture(t)
	f.addBodies(t, map[core.DocumentID][]string{1: {"a"}, 2: {"b"}})
	ctx := f.context(t, nil)

	params := DefaultGeoParams()
	params.Target = &geo.Point{}
	buckets := drain(t, ctx, geoSort(t, params, true), ids(1, 2), nil)
	assert.Equal(t, [][]uint32{{1, 2}}, buckets)
}

func TestNewGeoSort_Validation(t *testing.T) {
	tests := []struct {
		name    string
		params  GeoParams
		wantErr error
	}{
		{"missing target", GeoParams{}, ErrGeoTargetRequired},
		{"invalid target", GeoParams{Target: &geo.Point{Lat: 91}}, core.ErrInvalidCoordinates},
		{"negative cache", GeoParams{Target: &geo.Point{}, Strategy: AlwaysRtree(-1)}, ErrInvalidOption},
		{"negative bucket size", GeoParams{Target: &geo.Point{}, MaxBucketSize: -1}, ErrInvalidOption},
		{"negative margin", GeoParams{Target: &geo.Point{}, DistanceErrorMargin: -1}, ErrInvalidOption},
		{"unknown strategy", GeoParams{Target: &geo.Point{}, Strategy: GeoStrategy{Kind: 9}}, ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGeoSort(tt.params, true)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("zero sizes take defaults", func(t *testing.T) {
		rule, err := NewGeoSort(GeoParams{Target: &geo.Point{}}, false)
		require.NoError(t, err)
		assert.Equal(t, DefaultGeoCacheSize, rule.strategy.CacheSize)
		assert.Equal(t, uint64(DefaultGeoRtreeThreshold), rule.strategy.Threshold)
		assert.Equal(t, DefaultMaxBucketSize, rule.maxBucket)
		assert.Equal(t, "geosort:desc", rule.ID())
	})
}

func TestPoint_StringFallback(t *testing.T) {
	f := newFixture(t)
	f.add(t,
		&core.Document{ID: 1, Strings: map[core.FieldID]string{f.lat: " 45.5", f.lng: "-73.6"}},
		&core.Document{ID: 2, Strings: map[core.FieldID]string{f.lat: "north", f.lng: "1"}},
		&core.Document{ID: 3, Numbers: map[core.FieldID]float64{f.lat: 1}, Strings: map[core.FieldID]string{f.lng: "2"}},
	)
	ctx := f.context(t, nil)

	p, ok, err := Point(ctx.Reader, 1, f.lat, f.lng)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 45.5, Lng: -73.6}, p)

	_, ok, err = Point(ctx.Reader, 2, f.lat, f.lng)
	require.NoError(t, err)
	assert.False(t, ok)

	p, ok, err = Point(ctx.Reader, 3, f.lat, f.lng)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 1, Lng: 2}, p)

	_, ok, err = Point(ctx.Reader, 9, f.lat, f.lng)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseGeoStrategy(t *testing.T) {
	s, err := ParseGeoStrategy("rtree", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, AlwaysRtree(5), s)

	s, err = ParseGeoStrategy("", 100, 50)
	require.NoError(t, err)
	assert.Equal(t, GeoStrategy{Kind: GeoDynamic, CacheSize: 100, Threshold: 50}, s)

	_, err = ParseGeoStrategy("spiral", 1, 1)
	assert.ErrorIs(t, err, ErrInvalidOption)
}
