package search

import (
	"context"
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typoFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.addBodies(t, map[core.DocumentID][]string{
		1: {"ward"},
		2: {"word"},
		3: {"word", "play"},
		4: {"words"},
		5: {"other"},
	})
	return f
}

func TestBucketSort_TypoEndToEnd(t *testing.T) {
	f := typoFixture(t)
	tree := tolerant("word", 1)
	ctx := f.context(t, query.BuildMapping(tree))

	result, err := BucketSort(ctx, []RankingRule{newTypoRule(DefaultTypoCeiling)}, tree, ids(1, 2, 3, 4, 5), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []core.DocumentID{2, 3, 1, 4}, result.Documents)
	assert.Equal(t, uint64(4), result.Total)
	assert.NotContains(t, result.Documents, core.DocumentID(5))
}

func TestBucketSort_Pagination(t *testing.T) {
	f := typoFixture(t)
	tree := tolerant("word", 1)

	tests := []struct {
		name   string
		from   int
		length int
		want   []core.DocumentID
	}{
		{"first page", 0, 2, []core.DocumentID{2, 3}},
		{"across buckets", 1, 2, []core.DocumentID{3, 1}},
		{"skips a whole bucket", 2, 10, []core.DocumentID{1, 4}},
		{"past the end", 10, 5, []core.DocumentID{}},
		{"empty page", 0, 0, []core.DocumentID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := f.context(t, query.BuildMapping(tree))
			result, err := BucketSort(ctx, []RankingRule{newTypoRule(DefaultTypoCeiling)}, tree, ids(1, 2, 3, 4, 5), tt.from, tt.length)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Documents)
		})
	}
}

func TestBucketSort_NoRules(t *testing.T) {
	f := typoFixture(t)
	ctx := f.context(t, nil)

	result, err := BucketSort(ctx, nil, nil, ids(5, 1, 3), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []core.DocumentID{3, 5}, result.Documents)
	assert.Equal(t, uint64(3), result.Total)
}

func TestBucketSort_NestedRules(t *testing.T) {
	f := newFixture(t)
	f.add(t,
		&core.Document{ID: 1, Words: map[core.FieldID][]string{f.body: {"ward"}}, Numbers: map[core.FieldID]float64{f.price: 5}},
		&core.Document{ID: 2, Words: map[core.FieldID][]string{f.body: {"word"}}, Numbers: map[core.FieldID]float64{f.price: 30}},
		&core.Document{ID: 3, Words: map[core.FieldID][]string{f.body: {"word"}}, Numbers: map[core.FieldID]float64{f.price: 10}},
		&core.Document{ID: 4, Words: map[core.FieldID][]string{f.body: {"word"}}},
	)
	tree := tolerant("word", 1)
	ctx := f.context(t, query.BuildMapping(tree))

	rules := []RankingRule{newTypoRule(DefaultTypoCeiling), newSortRule("price", f.price, true)}
	result, err := BucketSort(ctx, rules, tree, ids(1, 2, 3, 4), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []core.DocumentID{3, 2, 4, 1}, result.Documents)
	assert.Equal(t, uint64(4), result.Total)
}

func TestBucketSort_Canceled(t *testing.T) {
	f := typoFixture(t)
	tree := tolerant("word", 1)
	snap, err := f.backend.Snapshot(context.Background())
	require.NoError(t, err)
	defer snap.Close()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	ctx, err := NewContext(canceled, snap, query.BuildMapping(tree))
	require.NoError(t, err)

	_, err = BucketSort(ctx, []RankingRule{newTypoRule(DefaultTypoCeiling)}, tree, ids(1, 2, 3), 0, 10)
	assert.ErrorIs(t, err, ErrSearchAborted)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingRule struct {
	ended bool
}

var errRuleFailed = errors.New("rule failed")

func (r *failingRule) ID() string { return "failing" }

func (r *failingRule) StartIteration(_ *Context, _ *roaring.Bitmap, _ *query.Operation) error {
	return nil
}

func (r *failingRule) NextBucket(_ *Context, _ *roaring.Bitmap) (*Bucket, error) {
	return nil, errRuleFailed
}

func (r *failingRule) EndIteration(_ *Context) { r.ended = true }

type recordingMonitor struct {
	noopMonitor
	started []string
	aborted error
}

func (m *recordingMonitor) RuleStarted(rule string, _ int, _ uint64) {
	m.started = append(m.started, rule)
}

func (m *recordingMonitor) Abort(err error) {
	m.aborted = err
}

func TestBucketSort_RuleErrorAbortsSearch(t *testing.T) {
	f := typoFixture(t)
	ctx := f.context(t, nil)
	monitor := &recordingMonitor{}
	ctx.Monitor = monitor

	rule := &failingRule{}
	result, err := BucketSort(ctx, []RankingRule{newWordsRule(), rule}, nil, ids(1, 2, 3), 0, 10)
	assert.ErrorIs(t, err, errRuleFailed)
	assert.Nil(t, result)
	assert.True(t, rule.ended)
	assert.Equal(t, []string{"words", "failing"}, monitor.started)
	assert.ErrorIs(t, monitor.aborted, errRuleFailed)
}
