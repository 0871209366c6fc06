package search

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/query"
	"github.com/poiesic/rankit/storage/badger"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	backend *badger.Backend
	writer  *badger.IndexWriter
	title   core.FieldID
	body    core.FieldID
	price   core.FieldID
	lat     core.FieldID
	lng     core.FieldID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend, writer, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	settings := core.DefaultSettings()
	f := &fixture{
		backend: backend,
		writer:  writer,
		title:   settings.AddField("title", true),
		body:    settings.AddField("body", true),
		price:   settings.AddField("price", false),
	}
	f.lat, f.lng, _ = settings.GeoFields()
	require.NoError(t, writer.PutSettings(context.Background(), settings))
	return f
}

// addBodies adds documents holding words in their body field.
func (f *fixture) addBodies(t *testing.T, docs map[core.DocumentID][]string) {
	t.Helper()
	batch := make([]*core.Document, 0, len(docs))
	for id, words := range docs {
		batch = append(batch, &core.Document{ID: id, Words: map[core.FieldID][]string{f.body: words}})
	}
	f.add(t, batch...)
}

func (f *fixture) add(t *testing.T, docs ...*core.Document) {
	t.Helper()
	require.NoError(t, f.writer.AddDocuments(context.Background(), docs...))
}

func (f *fixture) context(t *testing.T, mapping query.Mapping) *Context {
	t.Helper()
	snap, err := f.backend.Snapshot(context.Background())
	require.NoError(t, err)
	t.Cleanup(snap.Close)
	ctx, err := NewContext(context.Background(), snap, mapping)
	require.NoError(t, err)
	return ctx
}

func (f *fixture) searcher(t *testing.T, opts ...Option) *Searcher {
	t.Helper()
	s, err := NewSearcher(f.backend, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func ids(docs ...uint32) *roaring.Bitmap {
	return roaring.BitmapOf(docs...)
}

func docIDs(docs ...core.DocumentID) []core.DocumentID {
	return docs
}

func tolerant(word string, maxTypo uint8) *query.Operation {
	return query.Leaf(query.Query{Kind: query.Tolerant(word, maxTypo)})
}

func exact(word string) *query.Operation {
	return query.Leaf(query.Query{Kind: query.Exact(word, 0)})
}

// drain runs one iteration of rule over universe and returns its buckets.
func drain(t *testing.T, ctx *Context, rule RankingRule, universe *roaring.Bitmap, q *query.Operation) [][]uint32 {
	t.Helper()
	require.NoError(t, rule.StartIteration(ctx, universe, q))
	defer rule.EndIteration(ctx)

	remaining := universe.Clone()
	var buckets [][]uint32
	for !remaining.IsEmpty() {
		bucket, err := rule.NextBucket(ctx, remaining)
		require.NoError(t, err)
		if bucket == nil {
			break
		}
		candidates := roaring.And(bucket.Candidates, remaining)
		remaining.AndNot(candidates)
		if !candidates.IsEmpty() {
			buckets = append(buckets, candidates.ToArray())
		}
	}
	return buckets
}
