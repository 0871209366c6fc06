package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/query"
	"github.com/poiesic/rankit/storage"
)

type pairKey struct {
	left, right string
	proximity   uint8
}

// budgetKey identifies the resolution of a tree under a typo or proximity budget.
type budgetKey struct {
	op     core.ID
	budget int
}

type wordFieldKey struct {
	word  string
	field core.FieldID
}

// Context holds the state shared by the ranking rules of one search: the
// snapshot reader, the query mapping, derivations and posting caches.
//
// Bitmaps returned by the posting accessors are cached and must not be
// modified.
type Context struct {
	ctx         context.Context
	Reader      storage.Reader
	Settings    *core.Settings
	Mapping     query.Mapping
	Derivations *query.DerivationCache
	Logger      *slog.Logger
	Monitor     SearchMonitor

	words     map[string]*roaring.Bitmap
	prefixes  map[string]*roaring.Bitmap
	pairs     map[pairKey]*roaring.Bitmap
	wordField map[wordFieldKey]*roaring.Bitmap
	anyTypo   map[core.ID]*roaring.Bitmap

	// originals holds the words of the leaves of the root tree as typed.
	originals map[query.QueryID]string
}

// NewContext creates the context of a search reading from r.
func NewContext(ctx context.Context, r storage.Reader, mapping query.Mapping) (*Context, error) {
	if r == nil {
		return nil, ErrReaderRequired
	}
	settings, err := r.Settings()
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		mapping = make(query.Mapping)
	}
	return &Context{
		ctx:         ctx,
		Reader:      r,
		Settings:    settings,
		Mapping:     mapping,
		Derivations: query.NewDerivationCache(r),
		Logger:      slog.Default(),
		Monitor:     &noopMonitor{},
		words:       make(map[string]*roaring.Bitmap),
		prefixes:    make(map[string]*roaring.Bitmap),
		pairs:       make(map[pairKey]*roaring.Bitmap),
		wordField:   make(map[wordFieldKey]*roaring.Bitmap),
		anyTypo:     make(map[core.ID]*roaring.Bitmap),
		originals:   make(map[query.QueryID]string),
	}, nil
}

// Context returns the context.Context of the search.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Err returns ErrSearchAborted wrapping the context error once the search
// is canceled.
func (c *Context) Err() error {
	if err := c.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSearchAborted, err)
	}
	return nil
}

// WordDocids returns the documents containing word.
func (c *Context) WordDocids(word string) (*roaring.Bitmap, error) {
	if bm, ok := c.words[word]; ok {
		return bm, nil
	}
	bm, err := c.Reader.WordDocids(word)
	if err != nil {
		return nil, err
	}
	c.words[word] = bm
	return bm, nil
}

// WordPrefixDocids returns the documents containing a word starting with prefix.
func (c *Context) WordPrefixDocids(prefix string) (*roaring.Bitmap, error) {
	if bm, ok := c.prefixes[prefix]; ok {
		return bm, nil
	}
	bm, err := c.Reader.WordPrefixDocids(prefix)
	if err != nil {
		return nil, err
	}
	c.prefixes[prefix] = bm
	return bm, nil
}

// PairProximityDocids returns the documents where right follows left at proximity.
func (c *Context) PairProximityDocids(left, right string, proximity uint8) (*roaring.Bitmap, error) {
	key := pairKey{left: left, right: right, proximity: proximity}
	if bm, ok := c.pairs[key]; ok {
		return bm, nil
	}
	bm, err := c.Reader.WordPairProximityDocids(left, right, proximity)
	if err != nil {
		return nil, err
	}
	c.pairs[key] = bm
	return bm, nil
}

// WordFieldDocids returns the documents containing word in field.
func (c *Context) WordFieldDocids(word string, field core.FieldID) (*roaring.Bitmap, error) {
	key := wordFieldKey{word: word, field: field}
	if bm, ok := c.wordField[key]; ok {
		return bm, nil
	}
	bm, err := c.Reader.WordFieldDocids(word, field)
	if err != nil {
		return nil, err
	}
	c.wordField[key] = bm
	return bm, nil
}

// recordOriginals remembers the leaf words of the root tree before any rule
// alters them. Only the first tree of a search is recorded.
func (c *Context) recordOriginals(q *query.Operation) {
	if q == nil || len(c.originals) > 0 {
		return
	}
	for _, leaf := range q.Leaves() {
		c.originals[leaf.ID] = leaf.Word()
	}
}
