package search

import (
	"iter"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/facet"
	"github.com/poiesic/rankit/query"
)

// sortRule orders documents by the value of a numeric field. Each value
// yields a bucket; documents without a value come last.
type sortRule struct {
	name      string
	field     core.FieldID
	ascending bool

	next      func() (facet.Group, error, bool)
	stop      func()
	remaining *roaring.Bitmap
}

func newSortRule(name string, field core.FieldID, ascending bool) *sortRule {
	return &sortRule{name: name, field: field, ascending: ascending}
}

func (r *sortRule) ID() string {
	return RuleSpec{Kind: RuleSort, Field: r.name, Ascending: r.ascending}.String()
}

func (r *sortRule) StartIteration(ctx *Context, universe *roaring.Bitmap, _ *query.Operation) error {
	var groups iter.Seq2[facet.Group, error]
	if r.ascending {
		groups = facet.Ascending(ctx.Reader, r.field, universe)
	} else {
		groups = facet.Descending(ctx.Reader, r.field, universe)
	}
	r.next, r.stop = iter.Pull2(groups)
	r.remaining = universe.Clone()
	return nil
}

func (r *sortRule) NextBucket(_ *Context, universe *roaring.Bitmap) (*Bucket, error) {
	if r.remaining == nil {
		return nil, nil
	}
	for r.next != nil {
		group, err, ok := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			r.next = nil
			break
		}
		bucket := roaring.And(group.Docids, universe)
		r.remaining.AndNot(group.Docids)
		if !bucket.IsEmpty() {
			return &Bucket{Candidates: bucket}, nil
		}
	}

	bucket := roaring.And(r.remaining, universe)
	r.remaining = nil
	if bucket.IsEmpty() {
		return nil, nil
	}
	return &Bucket{Candidates: bucket}, nil
}

func (r *sortRule) EndIteration(_ *Context) {
	if r.stop != nil {
		r.stop()
	}
	r.next = nil
	r.stop = nil
	r.remaining = nil
}
