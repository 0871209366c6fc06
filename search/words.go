package search

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/query"
)

// wordsRule ranks documents matching more query words first. It walks the
// branches of the optional words disjunction at the root of the tree, each
// branch dropping more words.
type wordsRule struct {
	branches []*query.Operation
	next     int
	// placeholder is set when the search has no query tree
	placeholder bool
}

func newWordsRule() *wordsRule {
	return &wordsRule{}
}

func (r *wordsRule) ID() string {
	return RuleWords.String()
}

func (r *wordsRule) StartIteration(_ *Context, _ *roaring.Bitmap, q *query.Operation) error {
	r.next = 0
	r.placeholder = q == nil
	switch {
	case q == nil:
		r.branches = nil
	case q.Kind == query.KindOr && q.Optional:
		r.branches = q.Children
	default:
		r.branches = []*query.Operation{q}
	}
	return nil
}

func (r *wordsRule) NextBucket(ctx *Context, universe *roaring.Bitmap) (*Bucket, error) {
	if r.placeholder {
		r.placeholder = false
		return &Bucket{Candidates: universe.Clone()}, nil
	}
	if r.next >= len(r.branches) {
		return nil, nil
	}

	branch := r.branches[r.next]
	matching, err := resolveAnyTypo(ctx, branch)
	if err != nil {
		return nil, err
	}
	matching.And(universe)

	bucket := &Bucket{Query: branch, Candidates: matching}
	if r.next == 0 {
		all := roaring.New()
		for _, b := range r.branches {
			docids, err := resolveAnyTypo(ctx, b)
			if err != nil {
				return nil, err
			}
			all.Or(docids)
		}
		all.And(universe)
		bucket.BucketCandidates = all
	}
	r.next++
	return bucket, nil
}

func (r *wordsRule) EndIteration(_ *Context) {
	r.branches = nil
	r.next = 0
	r.placeholder = false
}
