package search

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/query"
)

// exactnessRule ranks documents containing more query words exactly as
// typed first: no typo and no prefix extension.
type exactnessRule struct {
	// counts[n] holds the documents matching exactly n positions verbatim
	counts []*roaring.Bitmap
	next   int
}

func newExactnessRule() *exactnessRule {
	return &exactnessRule{}
}

func (r *exactnessRule) ID() string {
	return RuleExactness.String()
}

func (r *exactnessRule) StartIteration(ctx *Context, universe *roaring.Bitmap, q *query.Operation) error {
	if q == nil || len(ctx.originals) == 0 {
		r.counts = []*roaring.Bitmap{universe.Clone()}
		r.next = 0
		return nil
	}

	exact, err := r.positionDocids(ctx)
	if err != nil {
		return err
	}

	counts := []*roaring.Bitmap{universe.Clone()}
	for _, docids := range exact {
		next := make([]*roaring.Bitmap, len(counts)+1)
		for n := range next {
			bm := roaring.New()
			if n < len(counts) {
				bm.Or(roaring.AndNot(counts[n], docids))
			}
			if n > 0 {
				bm.Or(roaring.And(counts[n-1], docids))
			}
			next[n] = bm
		}
		counts = next
	}
	r.counts = counts
	r.next = len(counts) - 1
	return nil
}

// positionDocids returns for every original word position the documents
// containing verbatim one of the words typed at that position.
func (r *exactnessRule) positionDocids(ctx *Context) ([]*roaring.Bitmap, error) {
	positions := 0
	for id := range ctx.originals {
		rng, err := ctx.Mapping.Lookup(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		positions = max(positions, rng.End)
	}

	exact := make([]*roaring.Bitmap, positions)
	for i := range exact {
		exact[i] = roaring.New()
	}
	for id, word := range ctx.originals {
		docids, err := ctx.WordDocids(word)
		if err != nil {
			return nil, err
		}
		rng := ctx.Mapping[id]
		for i := rng.Start; i < rng.End; i++ {
			exact[i].Or(docids)
		}
	}
	return exact, nil
}

func (r *exactnessRule) NextBucket(_ *Context, universe *roaring.Bitmap) (*Bucket, error) {
	for r.next >= 0 {
		bucket := roaring.And(r.counts[r.next], universe)
		r.next--
		if !bucket.IsEmpty() {
			return &Bucket{Candidates: bucket}, nil
		}
	}
	return nil, nil
}

func (r *exactnessRule) EndIteration(_ *Context) {
	r.counts = nil
	r.next = -1
}
