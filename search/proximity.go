package search

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/query"
)

// MaxDistance bounds the distance between two words counted by the
// proximity rule; word pairs further apart are not indexed.
const MaxDistance = query.PairMaxProximity + 1

// proximityMatch is a resolution of a subtree: the documents where its words
// are placed within the proximity budget, with its leftmost and rightmost
// leaves.
type proximityMatch struct {
	left   query.Query
	right  query.Query
	docids *roaring.Bitmap
}

// proximityRule ranks documents whose query words are closer together
// first. Bucket p holds the documents where the pair costs of every
// conjunction sum to p; documents never matched form a last bucket.
type proximityRule struct {
	query        *query.Operation
	maxProximity int
	proximity    int
	allowed      *roaring.Bitmap
	cache        map[budgetKey][]proximityMatch
	leftovers    bool

	// placeholder is set when the search has no query tree
	placeholder bool
}

func newProximityRule() *proximityRule {
	return &proximityRule{}
}

func (r *proximityRule) ID() string {
	return RuleProximity.String()
}

func (r *proximityRule) StartIteration(_ *Context, universe *roaring.Bitmap, q *query.Operation) error {
	r.placeholder = q == nil
	r.query = q
	r.maxProximity = query.MaximumProximity(q)
	r.proximity = 0
	r.allowed = universe.Clone()
	r.cache = make(map[budgetKey][]proximityMatch)
	r.leftovers = false
	return nil
}

func (r *proximityRule) NextBucket(ctx *Context, universe *roaring.Bitmap) (*Bucket, error) {
	if r.placeholder {
		r.placeholder = false
		return &Bucket{Candidates: universe.Clone()}, nil
	}
	if r.query == nil || r.allowed.IsEmpty() {
		return nil, nil
	}

	if r.proximity > r.maxProximity {
		if r.leftovers {
			return nil, nil
		}
		r.leftovers = true
		bucket := roaring.And(r.allowed, universe)
		r.allowed.Clear()
		return &Bucket{Query: r.query, Candidates: bucket}, nil
	}

	matches, err := r.resolve(ctx, r.query, r.proximity)
	if err != nil {
		return nil, err
	}
	bucket := roaring.New()
	for _, m := range matches {
		bucket.Or(m.docids)
	}
	bucket.And(r.allowed)
	bucket.And(universe)
	r.allowed.AndNot(bucket)
	r.proximity++
	return &Bucket{Query: r.query, Candidates: bucket}, nil
}

func (r *proximityRule) EndIteration(_ *Context) {
	r.query = nil
	r.allowed = nil
	r.cache = nil
	r.placeholder = false
}

// resolve returns the matches of op with exactly proximity summed pair cost.
func (r *proximityRule) resolve(ctx *Context, op *query.Operation, proximity int) ([]proximityMatch, error) {
	key := budgetKey{op: op.Fingerprint(), budget: proximity}
	if matches, ok := r.cache[key]; ok {
		return matches, nil
	}

	var matches []proximityMatch
	switch op.Kind {
	case query.KindAnd:
		var err error
		if matches, err = r.mdfs(ctx, op.Children, proximity); err != nil {
			return nil, err
		}
	case query.KindOr:
		for _, child := range op.Children {
			childMatches, err := r.resolve(ctx, child, proximity)
			if err != nil {
				return nil, err
			}
			matches = append(matches, childMatches...)
		}
	case query.KindPhrase:
		if proximity == 0 && len(op.Children) > 0 {
			docids, err := phraseDocids(ctx, op)
			if err != nil {
				return nil, err
			}
			if !docids.IsEmpty() {
				first := op.Children[0].Query
				last := op.Children[len(op.Children)-1].Query
				matches = append(matches, proximityMatch{left: first, right: last, docids: docids})
			}
		}
	default:
		if proximity == 0 {
			docids, err := queryDocids(ctx, op.Query)
			if err != nil {
				return nil, err
			}
			matches = append(matches, proximityMatch{left: op.Query, right: op.Query, docids: docids})
		}
	}
	r.cache[key] = matches
	return matches, nil
}

// mdfs resolves a conjunction: the first operation takes part of the
// budget, the pair joining it to the rest takes another part and the
// conjunction of the rest takes what remains.
func (r *proximityRule) mdfs(ctx *Context, ops []*query.Operation, proximity int) ([]proximityMatch, error) {
	switch len(ops) {
	case 0:
		return nil, nil
	case 1:
		return r.resolve(ctx, ops[0], proximity)
	}

	rest := query.And(ops[1:]...)
	var out []proximityMatch
	for headCost := 0; headCost <= proximity; headCost++ {
		heads, err := r.resolve(ctx, ops[0], headCost)
		if err != nil {
			return nil, err
		}
		if len(heads) == 0 {
			continue
		}
		for pairCost := 0; pairCost < min(proximity-headCost+1, query.PairMaxProximity); pairCost++ {
			tails, err := r.resolve(ctx, rest, proximity-headCost-pairCost)
			if err != nil {
				return nil, err
			}
			for _, head := range heads {
				for _, tail := range tails {
					docids, err := pairDocids(ctx, head.right, tail.left, uint8(pairCost+1))
					if err != nil {
						return nil, err
					}
					docids.And(head.docids)
					docids.And(tail.docids)
					if !docids.IsEmpty() {
						out = append(out, proximityMatch{left: head.left, right: tail.right, docids: docids})
					}
				}
			}
		}
	}
	return out, nil
}
