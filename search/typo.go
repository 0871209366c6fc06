package search

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/query"
)

// typoRule ranks documents matching the query with fewer typos first.
//
// Bucket t holds the documents matching the tree with exactly t typos
// summed over its words, minus the ones of earlier buckets.
type typoRule struct {
	ceiling int

	query    *query.Operation
	original *query.Operation
	maxTypos int
	budget   int
	allowed  *roaring.Bitmap
	emitted  *roaring.Bitmap
	first    bool
	cache    map[budgetKey]*roaring.Bitmap

	// placeholder is set when the search has no query tree
	placeholder bool
}

func newTypoRule(ceiling int) *typoRule {
	return &typoRule{ceiling: ceiling}
}

func (r *typoRule) ID() string {
	return RuleTypo.String()
}

func (r *typoRule) StartIteration(_ *Context, universe *roaring.Bitmap, q *query.Operation) error {
	r.placeholder = q == nil
	r.query = q
	r.original = q
	r.maxTypos = min(query.MaximumTypo(q), r.ceiling)
	r.budget = 0
	r.allowed = universe.Clone()
	r.emitted = roaring.New()
	r.first = true
	r.cache = make(map[budgetKey]*roaring.Bitmap)
	return nil
}

func (r *typoRule) NextBucket(ctx *Context, universe *roaring.Bitmap) (*Bucket, error) {
	if r.placeholder {
		r.placeholder = false
		return &Bucket{Candidates: universe.Clone()}, nil
	}
	if r.query == nil || r.budget > r.maxTypos || r.allowed.IsEmpty() {
		return nil, nil
	}

	altered, err := alterTypos(ctx, r.query.Clone(), r.budget)
	if err != nil {
		return nil, err
	}
	if r.budget >= query.MaxTyposPerWord {
		// no leaf tolerates more typos, later budgets alter nothing
		r.query = altered
	}

	resolved, err := r.resolve(ctx, altered, r.budget)
	if err != nil {
		return nil, err
	}
	bucket := roaring.And(resolved, r.allowed)
	bucket.And(universe)
	bucket.AndNot(r.emitted)
	r.allowed.AndNot(bucket)
	r.emitted.Or(bucket)
	r.budget++

	result := &Bucket{Query: altered, Candidates: bucket}
	if r.first {
		r.first = false
		all, err := r.resolveWithin(ctx, r.original, r.maxTypos)
		if err != nil {
			return nil, err
		}
		all.And(universe)
		result.BucketCandidates = all
	}
	return result, nil
}

// resolveWithin returns the documents matching op with at most maxTypos
// typos summed over its words.
func (r *typoRule) resolveWithin(ctx *Context, op *query.Operation, maxTypos int) (*roaring.Bitmap, error) {
	if maxTypos >= query.MaximumTypo(op) {
		return resolveAnyTypo(ctx, op)
	}
	result := roaring.New()
	for budget := 0; budget <= maxTypos; budget++ {
		altered, err := alterTypos(ctx, op.Clone(), budget)
		if err != nil {
			return nil, err
		}
		docids, err := r.resolve(ctx, altered, budget)
		if err != nil {
			return nil, err
		}
		result.Or(docids)
	}
	return result, nil
}

// resolveTypoBudget is resolveWithin for callers outside a typo iteration.
func resolveTypoBudget(ctx *Context, op *query.Operation, maxTypos int) (*roaring.Bitmap, error) {
	r := &typoRule{cache: make(map[budgetKey]*roaring.Bitmap)}
	return r.resolveWithin(ctx, op, maxTypos)
}

func (r *typoRule) EndIteration(_ *Context) {
	r.query = nil
	r.original = nil
	r.allowed = nil
	r.emitted = nil
	r.cache = nil
	r.placeholder = false
}

// alterTypos rewrites the tolerant leaves of op for a typo budget: exact
// words at budget zero, otherwise the disjunction of the dictionary words
// within min(budget, max typo) edits, each tagged with its distance.
// Phrases are left untouched.
func alterTypos(ctx *Context, op *query.Operation, budget int) (*query.Operation, error) {
	switch op.Kind {
	case query.KindPhrase:
		return op, nil
	case query.KindAnd, query.KindOr:
		for i, child := range op.Children {
			altered, err := alterTypos(ctx, child, budget)
			if err != nil {
				return nil, err
			}
			op.Children[i] = altered
		}
		return op, nil
	}

	q := op.Query
	if !q.Kind.Tolerant {
		return op, nil
	}
	if budget == 0 {
		return query.Leaf(query.Query{ID: q.ID, Prefix: q.Prefix, Kind: query.Exact(q.Kind.Word, 0)}), nil
	}

	maxTypo := min(q.Kind.Typo, uint8(min(budget, query.MaxTyposPerWord)))
	derivations, err := ctx.Derivations.Get(q.Kind.Word, q.Prefix, maxTypo)
	if err != nil {
		return nil, err
	}
	children := make([]*query.Operation, len(derivations))
	for i, d := range derivations {
		children[i] = query.Leaf(query.Query{ID: q.ID, Kind: query.Exact(d.Word, d.Typo)})
	}
	return &query.Operation{Kind: query.KindOr, Children: children}, nil
}

// resolve returns the documents matching op with exactly budget typos.
func (r *typoRule) resolve(ctx *Context, op *query.Operation, budget int) (*roaring.Bitmap, error) {
	switch op.Kind {
	case query.KindAnd:
		return r.mdfs(ctx, op.Children, budget)
	case query.KindOr:
		result := roaring.New()
		for _, child := range op.Children {
			docids, err := r.resolveCached(ctx, child, budget)
			if err != nil {
				return nil, err
			}
			result.Or(docids)
		}
		return result, nil
	case query.KindPhrase:
		if budget != 0 {
			return roaring.New(), nil
		}
		return phraseDocids(ctx, op)
	default:
		if int(op.Query.Typo()) != budget {
			return roaring.New(), nil
		}
		docids, err := queryDocids(ctx, op.Query)
		if err != nil {
			return nil, err
		}
		return docids.Clone(), nil
	}
}

// resolveCached is resolve memoized by tree fingerprint and budget. The
// result must not be modified.
func (r *typoRule) resolveCached(ctx *Context, op *query.Operation, budget int) (*roaring.Bitmap, error) {
	key := budgetKey{op: op.Fingerprint(), budget: budget}
	if docids, ok := r.cache[key]; ok {
		return docids, nil
	}
	docids, err := r.resolve(ctx, op, budget)
	if err != nil {
		return nil, err
	}
	r.cache[key] = docids
	return docids, nil
}

// mdfs resolves the conjunction of ops with exactly budget typos by trying
// every split of the budget between the head and the tail.
func (r *typoRule) mdfs(ctx *Context, ops []*query.Operation, budget int) (*roaring.Bitmap, error) {
	switch len(ops) {
	case 0:
		return roaring.New(), nil
	case 1:
		docids, err := r.resolveCached(ctx, ops[0], budget)
		if err != nil {
			return nil, err
		}
		return docids.Clone(), nil
	}

	result := roaring.New()
	for m := 0; m <= budget; m++ {
		head, err := r.resolveCached(ctx, ops[0], m)
		if err != nil {
			return nil, err
		}
		if head.IsEmpty() {
			continue
		}
		tail, err := r.mdfs(ctx, ops[1:], budget-m)
		if err != nil {
			return nil, err
		}
		tail.And(head)
		result.Or(tail)
	}
	return result, nil
}
