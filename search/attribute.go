package search

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/query"
)

// attributeRule ranks documents matching the query in more important
// fields first. Bucket f holds the documents whose match only uses the
// searchable fields of rank f or better.
type attributeRule struct {
	query   *query.Operation
	fields  []core.FieldID
	rank    int
	allowed *roaring.Bitmap
	cache   map[budgetKey]*roaring.Bitmap
	done    bool
}

func newAttributeRule() *attributeRule {
	return &attributeRule{}
}

func (r *attributeRule) ID() string {
	return RuleAttribute.String()
}

func (r *attributeRule) StartIteration(ctx *Context, universe *roaring.Bitmap, q *query.Operation) error {
	r.query = q
	r.fields = ctx.Settings.SearchableFields()
	r.rank = 0
	r.allowed = universe.Clone()
	r.cache = make(map[budgetKey]*roaring.Bitmap)
	r.done = false
	return nil
}

func (r *attributeRule) NextBucket(ctx *Context, universe *roaring.Bitmap) (*Bucket, error) {
	if r.done || r.allowed.IsEmpty() {
		return nil, nil
	}
	if r.query == nil || r.rank >= len(r.fields) {
		r.done = true
		bucket := roaring.And(r.allowed, universe)
		r.allowed.Clear()
		return &Bucket{Candidates: bucket}, nil
	}

	resolved, err := r.resolve(ctx, r.query, r.rank)
	if err != nil {
		return nil, err
	}
	bucket := roaring.And(resolved, r.allowed)
	bucket.And(universe)
	r.allowed.AndNot(bucket)
	r.rank++
	return &Bucket{Candidates: bucket}, nil
}

func (r *attributeRule) EndIteration(_ *Context) {
	r.query = nil
	r.fields = nil
	r.allowed = nil
	r.cache = nil
}

// resolve returns the documents matching op in the fields of rank at most
// rank. The result must not be modified.
func (r *attributeRule) resolve(ctx *Context, op *query.Operation, rank int) (*roaring.Bitmap, error) {
	key := budgetKey{op: op.Fingerprint(), budget: rank}
	if docids, ok := r.cache[key]; ok {
		return docids, nil
	}

	var result *roaring.Bitmap
	switch op.Kind {
	case query.KindQuery:
		docids, err := r.leafDocids(ctx, op.Query, rank)
		if err != nil {
			return nil, err
		}
		result = docids
	case query.KindPhrase:
		docids, err := phraseDocids(ctx, op)
		if err != nil {
			return nil, err
		}
		for _, child := range op.Children {
			if docids.IsEmpty() {
				break
			}
			inFields, err := r.leafDocids(ctx, child.Query, rank)
			if err != nil {
				return nil, err
			}
			docids.And(inFields)
		}
		result = docids
	case query.KindOr:
		result = roaring.New()
		for _, child := range op.Children {
			docids, err := r.resolve(ctx, child, rank)
			if err != nil {
				return nil, err
			}
			result.Or(docids)
		}
	case query.KindAnd:
		for _, child := range op.Children {
			docids, err := r.resolve(ctx, child, rank)
			if err != nil {
				return nil, err
			}
			if result == nil {
				result = docids.Clone()
			} else {
				result.And(docids)
			}
			if result.IsEmpty() {
				break
			}
		}
		if result == nil {
			result = roaring.New()
		}
	}
	r.cache[key] = result
	return result, nil
}

func (r *attributeRule) leafDocids(ctx *Context, q query.Query, rank int) (*roaring.Bitmap, error) {
	words, err := queryWords(ctx, q)
	if err != nil {
		return nil, err
	}
	result := roaring.New()
	for _, field := range r.fields[:rank+1] {
		for _, w := range words {
			docids, err := ctx.WordFieldDocids(w, field)
			if err != nil {
				return nil, err
			}
			result.Or(docids)
		}
	}
	return result, nil
}
