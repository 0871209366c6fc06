package search

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/query"
)

// queryWords returns the dictionary words a leaf stands for.
func queryWords(ctx *Context, q query.Query) ([]string, error) {
	kind := q.Kind
	if !kind.Tolerant && !q.Prefix {
		return []string{kind.Word}, nil
	}
	maxTypo := uint8(0)
	if kind.Tolerant {
		maxTypo = kind.Typo
	}
	derivations, err := ctx.Derivations.Get(kind.Word, q.Prefix, maxTypo)
	if err != nil {
		return nil, err
	}
	words := make([]string, len(derivations))
	for i, d := range derivations {
		words[i] = d.Word
	}
	return words, nil
}

// queryDocids returns the documents matching a leaf. The result must not be
// modified.
func queryDocids(ctx *Context, q query.Query) (*roaring.Bitmap, error) {
	kind := q.Kind
	switch {
	case !kind.Tolerant && !q.Prefix:
		return ctx.WordDocids(kind.Word)
	case !kind.Tolerant:
		return ctx.WordPrefixDocids(kind.Word)
	}

	words, err := queryWords(ctx, q)
	if err != nil {
		return nil, err
	}
	result := roaring.New()
	for _, w := range words {
		docids, err := ctx.WordDocids(w)
		if err != nil {
			return nil, err
		}
		result.Or(docids)
	}
	return result, nil
}

// pairDocids returns the documents where a word of right follows a word of
// left at proximity.
func pairDocids(ctx *Context, left, right query.Query, proximity uint8) (*roaring.Bitmap, error) {
	lefts, err := queryWords(ctx, left)
	if err != nil {
		return nil, err
	}
	rights, err := queryWords(ctx, right)
	if err != nil {
		return nil, err
	}
	result := roaring.New()
	for _, l := range lefts {
		for _, r := range rights {
			docids, err := ctx.PairProximityDocids(l, r, proximity)
			if err != nil {
				return nil, err
			}
			result.Or(docids)
		}
	}
	return result, nil
}

// phraseDocids returns the documents holding the words of a phrase next to
// each other, in order.
func phraseDocids(ctx *Context, phrase *query.Operation) (*roaring.Bitmap, error) {
	children := phrase.Children
	for _, child := range children {
		if child.Kind != query.KindQuery {
			return nil, fmt.Errorf("%w: %s inside a phrase", query.ErrInvalidPhrase, child.Kind)
		}
	}
	switch len(children) {
	case 0:
		return roaring.New(), nil
	case 1:
		docids, err := queryDocids(ctx, children[0].Query)
		if err != nil {
			return nil, err
		}
		return docids.Clone(), nil
	}

	var result *roaring.Bitmap
	for i := 1; i < len(children); i++ {
		docids, err := pairDocids(ctx, children[i-1].Query, children[i].Query, 1)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = docids
		} else {
			result.And(docids)
		}
		if result.IsEmpty() {
			break
		}
	}
	return result, nil
}

// resolveAnyTypo returns the documents matching op whatever the number of
// typos of its leaves.
func resolveAnyTypo(ctx *Context, op *query.Operation) (*roaring.Bitmap, error) {
	if op == nil {
		return ctx.Reader.DocumentIDs()
	}
	key := op.Fingerprint()
	if docids, ok := ctx.anyTypo[key]; ok {
		return docids.Clone(), nil
	}
	docids, err := resolveAnyTypoUncached(ctx, op)
	if err != nil {
		return nil, err
	}
	ctx.anyTypo[key] = docids.Clone()
	return docids, nil
}

func resolveAnyTypoUncached(ctx *Context, op *query.Operation) (*roaring.Bitmap, error) {
	switch op.Kind {
	case query.KindQuery:
		docids, err := queryDocids(ctx, op.Query)
		if err != nil {
			return nil, err
		}
		return docids.Clone(), nil
	case query.KindPhrase:
		return phraseDocids(ctx, op)
	case query.KindOr:
		result := roaring.New()
		for _, child := range op.Children {
			docids, err := resolveAnyTypo(ctx, child)
			if err != nil {
				return nil, err
			}
			result.Or(docids)
		}
		return result, nil
	case query.KindAnd:
		var result *roaring.Bitmap
		for _, child := range op.Children {
			docids, err := resolveAnyTypo(ctx, child)
			if err != nil {
				return nil, err
			}
			if result == nil {
				result = docids
			} else {
				result.And(docids)
			}
			if result.IsEmpty() {
				break
			}
		}
		if result == nil {
			return roaring.New(), nil
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: operation kind %s", ErrInvalidState, op.Kind)
	}
}
