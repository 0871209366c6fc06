package facet

import (
	"iter"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/storage"
)

// Group is a facet value and the candidates carrying it.
type Group struct {
	Value  float64
	Docids *roaring.Bitmap
}

// Ascending yields the values of field in ascending order with the
// candidates carrying them. A candidate is yielded once, with its smallest
// value.
func Ascending(r storage.Reader, field core.FieldID, candidates *roaring.Bitmap) iter.Seq2[Group, error] {
	return levelIterator(r, field, candidates, false, true)
}

// Descending is Ascending in descending order; a candidate is yielded with
// its largest value.
func Descending(r storage.Reader, field core.FieldID, candidates *roaring.Bitmap) iter.Seq2[Group, error] {
	return levelIterator(r, field, candidates, true, true)
}

// AscendingAll yields every value of field in ascending order with the
// candidates carrying it. Candidates with several values are yielded once
// per value.
func AscendingAll(r storage.Reader, field core.FieldID, candidates *roaring.Bitmap) iter.Seq2[Group, error] {
	return levelIterator(r, field, candidates, false, false)
}

// DescendingAll is AscendingAll in descending order.
func DescendingAll(r storage.Reader, field core.FieldID, candidates *roaring.Bitmap) iter.Seq2[Group, error] {
	return levelIterator(r, field, candidates, true, false)
}

func levelIterator(r storage.Reader, field core.FieldID, candidates *roaring.Bitmap, reverse, reducing bool) iter.Seq2[Group, error] {
	return func(yield func(Group, error) bool) {
		top, ok, err := r.HighestLevel(field)
		if err != nil {
			yield(Group{}, err)
			return
		}
		if !ok || candidates.IsEmpty() {
			return
		}
		w := &levelWalker{
			r:         r,
			field:     field,
			remaining: candidates.Clone(),
			reverse:   reverse,
			reducing:  reducing,
			yield:     yield,
		}
		w.walk(top, math.Inf(-1), math.Inf(1))
	}
}

type levelWalker struct {
	r         storage.Reader
	field     core.FieldID
	remaining *roaring.Bitmap
	reverse   bool
	reducing  bool
	yield     func(Group, error) bool
}

// walk visits the entries of level whose left bound lies in [left, right].
// It returns false once iteration must stop.
func (w *levelWalker) walk(level uint8, left, right float64) bool {
	entries, err := w.r.LevelEntries(w.field, level, left, right)
	if err != nil {
		w.yield(Group{}, err)
		return false
	}
	if w.reverse {
		slices.Reverse(entries)
	}

	for _, entry := range entries {
		docids := roaring.And(entry.Docids, w.remaining)
		if docids.IsEmpty() {
			continue
		}
		if level == 0 {
			if w.reducing {
				w.remaining.AndNot(docids)
			}
			if !w.yield(Group{Value: entry.Left, Docids: docids}, nil) {
				return false
			}
		} else if !w.walk(level-1, entry.Left, entry.Right) {
			return false
		}
		if w.reducing && w.remaining.IsEmpty() {
			return false
		}
	}
	return true
}
