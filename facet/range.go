package facet

import (
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/storage"
)

// Bound is one end of a numeric range.
type Bound struct {
	Value     float64
	Inclusive bool
	Unbounded bool
}

// Included returns an inclusive bound.
func Included(v float64) Bound {
	return Bound{Value: v, Inclusive: true}
}

// Excluded returns an exclusive bound.
func Excluded(v float64) Bound {
	return Bound{Value: v}
}

// Unbounded returns an open bound.
func Unbounded() Bound {
	return Bound{Unbounded: true}
}

func (b Bound) below(v float64) bool {
	switch {
	case b.Unbounded:
		return true
	case b.Inclusive:
		return b.Value <= v
	default:
		return b.Value < v
	}
}

func (b Bound) above(v float64) bool {
	switch {
	case b.Unbounded:
		return true
	case b.Inclusive:
		return v <= b.Value
	default:
		return v < b.Value
	}
}

// RangeDocids returns the documents having a value of field between low and
// high. Entries lying inside the bounds are taken whole; entries overlapping
// a bound are resolved from the level below.
func RangeDocids(r storage.Reader, field core.FieldID, low, high Bound) (*roaring.Bitmap, error) {
	result := roaring.New()
	top, ok, err := r.HighestLevel(field)
	if err != nil || !ok {
		return result, err
	}
	err = rangeLevel(r, field, top, math.Inf(-1), math.Inf(1), low, high, result)
	return result, err
}

func rangeLevel(r storage.Reader, field core.FieldID, level uint8, left, right float64, low, high Bound, result *roaring.Bitmap) error {
	entries, err := r.LevelEntries(field, level, left, right)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !low.below(entry.Right) || !high.above(entry.Left) {
			continue
		}
		if low.below(entry.Left) && high.above(entry.Right) {
			result.Or(entry.Docids)
			continue
		}
		if level > 0 {
			if err := rangeLevel(r, field, level-1, entry.Left, entry.Right, low, high, result); err != nil {
				return err
			}
		}
	}
	return nil
}
