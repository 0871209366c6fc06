package facet

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/storage"
)

// Level construction defaults.
const (
	DefaultGroupSize    = 4
	DefaultMinLevelSize = 5
)

// BuildLevels builds the levels above level 0.
//
// values must be the level 0 entries of one field sorted by value. Level L
// groups groupSize entries of level L-1; levels are added while
// len(values) / groupSize^L is at least minLevelSize. The returned slice
// holds level 1 first.
func BuildLevels(values []storage.LevelEntry, groupSize, minLevelSize int) [][]storage.LevelEntry {
	groupSize = max(groupSize, 2)
	minLevelSize = max(minLevelSize, 1)

	var levels [][]storage.LevelEntry
	previous := values
	span := groupSize
	for level := uint8(1); len(values)/span >= minLevelSize; level++ {
		current := make([]storage.LevelEntry, 0, (len(previous)+groupSize-1)/groupSize)
		for start := 0; start < len(previous); start += groupSize {
			group := previous[start:min(start+groupSize, len(previous))]
			docids := roaring.New()
			for _, e := range group {
				docids.Or(e.Docids)
			}
			current = append(current, storage.LevelEntry{
				Field:  group[0].Field,
				Level:  level,
				Left:   group[0].Left,
				Right:  group[len(group)-1].Right,
				Docids: docids,
			})
		}
		levels = append(levels, current)
		previous = current
		if level == 255 {
			break
		}
		span *= groupSize
	}
	return levels
}
