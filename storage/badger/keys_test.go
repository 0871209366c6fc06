package badger

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelKey_RoundTrip(t *testing.T) {
	key := makeLevelKey(7, 2, -3.5, 12.25)
	assert.True(t, bytes.HasPrefix(key, makeLevelPrefix(7, 2)))
	assert.True(t, bytes.HasPrefix(key, makeFieldLevelsPrefix(7)))

	level, left, right, err := parseLevelKey(key)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), level)
	assert.Equal(t, -3.5, left)
	assert.Equal(t, 12.25, right)

	_, _, _, err = parseLevelKey(key[:len(key)-1])
	assert.Error(t, err)
}

func TestLevelKey_OrderedByLeftBound(t *testing.T) {
	lefts := []float64{math.Inf(-1), -100, -1, 0, 0.5, 3, 1e9}
	for i := 1; i < len(lefts); i++ {
		prev := makeLevelKey(1, 0, lefts[i-1], lefts[i-1])
		cur := makeLevelKey(1, 0, lefts[i], lefts[i])
		assert.Negative(t, bytes.Compare(prev, cur), "%v < %v", lefts[i-1], lefts[i])
	}
}

func TestWordKeys(t *testing.T) {
	assert.Equal(t, "hello", wordFromKey(makeWordKey("hello")))
	assert.True(t, bytes.HasPrefix(makeWordKey("hello"), makeWordKey("he")))
	assert.NotEqual(t, makeWordPairKey("ab", "c", 1), makeWordPairKey("a", "bc", 1))
	assert.NotEqual(t, makeWordFieldKey("a", 1), makeWordFieldKey("a", 2))
}

func TestNumberEncoding(t *testing.T) {
	for _, v := range []float64{0, -1.5, math.MaxFloat64, math.SmallestNonzeroFloat64} {
		decoded, err := decodeNumber(encodeNumber(v))
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
	_, err := decodeNumber([]byte{1})
	assert.Error(t, err)
}
