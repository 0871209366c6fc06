package storage

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalBitmap(t *testing.T) {
	bm := roaring.BitmapOf(1, 2, 3, 1000, 70000)
	data, err := MarshalBitmap(bm)
	require.NoError(t, err)

	decoded, err := UnmarshalBitmap(data)
	require.NoError(t, err)
	assert.True(t, bm.Equals(decoded))

	// decoded bitmaps must not alias the source buffer
	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, uint64(5), decoded.GetCardinality())
}

func TestUnmarshalBitmap_Invalid(t *testing.T) {
	_, err := UnmarshalBitmap([]byte{0xff, 0x01})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestEncodeFloat_PreservesOrder(t *testing.T) {
	values := []float64{math.Inf(-1), -1e9, -2.5, -1, -0.001, 0, 0.001, 1, 1.5, 42, 1e12, math.Inf(1)}
	encoded := make([][]byte, len(values))
	for i, v := range values {
		encoded[i] = EncodeFloat(v)
	}
	assert.True(t, sort.SliceIsSorted(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	}))

	for i, v := range values {
		decoded, err := DecodeFloat(encoded[i])
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}

func TestEncodeFloat_NegativeZero(t *testing.T) {
	assert.Equal(t, EncodeFloat(0), EncodeFloat(math.Copysign(0, -1)))
}

func TestDecodeFloat_Truncated(t *testing.T) {
	_, err := DecodeFloat([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncatedData)
}

func TestMarshalUnmarshalSettings(t *testing.T) {
	settings := core.DefaultSettings()
	settings.AddField("title", true)
	settings.AddField("price", false)
	settings.RankingRules = append(settings.RankingRules, "sort:price:asc")

	data := MarshalSettings(settings)
	decoded, err := UnmarshalSettings(data)
	require.NoError(t, err)
	assert.Equal(t, settings, decoded)
}

func TestUnmarshalSettings_Truncated(t *testing.T) {
	settings := core.DefaultSettings()
	data := MarshalSettings(settings)

	_, err := UnmarshalSettings(data[:len(data)/2])
	assert.Error(t, err)
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  *core.Document
	}{
		{"empty document", &core.Document{ID: 7}},
		{
			"full document",
			&core.Document{
				ID: 42,
				Words: map[core.FieldID][]string{
					2: {"the", "quick", "brown", "fox"},
					3: {"jumps"},
				},
				Numbers: map[core.FieldID]float64{0: 45.5, 1: -73.25, 4: 0},
				Strings: map[core.FieldID]string{5: "red"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalDocument(tt.doc)
			assert.Len(t, data, DocumentMUS.Size(*tt.doc))

			decoded, err := UnmarshalDocument(data)
			require.NoError(t, err)
			assert.Equal(t, tt.doc, decoded)
		})
	}
}

func TestUnmarshalDocument_HugeLength(t *testing.T) {
	// id 1, then a word field count far larger than the input
	_, err := UnmarshalDocument([]byte{1, 0xff, 0xff, 0x03})
	assert.ErrorIs(t, err, ErrTruncatedData)
}
