package badger

import (
	"encoding/binary"
	"math"

	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/storage"
)

// Key prefixes for different data types
const (
	settingsKey       = "settings"
	documentsKey      = "docids"
	geoFacetedKey     = "geodocids"
	wordPrefix        = "word:"
	wordFieldPrefix   = "wfld:"
	wordPairPrefix    = "pair:"
	levelPrefix       = "lvl:"
	highestLevelKey   = "hlvl:"
	numberValuePrefix = "num:"
	stringValuePrefix = "str:"
	documentPrefix    = "doc:"
)

// makeWordKey generates a key for the postings of a word.
// Format: prefix:word
func makeWordKey(word string) []byte {
	return append([]byte(wordPrefix), word...)
}

// wordFromKey extracts the word of a word postings key.
func wordFromKey(key []byte) string {
	return string(key[len(wordPrefix):])
}

// makeWordFieldKey generates a key for the postings of a word in a field.
// Format: prefix:fieldID:word
func makeWordFieldKey(word string, field core.FieldID) []byte {
	buf := make([]byte, len(wordFieldPrefix)+2, len(wordFieldPrefix)+2+len(word))
	offset := copy(buf, wordFieldPrefix)
	binary.BigEndian.PutUint16(buf[offset:], uint16(field))
	return append(buf, word...)
}

// makeWordPairKey generates a key for the postings of a word pair at a
// proximity. Words cannot contain a zero byte, which separates them.
// Format: prefix:left\x00right\x00proximity
func makeWordPairKey(left, right string, proximity uint8) []byte {
	buf := make([]byte, 0, len(wordPairPrefix)+len(left)+len(right)+3)
	buf = append(buf, wordPairPrefix...)
	buf = append(buf, left...)
	buf = append(buf, 0)
	buf = append(buf, right...)
	buf = append(buf, 0, proximity)
	return buf
}

// makeLevelPrefix generates the common prefix of the entries of a level.
// Format: prefix:fieldID:level
func makeLevelPrefix(field core.FieldID, level uint8) []byte {
	buf := make([]byte, len(levelPrefix)+3)
	offset := copy(buf, levelPrefix)
	binary.BigEndian.PutUint16(buf[offset:], uint16(field))
	buf[offset+2] = level
	return buf
}

// makeFieldLevelsPrefix generates the common prefix of every level of a field.
func makeFieldLevelsPrefix(field core.FieldID) []byte {
	return makeLevelPrefix(field, 0)[:len(levelPrefix)+2]
}

// makeHighestLevelKey generates the key holding the highest level of a field.
func makeHighestLevelKey(field core.FieldID) []byte {
	buf := make([]byte, len(highestLevelKey)+2)
	offset := copy(buf, highestLevelKey)
	binary.BigEndian.PutUint16(buf[offset:], uint16(field))
	return buf
}

// makeLevelKey generates a key for a level entry. Bounds are encoded so that
// entries sort by left bound.
// Format: prefix:fieldID:level:left:right
func makeLevelKey(field core.FieldID, level uint8, left, right float64) []byte {
	buf := make([]byte, len(levelPrefix)+3+16)
	copy(buf, makeLevelPrefix(field, level))
	offset := len(levelPrefix) + 3
	storage.PutFloat(buf[offset:], left)
	storage.PutFloat(buf[offset+8:], right)
	return buf
}

// parseLevelKey extracts the level and bounds of a level entry key.
func parseLevelKey(key []byte) (level uint8, left, right float64, err error) {
	if len(key) != len(levelPrefix)+3+16 {
		return 0, 0, 0, storage.ErrCorruptedKey
	}
	offset := len(levelPrefix) + 2
	level = key[offset]
	if left, err = storage.DecodeFloat(key[offset+1:]); err != nil {
		return 0, 0, 0, err
	}
	if right, err = storage.DecodeFloat(key[offset+9:]); err != nil {
		return 0, 0, 0, err
	}
	return level, left, right, nil
}

// makeDocumentFieldKey generates a forward facet key.
// Format: prefix:docID:fieldID
func makeDocumentFieldKey(prefix string, doc core.DocumentID, field core.FieldID) []byte {
	buf := make([]byte, len(prefix)+6)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint32(buf[offset:], uint32(doc))
	binary.BigEndian.PutUint16(buf[offset+4:], uint16(field))
	return buf
}

// makeDocumentKey generates a key for a document record.
// Format: prefix:docID
func makeDocumentKey(doc core.DocumentID) []byte {
	buf := make([]byte, len(documentPrefix)+4)
	offset := copy(buf, documentPrefix)
	binary.BigEndian.PutUint32(buf[offset:], uint32(doc))
	return buf
}

func encodeNumber(v float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

func decodeNumber(val []byte) (float64, error) {
	if len(val) != 8 {
		return 0, storage.ErrTruncatedData
	}
	return math.Float64frombits(binary.BigEndian.Uint64(val)), nil
}
