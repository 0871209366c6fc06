package core

import (
	"encoding/binary"
	"slices"

	"github.com/go-crypt/x/blake2b"
)

// ID is a 64-bit content identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	return IDFromBytes([]byte(text))
}

// IDFromBytes is IDFromContent for raw bytes.
func IDFromBytes(data []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentID is the dense internal identifier of an indexed document.
// It is assigned by ingestion and never reused while referenced by the index.
type DocumentID uint32

// FieldID identifies a document field inside an index.
type FieldID uint16

// Names of the reserved geo fields.
const (
	GeoLatFieldName = "_geo.lat"
	GeoLngFieldName = "_geo.lng"
)

// Default typo thresholds on the length of a query word.
const (
	DefaultOneTypoWordLen = 5
	DefaultTwoTypoWordLen = 9
)

// Field declares a field of the index.
type Field struct {
	ID         FieldID
	Name       string
	Searchable bool
}

// Settings is the persisted configuration of an index.
type Settings struct {
	// Fields in searchable importance order: the first searchable field
	// ranks highest for the attribute rule.
	Fields []Field

	// Words shorter than OneTypoWordLen accept no typo; words shorter than
	// TwoTypoWordLen accept one.
	OneTypoWordLen uint8
	TwoTypoWordLen uint8

	// RankingRules is the default rule order, e.g. "words", "typo", "sort:price:asc".
	RankingRules []string
}

// DefaultSettings returns settings with the geo fields declared and the
// default typo thresholds.
func DefaultSettings() *Settings {
	return &Settings{
		Fields: []Field{
			{ID: 0, Name: GeoLatFieldName},
			{ID: 1, Name: GeoLngFieldName},
		},
		OneTypoWordLen: DefaultOneTypoWordLen,
		TwoTypoWordLen: DefaultTwoTypoWordLen,
		RankingRules:   []string{"words", "typo", "proximity", "attribute", "exactness"},
	}
}

// FieldID returns the id of the named field.
func (s *Settings) FieldID(name string) (FieldID, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.ID, true
		}
	}
	return 0, false
}

// FieldName returns the name of a field id.
func (s *Settings) FieldName(id FieldID) (string, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f.Name, true
		}
	}
	return "", false
}

// SearchableFields returns the searchable field ids by decreasing importance.
func (s *Settings) SearchableFields() []FieldID {
	ids := make([]FieldID, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Searchable {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// GeoFields returns the lat and lng field ids, ok is false when either is missing.
func (s *Settings) GeoFields() (lat, lng FieldID, ok bool) {
	lat, latOk := s.FieldID(GeoLatFieldName)
	lng, lngOk := s.FieldID(GeoLngFieldName)
	return lat, lng, latOk && lngOk
}

// AddField declares a new field and returns its id. Declaring an existing
// name returns the existing id.
func (s *Settings) AddField(name string, searchable bool) FieldID {
	if id, ok := s.FieldID(name); ok {
		return id
	}
	var next FieldID
	for _, f := range s.Fields {
		if f.ID >= next {
			next = f.ID + 1
		}
	}
	s.Fields = append(s.Fields, Field{ID: next, Name: name, Searchable: searchable})
	return next
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	return &Settings{
		Fields:         slices.Clone(s.Fields),
		OneTypoWordLen: s.OneTypoWordLen,
		TwoTypoWordLen: s.TwoTypoWordLen,
		RankingRules:   slices.Clone(s.RankingRules),
	}
}

// Document is a tokenized document handed to the index writer.
type Document struct {
	ID DocumentID
	// Words holds the tokens of each searchable field in position order.
	Words map[FieldID][]string
	// Numbers holds numeric facet values, including geo coordinates.
	Numbers map[FieldID]float64
	// Strings holds string facet values.
	Strings map[FieldID]string
}
