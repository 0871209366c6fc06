package storage

import (
	"context"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
)

// LevelEntry is one entry of the level range index of a numeric field.
// Level 0 entries hold a single value (Left == Right); an entry of level L
// covers a contiguous run of level L-1 entries and holds the union of their
// documents.
type LevelEntry struct {
	Field  core.FieldID
	Level  uint8
	Left   float64
	Right  float64
	Docids *roaring.Bitmap
}

// Reader is a read-only view of an index. Every read is served by the same
// snapshot for the lifetime of the reader. Absent postings are returned as
// empty bitmaps, never as errors.
type Reader interface {
	// Settings returns the persisted index settings.
	Settings() (*core.Settings, error)

	// DocumentIDs returns every indexed document.
	DocumentIDs() (*roaring.Bitmap, error)

	// WordDocids returns the documents containing word.
	WordDocids(word string) (*roaring.Bitmap, error)

	// WordPrefixDocids returns the documents containing a word starting with prefix.
	WordPrefixDocids(prefix string) (*roaring.Bitmap, error)

	// WordFieldDocids returns the documents containing word in field.
	WordFieldDocids(word string, field core.FieldID) (*roaring.Bitmap, error)

	// WordPairProximityDocids returns the documents where right follows left
	// at the given proximity (1 means adjacent).
	WordPairProximityDocids(left, right string, proximity uint8) (*roaring.Bitmap, error)

	// Words calls fn for every dictionary word starting with prefix, in
	// lexicographic order.
	Words(prefix string, fn func(word string) error) error

	// HighestLevel returns the highest level of field; ok is false when the
	// field holds no numeric value.
	HighestLevel(field core.FieldID) (level uint8, ok bool, err error)

	// LevelEntries returns the entries of field at level whose left bound
	// lies in [left, right], in ascending order.
	LevelEntries(field core.FieldID, level uint8, left, right float64) ([]LevelEntry, error)

	// NumberValue returns the numeric facet value of a document.
	NumberValue(doc core.DocumentID, field core.FieldID) (float64, bool, error)

	// StringValue returns the string facet value of a document.
	StringValue(doc core.DocumentID, field core.FieldID) (string, bool, error)

	// GeoFacetedDocids returns the documents carrying both geo coordinates.
	GeoFacetedDocids() (*roaring.Bitmap, error)
}

// Snapshot is a Reader holding resources that must be released.
type Snapshot interface {
	Reader

	// Close releases the snapshot.
	Close()
}

// Snapshotter opens read snapshots.
// Implementations must be thread-safe.
type Snapshotter interface {
	// Snapshot opens a consistent read-only view of the index.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// IndexWriter maintains the postings, facets and levels read by a Reader.
// Implementations must be thread-safe.
type IndexWriter interface {
	// PutSettings persists the index settings.
	PutSettings(ctx context.Context, settings *core.Settings) error

	// AddDocuments indexes documents, replacing documents with the same id.
	AddDocuments(ctx context.Context, docs ...*core.Document) error

	// DeleteDocuments removes documents from every posting.
	// Returns ErrNotFound if any document doesn't exist.
	DeleteDocuments(ctx context.Context, ids ...core.DocumentID) error
}
