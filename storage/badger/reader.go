package badger

import (
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/storage"
)

// reader implements storage.Snapshot over a read-only transaction.
type reader struct {
	txn      *badger.Txn
	settings *core.Settings
}

var _ storage.Snapshot = (*reader)(nil)

func newReader(txn *badger.Txn) *reader {
	return &reader{txn: txn}
}

// Close discards the transaction.
func (r *reader) Close() {
	r.txn.Discard()
}

func (r *reader) Settings() (*core.Settings, error) {
	if r.settings != nil {
		return r.settings, nil
	}
	settings, err := loadSettings(r.txn)
	if err != nil {
		return nil, err
	}
	r.settings = settings
	return settings, nil
}

// loadSettings reads the settings, falling back to the defaults on a fresh index.
func loadSettings(txn *badger.Txn) (*core.Settings, error) {
	item, err := txn.Get([]byte(settingsKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.DefaultSettings(), nil
	}
	if err != nil {
		return nil, wrapErr("read settings", err)
	}
	var settings *core.Settings
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		settings, unmarshalErr = storage.UnmarshalSettings(val)
		return unmarshalErr
	})
	return settings, err
}

// getBitmap reads the bitmap stored at key. A missing key is an empty bitmap.
func getBitmap(txn *badger.Txn, key []byte) (*roaring.Bitmap, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return roaring.New(), nil
	}
	if err != nil {
		return nil, wrapErr("read postings", err)
	}
	var bm *roaring.Bitmap
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		bm, unmarshalErr = storage.UnmarshalBitmap(val)
		return unmarshalErr
	})
	return bm, err
}

func (r *reader) DocumentIDs() (*roaring.Bitmap, error) {
	return getBitmap(r.txn, []byte(documentsKey))
}

func (r *reader) WordDocids(word string) (*roaring.Bitmap, error) {
	return getBitmap(r.txn, makeWordKey(word))
}

func (r *reader) WordPrefixDocids(prefix string) (*roaring.Bitmap, error) {
	result := roaring.New()
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeWordKey(prefix)
	iter := r.txn.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		err := iter.Item().Value(func(val []byte) error {
			bm, err := storage.UnmarshalBitmap(val)
			if err != nil {
				return err
			}
			result.Or(bm)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *reader) WordFieldDocids(word string, field core.FieldID) (*roaring.Bitmap, error) {
	return getBitmap(r.txn, makeWordFieldKey(word, field))
}

func (r *reader) WordPairProximityDocids(left, right string, proximity uint8) (*roaring.Bitmap, error) {
	return getBitmap(r.txn, makeWordPairKey(left, right, proximity))
}

func (r *reader) Words(prefix string, fn func(word string) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeWordKey(prefix)
	opts.PrefetchValues = false
	iter := r.txn.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := fn(wordFromKey(iter.Item().Key())); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) HighestLevel(field core.FieldID) (uint8, bool, error) {
	return highestLevel(r.txn, field)
}

func highestLevel(txn *badger.Txn, field core.FieldID) (uint8, bool, error) {
	item, err := txn.Get(makeHighestLevelKey(field))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapErr("read highest level", err)
	}
	var level uint8
	err = item.Value(func(val []byte) error {
		if len(val) != 1 {
			return storage.ErrTruncatedData
		}
		level = val[0]
		return nil
	})
	return level, err == nil, err
}

func (r *reader) LevelEntries(field core.FieldID, level uint8, left, right float64) ([]storage.LevelEntry, error) {
	return levelEntries(r.txn, field, level, left, right)
}

func levelEntries(txn *badger.Txn, field core.FieldID, level uint8, left, right float64) ([]storage.LevelEntry, error) {
	var entries []storage.LevelEntry
	prefix := makeLevelPrefix(field, level)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := txn.NewIterator(opts)
	defer iter.Close()

	for iter.Seek(makeLevelKey(field, level, left, math.Inf(-1))); iter.Valid(); iter.Next() {
		item := iter.Item()
		_, entryLeft, entryRight, err := parseLevelKey(item.Key())
		if err != nil {
			return nil, fmt.Errorf("level entry %x: %w", item.Key(), err)
		}
		if entryLeft > right {
			break
		}
		var docids *roaring.Bitmap
		err = item.Value(func(val []byte) error {
			var unmarshalErr error
			docids, unmarshalErr = storage.UnmarshalBitmap(val)
			return unmarshalErr
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, storage.LevelEntry{
			Field:  field,
			Level:  level,
			Left:   entryLeft,
			Right:  entryRight,
			Docids: docids,
		})
	}
	return entries, nil
}

func (r *reader) NumberValue(doc core.DocumentID, field core.FieldID) (float64, bool, error) {
	item, err := r.txn.Get(makeDocumentFieldKey(numberValuePrefix, doc, field))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapErr("read number value", err)
	}
	var value float64
	err = item.Value(func(val []byte) error {
		var decodeErr error
		value, decodeErr = decodeNumber(val)
		return decodeErr
	})
	return value, err == nil, err
}

func (r *reader) StringValue(doc core.DocumentID, field core.FieldID) (string, bool, error) {
	item, err := r.txn.Get(makeDocumentFieldKey(stringValuePrefix, doc, field))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("read string value", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, err
	}
	return string(val), true, nil
}

func (r *reader) GeoFacetedDocids() (*roaring.Bitmap, error) {
	return getBitmap(r.txn, []byte(geoFacetedKey))
}
