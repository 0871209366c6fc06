package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/facet"
	"github.com/poiesic/rankit/query"
	"github.com/poiesic/rankit/storage"
)

// IndexWriter implements storage.IndexWriter for BadgerDB.
// Every call runs in its own read-write transaction, retried on conflicts.
type IndexWriter struct {
	backend      *Backend
	logger       *slog.Logger
	groupSize    int
	minLevelSize int
	maxAttempts  int
	baseDelay    time.Duration
}

var _ storage.IndexWriter = (*IndexWriter)(nil)

// WriterOption configures an IndexWriter.
type WriterOption func(*IndexWriter) error

// WithLevelGrouping sets the level group size and minimum level size.
func WithLevelGrouping(groupSize, minLevelSize int) WriterOption {
	return func(w *IndexWriter) error {
		if groupSize < 2 || minLevelSize < 1 {
			return fmt.Errorf("invalid level grouping %d/%d", groupSize, minLevelSize)
		}
		w.groupSize = groupSize
		w.minLevelSize = minLevelSize
		return nil
	}
}

// WithConflictRetry sets how often a conflicting transaction is retried.
func WithConflictRetry(maxAttempts int, baseDelay time.Duration) WriterOption {
	return func(w *IndexWriter) error {
		if maxAttempts <= 0 {
			return fmt.Errorf("max attempts must be positive, got %d", maxAttempts)
		}
		w.maxAttempts = maxAttempts
		w.baseDelay = baseDelay
		return nil
	}
}

// NewIndexWriter creates an index writer over backend.
func NewIndexWriter(backend *Backend, opts ...WriterOption) (*IndexWriter, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	w := &IndexWriter{
		backend:      backend,
		logger:       backend.logger,
		groupSize:    facet.DefaultGroupSize,
		minLevelSize: facet.DefaultMinLevelSize,
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// PutSettings persists the index settings.
func (w *IndexWriter) PutSettings(ctx context.Context, settings *core.Settings) error {
	if err := core.ValidateSettings(settings); err != nil {
		return err
	}
	return w.update(ctx, func(tx *badger.Txn) error {
		return tx.Set([]byte(settingsKey), storage.MarshalSettings(settings))
	})
}

// AddDocuments indexes documents, replacing documents with the same id.
func (w *IndexWriter) AddDocuments(ctx context.Context, docs ...*core.Document) error {
	if len(docs) == 0 {
		return nil
	}
	err := w.update(ctx, func(tx *badger.Txn) error {
		b, err := newWriteBatch(tx)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := b.remove(doc.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if err := b.add(doc); err != nil {
				return err
			}
		}
		return b.flush(w.groupSize, w.minLevelSize)
	})
	if err == nil {
		w.logger.Debug("documents indexed", "count", len(docs))
	}
	return err
}

// DeleteDocuments removes documents from every posting.
// Returns ErrNotFound if any document doesn't exist.
func (w *IndexWriter) DeleteDocuments(ctx context.Context, ids ...core.DocumentID) error {
	if len(ids) == 0 {
		return nil
	}
	err := w.update(ctx, func(tx *badger.Txn) error {
		b, err := newWriteBatch(tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := b.remove(id); err != nil {
				return err
			}
		}
		return b.flush(w.groupSize, w.minLevelSize)
	})
	if err == nil {
		w.logger.Debug("documents deleted", "count", len(ids))
	}
	return err
}

func (w *IndexWriter) update(ctx context.Context, fn func(tx *badger.Txn) error) error {
	return retryOnConflict(ctx, w.logger, func() error {
		return w.backend.WithTx(func(tx *badger.Txn) error {
			if err := fn(tx); err != nil {
				return err
			}
			if err := tx.Commit(); err != nil {
				if errors.Is(err, badger.ErrConflict) {
					return err
				}
				return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
			}
			return nil
		}, true)
	}, w.maxAttempts, w.baseDelay)
}

// writeBatch accumulates posting changes of one transaction.
type writeBatch struct {
	tx       *badger.Txn
	settings *core.Settings
	bitmaps  map[string]*roaring.Bitmap
	// numeric fields whose levels must be rebuilt
	touched map[core.FieldID]struct{}
}

func newWriteBatch(tx *badger.Txn) (*writeBatch, error) {
	settings, err := loadSettings(tx)
	if err != nil {
		return nil, err
	}
	return &writeBatch{
		tx:       tx,
		settings: settings,
		bitmaps:  make(map[string]*roaring.Bitmap),
		touched:  make(map[core.FieldID]struct{}),
	}, nil
}

// bitmap returns the pending bitmap of key, loading it on first use.
func (b *writeBatch) bitmap(key []byte) (*roaring.Bitmap, error) {
	if bm, ok := b.bitmaps[string(key)]; ok {
		return bm, nil
	}
	bm, err := getBitmap(b.tx, key)
	if err != nil {
		return nil, err
	}
	b.bitmaps[string(key)] = bm
	return bm, nil
}

func (b *writeBatch) update(key []byte, doc core.DocumentID, add bool) error {
	bm, err := b.bitmap(key)
	if err != nil {
		return err
	}
	if add {
		bm.Add(uint32(doc))
	} else {
		bm.Remove(uint32(doc))
	}
	return nil
}

// postingKeys returns every posting key a document belongs to, excluding the
// documents and geo bitmaps.
func postingKeys(doc *core.Document) [][]byte {
	var keys [][]byte
	for field, words := range doc.Words {
		for _, word := range words {
			keys = append(keys, makeWordKey(word), makeWordFieldKey(word, field))
		}
		for pair, proximity := range pairProximities(words) {
			keys = append(keys, makeWordPairKey(pair.left, pair.right, proximity))
		}
	}
	for field, value := range doc.Numbers {
		keys = append(keys, makeLevelKey(field, 0, value, value))
	}
	return keys
}

type wordPair struct {
	left, right string
}

// pairProximities returns the smallest proximity of every ordered word pair
// of a field. A word followed by another at distance d has proximity d, the
// reverse order costs one more; pairs beyond query.PairMaxProximity are
// dropped.
func pairProximities(words []string) map[wordPair]uint8 {
	pairs := make(map[wordPair]uint8)
	keep := func(p wordPair, proximity int) {
		if proximity > query.PairMaxProximity {
			return
		}
		if current, ok := pairs[p]; !ok || uint8(proximity) < current {
			pairs[p] = uint8(proximity)
		}
	}
	for i, left := range words {
		for j := i + 1; j < len(words) && j-i <= query.PairMaxProximity; j++ {
			right := words[j]
			keep(wordPair{left, right}, j-i)
			keep(wordPair{right, left}, j-i+1)
		}
	}
	return pairs
}

func (b *writeBatch) isGeo(doc *core.Document) bool {
	lat, lng, ok := b.settings.GeoFields()
	if !ok {
		return false
	}
	_, hasLat := doc.Numbers[lat]
	_, hasLng := doc.Numbers[lng]
	return hasLat && hasLng
}

func (b *writeBatch) add(doc *core.Document) error {
	for _, key := range postingKeys(doc) {
		if err := b.update(key, doc.ID, true); err != nil {
			return err
		}
	}
	for field, value := range doc.Numbers {
		b.touched[field] = struct{}{}
		if err := b.tx.Set(makeDocumentFieldKey(numberValuePrefix, doc.ID, field), encodeNumber(value)); err != nil {
			return err
		}
	}
	for field, value := range doc.Strings {
		if err := b.tx.Set(makeDocumentFieldKey(stringValuePrefix, doc.ID, field), []byte(value)); err != nil {
			return err
		}
	}
	if b.isGeo(doc) {
		if err := b.update([]byte(geoFacetedKey), doc.ID, true); err != nil {
			return err
		}
	}
	if err := b.update([]byte(documentsKey), doc.ID, true); err != nil {
		return err
	}
	return b.tx.Set(makeDocumentKey(doc.ID), storage.MarshalDocument(doc))
}

// remove deletes a document from every posting it was added to.
func (b *writeBatch) remove(id core.DocumentID) error {
	key := makeDocumentKey(id)
	item, err := b.tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: document %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	if err != nil {
		return err
	}

	for _, key := range postingKeys(doc) {
		if err := b.update(key, id, false); err != nil {
			return err
		}
	}
	for field := range doc.Numbers {
		b.touched[field] = struct{}{}
		if err := b.tx.Delete(makeDocumentFieldKey(numberValuePrefix, id, field)); err != nil {
			return err
		}
	}
	for field := range doc.Strings {
		if err := b.tx.Delete(makeDocumentFieldKey(stringValuePrefix, id, field)); err != nil {
			return err
		}
	}
	if err := b.update([]byte(geoFacetedKey), id, false); err != nil {
		return err
	}
	if err := b.update([]byte(documentsKey), id, false); err != nil {
		return err
	}
	return b.tx.Delete(key)
}

// flush writes the pending bitmaps, dropping empty ones, then rebuilds the
// levels of every touched numeric field.
func (b *writeBatch) flush(groupSize, minLevelSize int) error {
	for key, bm := range b.bitmaps {
		if bm.IsEmpty() {
			if err := b.tx.Delete([]byte(key)); err != nil {
				return err
			}
			continue
		}
		bm.RunOptimize()
		data, err := storage.MarshalBitmap(bm)
		if err != nil {
			return err
		}
		if err := b.tx.Set([]byte(key), data); err != nil {
			return err
		}
	}
	for field := range b.touched {
		if err := rebuildLevels(b.tx, field, groupSize, minLevelSize); err != nil {
			return fmt.Errorf("rebuild levels of field %d: %w", field, err)
		}
	}
	return nil
}

// rebuildLevels replaces the levels above level 0 of field.
func rebuildLevels(tx *badger.Txn, field core.FieldID, groupSize, minLevelSize int) error {
	var stale [][]byte
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeFieldLevelsPrefix(field)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		key := iter.Item().KeyCopy(nil)
		if key[len(levelPrefix)+2] > 0 {
			stale = append(stale, key)
		}
	}
	iter.Close()

	for _, key := range stale {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}

	level0, err := levelEntries(tx, field, 0, math.Inf(-1), math.Inf(1))
	if err != nil {
		return err
	}
	if len(level0) == 0 {
		return tx.Delete(makeHighestLevelKey(field))
	}

	levels := facet.BuildLevels(level0, groupSize, minLevelSize)
	for _, entries := range levels {
		for _, entry := range entries {
			data, err := storage.MarshalBitmap(entry.Docids)
			if err != nil {
				return err
			}
			if err := tx.Set(makeLevelKey(field, entry.Level, entry.Left, entry.Right), data); err != nil {
				return err
			}
		}
	}
	return tx.Set(makeHighestLevelKey(field), []byte{uint8(len(levels))})
}
