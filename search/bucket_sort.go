package search

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/query"
)

// SortResult is a page of ranked documents.
type SortResult struct {
	Documents []core.DocumentID
	// Total is the estimated number of documents matching the search.
	Total uint64
}

// BucketSort ranks universe with rules and returns length documents
// starting at from.
//
// Each rule splits the bucket of the rule before it; a bucket reaches the
// results once the last rule produced it, it holds at most one document or
// it lies entirely before from. Documents of a final bucket are ordered by
// id.
func BucketSort(ctx *Context, rules []RankingRule, q *query.Operation, universe *roaring.Bitmap, from, length int) (*SortResult, error) {
	if err := ctx.Err(); err != nil {
		ctx.Monitor.Abort(err)
		return nil, err
	}
	from = max(from, 0)
	length = max(length, 0)
	ctx.recordOriginals(q)

	if len(rules) == 0 {
		return &SortResult{
			Documents: page(universe, from, length),
			Total:     universe.GetCardinality(),
		}, nil
	}

	s := &bucketSorter{
		ctx:       ctx,
		rules:     rules,
		universes: make([]*roaring.Bitmap, len(rules)),
		queries:   make([]*query.Operation, len(rules)),
		from:      from,
		length:    length,
		results:   make([]core.DocumentID, 0, min(length, int(universe.GetCardinality()))),
		total:     roaring.New(),
	}
	err := s.run(universe, q)
	s.endAll()
	if err != nil {
		ctx.Monitor.Abort(err)
		return nil, err
	}

	if s.filled() && !s.reportsCandidates {
		s.total.Or(s.universes[0])
	}
	return &SortResult{Documents: s.results, Total: s.total.GetCardinality()}, nil
}

type bucketSorter struct {
	ctx       *Context
	rules     []RankingRule
	universes []*roaring.Bitmap
	queries   []*query.Operation
	// current is the index of the deepest started rule, -1 once every rule ended
	current int

	from    int
	length  int
	skipped uint64
	results []core.DocumentID

	total             *roaring.Bitmap
	reportsCandidates bool
}

func (s *bucketSorter) filled() bool {
	return len(s.results) >= s.length
}

func (s *bucketSorter) start(depth int, universe *roaring.Bitmap, q *query.Operation) error {
	s.universes[depth] = universe
	s.queries[depth] = q
	s.current = depth
	rule := s.rules[depth]
	s.ctx.Monitor.RuleStarted(rule.ID(), depth, universe.GetCardinality())
	return rule.StartIteration(s.ctx, universe, q)
}

// end ends the deepest rule and returns to its parent.
func (s *bucketSorter) end() {
	s.rules[s.current].EndIteration(s.ctx)
	s.current--
}

func (s *bucketSorter) endAll() {
	for s.current >= 0 {
		s.end()
	}
}

func (s *bucketSorter) run(universe *roaring.Bitmap, q *query.Operation) error {
	s.current = -1
	if err := s.start(0, universe.Clone(), q); err != nil {
		return err
	}

	for s.current >= 0 && !s.filled() {
		if err := s.ctx.Err(); err != nil {
			return err
		}

		depth := s.current
		rule := s.rules[depth]
		current := s.universes[depth]
		if current.IsEmpty() {
			s.end()
			continue
		}

		bucket, err := rule.NextBucket(s.ctx, current)
		if err != nil {
			return err
		}
		if bucket == nil {
			s.end()
			continue
		}

		candidates := roaring.And(bucket.Candidates, current)
		if depth == 0 {
			if bucket.BucketCandidates != nil {
				s.reportsCandidates = true
				s.total.Or(bucket.BucketCandidates)
			} else {
				s.total.Or(candidates)
			}
		}
		current.AndNot(candidates)

		size := candidates.GetCardinality()
		s.ctx.Monitor.Bucket(rule.ID(), depth, size)

		switch {
		case s.skipped+size <= uint64(s.from):
			s.skipped += size
		case depth == len(s.rules)-1 || size <= 1:
			s.collect(candidates)
		default:
			next := bucket.Query
			if next == nil {
				next = s.queries[depth]
			}
			if err := s.start(depth+1, candidates, next); err != nil {
				return err
			}
		}
	}
	return nil
}

// collect appends the documents of a final bucket, skipping the ones
// before from.
func (s *bucketSorter) collect(bucket *roaring.Bitmap) {
	it := bucket.Iterator()
	for it.HasNext() && !s.filled() {
		doc := it.Next()
		if s.skipped < uint64(s.from) {
			s.skipped++
			continue
		}
		s.results = append(s.results, core.DocumentID(doc))
	}
}

func page(universe *roaring.Bitmap, from, length int) []core.DocumentID {
	docs := make([]core.DocumentID, 0, min(length, int(universe.GetCardinality())))
	it := universe.Iterator()
	for skipped := 0; it.HasNext() && len(docs) < length; {
		doc := it.Next()
		if skipped < from {
			skipped++
			continue
		}
		docs = append(docs, core.DocumentID(doc))
	}
	return docs
}
