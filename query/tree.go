package query

import (
	"strconv"
	"strings"

	"github.com/poiesic/rankit/core"
)

// MaxTyposPerWord is the largest number of typos a single word can carry.
const MaxTyposPerWord = 2

// PairMaxProximity is the largest cost counted between two consecutive
// words; word pairs further apart are not indexed.
const PairMaxProximity = 7

// QueryID labels a leaf of the tree. Ids are assigned left to right and are
// kept by every rewrite of the leaf.
type QueryID int

// QueryKind is the matching mode of a leaf: an exact word carrying the
// number of typos it was derived with, or a tolerant word carrying the
// number of typos it accepts.
type QueryKind struct {
	Word     string
	Typo     uint8
	Tolerant bool
}

// Exact returns an exact kind derived with originalTypo typos.
func Exact(word string, originalTypo uint8) QueryKind {
	return QueryKind{Word: word, Typo: originalTypo}
}

// Tolerant returns a kind accepting up to maxTypo typos.
func Tolerant(word string, maxTypo uint8) QueryKind {
	return QueryKind{Word: word, Typo: maxTypo, Tolerant: true}
}

// Query is a leaf term of the tree.
type Query struct {
	ID     QueryID
	Prefix bool
	Kind   QueryKind
}

// Typo returns the original typo of an exact leaf or the maximum typo of a tolerant one.
func (q Query) Typo() uint8 {
	return q.Kind.Typo
}

// Word returns the word of the leaf.
func (q Query) Word() string {
	return q.Kind.Word
}

// OperationKind tags the variant of an Operation.
type OperationKind uint8

const (
	KindQuery OperationKind = iota
	KindAnd
	KindOr
	KindPhrase
)

func (k OperationKind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindPhrase:
		return "phrase"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Operation is a node of the query tree.
type Operation struct {
	Kind OperationKind

	// Query is set on KindQuery leaves.
	Query Query

	// Optional marks the root disjunction whose branches drop words, in
	// order of preference. It is explored by the words rule.
	Optional bool

	Children []*Operation
}

// Leaf returns a KindQuery operation.
func Leaf(q Query) *Operation {
	return &Operation{Kind: KindQuery, Query: q}
}

// And returns the conjunction of children; a single child is returned as is.
func And(children ...*Operation) *Operation {
	if len(children) == 1 {
		return children[0]
	}
	return &Operation{Kind: KindAnd, Children: children}
}

// Or returns the disjunction of children; a single non optional child is returned as is.
func Or(optional bool, children ...*Operation) *Operation {
	if len(children) == 1 && !optional {
		return children[0]
	}
	return &Operation{Kind: KindOr, Optional: optional, Children: children}
}

// Phrase returns a consecutive sequence of exact leaves.
func Phrase(children ...*Operation) *Operation {
	return &Operation{Kind: KindPhrase, Children: children}
}

// Clone returns a deep copy of the tree.
func (op *Operation) Clone() *Operation {
	if op == nil {
		return nil
	}
	c := &Operation{Kind: op.Kind, Query: op.Query, Optional: op.Optional}
	if len(op.Children) > 0 {
		c.Children = make([]*Operation, len(op.Children))
		for i, child := range op.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Leaves returns the leaves of the tree in left to right order.
func (op *Operation) Leaves() []Query {
	var leaves []Query
	op.walk(func(o *Operation) {
		if o.Kind == KindQuery {
			leaves = append(leaves, o.Query)
		}
	})
	return leaves
}

func (op *Operation) walk(fn func(*Operation)) {
	if op == nil {
		return
	}
	fn(op)
	for _, child := range op.Children {
		child.walk(fn)
	}
}

// String returns the canonical form of the tree.
func (op *Operation) String() string {
	var sb strings.Builder
	op.write(&sb)
	return sb.String()
}

func (op *Operation) write(sb *strings.Builder) {
	if op == nil {
		sb.WriteString("nil")
		return
	}
	switch op.Kind {
	case KindQuery:
		q := op.Query
		if q.Kind.Tolerant {
			sb.WriteString("tolerant(")
		} else {
			sb.WriteString("exact(")
		}
		sb.WriteString(strconv.Quote(q.Kind.Word))
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(int(q.Kind.Typo)))
		if q.Prefix {
			sb.WriteString(",prefix")
		}
		sb.WriteByte(')')
		return
	case KindOr:
		if op.Optional {
			sb.WriteString("optional")
		}
	}
	sb.WriteString(op.Kind.String())
	sb.WriteByte('[')
	for i, child := range op.Children {
		if i > 0 {
			sb.WriteByte(' ')
		}
		child.write(sb)
	}
	sb.WriteByte(']')
}

// Fingerprint returns a stable hash of the canonical form, used as cache key.
// Leaf ids do not take part in it.
func (op *Operation) Fingerprint() core.ID {
	return core.IDFromContent(op.String())
}

// MaximumTypo returns the largest number of typos a match of the tree can carry.
func MaximumTypo(op *Operation) int {
	if op == nil {
		return 0
	}
	switch op.Kind {
	case KindOr:
		maxTypo := 0
		for _, child := range op.Children {
			maxTypo = max(maxTypo, MaximumTypo(child))
		}
		return maxTypo
	case KindAnd:
		sum := 0
		for _, child := range op.Children {
			sum += MaximumTypo(child)
		}
		return sum
	case KindQuery:
		return int(op.Query.Typo())
	default:
		return 0
	}
}

// MaximumProximity returns the largest summed pair cost of a match of the tree.
func MaximumProximity(op *Operation) int {
	if op == nil {
		return 0
	}
	switch op.Kind {
	case KindOr:
		maxProximity := 0
		for _, child := range op.Children {
			maxProximity = max(maxProximity, MaximumProximity(child))
		}
		return maxProximity
	case KindAnd:
		if len(op.Children) == 0 {
			return 0
		}
		sum := 0
		for _, child := range op.Children {
			sum += MaximumProximity(child)
		}
		return sum + (len(op.Children)-1)*PairMaxProximity
	default:
		return 0
	}
}
