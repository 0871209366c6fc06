package query

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/rankit/core"
)

// part is a word or a quoted phrase of the query text.
type part struct {
	words  []string
	phrase bool
	exact  bool
	prefix bool
	pos    Range
}

// Parse builds the query tree of text.
//
// Quoted segments become phrases. Other words become tolerant leaves whose
// typo budget depends on their length. The last word is a prefix unless the
// text ends with a space. Two consecutive words are also tried as their
// concatenation. With more than one part, the root is an optional disjunction
// whose branches drop parts from the end.
func Parse(text string, settings *core.Settings) (*Operation, Mapping, error) {
	parts := tokenize(text)
	if len(parts) == 0 {
		return nil, nil, ErrEmptyQuery
	}

	b := &builder{
		mapping:        make(Mapping),
		oneTypoWordLen: core.DefaultOneTypoWordLen,
		twoTypoWordLen: core.DefaultTwoTypoWordLen,
	}
	if settings != nil {
		b.oneTypoWordLen = int(settings.OneTypoWordLen)
		b.twoTypoWordLen = int(settings.TwoTypoWordLen)
	}

	if len(parts) == 1 {
		return b.build(parts), b.mapping, nil
	}

	branches := make([]*Operation, 0, len(parts))
	for n := len(parts); n > 0; n-- {
		branches = append(branches, b.build(parts[:n]))
	}
	return Or(true, branches...), b.mapping, nil
}

type builder struct {
	mapping        Mapping
	next           QueryID
	oneTypoWordLen int
	twoTypoWordLen int
}

func (b *builder) leaf(q Query, pos Range) *Operation {
	q.ID = b.next
	b.mapping[q.ID] = pos
	b.next++
	return Leaf(q)
}

func (b *builder) typos(word string) uint8 {
	n := utf8.RuneCountInString(word)
	switch {
	case n < b.oneTypoWordLen:
		return 0
	case n < b.twoTypoWordLen:
		return 1
	default:
		return 2
	}
}

func (b *builder) term(p part) *Operation {
	if p.phrase {
		children := make([]*Operation, len(p.words))
		for i, w := range p.words {
			pos := Range{Start: p.pos.Start + i, End: p.pos.Start + i + 1}
			children[i] = b.leaf(Query{Kind: Exact(w, 0)}, pos)
		}
		return Phrase(children...)
	}
	w := p.words[0]
	if p.exact {
		return b.leaf(Query{Kind: Exact(w, 0)}, p.pos)
	}
	return b.leaf(Query{Prefix: p.prefix, Kind: Tolerant(w, b.typos(w))}, p.pos)
}

// build returns the tree matching every part in order.
func (b *builder) build(parts []part) *Operation {
	if len(parts) == 0 {
		return nil
	}
	alternatives := []*Operation{conjunction(b.term(parts[0]), b.build(parts[1:]))}

	if len(parts) > 1 && !parts[0].phrase && !parts[1].phrase && !parts[0].exact && !parts[1].exact {
		word := parts[0].words[0] + parts[1].words[0]
		pos := Range{Start: parts[0].pos.Start, End: parts[1].pos.End}
		concat := b.leaf(Query{Prefix: parts[1].prefix, Kind: Tolerant(word, b.typos(word))}, pos)
		alternatives = append(alternatives, conjunction(concat, b.build(parts[2:])))
	}
	return Or(false, alternatives...)
}

// conjunction joins head and rest, flattening a conjunctive rest.
func conjunction(head, rest *Operation) *Operation {
	if rest == nil {
		return head
	}
	if rest.Kind == KindAnd {
		return And(append([]*Operation{head}, rest.Children...)...)
	}
	return And(head, rest)
}

// tokenize splits text into lower cased words and quoted phrases.
func tokenize(text string) []part {
	var parts []part
	pos := 0
	segments := strings.Split(text, `"`)
	for i, segment := range segments {
		words := strings.FieldsFunc(strings.ToLower(segment), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len(words) == 0 {
			continue
		}
		// odd segments are inside quotes, an unterminated quote is ignored
		quoted := i%2 == 1 && i < len(segments)-1
		if quoted && len(words) > 1 {
			parts = append(parts, part{words: words, phrase: true, pos: Range{Start: pos, End: pos + len(words)}})
			pos += len(words)
			continue
		}
		for _, w := range words {
			parts = append(parts, part{words: []string{w}, exact: quoted, pos: Range{Start: pos, End: pos + 1}})
			pos++
		}
	}

	if len(parts) > 0 {
		last := &parts[len(parts)-1]
		lastRune, _ := utf8.DecodeLastRuneInString(text)
		if !last.phrase && !last.exact && lastRune != '"' && !unicode.IsSpace(lastRune) {
			last.prefix = true
		}
	}
	return parts
}
