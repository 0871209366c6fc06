package query

import (
	"unicode/utf8"
)

// Dictionary lists the words of an index.
type Dictionary interface {
	// Words calls fn for every word starting with prefix, in lexicographic order.
	Words(prefix string, fn func(word string) error) error
}

// Derivation is a dictionary word matching a query word with Typo edits.
type Derivation struct {
	Word string
	Typo uint8
}

// Derivations returns the dictionary words within maxTypo edits of word.
//
// With one typo allowed the derivations must share the first letter of word.
// With two typos allowed a derivation differing on the first letter is
// accepted when the rest of it is within one edit, and counts as two typos.
// A prefix word matches any dictionary word having a close enough prefix.
func Derivations(dict Dictionary, word string, prefix bool, maxTypo uint8) ([]Derivation, error) {
	var derivations []Derivation
	queryRunes := []rune(word)

	switch {
	case maxTypo == 0:
		err := dict.Words(word, func(candidate string) error {
			if prefix || candidate == word {
				derivations = append(derivations, Derivation{Word: candidate})
			}
			return nil
		})
		return derivations, err

	case maxTypo == 1:
		err := dict.Words(firstLetter(word), func(candidate string) error {
			if d, ok := editDistance(queryRunes, []rune(candidate), prefix, 1); ok {
				derivations = append(derivations, Derivation{Word: candidate, Typo: uint8(d)})
			}
			return nil
		})
		return derivations, err

	default:
		first := firstLetter(word)
		err := dict.Words("", func(candidate string) error {
			if firstLetter(candidate) != first {
				if _, ok := editDistance(queryRunes, []rune(candidate), prefix, 1); ok {
					derivations = append(derivations, Derivation{Word: candidate, Typo: 2})
				}
				return nil
			}
			if d, ok := editDistance(queryRunes, []rune(candidate), prefix, 2); ok {
				derivations = append(derivations, Derivation{Word: candidate, Typo: uint8(d)})
			}
			return nil
		})
		return derivations, err
	}
}

func firstLetter(word string) string {
	if word == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(word)
	return word[:size]
}

// editDistance returns the optimal string alignment distance between query
// and candidate, adjacent transpositions counting as one edit. When prefix
// is set the distance to the closest prefix of candidate is returned. ok is
// false when the distance exceeds limit.
func editDistance(query, candidate []rune, prefix bool, limit int) (int, bool) {
	n, m := len(query), len(candidate)
	if !prefix && abs(n-m) > limit {
		return 0, false
	}

	prev2 := make([]int, m+1)
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for j := range prev {
		prev[j] = j
	}
	prevMin := 0

	for i := 1; i <= n; i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= m; j++ {
			cost := 1
			if query[i-1] == candidate[j-1] {
				cost = 0
			}
			d := min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && query[i-1] == candidate[j-2] && query[i-2] == candidate[j-1] {
				d = min(d, prev2[j-2]+1)
			}
			cur[j] = d
			rowMin = min(rowMin, d)
		}
		if rowMin > limit && prevMin > limit {
			return 0, false
		}
		prevMin = rowMin
		prev2, prev, cur = prev, cur, prev2
	}

	distance := prev[m]
	if prefix {
		for _, d := range prev {
			distance = min(distance, d)
		}
	}
	if distance > limit {
		return 0, false
	}
	return distance, true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

type derivationKey struct {
	word    string
	prefix  bool
	maxTypo uint8
}

// DerivationCache memoizes Derivations for the lifetime of one search.
type DerivationCache struct {
	dict    Dictionary
	entries map[derivationKey][]Derivation
}

// NewDerivationCache returns an empty cache over dict.
func NewDerivationCache(dict Dictionary) *DerivationCache {
	return &DerivationCache{dict: dict, entries: make(map[derivationKey][]Derivation)}
}

// Get returns the derivations of word, computing them on first use.
func (c *DerivationCache) Get(word string, prefix bool, maxTypo uint8) ([]Derivation, error) {
	key := derivationKey{word: word, prefix: prefix, maxTypo: maxTypo}
	if derivations, ok := c.entries[key]; ok {
		return derivations, nil
	}
	derivations, err := Derivations(c.dict, word, prefix, maxTypo)
	if err != nil {
		return nil, err
	}
	c.entries[key] = derivations
	return derivations, nil
}
