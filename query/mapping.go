package query

import "fmt"

// Range is a half-open range of original query word positions.
type Range struct {
	Start int
	End   int
}

// Len returns the number of positions covered.
func (r Range) Len() int {
	return r.End - r.Start
}

// Mapping maps each QueryID to the original word positions its leaf covers.
// Leaves that replace several words, such as concatenations, cover more than
// one position; leaves that split a word share its position.
type Mapping map[QueryID]Range

// BuildMapping labels the leaves of op left to right starting at zero and
// maps each one to the position of its rank. The tree is modified in place.
func BuildMapping(op *Operation) Mapping {
	mapping := make(Mapping)
	next := 0
	op.walk(func(o *Operation) {
		if o.Kind != KindQuery {
			return
		}
		id := QueryID(next)
		o.Query.ID = id
		mapping[id] = Range{Start: next, End: next + 1}
		next++
	})
	return mapping
}

// Lookup returns the range of id, or ErrUnknownQueryID.
func (m Mapping) Lookup(id QueryID) (Range, error) {
	r, ok := m[id]
	if !ok {
		return Range{}, fmt.Errorf("%w: %d", ErrUnknownQueryID, id)
	}
	return r, nil
}

// Validate checks that every leaf of op is mapped and that phrases only hold
// leaves.
func (m Mapping) Validate(op *Operation) error {
	var err error
	op.walk(func(o *Operation) {
		if err != nil {
			return
		}
		switch o.Kind {
		case KindQuery:
			_, err = m.Lookup(o.Query.ID)
		case KindPhrase:
			for _, child := range o.Children {
				if child.Kind != KindQuery {
					err = fmt.Errorf("%w: %s child", ErrInvalidPhrase, child.Kind)
					return
				}
			}
		}
	})
	return err
}
