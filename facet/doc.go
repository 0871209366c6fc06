// Package facet implements the level range index of numeric fields.
//
// Level 0 of a field holds one entry per distinct value with the documents
// carrying it. Each entry of level L > 0 covers a run of consecutive level
// L-1 entries and holds the union of their documents, so a range of values
// can be resolved from a few coarse entries and a sorted walk can skip whole
// groups holding none of the candidates.
package facet
