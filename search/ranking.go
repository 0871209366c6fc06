package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/geo"
	"github.com/poiesic/rankit/query"
)

// DefaultTypoCeiling bounds the typo budget explored by the typo rule.
const DefaultTypoCeiling = 8

// Bucket is a group of equally ranked documents produced by a rule.
type Bucket struct {
	// Query is the tree the bucket was resolved with; rules below refine it.
	// Nil keeps the tree of the parent rule.
	Query *query.Operation

	// Candidates are the documents of the bucket, a subset of the universe
	// given to NextBucket.
	Candidates *roaring.Bitmap

	// BucketCandidates optionally reports every document the rule could
	// rank in this iteration, used to estimate the total hits.
	BucketCandidates *roaring.Bitmap
}

// RankingRule splits a universe of documents into ordered buckets.
//
// The pipeline calls StartIteration with the universe and tree to rank,
// NextBucket until it returns a nil bucket or the pipeline has enough
// documents, and EndIteration once before starting again.
type RankingRule interface {
	ID() string
	StartIteration(ctx *Context, universe *roaring.Bitmap, q *query.Operation) error
	NextBucket(ctx *Context, universe *roaring.Bitmap) (*Bucket, error)
	EndIteration(ctx *Context)
}

// RuleKind names a ranking rule.
type RuleKind uint8

const (
	RuleWords RuleKind = iota
	RuleTypo
	RuleProximity
	RuleAttribute
	RuleSort
	RuleGeoSort
	RuleExactness
)

func (k RuleKind) String() string {
	switch k {
	case RuleWords:
		return "words"
	case RuleTypo:
		return "typo"
	case RuleProximity:
		return "proximity"
	case RuleAttribute:
		return "attribute"
	case RuleSort:
		return "sort"
	case RuleGeoSort:
		return "geosort"
	case RuleExactness:
		return "exactness"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// RuleSpec describes one ranking rule of a search.
type RuleSpec struct {
	Kind RuleKind

	// Field is the numeric field of a sort rule.
	Field string

	// Ascending sets the direction of sort and geo sort rules.
	Ascending bool

	// Target overrides the geo target of the search for a geo sort rule.
	Target *geo.Point
}

func (s RuleSpec) String() string {
	direction := "desc"
	if s.Ascending {
		direction = "asc"
	}
	switch s.Kind {
	case RuleSort:
		return "sort:" + s.Field + ":" + direction
	case RuleGeoSort:
		if s.Target != nil {
			return fmt.Sprintf("_geoPoint(%v,%v):%s", s.Target.Lat, s.Target.Lng, direction)
		}
		return "geosort:" + direction
	default:
		return s.Kind.String()
	}
}

// ParseRuleSpec parses a rule name: "words", "typo", "proximity",
// "attribute", "exactness", "sort:<field>:asc|desc", "geosort:asc|desc" or
// "_geoPoint(<lat>,<lng>):asc|desc".
func ParseRuleSpec(s string) (RuleSpec, error) {
	name := strings.TrimSpace(s)
	switch name {
	case "words":
		return RuleSpec{Kind: RuleWords}, nil
	case "typo":
		return RuleSpec{Kind: RuleTypo}, nil
	case "proximity":
		return RuleSpec{Kind: RuleProximity}, nil
	case "attribute":
		return RuleSpec{Kind: RuleAttribute}, nil
	case "exactness":
		return RuleSpec{Kind: RuleExactness}, nil
	}

	idx := strings.LastIndexByte(name, ':')
	if idx < 0 {
		return RuleSpec{}, fmt.Errorf("%w: %q", ErrUnknownRule, s)
	}
	head, direction := name[:idx], name[idx+1:]
	var ascending bool
	switch direction {
	case "asc":
		ascending = true
	case "desc":
	default:
		return RuleSpec{}, fmt.Errorf("%w: %q: direction must be asc or desc", ErrUnknownRule, s)
	}

	switch {
	case head == "geosort":
		return RuleSpec{Kind: RuleGeoSort, Ascending: ascending}, nil
	case strings.HasPrefix(head, "_geoPoint(") && strings.HasSuffix(head, ")"):
		coords := strings.Split(head[len("_geoPoint("):len(head)-1], ",")
		if len(coords) != 2 {
			return RuleSpec{}, fmt.Errorf("%w: %q", ErrUnknownRule, s)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return RuleSpec{}, fmt.Errorf("%w: %q: %w", ErrUnknownRule, s, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return RuleSpec{}, fmt.Errorf("%w: %q: %w", ErrUnknownRule, s, err)
		}
		target := geo.Point{Lat: lat, Lng: lng}
		if err := target.Validate(); err != nil {
			return RuleSpec{}, err
		}
		return RuleSpec{Kind: RuleGeoSort, Ascending: ascending, Target: &target}, nil
	case strings.HasPrefix(head, "sort:") && len(head) > len("sort:"):
		return RuleSpec{Kind: RuleSort, Field: head[len("sort:"):], Ascending: ascending}, nil
	default:
		return RuleSpec{}, fmt.Errorf("%w: %q", ErrUnknownRule, s)
	}
}

// ParseRuleSpecs parses a list of rule names.
func ParseRuleSpecs(names []string) ([]RuleSpec, error) {
	specs := make([]RuleSpec, 0, len(names))
	for _, name := range names {
		spec, err := ParseRuleSpec(name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// RulesConfig holds the parameters shared by the rules of a search.
type RulesConfig struct {
	Settings    *core.Settings
	TypoCeiling int
	// Geo is required by geo sort rules without a target of their own.
	Geo *GeoParams
}

// NewRankingRules builds fresh rule instances for one search.
func NewRankingRules(specs []RuleSpec, cfg RulesConfig) ([]RankingRule, error) {
	ceiling := cfg.TypoCeiling
	if ceiling <= 0 {
		ceiling = DefaultTypoCeiling
	}

	rules := make([]RankingRule, 0, len(specs))
	for _, spec := range specs {
		switch spec.Kind {
		case RuleWords:
			rules = append(rules, newWordsRule())
		case RuleTypo:
			rules = append(rules, newTypoRule(ceiling))
		case RuleProximity:
			rules = append(rules, newProximityRule())
		case RuleAttribute:
			rules = append(rules, newAttributeRule())
		case RuleExactness:
			rules = append(rules, newExactnessRule())
		case RuleSort:
			if cfg.Settings == nil {
				return nil, fmt.Errorf("%w: sort:%s", core.ErrUnknownField, spec.Field)
			}
			field, ok := cfg.Settings.FieldID(spec.Field)
			if !ok {
				return nil, fmt.Errorf("%w: %q", core.ErrUnknownField, spec.Field)
			}
			rules = append(rules, newSortRule(spec.Field, field, spec.Ascending))
		case RuleGeoSort:
			params := DefaultGeoParams()
			if cfg.Geo != nil {
				params = *cfg.Geo
			}
			if spec.Target != nil {
				params.Target = spec.Target
			}
			if params.Target == nil {
				return nil, ErrGeoTargetRequired
			}
			rule, err := NewGeoSort(params, spec.Ascending)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownRule, spec.Kind)
		}
	}
	return rules, nil
}
