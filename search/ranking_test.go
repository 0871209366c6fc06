package search

import (
	"testing"

	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleSpec(t *testing.T) {
	tests := []struct {
		input   string
		want    RuleSpec
		wantErr error
	}{
		{input: "words", want: RuleSpec{Kind: RuleWords}},
		{input: " typo ", want: RuleSpec{Kind: RuleTypo}},
		{input: "proximity", want: RuleSpec{Kind: RuleProximity}},
		{input: "attribute", want: RuleSpec{Kind: RuleAttribute}},
		{input: "exactness", want: RuleSpec{Kind: RuleExactness}},
		{input: "sort:price:asc", want: RuleSpec{Kind: RuleSort, Field: "price", Ascending: true}},
		{input: "sort:release.date:desc", want: RuleSpec{Kind: RuleSort, Field: "release.date"}},
		{input: "geosort:asc", want: RuleSpec{Kind: RuleGeoSort, Ascending: true}},
		{input: "_geoPoint(48.85, 2.35):desc", want: RuleSpec{Kind: RuleGeoSort, Target: &geo.Point{Lat: 48.85, Lng: 2.35}}},
		{input: "_geoPoint(95,0):asc", wantErr: core.ErrInvalidCoordinates},
		{input: "_geoPoint(1):asc", wantErr: ErrUnknownRule},
		{input: "sort:price:up", wantErr: ErrUnknownRule},
		{input: "sort::asc", wantErr: ErrUnknownRule},
		{input: "relevance", wantErr: ErrUnknownRule},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRuleSpec(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleSpecString_RoundTrip(t *testing.T) {
	for _, name := range []string{"words", "typo", "sort:price:desc", "geosort:asc", "_geoPoint(1.5,-2):desc"} {
		spec, err := ParseRuleSpec(name)
		require.NoError(t, err)
		again, err := ParseRuleSpec(spec.String())
		require.NoError(t, err)
		assert.Equal(t, spec, again)
	}
}

func TestNewRankingRules(t *testing.T) {
	settings := core.DefaultSettings()
	settings.AddField("price", false)

	specs, err := ParseRuleSpecs([]string{"words", "typo", "proximity", "attribute", "sort:price:asc", "exactness"})
	require.NoError(t, err)
	rules, err := NewRankingRules(specs, RulesConfig{Settings: settings})
	require.NoError(t, err)

	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.ID()
	}
	assert.Equal(t, []string{"words", "typo", "proximity", "attribute", "sort:price:asc", "exactness"}, names)

	t.Run("typo ceiling default", func(t *testing.T) {
		assert.Equal(t, DefaultTypoCeiling, rules[1].(*typoRule).ceiling)
	})

	t.Run("unknown sort field", func(t *testing.T) {
		_, err := NewRankingRules([]RuleSpec{{Kind: RuleSort, Field: "weight"}}, RulesConfig{Settings: settings})
		assert.ErrorIs(t, err, core.ErrUnknownField)
	})

	t.Run("geo sort needs a target", func(t *testing.T) {
		_, err := NewRankingRules([]RuleSpec{{Kind: RuleGeoSort}}, RulesConfig{Settings: settings})
		assert.ErrorIs(t, err, ErrGeoTargetRequired)

		params := DefaultGeoParams()
		params.Target = &geo.Point{Lat: 1, Lng: 2}
		rules, err := NewRankingRules([]RuleSpec{{Kind: RuleGeoSort, Ascending: true}}, RulesConfig{Settings: settings, Geo: &params})
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, geo.Point{Lat: 1, Lng: 2}, rules[0].(*GeoSort).target)
	})

	t.Run("rule target wins", func(t *testing.T) {
		params := DefaultGeoParams()
		params.Target = &geo.Point{Lat: 1, Lng: 2}
		spec := RuleSpec{Kind: RuleGeoSort, Target: &geo.Point{Lat: 3, Lng: 4}}
		rules, err := NewRankingRules([]RuleSpec{spec}, RulesConfig{Settings: settings, Geo: &params})
		require.NoError(t, err)
		assert.Equal(t, geo.Point{Lat: 3, Lng: 4}, rules[0].(*GeoSort).target)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := NewRankingRules([]RuleSpec{{Kind: RuleKind(42)}}, RulesConfig{Settings: settings})
		assert.ErrorIs(t, err, ErrUnknownRule)
	})
}
