package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/rankit/config"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/facet"
	"github.com/poiesic/rankit/geo"
	"github.com/poiesic/rankit/search"
	"github.com/poiesic/rankit/storage"
	"github.com/urfave/cli/v2"
)

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	req, err := buildRequest(c, db.Config())
	if err != nil {
		return err
	}

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	defer searcher.Release()

	start := time.Now()
	res, err := searcher.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	elapsed := time.Since(start)
	if m := db.Metrics(); m != nil {
		m.ObserveLatency(elapsed)
	}

	snap, err := db.Snapshot(ctx)
	if err != nil {
		return err
	}
	defer snap.Close()
	return printResults(c.App.Writer, snap, res, req.Offset, elapsed)
}

// buildRequest turns the search flags and arguments into a request.
func buildRequest(c *cli.Context, cfg *config.Config) (*search.Request, error) {
	req := &search.Request{
		Text:   strings.Join(c.Args().Slice(), " "),
		Offset: c.Int("offset"),
		Limit:  c.Int("limit"),
	}
	if req.Limit == 0 {
		req.Limit = cfg.Search.DefaultLimit
	}

	if names := c.StringSlice("rule"); len(names) > 0 {
		rules, err := search.ParseRuleSpecs(names)
		if err != nil {
			return nil, err
		}
		req.Rules = rules
	}

	if target := c.String("geo"); target != "" {
		point, err := parsePoint(target)
		if err != nil {
			return nil, err
		}
		req.Geo = &search.GeoParams{Target: &point}
	}

	for _, r := range c.StringSlice("range") {
		filter, err := parseRange(r)
		if err != nil {
			return nil, err
		}
		req.Filters = append(req.Filters, filter)
	}
	return req, nil
}

// parsePoint parses "lat,lng".
func parsePoint(s string) (geo.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("invalid point %q: expected lat,lng", s)
	}
	var p geo.Point
	var err error
	if p.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	if p.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	return p, p.Validate()
}

// parseRange parses "field=low:high" into an inclusive filter.
func parseRange(s string) (search.NumericFilter, error) {
	field, bounds, ok := strings.Cut(s, "=")
	if !ok || field == "" {
		return search.NumericFilter{}, fmt.Errorf("invalid range %q: expected field=low:high", s)
	}
	low, high, ok := strings.Cut(bounds, ":")
	if !ok {
		return search.NumericFilter{}, fmt.Errorf("invalid range %q: expected field=low:high", s)
	}
	filter := search.NumericFilter{Field: field}
	var err error
	if filter.Low, err = parseBound(low); err != nil {
		return search.NumericFilter{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if filter.High, err = parseBound(high); err != nil {
		return search.NumericFilter{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	return filter, nil
}

func parseBound(s string) (facet.Bound, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return facet.Unbounded(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return facet.Bound{}, err
	}
	return facet.Included(v), nil
}

func printResults(w io.Writer, r storage.Reader, res *search.Result, offset int, elapsed time.Duration) error {
	settings, err := r.Settings()
	if err != nil {
		return err
	}
	textField, hasText := settings.FieldID("text")

	fmt.Fprintf(w, "Found %d hits in %s\n", res.EstimatedTotalHits, elapsed.Round(time.Microsecond))
	for i, id := range res.DocumentIDs {
		text := ""
		if hasText {
			if text, _, err = r.StringValue(id, textField); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%d: '%s' (%d)\n", offset+i, text, id)
	}
	return nil
}

// fieldID resolves a field name of the index settings.
func fieldID(r storage.Reader, name string) (core.FieldID, error) {
	settings, err := r.Settings()
	if err != nil {
		return 0, err
	}
	id, ok := settings.FieldID(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", core.ErrUnknownField, name)
	}
	return id, nil
}
