package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/rankit/facet"
	"github.com/poiesic/rankit/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestSetupLogger(t *testing.T) {
	newTestApp := func(action cli.ActionFunc) *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "info",
				},
			},
			Before: setupLogger,
			Action: action,
		}
	}
	noop := func(c *cli.Context) error { return nil }

	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
			t.Run(level, func(t *testing.T) {
				require.NoError(t, newTestApp(noop).Run([]string{"test", "--log-level", level}))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newTestApp(noop).Run([]string{"test", "--log-level", "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := newTestApp(func(c *cli.Context) error {
			assert.Equal(t, "debug", c.String("log-level"))
			return nil
		})
		require.NoError(t, app.Run([]string{"test", "-l", "debug"}))
	})
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint("48.85, 2.35")
	require.NoError(t, err)
	assert.Equal(t, geo.Point{Lat: 48.85, Lng: 2.35}, p)

	for _, bad := range []string{"48.85", "north,2", "48,east", "91,0"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		input string
		low   facet.Bound
		high  facet.Bound
	}{
		{"price=10:20", facet.Included(10), facet.Included(20)},
		{"price=:20", facet.Unbounded(), facet.Included(20)},
		{"price=10:", facet.Included(10), facet.Unbounded()},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			filter, err := parseRange(tt.input)
			require.NoError(t, err)
			assert.Equal(t, "price", filter.Field)
			assert.Equal(t, tt.low, filter.Low)
			assert.Equal(t, tt.high, filter.High)
		})
	}

	for _, bad := range []string{"price", "=1:2", "price=1", "price=a:2"} {
		_, err := parseRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"spice", "market", "selling", "saffron", "sumac"}, tokenize("Spice market selling saffron, sumac!"))
	assert.Empty(t, tokenize(" ... "))
}

// run executes the rankit app against dbPath and returns its output.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"rankit", "--log-level", "error", "--db", dbPath}, args...))
	return out.String(), err
}

func resultLines(out string) []string {
	return strings.Split(strings.TrimSpace(out), "\n")
}

func TestSeedAndSearch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rankit_db")

	_, err := run(t, dbPath, "seed", "--batch-size", "10", "--workers", "2", "--report-interval", "1000")
	require.NoError(t, err)

	t.Run("ranks title matches first", func(t *testing.T) {
		out, err := run(t, dbPath, "search", "coffee ")
		require.NoError(t, err)
		lines := resultLines(out)
		require.Len(t, lines, 4)
		assert.True(t, strings.HasPrefix(lines[0], "Found 3 hits"), lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "0: 'Coffee roastery"), lines[1])
	})

	t.Run("numeric range filter", func(t *testing.T) {
		out, err := run(t, dbPath, "search", "--range", "price=10:20", "bar ")
		require.NoError(t, err)
		lines := resultLines(out)
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "Found 2 hits"), lines[0])
	})

	t.Run("geo sort around a point", func(t *testing.T) {
		out, err := run(t, dbPath, "search", "--rule", "geosort:asc", "--geo", "48.85,2.35", "--limit", "2")
		require.NoError(t, err)
		lines := resultLines(out)
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[1], "0: 'Corner bakery"), lines[1])
		assert.True(t, strings.HasPrefix(lines[2], "1: 'Bistro"), lines[2])
	})

	t.Run("unknown rule", func(t *testing.T) {
		_, err := run(t, dbPath, "search", "--rule", "popularity", "bar")
		assert.Error(t, err)
	})

	t.Run("levels of price", func(t *testing.T) {
		out, err := run(t, dbPath, "levels", "price")
		require.NoError(t, err)
		assert.Contains(t, out, "level 1:")
		assert.Contains(t, out, "level 0:")
	})

	t.Run("levels of unknown field", func(t *testing.T) {
		_, err := run(t, dbPath, "levels", "weight")
		assert.Error(t, err)
	})
}

func TestSeedCommandValidation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rankit_db")

	_, err := run(t, dbPath, "seed", "--batch-size", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-size")

	_, err = run(t, dbPath, "seed", "--workers", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}
