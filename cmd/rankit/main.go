// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/rankit"
	"github.com/poiesic/rankit/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rankit",
		Usage: "Ranked full-text, sort and geo search over an embedded index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "Index sample sentences or the lines of a file",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "src",
						Usage: "File of seed data, one document per line",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents written per transaction",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of batches written concurrently",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Rank the documents matching a query",
				ArgsUsage: "[query words...]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of documents to return (defaults to search.defaultLimit)",
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of ranked documents to skip",
					},
					&cli.StringSliceFlag{
						Name:  "rule",
						Usage: "Ranking rule, repeatable (words, typo, proximity, attribute, exactness, sort:<field>:asc|desc, geosort:asc|desc)",
					},
					&cli.StringFlag{
						Name:  "geo",
						Usage: "Target point of geo sorts as lat,lng",
					},
					&cli.StringSliceFlag{
						Name:  "range",
						Usage: "Numeric filter as field=low:high, either bound may be empty",
					},
				},
			},
			{
				Name:      "levels",
				Usage:     "Print the level range index of a numeric field",
				ArgsUsage: "<field>",
				Action:    levelsCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// openDatabase loads the configuration named by the global flags and opens
// the database it points to.
func openDatabase(c *cli.Context) (*rankit.Database, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	db, err := rankit.NewDatabase(c.String("db"), rankit.WithConfig(cfg), rankit.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
