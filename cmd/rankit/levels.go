package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/poiesic/rankit/storage"
	"github.com/urfave/cli/v2"
)

func levelsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one field name")
	}
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := db.Snapshot(ctx)
	if err != nil {
		return err
	}
	defer snap.Close()
	return printLevels(c.App.Writer, snap, c.Args().First())
}

// printLevels writes one line per level of field, from the highest down,
// followed by its entries.
func printLevels(w io.Writer, r storage.Reader, name string) error {
	field, err := fieldID(r, name)
	if err != nil {
		return err
	}
	top, ok, err := r.HighestLevel(field)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(w, "%s holds no numeric value\n", name)
		return nil
	}

	for level := int(top); level >= 0; level-- {
		entries, err := r.LevelEntries(field, uint8(level), math.Inf(-1), math.Inf(1))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "level %d: %d entries\n", level, len(entries))
		for _, e := range entries {
			fmt.Fprintf(w, "  [%g, %g] %d docs\n", e.Left, e.Right, e.Docids.GetCardinality())
		}
	}
	return nil
}
