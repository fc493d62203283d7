// Command agenda-import loads a legacy single-document agenda store into
// the database.
//
// Usage:
//
//	./agenda-import --file data.json [--prefix tg:]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pathakanu/myAgenda/internal/config"
	"github.com/pathakanu/myAgenda/internal/database"
	"github.com/pathakanu/myAgenda/internal/legacy"
	"github.com/pathakanu/myAgenda/internal/store"
)

func main() {
	file := flag.String("file", "", "legacy JSON or YAML document to import")
	prefix := flag.String("prefix", "tg:", "channel prefix for user ids without one (empty keeps ids as-is)")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	st := store.New(db, store.WithLocation(cfg.LocalTimezone))

	sum, err := legacy.ImportFile(context.Background(), st, *file, legacy.Options{
		Location: cfg.LocalTimezone,
		Prefix:   *prefix,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d user(s): %d task(s), %d reminder(s)", sum.Users, sum.Tasks, sum.Reminders)
	if sum.Upgraded > 0 {
		fmt.Printf(", %d record(s) upgraded", sum.Upgraded)
	}
	if sum.Skipped > 0 {
		fmt.Printf(", %d entr(ies) skipped", sum.Skipped)
	}
	fmt.Println()
}
