package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/RowanDark/subcipher/internal/history"
)

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("history", stderr)
	limit := fs.IntP("limit", "n", 20, "maximum number of runs to list")
	asJSON := fs.Bool("json", false, "print entries as JSON lines")
	dbPath := fs.String("db", "", "history database (defaults to history_path from config)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "history takes no arguments")
		return 2
	}

	path := *dbPath
	if path == "" {
		cfg, ok := loadConfig(*configPath, stderr)
		if !ok {
			return 1
		}
		path = cfg.HistoryPath
	}
	if path == "" {
		fmt.Fprintln(stderr, "error: history_path is not configured (set it in config or SUBCIPHER_HISTORY)")
		return 1
	}

	store, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer store.Close()

	entries, err := store.List(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				fmt.Fprintf(stderr, "error: %v\n", err)
				return 1
			}
		}
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tSOURCE\tSEED\tMODE\tBYTES\tRECIPE")
	for _, e := range entries {
		seed := fmt.Sprintf("%d", e.Seed)
		if e.Reserved {
			seed += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d>%d\t%s\n",
			e.ID, e.CreatedAt.Format(time.RFC3339), e.Source, seed, e.Mode, e.InputBytes, e.OutputBytes, e.Recipe)
	}
	_ = tw.Flush()
	return 0
}
