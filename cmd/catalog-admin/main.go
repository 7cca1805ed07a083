package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-catalog/pkg/catalog"
	"github.com/tendant/simple-catalog/pkg/catalog/config"
	"github.com/tendant/simple-catalog/pkg/catalog/repo/jsonfile"
)

const usage = `Catalog Admin CLI

Inspects and repairs the exam paper catalog using the same stores as the server.

USAGE:
  catalog-admin <command> [options]

COMMANDS:
  list        List catalog records
  stats       Show record counts by exam type and year
  reconcile   Compare stored blobs against catalog records

ENVIRONMENT VARIABLES:
  METADATA_URL      Record store (default: file://./data/files.json)
  STORAGE_URL       Blob store (default: file://./uploads)
  KEY_LAYOUT        Stored name layout: flat or sharded (default: flat)

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

  A file:// catalog can only be opened by one process at a time. Stop the
  server before running the admin CLI against it.

EXAMPLES:
  # List all records
  catalog-admin list

  # Report orphans without changing anything
  catalog-admin reconcile

  # Remove orphan blobs older than 10 minutes and records without blobs
  catalog-admin reconcile --repair --grace=10m

  # Output as JSON
  catalog-admin stats --json

OPTIONS:
  --json              Output as JSON
  --repair            Remove orphans (reconcile only)
  --grace=<duration>  Ignore blobs modified more recently than this (reconcile only, default: 1h)
`

type options struct {
	json   bool
	repair bool
	grace  time.Duration
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage + "\n")
		os.Exit(0)
	}

	opts, err := parseOptions(os.Args[2:])
	if err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	cfg, err := config.Load(config.WithEnv(), config.WithMetrics(false))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc, err := cfg.BuildService(catalog.WithLogger(logger))
	if errors.Is(err, jsonfile.ErrLocked) {
		log.Fatalf("Catalog %s is in use; stop the server first: %v", cfg.MetadataURL, err)
	} else if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()

	switch command {
	case "list":
		err = handleList(ctx, svc, opts)
	case "stats":
		err = handleStats(ctx, svc, opts)
	case "reconcile":
		err = handleReconcile(ctx, svc, opts)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func parseOptions(args []string) (options, error) {
	var opts options
	for _, arg := range args {
		key, value := parseFlag(arg)
		switch key {
		case "json":
			opts.json = true
		case "repair":
			opts.repair = true
		case "grace":
			d, err := time.ParseDuration(value)
			if err != nil {
				return opts, fmt.Errorf("invalid --grace value %q: %w", value, err)
			}
			opts.grace = d
		default:
			return opts, fmt.Errorf("unknown option %q", arg)
		}
	}
	return opts, nil
}

func parseFlag(arg string) (string, string) {
	if !strings.HasPrefix(arg, "--") {
		return "", ""
	}
	key, value, ok := strings.Cut(arg[2:], "=")
	if !ok {
		return key, "true"
	}
	return key, value
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func handleList(ctx context.Context, svc catalog.Service, opts options) error {
	records, err := svc.List(ctx)
	if err != nil {
		return err
	}
	if opts.json {
		return printJSON(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tTYPE\tYEAR\tSIZE\tSTORED NAME\tUPLOADED\n")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID.String()[:8]+"...",
			truncate(r.Title, 30),
			truncate(r.ExamType, 15),
			r.ExamYear,
			r.SizeBytes,
			r.StoredName,
			r.UploadTimestamp.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d\n", len(records))
	return nil
}

type statistics struct {
	TotalCount int            `json:"totalCount"`
	TotalBytes int64          `json:"totalBytes"`
	ByExamType map[string]int `json:"byExamType"`
	ByExamYear map[int]int    `json:"byExamYear"`
	Oldest     *time.Time     `json:"oldest,omitempty"`
	Newest     *time.Time     `json:"newest,omitempty"`
}

func computeStatistics(records []*catalog.FileRecord) statistics {
	stats := statistics{
		ByExamType: make(map[string]int),
		ByExamYear: make(map[int]int),
	}
	for _, r := range records {
		stats.TotalCount++
		stats.TotalBytes += r.SizeBytes
		stats.ByExamType[r.ExamType]++
		stats.ByExamYear[r.ExamYear]++

		ts := r.UploadTimestamp
		if stats.Oldest == nil || ts.Before(*stats.Oldest) {
			stats.Oldest = &ts
		}
		if stats.Newest == nil || ts.After(*stats.Newest) {
			stats.Newest = &ts
		}
	}
	return stats
}

func handleStats(ctx context.Context, svc catalog.Service, opts options) error {
	records, err := svc.List(ctx)
	if err != nil {
		return err
	}
	stats := computeStatistics(records)
	if opts.json {
		return printJSON(stats)
	}

	fmt.Println("=== Catalog Statistics ===")
	fmt.Printf("\nTotal Count: %d\n", stats.TotalCount)
	fmt.Printf("Total Bytes: %d\n", stats.TotalBytes)

	if len(stats.ByExamType) > 0 {
		fmt.Println("\nBy Exam Type:")
		types := make([]string, 0, len(stats.ByExamType))
		for t := range stats.ByExamType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("  %-15s: %d\n", truncate(t, 15), stats.ByExamType[t])
		}
	}

	if len(stats.ByExamYear) > 0 {
		fmt.Println("\nBy Exam Year:")
		years := make([]int, 0, len(stats.ByExamYear))
		for y := range stats.ByExamYear {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			fmt.Printf("  %d: %d\n", y, stats.ByExamYear[y])
		}
	}

	if stats.Oldest != nil && stats.Newest != nil {
		fmt.Println("\nTime Range:")
		fmt.Printf("  Oldest: %s\n", stats.Oldest.Format(time.RFC3339))
		fmt.Printf("  Newest: %s\n", stats.Newest.Format(time.RFC3339))
	}
	return nil
}

func handleReconcile(ctx context.Context, svc catalog.Service, opts options) error {
	report, err := svc.Reconcile(ctx, catalog.ReconcileOptions{
		Repair:      opts.repair,
		GracePeriod: opts.grace,
	})
	if err != nil {
		return err
	}
	if opts.json {
		return printJSON(report)
	}

	fmt.Printf("Records: %d\nBlobs:   %d\n", report.Records, report.Blobs)
	if report.Clean() {
		fmt.Println("\nNo orphans found")
	}
	if len(report.OrphanBlobs) > 0 {
		fmt.Println("\nBlobs without a record:")
		for _, name := range report.OrphanBlobs {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(report.OrphanRecords) > 0 {
		fmt.Println("\nRecords without a blob:")
		for _, id := range report.OrphanRecords {
			fmt.Printf("  %s\n", id)
		}
	}
	if len(report.SkippedBlobs) > 0 {
		fmt.Printf("\nSkipped %d recently modified blob(s)\n", len(report.SkippedBlobs))
	}
	if opts.repair {
		fmt.Printf("\nRepaired: %d\n", report.Repaired)
	} else if !report.Clean() {
		fmt.Println("\nRun with --repair to remove orphans")
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
