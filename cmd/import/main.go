// Command import runs a NAWS export import from the command line:
// validate-only dry runs, local CSV files, or files dropped in S3.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bmlt-tools/naws-importer/internal/bmlt"
	"github.com/bmlt-tools/naws-importer/internal/config"
	"github.com/bmlt-tools/naws-importer/internal/importer"
	"github.com/bmlt-tools/naws-importer/internal/sheet"
)

func main() {
	var (
		configPath   = flag.String("config", "config.yaml", "path to configuration file")
		filePath     = flag.String("file", "", "path to a local NAWS export CSV")
		s3Key        = flag.String("s3-key", "", "S3 object key of a NAWS export (uses configured bucket)")
		validateOnly = flag.Bool("validate-only", false, "validate the file and exit without importing")
	)
	flag.Parse()

	if (*filePath == "") == (*s3Key == "") {
		log.Fatal("[Import] Exactly one of -file or -s3-key is required")
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[Import] Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grid, err := loadGrid(ctx, cfg, *filePath, *s3Key)
	if err != nil {
		log.Fatalf("[Import] Failed to read file: %v", err)
	}

	if *validateOnly {
		report := importer.ValidateFile(grid)
		printReport(report)
		if !report.Valid {
			os.Exit(1)
		}
		return
	}

	if cfg.RootServer.BaseURL == "" {
		log.Fatal("[Import] Root server base URL is not configured")
	}
	client := bmlt.NewClient(bmlt.Config{
		BaseURL:    cfg.RootServer.BaseURL,
		Username:   cfg.RootServer.Username,
		Password:   cfg.RootServer.Password,
		Timeout:    cfg.RootServer.Timeout(),
		MaxRetries: cfg.RootServer.MaxRetries,
	})

	engine := importer.NewEngine(client, importer.Options{
		BatchSize:         cfg.Import.BatchSize,
		BatchDelay:        cfg.Import.BatchDelay(),
		MaxStoredMeetings: cfg.Import.MaxStoredResults,
		MaxStoredErrors:   cfg.Import.MaxStoredErrors,
		DefaultLatitude:   cfg.Import.DefaultLatitude,
		DefaultLongitude:  cfg.Import.DefaultLongitude,
		Progress: func(ev importer.ProgressEvent) {
			log.Printf("[Import] %3d%% %s", ev.Percent, ev.Message)
		},
	})

	outcome, err := engine.Run(ctx, grid)
	if err != nil {
		log.Printf("[Import] %v", err)
	}
	printOutcome(outcome)

	if !outcome.Success {
		os.Exit(1)
	}
}

func loadGrid(ctx context.Context, cfg *config.Config, filePath, s3Key string) (*sheet.Grid, error) {
	if filePath != "" {
		return sheet.ReadFile(filePath)
	}
	if !cfg.Storage.Enabled {
		return nil, fmt.Errorf("s3 storage is not configured")
	}
	src, err := sheet.NewS3Source(ctx, cfg.Storage.Bucket, cfg.Storage.Region, cfg.Storage.AWSProfile)
	if err != nil {
		return nil, err
	}
	return src.FetchCSV(ctx, s3Key)
}

func printReport(report *importer.ValidationReport) {
	fmt.Printf("Valid:      %v\n", report.Valid)
	fmt.Printf("Total rows: %d\n", report.Preview.TotalRows)
	fmt.Printf("Valid rows: %d\n", report.Preview.ValidRows)
	printList("Errors", report.Errors)
	printList("Warnings", report.Warnings)
}

func printOutcome(outcome *importer.ImportOutcome) {
	fmt.Printf("\nProcessed:             %d\n", outcome.Processed)
	fmt.Printf("Created:               %d\n", outcome.Succeeded)
	fmt.Printf("Failed:                %d\n", outcome.Failed)
	fmt.Printf("Skipped (duplicates):  %d\n", outcome.Skipped)
	fmt.Printf("Service bodies added:  %d\n", outcome.ServiceBodiesCreated)
	fmt.Printf("Duration:              %s\n", outcome.Duration.Round(time.Millisecond))
	printList("Errors", outcome.Errors)
	printList("Warnings", outcome.Warnings)
}

func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", label)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}
