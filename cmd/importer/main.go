package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	ingestrepo "github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/repository"
	ingestservice "github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/service"
	"github.com/FACorreiaa/federal-budget-tracker/pkg/config"
	"github.com/FACorreiaa/federal-budget-tracker/pkg/db"
)

func main() {
	file := flag.String("file", "", "path to the OBJCLASS CSV file (required)")
	source := flag.String("source", "", "data source tag, e.g. OBJCLASS_2026 (defaults to IMPORT_DATA_SOURCE)")
	year := flag.Int("year", 0, "fallback fiscal year for headers without one (defaults to IMPORT_DEFAULT_FISCAL_YEAR)")
	flush := flag.Int("flush", 0, "rows between durability flushes (defaults to IMPORT_FLUSH_EVERY)")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: importer -file <objclass.csv> [-source TAG] [-year YYYY] [-flush N]")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	opts := ingestservice.Options{
		DataSource:        cfg.Import.DataSource,
		DefaultFiscalYear: cfg.Import.DefaultFiscalYear,
		FlushEvery:        cfg.Import.FlushEvery,
	}
	if *source != "" {
		opts.DataSource = *source
	}
	if *year != 0 {
		opts.DefaultFiscalYear = *year
	}
	if *flush != 0 {
		opts.FlushEvery = *flush
	}

	database, err := db.New(db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        10,
		MaxConnLifetime: 5 * time.Minute,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repo := ingestrepo.NewPostgresImportRepository(database.Pool)
	svc := ingestservice.NewImportService(repo, logger, opts)

	summary, err := svc.ProcessFile(context.Background(), *file)
	if err != nil {
		if errors.Is(err, ingestservice.ErrInvalidStructure) {
			logger.Error("file rejected before import", "file", *file, "error", err)
			os.Exit(2)
		}
		logger.Error("import failed", "file", *file, "error", err)
		if summary != nil {
			report(summary)
		}
		os.Exit(1)
	}

	report(summary)
}

func report(s *ingestservice.Summary) {
	fmt.Printf("batch %s: %s\n", s.BatchID, s.Status)
	fmt.Printf("  rows:       %d\n", s.TotalRows)
	fmt.Printf("  successful: %d\n", s.Successful)
	fmt.Printf("  failed:     %d\n", s.Failed)
	fmt.Printf("  warnings:   %d\n", s.Warnings)
	for _, e := range s.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
