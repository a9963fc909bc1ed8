// Command seeder bulk-imports a vocabulary file into a wordbook without
// going through the HTTP API. It drives the same parser/importer pipeline
// the server uses, so the rules in §4.2/§4.3 (format detection, row-level
// diagnostics, idempotent upsert) apply identically here.
//
// Flags:
//
//	--file         path to the CSV/TSV/JSON vocabulary file (required)
//	--wordbook-id  target wordbook id (default: the active wordbook)
//	--format       csv|tsv|json|auto (default: auto)
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/adapter/store"
	"github.com/heartmarshall/wordflow-backend/internal/app"
	"github.com/heartmarshall/wordflow-backend/internal/config"
	"github.com/heartmarshall/wordflow-backend/internal/domain"
	"github.com/heartmarshall/wordflow-backend/internal/service/importer"
)

func main() {
	fileFlag := flag.String("file", "", "path to the vocabulary file to import (required)")
	wordbookIDFlag := flag.Int("wordbook-id", 0, "target wordbook id (default: the active wordbook)")
	formatFlag := flag.String("format", "auto", "csv|tsv|json|auto")
	flag.Parse()

	if *fileFlag == "" {
		fmt.Fprintln(os.Stderr, "seeder: --file is required")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeder: load config: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.Log)

	data, err := os.ReadFile(*fileFlag)
	if err != nil {
		logger.Error("read file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		logger.Error("migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	st := store.New(db)
	imp := importer.New(st, importer.Config{
		BatchSize:            cfg.Import.BatchSize,
		MaxConcurrent:        cfg.Import.MaxConcurrent,
		MaxReportedRowErrors: cfg.Import.MaxReportedRowErrors,
	}, logger)

	var wordbookID *int
	if *wordbookIDFlag > 0 {
		wordbookID = wordbookIDFlag
	}

	importID, err := imp.Start(ctx, data, *fileFlag, parseFormat(*formatFlag), wordbookID)
	if err != nil {
		logger.Error("start import", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("import started", slog.String("import_id", importID))

	for {
		job, err := imp.Progress(ctx, importID)
		if err != nil {
			logger.Error("poll import progress", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if job.Status == domain.ImportStatusCompleted || job.Status == domain.ImportStatusFailed {
			logger.Info("import finished",
				slog.String("status", string(job.Status)),
				slog.Int("total", job.Total),
				slog.Int("succeeded", job.Succeeded),
				slog.Int("failed", job.Failed),
				slog.Int("skipped", job.Skipped),
			)
			if job.Status == domain.ImportStatusFailed {
				os.Exit(1)
			}
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func parseFormat(s string) domain.ImportFormat {
	switch s {
	case "csv":
		return domain.ImportFormatCSV
	case "tsv":
		return domain.ImportFormatTSV
	case "json":
		return domain.ImportFormatJSON
	default:
		return domain.ImportFormatAuto
	}
}
