package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/veridata/invoiceminer/internal/config"
	"github.com/veridata/invoiceminer/internal/engine"
	"github.com/veridata/invoiceminer/internal/export"
	"github.com/veridata/invoiceminer/internal/extract"
	"github.com/veridata/invoiceminer/internal/pdfsource"
	"github.com/veridata/invoiceminer/internal/template"
	"github.com/veridata/invoiceminer/internal/validation"
)

var (
	version = "dev" // This will be set by build flags
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invoiceminer %s\n", version)
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func run(cfg *config.Config, logger *slog.Logger) error {
	repo, err := template.Open(cfg.TemplateDB, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Stop accepting new documents on SIGINT/SIGTERM; the document in
	// flight finishes.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tpl, err := repo.Get(ctx, cfg.TemplateID)
	if err != nil {
		return err
	}
	logger.Info("template loaded", "id", tpl.ID, "name", tpl.Name, "type", tpl.Type)

	paths, err := collectPDFs(cfg.InputDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files found in %s", cfg.InputDir)
	}
	logger.Info("processing batch", "documents", len(paths), "workers", cfg.Workers)

	assoc := extract.AssociateAll
	if cfg.MarkerScope == "first" {
		assoc = extract.AssociateFirst
	}

	source := pdfsource.NewFileSource(cfg.MaxFileSize)
	eng := engine.NewStreamEngine(logger)
	extractor := extract.NewExtractor(source, eng, assoc, logger)
	processor := extract.NewProcessor(extractor, cfg.Workers, logger)

	batch := processor.Process(ctx, tpl, paths)

	if cfg.HasFormat("json") {
		path, err := export.WriteJSON(batch, cfg.OutputDir)
		if err != nil {
			return err
		}
		logger.Info("wrote JSON export", "path", path)
	}
	if cfg.HasFormat("csv") {
		written, err := export.WriteCSV(batch, cfg.OutputDir)
		if err != nil {
			return err
		}
		logger.Info("wrote CSV export", "files", len(written))
	}
	if cfg.HasFormat("xlsx") {
		path, err := export.WriteXLSX(batch, cfg.OutputDir)
		if err != nil {
			return err
		}
		logger.Info("wrote XLSX export", "path", path)
	}

	if err := runValidation(cfg, tpl, batch, logger); err != nil {
		return err
	}
	return nil
}

// runValidation applies the rules file (or the rules stored on the
// template) to the batch and writes the report next to the exports.
func runValidation(cfg *config.Config, tpl *template.Template,
	batch *extract.Batch, logger *slog.Logger,
) error {
	var (
		rules *validation.RuleSet
		err   error
	)
	switch {
	case cfg.RulesFile != "":
		rules, err = validation.LoadFile(cfg.RulesFile)
		if err != nil {
			return err
		}
	case len(tpl.ValidationRules) > 0:
		rules, err = validation.ParseRules(tpl.ValidationRules)
		if err != nil {
			logger.Warn("template validation rules unreadable, skipping validation", "error", err)
			return nil
		}
	default:
		return nil
	}
	if rules.Len() == 0 {
		return nil
	}

	data := export.DatasetFromBatch(batch)
	report := validation.NewEngine(logger).Validate(data, rules)

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal validation report: %w", err)
	}
	path := filepath.Join(cfg.OutputDir, "validation_report.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write validation report: %w", err)
	}
	logger.Info("wrote validation report", "path", path, "passed", report.Passed())

	if cfg.HasFormat("xlsx") {
		if _, err := export.WriteValidationXLSX(report, cfg.OutputDir); err != nil {
			return err
		}
	}
	return nil
}

func collectPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
