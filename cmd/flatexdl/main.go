// CLAUDE:SUMMARY CLI entry point for flatexdl — batch PDF download from the Flatex document archive.
// Command flatexdl batch-downloads PDF statements from the Flatex
// document archive.
//
// Usage:
//
//	flatexdl -archive-url https://konto.flatex.at/...   # interactive run
//	flatexdl -config flatexdl.yaml                      # config-file run
//
// The tool opens the archive in a real Chrome session (persistent
// profile, so the login survives between runs), waits for the user to
// log in and filter, then resolves and downloads every visible row.
// Exit code is 0 only when no row failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/flatexdl/archive"
	"github.com/hazyhaar/flatexdl/browser"
	"github.com/hazyhaar/flatexdl/history"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to YAML config file")
		archiveURL   = flag.String("archive-url", "", "Flatex document archive URL")
		outputDir    = flag.String("output-dir", "downloads", "destination folder for PDFs")
		profileDir   = flag.String("profile-dir", ".flatex-profile", "persistent Chromium profile directory")
		timeout      = flag.Duration("timeout", 30*time.Second, "HTTP timeout per download attempt")
		retries      = flag.Int("retries", 3, "attempts per row")
		startRow     = flag.Int("start-row", 1, "1-based row index to start from")
		endRow       = flag.Int("end-row", 0, "1-based row index to end at (0 = all)")
		skipExisting = flag.Bool("skip-existing", false, "skip rows whose file already exists")
		headless     = flag.Bool("headless", false, "run Chrome headless")
		verifyPDF    = flag.Bool("verify-pdf", false, "structurally validate downloaded PDFs")
		report       = flag.String("report", "flatex_report.json", "report filename (relative to output dir)")
		historyDB    = flag.String("history", "", "SQLite download history path (empty = disabled)")
		logLevel     = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	cfg := &archive.Config{}
	if *configPath != "" {
		loaded, err := archive.LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flatexdl: load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Explicitly set flags win over the config file; everything else is
	// filled by ApplyDefaults.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "archive-url":
			cfg.ArchiveURL = *archiveURL
		case "output-dir":
			cfg.OutputDir = *outputDir
		case "profile-dir":
			cfg.ProfileDir = *profileDir
		case "timeout":
			cfg.Timeout = *timeout
		case "retries":
			cfg.Retries = *retries
		case "start-row":
			cfg.StartRow = *startRow
		case "end-row":
			cfg.EndRow = *endRow
		case "skip-existing":
			cfg.SkipExisting = *skipExisting
		case "headless":
			cfg.Headless = *headless
		case "verify-pdf":
			cfg.VerifyPDF = *verifyPDF
		case "report":
			cfg.Report = *report
		case "history":
			cfg.HistoryDB = *historyDB
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	cfg.ApplyDefaults()

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := run(ctx, logger, cfg)
	if err != nil {
		logger.Error("flatexdl: fatal", "error", err)
		os.Exit(1)
	}
	if rep.Failed > 0 {
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *archive.Config) (*archive.RunReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ProfileDir, 0o755); err != nil {
		return nil, fmt.Errorf("profile dir: %w", err)
	}

	sess := browser.NewSession(browser.Config{
		ProfileDir: cfg.ProfileDir,
		Headless:   cfg.Headless,
		Logger:     logger,
	})
	if err := sess.Start(ctx, cfg.ArchiveURL); err != nil {
		return nil, err
	}
	defer sess.Close()

	if err := sess.WaitReady(os.Stdin, os.Stdout); err != nil {
		return nil, err
	}
	// Let pending row renders settle after the confirmation.
	time.Sleep(time.Second)

	state, err := sess.ArchiveState(ctx)
	if err != nil {
		return nil, err
	}

	client, err := sess.HTTPClient()
	if err != nil {
		return nil, err
	}

	dl := archive.NewDownloader(client, sess, archive.DownloadConfig{
		OutputDir:    cfg.OutputDir,
		Timeout:      cfg.Timeout,
		SkipExisting: cfg.SkipExisting,
		VerifyPDF:    cfg.VerifyPDF,
		Logger:       logger,
	})

	var rec archive.Recorder
	var hist *history.Store
	if cfg.HistoryDB != "" {
		hist, err = history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		defer hist.Close()
		rec = hist
	}

	runner := archive.NewRunner(sess, dl, archive.RunConfig{
		Retries:  cfg.Retries,
		StartRow: cfg.StartRow,
		EndRow:   cfg.EndRow,
		Recorder: rec,
		Logger:   logger,
	})

	if hist != nil {
		if err := hist.StartRun(ctx, runner.RunID(), cfg.ArchiveURL, time.Now()); err != nil {
			logger.Warn("flatexdl: history start failed", "error", err)
		}
	}

	rep, err := runner.Run(ctx, state)
	if err != nil {
		return nil, err
	}

	if hist != nil {
		if err := hist.FinishRun(ctx, rep); err != nil {
			logger.Warn("flatexdl: history finish failed", "error", err)
		}
	}

	reportPath := cfg.Report
	if !filepath.IsAbs(reportPath) {
		reportPath = filepath.Join(cfg.OutputDir, reportPath)
	}
	if err := rep.Write(reportPath); err != nil {
		return nil, err
	}
	logger.Info("flatexdl: report written", "path", reportPath,
		"downloaded", rep.Downloaded, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}
