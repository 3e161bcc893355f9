// Package main provides the daily worker that collects transcripts from pods,
// extracts incident addresses and keywords, and appends them to the spreadsheet.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"incidentetl/internal/address"
	"incidentetl/internal/collector"
	"incidentetl/internal/config"
	"incidentetl/internal/extractor"
	"incidentetl/internal/logger"
	"incidentetl/internal/normalizer"
	"incidentetl/internal/pipeline"
	"incidentetl/internal/pods"
	"incidentetl/internal/sheets"
)

const reportSampleRows = 5

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Configuration
	// ----------------
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logging.Level)

	// 2. Spreadsheet
	// --------------
	sheet, err := sheets.New(ctx, cfg.Sheets)
	if err != nil {
		log.Error("❌ Failed to open spreadsheet", "error", err)
		return 1
	}

	if cfg.SheetSinkEnabled() {
		logSheet, err := sheet.EnsureWorksheet(ctx, cfg.Sheets.LogWorksheet, logger.SheetHeader)
		if err != nil {
			log.Warn("⚠️  Spreadsheet log sink unavailable, logging to console only", "error", err)
		} else {
			log = log.Tee(logger.NewSheetHandler(logSheet, &logger.SheetHandlerOptions{
				Timeout: config.Seconds(cfg.Sheets.TimeoutSec),
			}))
		}
	}

	log, runID := log.WithRunID()
	log.Debug("Configuration loaded", "config", cfg.String())

	dataSheet, err := sheet.Worksheet(ctx, cfg.Sheets.Worksheet)
	if err != nil {
		log.Error("❌ Failed to open worksheet", "worksheet", cfg.Sheets.Worksheet, "error", err)
		return 1
	}

	// 3. Collection
	// -------------
	dialer, err := collector.NewSSHDialer(cfg.Pods.SSH)
	if err != nil {
		log.Error("❌ Failed to prepare SSH credentials", "error", err)
		return 1
	}

	podClient := pods.NewClient(pods.NewGraphQLClient(cfg.Pods.Endpoint, cfg.Pods.APIKey, config.Seconds(cfg.Pods.TimeoutSec), log))

	// 4. Extraction
	// -------------
	entities := address.NewEntityStrategy(address.NewProseRecognizer(), func(err error) {
		log.Warn("Entity recognition failed", "error", err)
	})
	chain := address.NewChain(address.NewStandardizer(), address.NewRegexStrategy(), entities)
	llm := extractor.NewClient(cfg.LLM, log)

	p := &pipeline.Pipeline{
		Pods:       podClient,
		Collector:  collector.New(dialer, cfg.Pods.SSH.OutputGlob, cfg.Pods.Workers, log),
		Normalizer: normalizer.NewProcessor(log),
		Prefilter:  address.NewPrefilter(chain, log, cfg.Logging.ProgressEvery),
		Extractor:  extractor.New(llm, cfg.LLM.Workers, log, cfg.Logging.ProgressEvery),
		Sink:       sheets.NewWriter(dataSheet, log),
		Logger:     log,
	}

	// 5. Run
	// ------
	summary, err := p.Run(ctx, time.Now())
	if err != nil {
		log.Error(fmt.Sprintf("❌ Pipeline failed: %v", err))
		return 1
	}

	// 6. Final Report
	// ---------------
	fmt.Println("\n------------------------------------------------")
	fmt.Printf("📊 Summary Report (run %s)\n", runID)
	fmt.Println("------------------------------------------------")
	fmt.Print(summary.Report(reportSampleRows))
	fmt.Println("------------------------------------------------")

	return 0
}
