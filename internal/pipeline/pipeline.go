// Package pipeline runs one collection pass: discover pods, gather their
// transcript records, keep yesterday's, extract addresses and keywords, and
// append the results to the spreadsheet.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"incidentetl/internal/formatter"
	"incidentetl/internal/logger"
	"incidentetl/internal/models"
	"incidentetl/internal/normalizer"
	"incidentetl/internal/pods"
)

// Collector gathers transcript records from pods.
type Collector interface {
	Collect(ctx context.Context, podList []pods.Pod) ([]models.TranscriptRecord, error)
}

// Normalizer assembles records into the table of rows dated the day before now.
type Normalizer interface {
	Process(records []models.TranscriptRecord, now time.Time) (*models.Table, normalizer.Stats)
}

// Prefilter computes address candidates and drops rows not worth a completion request.
type Prefilter interface {
	Apply(ctx context.Context, table *models.Table) (*models.Table, error)
}

// Enricher fills the extracted columns of a table in place.
type Enricher interface {
	Apply(ctx context.Context, table *models.Table) error
}

// Sink persists a result table.
type Sink interface {
	Write(ctx context.Context, table *models.Table) error
}

// Pipeline wires the stages of a run.
type Pipeline struct {
	Pods       pods.Lister
	Collector  Collector
	Normalizer Normalizer
	Prefilter  Prefilter
	Extractor  Enricher
	Sink       Sink
	Logger     *logger.Logger
}

// Summary describes the outcome of a run.
type Summary struct {
	Pods        int
	Records     int
	Normalized  normalizer.Stats
	Prefiltered int
	Written     int
	Elapsed     time.Duration
	// Result is the table written to the sink, nil when the run stopped early.
	Result *models.Table
}

// Run executes the pipeline once. now fixes the date window. A run that finds
// no records at all ends early without error.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	defer func() {
		summary.Elapsed = time.Since(start)
		p.Logger.Info(fmt.Sprintf("⏱ Total runtime: %.2f seconds", summary.Elapsed.Seconds()))
	}()

	p.Logger.Info("🚀 Starting transcript pipeline")

	podList, err := p.Pods.ListPods(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list pods: %w", err)
	}

	summary.Pods = len(podList)
	p.Logger.Info(fmt.Sprintf("Found %d pods.", len(podList)))

	records, err := p.Collector.Collect(ctx, podList)
	if err != nil {
		return summary, fmt.Errorf("failed to collect records: %w", err)
	}

	summary.Records = len(records)

	if len(records) == 0 {
		p.Logger.Warn("⚠️ No JSON records found in any pods.")
		return summary, nil
	}

	p.Logger.Info(fmt.Sprintf("📊 Total records loaded: %d", len(records)))

	table, stats := p.Normalizer.Process(records, now)
	summary.Normalized = stats

	p.Logger.Info(fmt.Sprintf("🗓 %d rows from yesterday after filtering.", table.Len()),
		"unparseable", stats.Unparseable,
		"outside_window", stats.OutsideWindow,
		"duplicates", stats.Duplicates,
	)

	table, err = p.Prefilter.Apply(ctx, table)
	if err != nil {
		return summary, fmt.Errorf("prefilter failed: %w", err)
	}

	summary.Prefiltered = table.Len()
	p.Logger.Info(fmt.Sprintf("✅ %d rows passed prefilter and keyword check.", table.Len()))

	if err := p.Extractor.Apply(ctx, table); err != nil {
		return summary, fmt.Errorf("extraction failed: %w", err)
	}

	if err := p.Sink.Write(ctx, table); err != nil {
		return summary, err
	}

	summary.Written = table.Len()
	summary.Result = table
	p.Logger.Info("✅ Appended data to Google Sheet.", "rows", table.Len())

	return summary, nil
}

// Report renders the stage counts followed by up to sampleRows result rows.
func (s *Summary) Report(sampleRows int) string {
	report := formatter.KeyValues([2]string{"Stage", "Rows"}, [][2]string{
		{"Pods", strconv.Itoa(s.Pods)},
		{"Records collected", strconv.Itoa(s.Records)},
		{"Unparseable timestamps", strconv.Itoa(s.Normalized.Unparseable)},
		{"Outside window", strconv.Itoa(s.Normalized.OutsideWindow)},
		{"Duplicates", strconv.Itoa(s.Normalized.Duplicates)},
		{"From yesterday", strconv.Itoa(s.Normalized.Kept)},
		{"Passed prefilter", strconv.Itoa(s.Prefiltered)},
		{"Written", strconv.Itoa(s.Written)},
		{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
	})

	if s.Result == nil || s.Result.Len() == 0 || sampleRows <= 0 {
		return report
	}

	header := []string{models.ColURL, models.ColAddress, models.ColExtractedKeywords}
	rows := make([][]string, 0, sampleRows)

	for _, row := range s.Result.Rows {
		if len(rows) == sampleRows {
			break
		}

		rows = append(rows, []string{
			row.Value(models.ColURL),
			row.Value(models.ColAddress),
			row.Value(models.ColExtractedKeywords),
		})
	}

	return report + "\n" + formatter.Table(header, rows)
}
