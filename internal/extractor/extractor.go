// Package extractor asks a chat-completion model for the location and the
// incident keywords of each transcript.
package extractor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"incidentetl/internal/logger"
	"incidentetl/internal/models"
)

// Extractor runs one completion per row.
type Extractor struct {
	completer     Completer
	workers       int
	logger        *logger.Logger
	progressEvery int
}

// New creates an extractor. workers bounds the requests in flight; 1 runs
// rows one at a time.
func New(completer Completer, workers int, log *logger.Logger, progressEvery int) *Extractor {
	if workers < 1 {
		workers = 1
	}

	return &Extractor{
		completer:     completer,
		workers:       workers,
		logger:        log,
		progressEvery: progressEvery,
	}
}

// Extract returns the location and the comma-joined vocabulary keywords of
// transcript. Any failure is logged and yields two empty strings.
func (e *Extractor) Extract(ctx context.Context, transcript string) (string, string) {
	content, err := e.completer.Complete(ctx, SystemPrompt, BuildPrompt(transcript))
	if err != nil {
		e.logError(err)
		return "", ""
	}

	result, err := ParseResponse(content)
	if err != nil {
		e.logError(err)
		return "", ""
	}

	return result.Location, result.JoinedKeywords()
}

// Apply fills the address and extracted_keywords columns of every row. Row
// failures never stop the run; only cancellation of ctx does.
func (e *Extractor) Apply(ctx context.Context, table *models.Table) error {
	table.AddColumn(models.ColAddress)
	table.AddColumn(models.ColExtractedKeywords)

	type result struct{ address, keywords string }

	results := make([]result, table.Len())
	total := table.Len()

	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i, row := range table.Rows {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			address, kws := e.Extract(ctx, row.Record.Transcription)
			results[i] = result{address: address, keywords: kws}

			if n := int(done.Add(1)); e.logger != nil && e.progressEvery > 0 && (n%e.progressEvery == 0 || n == total) {
				e.logger.Debug("LLM extracting address + keywords", "done", n, "total", total)
			}

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for i, row := range table.Rows {
		row.Address = results[i].address
		row.ExtractedKeywords = results[i].keywords
	}

	return nil
}

func (e *Extractor) logError(err error) {
	if e.logger != nil {
		e.logger.Error("LLM extraction error", "error", err)
	}
}
