// Package normalizer assembles collected records into a table restricted to
// the previous calendar day.
package normalizer

import (
	"time"

	"incidentetl/internal/logger"
	"incidentetl/internal/models"
	"incidentetl/pkg/fingerprint"
)

// Stats counts what happened to the records of one Process call.
type Stats struct {
	Total         int
	Unparseable   int
	OutsideWindow int
	Duplicates    int
	Kept          int
}

// Processor handles record assembly and date filtering.
type Processor struct {
	validator   *Validator
	transformer *Transformer
	logger      *logger.Logger
}

// NewProcessor creates a new processor instance using local time.
func NewProcessor(log *logger.Logger) *Processor {
	return &Processor{
		validator:   NewValidator(time.Local),
		transformer: NewTransformer(),
		logger:      log,
	}
}

// Process returns the rows of records dated the day before now. Rows whose
// timestamp does not parse are dropped, as are repeated copies of a record
// already kept.
func (p *Processor) Process(records []models.TranscriptRecord, now time.Time) (*models.Table, Stats) {
	table := p.transformer.Transform(records)
	stats := Stats{Total: table.Len()}

	yesterday := now.AddDate(0, 0, -1)
	seen := fingerprint.Seen{}

	out := table.Filter(func(row *models.Row) bool {
		t, err := p.validator.ParseTimestamp(&row.Record)
		if err != nil {
			stats.Unparseable++
			if p.logger != nil {
				p.logger.Debug("Dropping record", "url", row.Record.URL, "error", err)
			}
			return false
		}

		if !SameDate(t, yesterday) {
			stats.OutsideWindow++
			return false
		}

		if !seen.Add(row.Fingerprint) {
			stats.Duplicates++
			return false
		}

		row.Time = t
		return true
	})

	stats.Kept = out.Len()

	return out, stats
}
