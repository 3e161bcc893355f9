package address

import (
	"context"

	"incidentetl/internal/logger"
	"incidentetl/internal/models"
)

// Extractor produces a standardized address for a transcript.
type Extractor interface {
	Extract(ctx context.Context, text string) string
}

// Prefilter keeps the rows worth sending to the completion service: those
// with an address candidate and pre-existing keyword tags.
type Prefilter struct {
	extractor     Extractor
	logger        *logger.Logger
	progressEvery int
}

// NewPrefilter creates a prefilter. progressEvery <= 0 disables progress
// logging.
func NewPrefilter(extractor Extractor, log *logger.Logger, progressEvery int) *Prefilter {
	return &Prefilter{
		extractor:     extractor,
		logger:        log,
		progressEvery: progressEvery,
	}
}

// Apply fills the prefilter_address column for every row of table and
// returns the rows that pass the gate.
func (p *Prefilter) Apply(ctx context.Context, table *models.Table) (*models.Table, error) {
	table.AddColumn(models.ColPrefilterAddress)

	total := table.Len()
	for i, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row.PrefilterAddress = p.extractor.Extract(ctx, row.Record.Transcription)

		if p.logger != nil && p.progressEvery > 0 && ((i+1)%p.progressEvery == 0 || i+1 == total) {
			p.logger.Debug("Prefilter addresses", "done", i+1, "total", total)
		}
	}

	return table.Filter(Passes), nil
}

// Passes reports whether row has an address candidate and keyword tags.
func Passes(row *models.Row) bool {
	return row.PrefilterAddress != "" && row.Record.Keywords.HasAny()
}
