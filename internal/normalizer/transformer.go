package normalizer

import (
	"incidentetl/internal/models"
	"incidentetl/pkg/fingerprint"
)

// Transformer turns decoded records into table rows.
type Transformer struct{}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform builds a table from records. Columns are the expected columns
// present in at least one record, in expected order.
func (t *Transformer) Transform(records []models.TranscriptRecord) *models.Table {
	table := &models.Table{Rows: make([]*models.Row, 0, len(records))}

	for _, col := range models.ExpectedColumns {
		for i := range records {
			if records[i].Has(col) {
				table.Columns = append(table.Columns, col)
				break
			}
		}
	}

	for i := range records {
		rec := records[i]
		table.Rows = append(table.Rows, &models.Row{
			Record:      rec,
			Fingerprint: fingerprint.Of(rec.URL, rec.Timestamp, rec.Transcription),
		})
	}

	return table
}
