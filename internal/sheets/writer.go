package sheets

import (
	"context"
	"fmt"

	"incidentetl/internal/logger"
	"incidentetl/internal/models"
)

// RowsAppender appends a batch of rows to a worksheet.
type RowsAppender interface {
	AppendRows(ctx context.Context, rows [][]string) error
}

// Ensure Worksheet implements RowsAppender and the log sink interface.
var (
	_ RowsAppender       = (*Worksheet)(nil)
	_ logger.RowAppender = (*Worksheet)(nil)
)

// Writer writes result tables to the data worksheet.
type Writer struct {
	sink   RowsAppender
	logger *logger.Logger
}

// NewWriter creates a writer appending to sink.
func NewWriter(sink RowsAppender, log *logger.Logger) *Writer {
	return &Writer{
		sink:   sink,
		logger: log,
	}
}

// Write appends every row of table, stringified in column order, in one
// call. A table without rows makes no call.
func (w *Writer) Write(ctx context.Context, table *models.Table) error {
	if table == nil || table.Len() == 0 {
		return nil
	}

	if err := w.sink.AppendRows(ctx, table.Records()); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	if w.logger != nil {
		w.logger.Debug("Wrote rows", "rows", table.Len(), "columns", len(table.Columns))
	}

	return nil
}
