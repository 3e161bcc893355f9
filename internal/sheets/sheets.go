// Package sheets appends rows to worksheets of a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"incidentetl/internal/config"
)

var (
	// ErrInvalidSpreadsheetURL is returned when no spreadsheet id can be found in the URL.
	ErrInvalidSpreadsheetURL = errors.New("invalid spreadsheet url")
	// ErrWorksheetNotFound is returned when the spreadsheet has no worksheet with the given title.
	ErrWorksheetNotFound = errors.New("worksheet not found")
	// ErrReadCredentials is returned when the service-account file cannot be read.
	ErrReadCredentials = errors.New("failed to read sheet credentials")
)

const (
	newSheetRows    = 100
	newSheetColumns = 10
)

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetID extracts the spreadsheet id from a spreadsheet URL.
func SpreadsheetID(url string) (string, error) {
	m := spreadsheetIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSpreadsheetURL, url)
	}

	return m[1], nil
}

// Service is a handle on one spreadsheet.
type Service struct {
	api           *sheets.Service
	spreadsheetID string
	timeout       time.Duration
}

// New authorizes with the service-account credentials named in cfg and opens
// the spreadsheet at cfg.SpreadsheetURL.
func New(ctx context.Context, cfg config.SheetsConfig) (*Service, error) {
	data, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadCredentials, err)
	}

	jwt, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope, sheets.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sheet credentials: %w", err)
	}

	return NewWithOptions(ctx, cfg.SpreadsheetURL, config.Seconds(cfg.TimeoutSec), option.WithHTTPClient(jwt.Client(ctx)))
}

// NewWithOptions opens the spreadsheet at url with explicit client options.
func NewWithOptions(ctx context.Context, url string, timeout time.Duration, opts ...option.ClientOption) (*Service, error) {
	id, err := SpreadsheetID(url)
	if err != nil {
		return nil, err
	}

	api, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Service{
		api:           api,
		spreadsheetID: id,
		timeout:       timeout,
	}, nil
}

// Worksheet returns the worksheet titled title.
func (s *Service) Worksheet(ctx context.Context, title string) (*Worksheet, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.api.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range resp.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return &Worksheet{service: s, title: title}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrWorksheetNotFound, title)
}

// EnsureWorksheet returns the worksheet titled title, creating it with a
// header row when it does not exist.
func (s *Service) EnsureWorksheet(ctx context.Context, title string, header []string) (*Worksheet, error) {
	ws, err := s.Worksheet(ctx, title)
	if err == nil {
		return ws, nil
	}

	if !errors.Is(err, ErrWorksheetNotFound) {
		return nil, err
	}

	if err := s.addSheet(ctx, title); err != nil {
		return nil, err
	}

	ws = &Worksheet{service: s, title: title}
	if len(header) > 0 {
		if err := ws.AppendRow(ctx, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	return ws, nil
}

func (s *Service) addSheet(ctx context.Context, title string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    newSheetRows,
						ColumnCount: newSheetColumns,
					},
				},
			},
		}},
	}

	if _, err := s.api.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add worksheet %s: %w", title, err)
	}

	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.timeout)
}

// Worksheet appends rows below the last filled row of one worksheet.
type Worksheet struct {
	service *Service
	title   string
}

// Title returns the worksheet title.
func (w *Worksheet) Title() string {
	return w.title
}

// AppendRow appends a single row.
func (w *Worksheet) AppendRow(ctx context.Context, row []string) error {
	return w.AppendRows(ctx, [][]string{row})
}

// AppendRows appends rows in one request. Values are stored as entered.
func (w *Worksheet) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}

	ctx, cancel := w.service.withTimeout(ctx)
	defer cancel()

	_, err := w.service.api.Spreadsheets.Values.
		Append(w.service.spreadsheetID, a1Range(w.title), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append %d rows to %s: %w", len(rows), w.title, err)
	}

	return nil
}

func a1Range(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!A1"
}
