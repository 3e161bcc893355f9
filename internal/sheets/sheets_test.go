package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"incidentetl/internal/config"
	"incidentetl/internal/models"
)

const testURL = "https://docs.google.com/spreadsheets/d/sheet-123_abc/edit#gid=0"

// fakeSheets is an in-memory Sheets API backend.
type fakeSheets struct {
	mu         sync.Mutex
	titles     []string
	appends    map[string][][]interface{}
	queries    []string
	failAppend bool
}

func newFakeSheets(titles ...string) *fakeSheets {
	return &fakeSheets{titles: titles, appends: map[string][][]interface{}{}}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	const prefix = "/v4/spreadsheets/sheet-123_abc"

	switch {
	case r.Method == http.MethodGet && r.URL.Path == prefix:
		resp := sheets.Spreadsheet{}
		for _, t := range f.titles {
			resp.Sheets = append(resp.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{Title: t}})
		}
		_ = json.NewEncoder(w).Encode(resp)

	case r.Method == http.MethodPost && r.URL.Path == prefix+":batchUpdate":
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, q := range req.Requests {
			if q.AddSheet != nil {
				f.titles = append(f.titles, q.AddSheet.Properties.Title)
			}
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-123_abc","replies":[{}]}`))

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		if f.failAppend {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
			return
		}

		f.queries = append(f.queries, r.URL.RawQuery)

		rng := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix+"/values/"), ":append")

		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.appends[rng] = append(f.appends[rng], vr.Values...)
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-123_abc"}`))

	default:
		http.NotFound(w, r)
	}
}

func newTestService(t *testing.T, backend *fakeSheets) *Service {
	t.Helper()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	svc, err := NewWithOptions(context.Background(), testURL, 5*time.Second,
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	return svc
}

func TestSpreadsheetID(t *testing.T) {
	id, err := SpreadsheetID(testURL)
	require.NoError(t, err)
	assert.Equal(t, "sheet-123_abc", id)

	_, err = SpreadsheetID("https://example.com/not-a-sheet")
	assert.ErrorIs(t, err, ErrInvalidSpreadsheetURL)
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), config.SheetsConfig{
		CredentialsPath: t.TempDir() + "/missing.json",
		SpreadsheetURL:  testURL,
	})
	assert.ErrorIs(t, err, ErrReadCredentials)
}

func TestService_Worksheet(t *testing.T) {
	svc := newTestService(t, newFakeSheets("output", "log"))

	ws, err := svc.Worksheet(context.Background(), "output")
	require.NoError(t, err)
	assert.Equal(t, "output", ws.Title())

	_, err = svc.Worksheet(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrWorksheetNotFound)
}

func TestService_EnsureWorksheet_Creates(t *testing.T) {
	backend := newFakeSheets("output")
	svc := newTestService(t, backend)

	ws, err := svc.EnsureWorksheet(context.Background(), "log", []string{"timestamp", "level", "message"})
	require.NoError(t, err)
	assert.Equal(t, "log", ws.Title())

	assert.Equal(t, []string{"output", "log"}, backend.titles)
	assert.Equal(t, [][]interface{}{{"timestamp", "level", "message"}}, backend.appends["'log'!A1"])
}

func TestService_EnsureWorksheet_Existing(t *testing.T) {
	backend := newFakeSheets("log")
	svc := newTestService(t, backend)

	_, err := svc.EnsureWorksheet(context.Background(), "log", []string{"timestamp", "level", "message"})
	require.NoError(t, err)

	assert.Equal(t, []string{"log"}, backend.titles)
	assert.Empty(t, backend.appends)
}

func TestWorksheet_AppendRows(t *testing.T) {
	backend := newFakeSheets("output")
	svc := newTestService(t, backend)

	ws, err := svc.Worksheet(context.Background(), "output")
	require.NoError(t, err)

	require.NoError(t, ws.AppendRows(context.Background(), [][]string{{"a", "1"}, {"b", ""}}))
	require.NoError(t, ws.AppendRows(context.Background(), nil))

	assert.Equal(t, [][]interface{}{{"a", "1"}, {"b", ""}}, backend.appends["'output'!A1"])
	require.Len(t, backend.queries, 1)
	assert.Contains(t, backend.queries[0], "valueInputOption=RAW")
	assert.Contains(t, backend.queries[0], "insertDataOption=INSERT_ROWS")
}

func TestA1Range(t *testing.T) {
	assert.Equal(t, "'output'!A1", a1Range("output"))
	assert.Equal(t, "'Bob''s'!A1", a1Range("Bob's"))
}

// recordingAppender captures AppendRows calls.
type recordingAppender struct {
	calls [][][]string
	err   error
}

func (r *recordingAppender) AppendRows(_ context.Context, rows [][]string) error {
	r.calls = append(r.calls, rows)
	return r.err
}

func TestWriter_Write(t *testing.T) {
	count := 2.0
	table := &models.Table{
		Columns: []string{models.ColURL, models.ColCount, models.ColAddress},
		Rows: []*models.Row{
			{Record: models.TranscriptRecord{URL: "u1", Count: &count}, Address: "1 Main St"},
			{Record: models.TranscriptRecord{URL: "u2"}},
		},
	}

	sink := &recordingAppender{}
	require.NoError(t, NewWriter(sink, nil).Write(context.Background(), table))

	require.Len(t, sink.calls, 1)
	assert.Equal(t, [][]string{{"u1", "2", "1 Main St"}, {"u2", "", ""}}, sink.calls[0])
}

func TestWriter_Write_Empty(t *testing.T) {
	sink := &recordingAppender{}
	require.NoError(t, NewWriter(sink, nil).Write(context.Background(), &models.Table{Columns: []string{models.ColURL}}))
	assert.Empty(t, sink.calls)
}

func TestWriter_Write_Failure(t *testing.T) {
	boom := errors.New("quota exceeded")
	sink := &recordingAppender{err: boom}

	table := &models.Table{Columns: []string{models.ColURL}, Rows: []*models.Row{{}}}
	err := NewWriter(sink, nil).Write(context.Background(), table)
	assert.ErrorIs(t, err, boom)
}

func TestWriter_Write_APIFailure(t *testing.T) {
	backend := newFakeSheets("output")
	backend.failAppend = true
	svc := newTestService(t, backend)

	ws, err := svc.Worksheet(context.Background(), "output")
	require.NoError(t, err)

	table := &models.Table{Columns: []string{models.ColURL}, Rows: []*models.Row{{}}}
	assert.Error(t, NewWriter(ws, nil).Write(context.Background(), table))
}
