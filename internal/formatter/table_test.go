package formatter

import (
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		rows     [][]string
		expected string
	}{
		{
			name:   "Basic table formatting",
			header: []string{"Header 1", "Header 2"},
			rows:   [][]string{{"val 1", "val 2"}},
			expected: `
| Header 1 | Header 2 |
| -------- | -------- |
| val 1    | val 2    |
`,
		},
		{
			name:   "Min width",
			header: []string{"H1", "H2"},
			rows:   [][]string{{"v1", ""}},
			expected: `
| H1  | H2  |
| --- | --- |
| v1  |     |
`,
		},
		{
			name:   "Ragged rows and whitespace",
			header: []string{"url"},
			rows:   [][]string{{"  a \n b ", "extra"}, {"c|d"}},
			expected: `
| url |       |
| --- | ----- |
| a b | extra |
| c/d |       |
`,
		},
		{
			name:   "Mixed CJK and ASCII",
			header: []string{"Date", "Event"},
			rows: [][]string{
				{"2025-01-01", "消防處：增至83死。"},
				{"2025-01-02", "Short text"},
			},
			expected: `
| Date       | Event              |
| ---------- | ------------------ |
| 2025-01-01 | 消防處：增至83死。 |
| 2025-01-02 | Short text         |
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Table(tt.header, tt.rows)

			want := strings.TrimPrefix(tt.expected, "\n")

			if got != want {
				t.Errorf("Table() = \n%v\nwant \n%v", got, want)
			}
		})
	}
}

func TestTable_Empty(t *testing.T) {
	if got := Table(nil, nil); got != "" {
		t.Errorf("Table() = %q, want empty", got)
	}
}

func TestTable_TruncatesLongCells(t *testing.T) {
	long := strings.Repeat("x", MaxCellWidth+20)
	got := Table([]string{"transcription"}, [][]string{{long}})

	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	want := "| " + strings.Repeat("x", MaxCellWidth-3) + "... |"
	if lines[2] != want {
		t.Errorf("row = %q, want %q", lines[2], want)
	}
}

func TestKeyValues(t *testing.T) {
	got := KeyValues([2]string{"stage", "rows"}, [][2]string{{"collected", "12"}, {"kept", "3"}})

	want := `| stage     | rows |
| --------- | ---- |
| collected | 12   |
| kept      | 3    |
`
	if got != want {
		t.Errorf("KeyValues() = \n%v\nwant \n%v", got, want)
	}
}
