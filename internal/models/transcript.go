// Package models defines data structures shared by the pipeline stages.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column names of the output table.
const (
	ColURL               = "url"
	ColTranscription     = "transcription"
	ColTimestamp         = "timestamp"
	ColLocation          = "location"
	ColKeywords          = "keywords"
	ColCount             = "count"
	ColPrefilterAddress  = "prefilter_address"
	ColAddress           = "address"
	ColExtractedKeywords = "extracted_keywords"
)

// TimestampLayout is the layout of the raw record timestamp.
const TimestampLayout = "20060102_150405"

// OutputTimeLayout is how a parsed timestamp is written to the sink.
const OutputTimeLayout = "2006-01-02 15:04:05"

// ExpectedColumns lists the record keys kept from collected files, in
// output order.
var ExpectedColumns = []string{ColURL, ColTranscription, ColTimestamp, ColLocation, ColKeywords, ColCount}

// TranscriptRecord is one transcript as found in a pod output file.
type TranscriptRecord struct {
	URL           string
	Transcription string
	Timestamp     string
	Location      string
	Keywords      Keywords
	Count         *float64

	present map[string]bool
}

// Has reports whether key was present in the decoded object.
func (r *TranscriptRecord) Has(key string) bool {
	return r.present[key]
}

// MarkPresent records key as present. Used when building records in code.
func (r *TranscriptRecord) MarkPresent(keys ...string) {
	if r.present == nil {
		r.present = make(map[string]bool, len(keys))
	}

	for _, k := range keys {
		r.present[k] = true
	}
}

// UnmarshalJSON decodes a record object. Unknown keys are ignored and
// values of unexpected JSON types are kept in their textual form.
func (r *TranscriptRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = TranscriptRecord{}

	for _, key := range ExpectedColumns {
		v, ok := raw[key]
		if !ok {
			continue
		}

		r.MarkPresent(key)

		switch key {
		case ColURL:
			r.URL = rawString(v)
		case ColTranscription:
			r.Transcription = rawString(v)
		case ColTimestamp:
			r.Timestamp = rawString(v)
		case ColLocation:
			r.Location = rawString(v)
		case ColKeywords:
			if err := json.Unmarshal(v, &r.Keywords); err != nil {
				return fmt.Errorf("keywords: %w", err)
			}
		case ColCount:
			r.Count = rawNumber(v)
		}
	}

	return nil
}

func rawString(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if bytes.Equal(v, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}

	return string(v)
}

func rawNumber(v json.RawMessage) *float64 {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return &f
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &f
		}
	}

	return nil
}

// Keywords holds the pre-existing keyword tags of a record, which arrive
// either as a single string or as a list of strings.
type Keywords struct {
	set    bool
	isList bool
	str    string
	list   []string
}

// KeywordString returns a string-valued Keywords.
func KeywordString(s string) Keywords {
	return Keywords{set: true, str: s}
}

// KeywordList returns a list-valued Keywords.
func KeywordList(items ...string) Keywords {
	return Keywords{set: true, isList: true, list: append([]string{}, items...)}
}

// UnmarshalJSON accepts null, a string, an array, or any other scalar.
func (k *Keywords) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*k = Keywords{}

	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}

		list := make([]string, 0, len(items))
		for _, item := range items {
			list = append(list, rawString(item))
		}

		*k = Keywords{set: true, isList: true, list: list}
	default:
		*k = Keywords{set: true, str: rawString(data)}
	}

	return nil
}

// IsSet reports whether a non-null value was present.
func (k Keywords) IsSet() bool {
	return k.set
}

// HasAny reports whether the record carries any keyword tag: a non-empty
// list, or a string that is neither blank nor "[]".
func (k Keywords) HasAny() bool {
	if !k.set {
		return false
	}

	if k.isList {
		return len(k.list) > 0
	}

	s := strings.TrimSpace(k.str)

	return s != "" && s != "[]"
}

// String renders the keywords for output. Lists are comma-joined.
func (k Keywords) String() string {
	if k.isList {
		return strings.Join(k.list, ", ")
	}

	return k.str
}

// Row is one table row: a record plus the fields derived by later stages.
type Row struct {
	Record            TranscriptRecord
	Time              time.Time
	Fingerprint       string
	PrefilterAddress  string
	Address           string
	ExtractedKeywords string
}

// Table is an ordered set of columns and the rows that fill them.
type Table struct {
	Columns []string
	Rows    []*Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether name is one of the table columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}

	return false
}

// AddColumn appends name to the column list unless it is already there.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Filter returns a table with the same columns and the rows keep accepts.
func (t *Table) Filter(keep func(*Row) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}

	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}

	return out
}

// Values stringifies r in column order.
func (t *Table) Values(r *Row) []string {
	values := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		values[i] = r.Value(c)
	}

	return values
}

// Records stringifies every row in column order.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, t.Values(r))
	}

	return out
}

// Value returns the string form of column name for r. Absent values are
// rendered as "".
func (r *Row) Value(name string) string {
	rec := &r.Record

	switch name {
	case ColURL:
		return rec.URL
	case ColTranscription:
		return rec.Transcription
	case ColTimestamp:
		if r.Time.IsZero() {
			return rec.Timestamp
		}
		return r.Time.Format(OutputTimeLayout)
	case ColLocation:
		return rec.Location
	case ColKeywords:
		return rec.Keywords.String()
	case ColCount:
		if rec.Count == nil {
			return ""
		}
		return strconv.FormatFloat(*rec.Count, 'f', -1, 64)
	case ColPrefilterAddress:
		return r.PrefilterAddress
	case ColAddress:
		return r.Address
	case ColExtractedKeywords:
		return r.ExtractedKeywords
	default:
		return ""
	}
}
