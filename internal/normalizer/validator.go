package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"incidentetl/internal/models"
)

// Validation errors.
var (
	ErrMissingTimestamp = errors.New("record has no timestamp")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// Validator checks that a record can be placed on the calendar.
type Validator struct {
	location *time.Location
}

// NewValidator creates a validator that interprets timestamps in loc.
func NewValidator(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.Local
	}

	return &Validator{location: loc}
}

// ParseTimestamp parses the record timestamp (YYYYMMDD_HHMMSS).
func (v *Validator) ParseTimestamp(rec *models.TranscriptRecord) (time.Time, error) {
	raw := strings.TrimSpace(rec.Timestamp)
	if raw == "" {
		return time.Time{}, ErrMissingTimestamp
	}

	t, err := time.ParseInLocation(models.TimestampLayout, raw, v.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}

	return t, nil
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	return ay == by && am == bm && ad == bd
}
