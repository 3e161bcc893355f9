package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"incidentetl/internal/keywords"
)

// Response parsing errors.
var (
	ErrMalformedResponse = errors.New("response is not a JSON object")
	ErrMissingLocation   = errors.New("response has no string location")
	ErrMissingKeywords   = errors.New("response has no keywords")
)

var fencePattern = regexp.MustCompile("```(?:json)?|```")

// Result is the extraction for one transcript.
type Result struct {
	Location string
	Keywords []string
}

// JoinedKeywords returns the keywords comma separated.
func (r Result) JoinedKeywords() string {
	return strings.Join(r.Keywords, ", ")
}

// StripFences removes markdown code fences from content.
func StripFences(content string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(content, ""))
}

// ParseResponse parses the assistant message content. Keywords outside the
// vocabulary are dropped; a bare string is treated as a one-element list.
func ParseResponse(content string) (Result, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(StripFences(content)), &obj); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	rawLocation, ok := obj["location"]
	if !ok || isNull(rawLocation) {
		return Result{}, ErrMissingLocation
	}

	var location string
	if err := json.Unmarshal(rawLocation, &location); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMissingLocation, err)
	}

	rawKeywords, ok := obj["keywords"]
	if !ok || isNull(rawKeywords) {
		return Result{}, ErrMissingKeywords
	}

	candidates, err := decodeKeywords(rawKeywords)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Location: location,
		Keywords: keywords.Filter(candidates),
	}, nil
}

func decodeKeywords(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingKeywords, err)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}

	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
