// Package address finds and standardizes street addresses in transcript
// text without calling any paid service.
package address

import (
	"context"
	"regexp"
)

// Strategy extracts a raw address candidate from text.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, text string) (string, bool)
}

// streetPattern matches a US style street address: a house number, a run
// of words and a street type.
var streetPattern = regexp.MustCompile(
	`(?i)\d{1,5}\s[\w\s]+(?:Street|St|Avenue|Ave|Boulevard|Blvd|Road|Rd|Drive|Dr|Court|Ct|Lane|Ln|Way|Terrace|Ter|Place|Pl)\b`,
)

// RegexStrategy returns the first street address match in the text.
type RegexStrategy struct {
	pattern *regexp.Regexp
}

// NewRegexStrategy creates the street-address pattern strategy.
func NewRegexStrategy() *RegexStrategy {
	return &RegexStrategy{pattern: streetPattern}
}

// Name implements Strategy.
func (s *RegexStrategy) Name() string { return "regex" }

// Extract implements Strategy.
func (s *RegexStrategy) Extract(_ context.Context, text string) (string, bool) {
	match := s.pattern.FindString(text)

	return match, match != ""
}

// Chain tries each strategy in order and standardizes the first candidate
// found.
type Chain struct {
	strategies   []Strategy
	standardizer *Standardizer
}

// NewChain creates a chain over strategies.
func NewChain(standardizer *Standardizer, strategies ...Strategy) *Chain {
	return &Chain{
		strategies:   strategies,
		standardizer: standardizer,
	}
}

// Extract returns the standardized address for text, or "" when no strategy
// finds a candidate.
func (c *Chain) Extract(ctx context.Context, text string) string {
	for _, s := range c.strategies {
		if candidate, ok := s.Extract(ctx, text); ok {
			return c.standardizer.Standardize(candidate)
		}
	}

	return ""
}
