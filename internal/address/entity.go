package address

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

// Entity is a named entity found in text.
type Entity struct {
	Text  string
	Label string
}

// EntityRecognizer finds named entities in text.
type EntityRecognizer interface {
	Entities(text string) ([]Entity, error)
}

// locationLabels are the entity labels that can name a place.
var locationLabels = map[string]bool{
	"GPE": true,
	"FAC": true,
	"LOC": true,
}

// EntityStrategy picks the longest place-like entity in the text.
type EntityStrategy struct {
	recognizer EntityRecognizer
	onError    func(error)
}

// NewEntityStrategy creates an entity strategy. onError, if set, receives
// recognizer failures; the strategy then reports no candidate.
func NewEntityStrategy(recognizer EntityRecognizer, onError func(error)) *EntityStrategy {
	return &EntityStrategy{recognizer: recognizer, onError: onError}
}

// Name implements Strategy.
func (s *EntityStrategy) Name() string { return "entity" }

// Extract implements Strategy. Ties on length keep the first entity.
func (s *EntityStrategy) Extract(_ context.Context, text string) (string, bool) {
	entities, err := s.recognizer.Entities(text)
	if err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		return "", false
	}

	best, bestLen := "", 0
	for _, e := range entities {
		if n := utf8.RuneCountInString(e.Text); locationLabels[e.Label] && n > bestLen {
			best, bestLen = e.Text, n
		}
	}

	return best, best != ""
}

// ProseRecognizer recognizes entities with the prose NLP model. The model is
// loaded by the first call and reused afterwards.
type ProseRecognizer struct {
	mu    sync.Mutex
	model *prose.Model
}

// NewProseRecognizer creates a recognizer.
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

// Entities implements EntityRecognizer.
func (r *ProseRecognizer) Entities(text string) ([]Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := []prose.DocOpt{prose.WithSegmentation(false)}
	if r.model != nil {
		opts = append(opts, prose.UsingModel(r.model))
	}

	doc, err := prose.NewDocument(text, opts...)
	if err != nil {
		return nil, fmt.Errorf("entity recognition failed: %w", err)
	}

	if r.model == nil {
		r.model = doc.Model
	}

	found := doc.Entities()
	out := make([]Entity, 0, len(found))
	for _, e := range found {
		out = append(out, Entity{Text: e.Text, Label: e.Label})
	}

	return out, nil
}
