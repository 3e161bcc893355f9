// Package keywords holds the fixed incident keyword vocabulary.
package keywords

import "strings"

var vocabulary = []string{
	"Fire", "Explosion", "Collapse", "House fire", "structure fire",
	"residential fire", "working structure fire", "fire damage",
	"Fatal fire", "Arson", "Suspicious fire", "Roof collapse",
	"Building collapse", "structure collapse", "Major Water Damage",
	"Flooded home", "Severe water damage", "Forced Vacate",
	"Unsafe structure", "Red-tagged building", "Condemned property",
	"Code enforcement closure", "Uninhabitable dwelling", "Homicide",
	"Death investigation", "Fatal accident", "Meth lab",
	"Drug lab contamination", "Hazmat cleanup",
}

var members = func() map[string]struct{} {
	m := make(map[string]struct{}, len(vocabulary))
	for _, kw := range vocabulary {
		m[kw] = struct{}{}
	}

	return m
}()

// Vocabulary returns a copy of the ordered keyword list.
func Vocabulary() []string {
	return append([]string(nil), vocabulary...)
}

// Contains reports whether kw is an exact, case-sensitive vocabulary member.
func Contains(kw string) bool {
	_, ok := members[kw]
	return ok
}

// Filter keeps the vocabulary members of candidates in their original order.
func Filter(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if Contains(c) {
			out = append(out, c)
		}
	}

	return out
}

// Joined returns the vocabulary as a comma separated list.
func Joined() string {
	return strings.Join(vocabulary, ", ")
}
