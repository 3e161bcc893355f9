package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVocabulary(t *testing.T) {
	v := Vocabulary()
	assert.Len(t, v, 29)
	assert.Equal(t, "Fire", v[0])
	assert.Equal(t, "Hazmat cleanup", v[len(v)-1])

	// Callers cannot mutate the shared list.
	v[0] = "changed"
	assert.Equal(t, "Fire", Vocabulary()[0])
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Fire"))
	assert.True(t, Contains("Red-tagged building"))
	assert.False(t, Contains("fire"))
	assert.False(t, Contains("Fire "))
	assert.False(t, Contains("Bogus"))
}

func TestFilter(t *testing.T) {
	got := Filter([]string{"Arson", "Bogus", "Fire", "arson", "Arson"})
	assert.Equal(t, []string{"Arson", "Fire", "Arson"}, got)
	assert.Empty(t, Filter(nil))
}

func TestJoined(t *testing.T) {
	joined := Joined()
	assert.Contains(t, joined, "Fire, Explosion, Collapse, House fire")
	assert.Contains(t, joined, "Drug lab contamination, Hazmat cleanup")
}
