package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Rank    int      `json:"rank" description:"Position in the list"`
	Name    string   `json:"name"`
	Score   float64  `json:"score,omitempty"`
	Tags    []string `json:"tags"`
	Hidden  string   `json:"-"`
	private string
	Nested  struct {
		OK bool `json:"ok"`
	} `json:"nested"`
}

func TestOf(t *testing.T) {
	s, err := Of(&sample{})
	require.NoError(t, err)

	assert.Equal(t, "object", s["type"])
	assert.Equal(t, "sample", s["title"])
	assert.ElementsMatch(t, []string{"rank", "name", "tags", "nested"}, s["required"])

	props := s["properties"].(map[string]any)
	assert.Len(t, props, 5)

	rank := props["rank"].(Schema)
	assert.Equal(t, "integer", rank["type"])
	assert.Equal(t, "Position in the list", rank["description"])
	assert.Equal(t, "Rank", rank["title"])

	assert.Equal(t, "number", props["score"].(Schema)["type"])

	tags := props["tags"].(Schema)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, Schema{"type": "string"}, tags["items"])

	nested := props["nested"].(Schema)
	assert.Equal(t, "object", nested["type"])
}

func TestOfRejectsNonStruct(t *testing.T) {
	_, err := Of(42)
	assert.Error(t, err)

	_, err = Of(nil)
	assert.Error(t, err)
}

func TestJSON(t *testing.T) {
	s := MustOf(sample{})
	out, err := s.JSON()
	require.NoError(t, err)
	assert.Contains(t, out, `"description": "Position in the list"`)
}
