package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONFromCodeBlock(t *testing.T) {
	content := "Here is the plan:\n```json\n{\"modules\": [\"a\"]}\n```\nHope that helps!"

	got := ExtractJSON(content)

	assert.JSONEq(t, `{"modules": ["a"]}`, got)
}

func TestExtractJSONBareObject(t *testing.T) {
	got := ExtractJSON(`Sure! {"adequate": true} as requested.`)
	assert.JSONEq(t, `{"adequate": true}`, got)
}

func TestExtractJSONStripsCommentsAndTrailingCommas(t *testing.T) {
	content := `{
		"queries": [
			"go basics", // the fundamentals
			"go slices",
		],
	}`

	got := ExtractJSON(content)

	require.True(t, json.Valid([]byte(got)), "cleaned output must be valid JSON: %s", got)

	var parsed struct {
		Queries []string `json:"queries"`
	}
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, []string{"go basics", "go slices"}, parsed.Queries)
}

func TestExtractJSONPreservesURLsInStrings(t *testing.T) {
	content := `{"url": "https://example.com/page"}`

	got := ExtractJSON(content)

	var parsed struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, "https://example.com/page", parsed.URL)
}

func TestExtractJSONNoObject(t *testing.T) {
	assert.Empty(t, ExtractJSON("I could not produce any structured output."))
}

func TestExtractJSONArray(t *testing.T) {
	got := ExtractJSONArray("```json\n[1, 2, 3]\n```")
	assert.JSONEq(t, `[1,2,3]`, got)

	got = ExtractJSONArray(`The list: ["a", "b"]`)
	assert.JSONEq(t, `["a","b"]`, got)
}

type countedPayload struct {
	Queries []string `json:"queries"`
}

func (p *countedPayload) Validate() error {
	if len(p.Queries) != 2 {
		return NewParseError("counted", "expected 2 queries, got %d", len(p.Queries))
	}
	return nil
}

func TestDecodeStructured(t *testing.T) {
	var out countedPayload
	err := DecodeStructured("counted", `{"queries": ["a", "b"]}`, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Queries)
}

func TestDecodeStructuredValidationFailure(t *testing.T) {
	var out countedPayload
	err := DecodeStructured("counted", `{"queries": ["only one"]}`, &out)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "counted", parseErr.Schema)
	assert.Contains(t, parseErr.Reason, "expected 2 queries")
}

func TestDecodeStructuredNoJSON(t *testing.T) {
	var out countedPayload
	err := DecodeStructured("counted", "sorry, no can do", &out)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "no JSON")
}

func TestDecodeStructuredMalformedJSON(t *testing.T) {
	var out countedPayload
	err := DecodeStructured("counted", `{"queries": [truncated`, &out)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}
