package character

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, obj map[string]any)
	}{
		{
			name: "valid JSON is returned as is",
			raw:  `{"name":"Ada","age":36,"ratio":1.50}`,
			check: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, "Ada", obj["name"])
				assert.Equal(t, json.Number("36"), obj["age"])
				assert.Equal(t, json.Number("1.50"), obj["ratio"])
			},
		},
		{
			name: "prose prefix and trailing comma",
			raw:  `Sure! Here is the JSON: {"name":"Bob","bio":[],"lore":[],"topics":[],"style":{},"adjectives":[],"messageExamples":[],"postExamples":[],}`,
			check: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, "Bob", obj["name"])
				assert.Equal(t, []any{}, obj["bio"])
				assert.Equal(t, map[string]any{}, obj["style"])
			},
		},
		{
			name: "markdown fence",
			raw:  "```json\n{\n  \"name\": \"Zed\",\n  \"topics\": [\"space\",\n  ],\n}\n```",
			check: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, "Zed", obj["name"])
				assert.Equal(t, []any{"space"}, obj["topics"])
			},
		},
		{
			name: "undefined and empty values",
			raw:  `Result: {"a": undefined, "b": [1, 2, ], "c": }`,
			check: func(t *testing.T, obj map[string]any) {
				assert.Nil(t, obj["a"])
				assert.Contains(t, obj, "a")
				assert.Equal(t, []any{json.Number("1"), json.Number("2")}, obj["b"])
				assert.Nil(t, obj["c"])
				assert.Contains(t, obj, "c")
			},
		},
		{
			name: "empty value before comma",
			raw:  `{"a": ,"b": 1} trailing words`,
			check: func(t *testing.T, obj map[string]any) {
				assert.Nil(t, obj["a"])
				assert.Equal(t, json.Number("1"), obj["b"])
			},
		},
		{
			name: "whitespace variants of empty containers",
			raw:  "note {\"style\": {  \n }, \"bio\": [ \t ]}",
			check: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, map[string]any{}, obj["style"])
				assert.Equal(t, []any{}, obj["bio"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Extract(tt.raw)
			require.NoError(t, err)
			tt.check(t, obj)
		})
	}
}

func TestExtractNoBoundaries(t *testing.T) {
	for _, raw := range []string{
		"I cannot help with that request.",
		"",
		"only an opening { brace",
		"} reversed {",
	} {
		_, err := Extract(raw)
		var extractionErr *ExtractionError
		require.True(t, errors.As(err, &extractionErr), "raw %q", raw)
		assert.Equal(t, NoJSONBoundaries, extractionErr.Kind)
		assert.Equal(t, len(raw), extractionErr.Size)
	}
}

func TestExtractUnrecoverable(t *testing.T) {
	_, err := Extract(`here you go {"a": "b" "c": 1} hope it helps`)

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, UnrecoverableMalformed, extractionErr.Kind)
	assert.NotEmpty(t, extractionErr.Detail)
	assert.Equal(t, `{"a": "b" "c": 1}`, extractionErr.Cleaned)
	assert.Contains(t, err.Error(), "failed to parse JSON content")
}

func TestExtractRejectsNonObjectJSON(t *testing.T) {
	_, err := Extract(`["a", "b"]`)
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, NoJSONBoundaries, extractionErr.Kind)
}

func TestExtractIsIdempotent(t *testing.T) {
	raws := []string{
		`{"name":"Ada","n":1.25,"nested":{"k":[true,null,"x"]}}`,
		`Sure! Here is the JSON: {"name":"Bob","bio":[],"lore":[],}`,
		"```json\n{\"a\": undefined, \"b\": [1, 2, ]}\n```",
	}
	for _, raw := range raws {
		first, err := Extract(raw)
		require.NoError(t, err)

		encoded, err := json.Marshal(first)
		require.NoError(t, err)

		second, err := Extract(string(encoded))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestExtractionErrorSnippetIsBounded(t *testing.T) {
	raw := make([]byte, 1000)
	for i := range raw {
		raw[i] = 'x'
	}
	_, err := Extract(string(raw))
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Less(t, len(extractionErr.Snippet), 250)
	assert.Equal(t, 1000, extractionErr.Size)
}

func TestRepair(t *testing.T) {
	assert.Equal(t, `{"a": [1], "b": {}}`, Repair("{\"a\": [1,\n ],\n \"b\": {\n},\n}"))
}
