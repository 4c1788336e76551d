package character

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExtract(t *testing.T, raw string) map[string]any {
	t.Helper()
	obj, err := Extract(raw)
	require.NoError(t, err)
	return obj
}

const completeRaw = `{
	"name": "Bob",
	"bio": ["Bob bakes bread."],
	"lore": ["Once won a contest."],
	"topics": ["baking"],
	"style": {"all": ["warm"], "chat": ["short"], "post": ["cheerful"]},
	"adjectives": ["kind"],
	"messageExamples": [[{"user": "{{user1}}", "content": {"text": "hi"}}]],
	"postExamples": ["Fresh loaves today."],
	"knowledge": ["Bread needs yeast", "Ovens get hot."]
}`

func TestNormalizeRequiredFieldGate(t *testing.T) {
	_, err := Normalize(map[string]any{"bio": []any{}}, nil, Generate)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"lore", "topics", "style", "adjectives", "messageExamples", "postExamples"}, validationErr.MissingFields)
	assert.Equal(t, "invalid character data: missing lore, topics, style, adjectives, messageExamples, postExamples", err.Error())
}

func TestNormalizeGateTreatsFalsyAsMissing(t *testing.T) {
	obj := mustExtract(t, completeRaw)
	obj["bio"] = nil
	obj["lore"] = false
	obj["topics"] = ""
	obj["adjectives"] = json.Number("0")

	_, err := Normalize(obj, nil, Generate)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"bio", "lore", "topics", "adjectives"}, validationErr.MissingFields)
}

func TestNormalizeDefaultsEveryField(t *testing.T) {
	obj := mustExtract(t, `{
		"bio": "not a list",
		"lore": {"not": "a list"},
		"topics": true,
		"style": {"all": "nope"},
		"adjectives": 7,
		"messageExamples": "x",
		"postExamples": "y"
	}`)

	doc, err := Normalize(obj, nil, Generate)
	require.NoError(t, err)

	encoded, err := json.Marshal(doc)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(encoded, &out))

	for _, field := range []string{"clients", "plugins", "bio", "lore", "knowledge", "messageExamples", "postExamples", "topics", "adjectives", "people"} {
		assert.Equal(t, []any{}, out[field], field)
	}
	assert.Equal(t, map[string]any{"all": []any{}, "chat": []any{}, "post": []any{}}, out["style"])
	assert.Equal(t, map[string]any{"secrets": map[string]any{}, "voice": map[string]any{"model": ""}}, out["settings"])
	assert.Equal(t, "", out["name"])
	assert.Equal(t, "", out["modelProvider"])
}

func TestNormalizeKeepsWellFormedFields(t *testing.T) {
	doc, err := Normalize(mustExtract(t, completeRaw), nil, Generate)
	require.NoError(t, err)

	want := &Document{
		Name:      "Bob",
		Clients:   []any{},
		Plugins:   []any{},
		Settings:  DefaultSettings(),
		Bio:       []any{"Bob bakes bread."},
		Lore:      []any{"Once won a contest."},
		Knowledge: []string{"Bread needs yeast.", "Ovens get hot."},
		MessageExamples: []any{[]any{map[string]any{
			"user":    "{{user1}}",
			"content": map[string]any{"text": "hi"},
		}}},
		PostExamples: []any{"Fresh loaves today."},
		Topics:       []any{"baking"},
		Style:        Style{All: []any{"warm"}, Chat: []any{"short"}, Post: []any{"cheerful"}},
		Adjectives:   []any{"kind"},
		People:       []any{},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeKnowledgeEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain strings", `["Knows Go", "Ends."]`, []string{"Knows Go.", "Ends."}},
		{"text field", `[{"text": "The sky is blue"}]`, []string{"The sky is blue."}},
		{"no text field", `[{"foo": 1}]`, []string{InvalidKnowledgeEntry}},
		{"content field", `[{"content": "Water is wet."}]`, []string{"Water is wet."}},
		{"numeric value is coerced", `[{"value": 42}]`, []string{"42."}},
		{"empty text falls through", `[{"text": "", "value": "Fallback"}]`, []string{"Fallback."}},
		{"nested object text", `[{"text": {"deep": "x"}}]`, []string{InvalidKnowledgeEntry}},
		{"scalar entries", `[42, null, true]`, []string{InvalidKnowledgeEntry, InvalidKnowledgeEntry, InvalidKnowledgeEntry}},
		{"not a list", `"just text"`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := mustExtract(t, completeRaw)
			var knowledge any
			require.NoError(t, decodeInto(tt.raw, &knowledge))
			obj["knowledge"] = knowledge

			doc, err := Normalize(obj, nil, Generate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Knowledge)
			for _, entry := range doc.Knowledge {
				assert.Regexp(t, `\.$`, entry)
			}
		})
	}
}

func TestNormalizeStickyKnowledge(t *testing.T) {
	obj := mustExtract(t, completeRaw)
	obj["knowledge"] = []any{"B.", "C."}
	baseline := &Document{Knowledge: []string{"A."}}

	doc, err := Normalize(obj, baseline, Refine)
	require.NoError(t, err)
	assert.Equal(t, []string{"A."}, doc.Knowledge)

	doc.Knowledge[0] = "changed"
	assert.Equal(t, []string{"A."}, baseline.Knowledge, "baseline must not be aliased")

	generated, err := Normalize(obj, baseline, Generate)
	require.NoError(t, err)
	assert.Equal(t, []string{"B.", "C."}, generated.Knowledge)

	empty, err := Normalize(obj, &Document{Knowledge: []string{}}, Refine)
	require.NoError(t, err)
	assert.Equal(t, []string{"B.", "C."}, empty.Knowledge)
}

func TestNormalizeRefineInheritsBaseline(t *testing.T) {
	baseline := &Document{
		Name:          "Ada",
		ModelProvider: ProviderOpenAI,
		Clients:       []any{"discord"},
		Plugins:       []any{"solana"},
		Settings: Settings{
			Secrets: map[string]string{"OPENAI_API_KEY": "sk-test"},
			Voice:   Voice{Model: "en_US-female"},
		},
		Extra: map[string]any{"id": "agent-1", "system": "Stay kind."},
	}

	obj := mustExtract(t, completeRaw)
	delete(obj, "name")

	doc, err := Normalize(obj, baseline, Refine)
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Name)
	assert.Equal(t, ProviderOpenAI, doc.ModelProvider)
	assert.Equal(t, []any{"discord"}, doc.Clients)
	assert.Equal(t, []any{"solana"}, doc.Plugins)
	assert.Equal(t, "sk-test", doc.Settings.Secrets["OPENAI_API_KEY"])
	assert.Equal(t, "en_US-female", doc.Settings.Voice.Model)
	assert.Equal(t, map[string]any{"id": "agent-1", "system": "Stay kind."}, doc.Extra)

	doc.Settings.Secrets["OPENAI_API_KEY"] = "changed"
	assert.Equal(t, "sk-test", baseline.Settings.Secrets["OPENAI_API_KEY"])

	obj["name"] = "Bea"
	obj["system"] = "Be bold."
	renamed, err := Normalize(obj, baseline, Refine)
	require.NoError(t, err)
	assert.Equal(t, "Bea", renamed.Name)
	assert.Equal(t, "Be bold.", renamed.Extra["system"])
}

func TestNormalizeGenerateIgnoresBaselineScalars(t *testing.T) {
	obj := mustExtract(t, completeRaw)
	delete(obj, "name")

	doc, err := Normalize(obj, &Document{Name: "Ada", ModelProvider: ProviderOpenAI}, Generate)
	require.NoError(t, err)
	assert.Equal(t, "", doc.Name)
	assert.Equal(t, "", doc.ModelProvider)
}

func TestNormalizeStyleDefaults(t *testing.T) {
	obj := mustExtract(t, completeRaw)
	obj["style"] = map[string]any{"all": []any{"a"}, "chat": "nope"}

	doc, err := Normalize(obj, nil, Generate)
	require.NoError(t, err)
	assert.Equal(t, Style{All: []any{"a"}, Chat: []any{}, Post: []any{}}, doc.Style)

	obj["style"] = "a string"
	doc, err = Normalize(obj, nil, Generate)
	require.NoError(t, err)
	assert.Equal(t, Style{All: []any{}, Chat: []any{}, Post: []any{}}, doc.Style)
}

func decodeInto(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
