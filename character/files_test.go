package character

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONWithComments(t *testing.T) {
	doc, err := Parse([]byte(`{
		// hand edited
		"name": "Ada",
		"bio": ["Counts things.",],
		/* trailing commas are fine */
		"topics": ["math"],
	}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Name)
	assert.Equal(t, []any{"Counts things."}, doc.Bio)
	assert.Equal(t, []any{"math"}, doc.Topics)
}

func TestParseYAML(t *testing.T) {
	doc, err := Parse([]byte(`
name: Luna
modelProvider: anthropic
bio:
  - Reads the stars.
style:
  chat:
    - dreamy
settings:
  secrets:
    ANTHROPIC_API_KEY: key
`), ".YML")
	require.NoError(t, err)
	assert.Equal(t, "Luna", doc.Name)
	assert.Equal(t, ProviderAnthropic, doc.ModelProvider)
	assert.Equal(t, []any{"Reads the stars."}, doc.Bio)
	assert.Equal(t, []any{"dreamy"}, doc.Style.Chat)
	assert.Equal(t, "key", doc.Settings.Secrets["ANTHROPIC_API_KEY"])
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte(`not json`), ".json")
	assert.Error(t, err)

	_, err = Parse([]byte("name: [unclosed"), ".yaml")
	assert.Error(t, err)
}

func TestWriteAndLoadFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "characters")
	doc := NewTemplate("Luna Starfall")
	doc.Bio = []any{"Reads the stars."}

	path, err := WriteFile(dir, doc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "luna-starfall.json"), path)

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLatestFile(t *testing.T) {
	dir := t.TempDir()
	_, err := LatestFile(dir)
	assert.ErrorIs(t, err, ErrNoCharacterFiles)

	now := time.Now()
	for i, name := range []string{"old.json", "new.json", "newest.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		mod := now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.json"), 0o755))

	latest, err := LatestFile(dir)
	require.NoError(t, err)
	assert.Equal(t, "new.json", latest)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "luna-starfall", Slug("Luna Starfall!"))
	assert.Equal(t, "r2-d2", Slug("  R2/D2 "))
	assert.Equal(t, "character", Slug("***"))
	assert.Equal(t, "character", Slug(""))
}
