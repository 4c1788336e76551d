package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir()) // keep a developer's .env out of the test
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const rawCompletion = "```json\n" + `{"name":"Bob","bio":["Bakes."],"lore":["x"],"topics":["bread"],"style":{},"adjectives":["kind"],"messageExamples":[],"postExamples":[],"knowledge":["Flour"],}` + "\n```"

func TestRepairCommand(t *testing.T) {
	out, err := runCLI(t, rawCompletion, "repair", "--input", "-")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Bob", doc["name"])
	assert.Equal(t, []any{"Flour."}, doc["knowledge"])
	assert.Equal(t, map[string]any{"all": []any{}, "chat": []any{}, "post": []any{}}, doc["style"])
}

func TestRepairCommandRefine(t *testing.T) {
	dir := t.TempDir()
	baseline := filepath.Join(dir, "bob.json")
	require.NoError(t, os.WriteFile(baseline, []byte(`{
		// saved earlier
		"name": "Bob",
		"modelProvider": "openai",
		"knowledge": ["Kept."],
	}`), 0o644))
	input := filepath.Join(dir, "raw.txt")
	require.NoError(t, os.WriteFile(input, []byte(rawCompletion), 0o644))

	out, err := runCLI(t, "", "repair", "--input", input, "--baseline", baseline, "--refine")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, []any{"Kept."}, doc["knowledge"])
	assert.Equal(t, "openai", doc["modelProvider"])
}

func TestRepairCommandFailure(t *testing.T) {
	_, err := runCLI(t, "no json at all", "repair", "--input", "-")
	assert.Error(t, err)

	_, err = runCLI(t, `{"name":"Bob"}`, "repair", "--input", "-")
	assert.ErrorContains(t, err, "missing bio")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ada.yaml")
	require.NoError(t, os.WriteFile(good, []byte("name: Ada\nmodelProvider: ollama\n"), 0o644))
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"modelProvider":"skynet"}`), 0o644))

	out, err := runCLI(t, "", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+good+" (Ada)")
	assert.NotContains(t, out, "warning")

	out, err = runCLI(t, "", "validate", good, bad, filepath.Join(dir, "missing.json"))
	assert.EqualError(t, err, "2 invalid character files")
	assert.Contains(t, out, "FAIL "+bad+": name is required\nunknown modelProvider \"skynet\"")
	assert.Contains(t, out, "FAIL "+filepath.Join(dir, "missing.json"))
}

func TestValidateWarnsAboutMissingToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ada.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"Ada","modelProvider":"anthropic"}`), 0o644))
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_API_KEY", "")

	out, err := runCLI(t, "", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "warning: no token configured for anthropic")
}
