package handlers

import (
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"charsmith/character"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/usr/bin/env bash\n"+body+"\n"), 0o755))
	return path
}

func writeCharacter(t *testing.T, dir, name string) {
	t.Helper()
	doc := character.NewTemplate(name)
	doc.ModelProvider = character.ProviderOllama
	_, err := character.WriteFile(dir, doc)
	require.NoError(t, err)
}

func TestLaunchLatestWithoutFiles(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.handler.CharacterDir = filepath.Join(t.TempDir(), "not-yet")

	rec := env.do(t, http.MethodPost, "/generate-character", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No character files found", decodeResponse(t, rec)["error"])
	assert.DirExists(t, env.handler.CharacterDir)
}

func TestLaunchLatest(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.handler.SetupScript = writeScript(t, `echo "mode=$1 file=$CHARACTER_FILE"
echo "Server running on port 3000"
sleep 30`)
	writeCharacter(t, env.handler.CharacterDir, "Old")
	time.Sleep(20 * time.Millisecond)
	writeCharacter(t, env.handler.CharacterDir, "Ada")

	rec := env.do(t, http.MethodPost, "/generate-character", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeResponse(t, rec)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "Character generated and Eliza started successfully!", out["message"])
	assert.Contains(t, out["stdout"], "mode=start-background file=ada.json")
	assert.Equal(t, "Ada", out["character"].(map[string]any)["name"])

	agentID := out["agentId"].(string)
	rec = env.do(t, http.MethodGet, "/agents", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agents := decodeResponse(t, rec)["agents"].([]any)
	require.Len(t, agents, 1)
	assert.Equal(t, agentID, agents[0].(map[string]any)["id"])
	assert.Equal(t, "ready", agents[0].(map[string]any)["state"])

	rec = env.do(t, http.MethodPost, "/stop-agent", `{"agentId":"`+agentID+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.agents.List())

	rec = env.do(t, http.MethodPost, "/stop-agent", `{"agentId":"`+agentID+`"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLaunchLatestScriptFailure(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.handler.SetupScript = writeScript(t, `echo "installing"
echo "(node:1) ExperimentalWarning: noise" >&2
echo "pnpm: command not found" >&2
exit 127`)
	writeCharacter(t, env.handler.CharacterDir, "Ada")

	rec := env.do(t, http.MethodPost, "/generate-character", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decodeResponse(t, rec)
	assert.Equal(t, "Script execution failed", out["error"])
	assert.Equal(t, "script exited with code 127\npnpm: command not found", out["details"])
	assert.Equal(t, "installing", out["stdout"])
	assert.Equal(t, "pnpm: command not found", out["stderr"])
}

func TestLaunchLatestTimeout(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.handler.SetupScript = writeScript(t, `sleep 30`)
	env.handler.ReadyTimeout = 100 * time.Millisecond
	writeCharacter(t, env.handler.CharacterDir, "Ada")

	rec := env.do(t, http.MethodPost, "/generate-character", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeResponse(t, rec)["details"], "agent was not ready after 100ms")
	assert.Empty(t, env.agents.List(), "a timed out agent is stopped")
}

func TestStartAgent(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.handler.StartScript = writeScript(t, `echo "starting $1"; echo "Chat started"; sleep 30`)

	rec := env.do(t, http.MethodPost, "/start-agent", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: characterName", decodeResponse(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/start-agent", `{"characterName":"Ada \"; rm -rf /"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeResponse(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, `Agent for Ada "; rm -rf / is starting...`, out["message"])

	proc, ok := env.agents.Get(out["agentId"].(string))
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return proc.Stdout() == "starting Ada \"; rm -rf /\nChat started\n"
	}, 5*time.Second, 10*time.Millisecond, "the name reaches the script as one argument")
}

func TestStopAgentValidation(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	rec := env.do(t, http.MethodPost, "/stop-agent", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: agentId", decodeResponse(t, rec)["error"])
}
