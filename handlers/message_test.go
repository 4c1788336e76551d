package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"charsmith/character"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndListCharacters(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	rec := env.do(t, http.MethodPost, "/save-json", `{"name":"Ada Lovelace","bio":"not a list","id":"keep-me"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeResponse(t, rec)
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["id"])
	assert.Equal(t, filepath.Join(env.handler.CharacterDir, "ada-lovelace.json"), out["file"])

	doc, err := character.LoadFile(out["file"].(string))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", doc.Name)
	assert.Equal(t, []any{}, doc.Bio)
	assert.Equal(t, "keep-me", doc.Extra["id"])

	rec = env.do(t, http.MethodGet, "/api/characters", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeResponse(t, rec)["characters"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, out["id"], list[0].(map[string]any)["id"])
	assert.Equal(t, "Ada Lovelace", list[0].(map[string]any)["name"])
}

func TestSaveCharacterFileError(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	env.handler.CharacterDir = filepath.Join(blocker, "characters")

	rec := env.do(t, http.MethodPost, "/save-json", `{"name":"Ada"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to save character.", decodeResponse(t, rec)["error"])
}

func TestChat(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	runtime := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"user":"Ada","text":"Hello!"}]`))
	}))
	defer runtime.Close()

	env := newTestEnv(t, runtime.URL)
	rec := env.do(t, http.MethodPost, "/save-json", `{"name":"Ada"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeResponse(t, rec)["id"].(string)

	rec = env.do(t, http.MethodPost, "/chat", `{"characterName":"Ada","message":"hi"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeResponse(t, rec)
	assert.Equal(t, id, out["characterId"])
	assert.Equal(t, "Ada", out["character"].(map[string]any)["name"])
	assert.Equal(t, []any{map[string]any{"user": "Ada", "text": "Hello!"}}, out["response"])

	assert.Equal(t, "/"+id+"/message", gotPath)
	assert.Equal(t, map[string]string{"text": "hi", "userId": "user", "userName": "User"}, gotBody)
}

func TestChatErrors(t *testing.T) {
	runtime := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer runtime.Close()
	env := newTestEnv(t, runtime.URL)

	rec := env.do(t, http.MethodPost, "/chat", `{"characterName":"Ada"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required parameters", decodeResponse(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/chat", `{"characterName":"Ghost","message":"hi"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Character 'Ghost' not found in database!", decodeResponse(t, rec)["error"])

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/save-json", `{"name":"Ada"}`, nil).Code)
	rec = env.do(t, http.MethodPost, "/chat", `{"characterName":"Ada","message":"hi"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to process chat message", decodeResponse(t, rec)["error"])
}
