package handlers

import (
	"net/http"
	"time"

	"charsmith/character"

	"go.uber.org/zap"
)

type saveResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	File    string `json:"file"`
}

// SaveCharacterHandler stores a character and writes it to the character
// directory for the agent runtime.
func (h *Handler) SaveCharacterHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var doc character.Document
	if err := decodeBody(w, r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.Store.SaveCharacter(r.Context(), &doc)
	if err != nil {
		h.Logger.Error("Saving character failed", zap.String("name", doc.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save character.")
		return
	}
	path, err := character.WriteFile(h.CharacterDir, &doc)
	if err != nil {
		h.Logger.Error("Writing character file failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save character.")
		return
	}

	h.Logger.Info("Character saved", zap.String("id", id), zap.String("name", doc.Name), zap.String("file", path))
	writeJSON(w, http.StatusOK, saveResponse{Success: true, ID: id, File: path})
}

type characterSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ModelProvider string    `json:"modelProvider"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ListCharactersHandler lists saved characters, newest first.
func (h *Handler) ListCharactersHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	records, err := h.Store.ListCharacters(r.Context())
	if err != nil {
		h.Logger.Error("Listing characters failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list characters")
		return
	}

	out := make([]characterSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, characterSummary{
			ID:            rec.ID,
			Name:          rec.Character.Name,
			ModelProvider: rec.Character.ModelProvider,
			CreatedAt:     rec.CreatedAt,
			UpdatedAt:     rec.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": out})
}
