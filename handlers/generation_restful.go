package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"charsmith/character"
	"charsmith/db"

	"go.uber.org/zap"
)

type generationDetail struct {
	ID          string              `json:"id"`
	Mode        string              `json:"mode"`
	Provider    string              `json:"provider"`
	Model       string              `json:"model"`
	Character   *character.Document `json:"character"`
	RawPrompt   string              `json:"rawPrompt"`
	RawResponse string              `json:"rawResponse"`
	CreatedAt   time.Time           `json:"createdAt"`
	ExpiresAt   time.Time           `json:"expiresAt"`
}

// GenerationDetailRESTHandler handles RESTful paths like /api/generations/ID
func (h *Handler) GenerationDetailRESTHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	// Extract generation ID from path
	id := strings.TrimPrefix(r.URL.Path, "/api/generations/")
	if id == "" || id == r.URL.Path || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "Generation ID is required")
		return
	}

	rec, err := h.Store.GetGeneration(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Generation not found or expired")
		return
	}
	if err != nil {
		h.Logger.Error("Loading generation failed", zap.String("generation_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load generation")
		return
	}

	writeJSON(w, http.StatusOK, generationDetail{
		ID:          rec.ID,
		Mode:        rec.Mode,
		Provider:    rec.Provider,
		Model:       rec.Model,
		Character:   rec.Character,
		RawPrompt:   rec.Prompt,
		RawResponse: rec.RawResponse,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
	})
}
