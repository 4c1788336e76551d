package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"charsmith/character"
	"charsmith/db"

	"go.uber.org/zap"
)

type MessageRequest struct {
	CharacterName string `json:"characterName"`
	Message       string `json:"message"`
}

type MessageResponse struct {
	CharacterID string              `json:"characterId"`
	Character   *character.Document `json:"character"`
	Response    any                 `json:"response"`
}

// ChatHandler relays a message to the running agent of a saved character.
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req MessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CharacterName == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	rec, err := h.Store.GetCharacterByName(r.Context(), req.CharacterName)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Character '%s' not found in database!", req.CharacterName))
		return
	}
	if err != nil {
		h.Logger.Error("Loading character failed", zap.String("name", req.CharacterName), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process chat message")
		return
	}

	reply, err := h.AgentClient.SendMessage(r.Context(), rec.ID, req.Message)
	if err != nil {
		h.Logger.Error("Agent message failed", zap.String("character_id", rec.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process chat message")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{CharacterID: rec.ID, Character: rec.Character, Response: reply})
}
