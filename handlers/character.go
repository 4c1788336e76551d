package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"charsmith/character"
	"charsmith/db"
	"charsmith/generator"
	"charsmith/llm"

	"go.uber.org/zap"
)

type generateRequest struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

type refineRequest struct {
	Prompt           string              `json:"prompt"`
	Model            string              `json:"model"`
	Provider         string              `json:"provider"`
	CurrentCharacter *character.Document `json:"currentCharacter"`
}

type generationResponse struct {
	Character    *character.Document `json:"character"`
	RawPrompt    string              `json:"rawPrompt"`
	RawResponse  string              `json:"rawResponse"`
	GenerationID string              `json:"generationId,omitempty"`
}

// GenerateCharacterHandler drafts a new character from a description.
func (h *Handler) GenerateCharacterHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "Model is required")
		return
	}
	apiKey, ok := h.requireAPIKey(w, r, req.Provider)
	if !ok {
		return
	}

	res, err := h.Generator.Generate(r.Context(), generator.GenerateRequest{
		Prompt:   req.Prompt,
		Model:    req.Model,
		Provider: req.Provider,
		APIKey:   apiKey,
	})
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.recordGeneration(r.Context(), res))
}

// RefineCharacterHandler applies instructions to an existing character.
func (h *Handler) RefineCharacterHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req refineRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Prompt == "" || req.Model == "" || req.CurrentCharacter == nil {
		writeError(w, http.StatusBadRequest, "Prompt, model, and current character data are required")
		return
	}
	apiKey, ok := h.requireAPIKey(w, r, req.Provider)
	if !ok {
		return
	}

	res, err := h.Generator.Refine(r.Context(), generator.RefineRequest{
		Prompt:   req.Prompt,
		Model:    req.Model,
		Provider: req.Provider,
		APIKey:   apiKey,
		Current:  req.CurrentCharacter,
	})
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.recordGeneration(r.Context(), res))
}

// requireAPIKey returns the X-API-Key header, answering 400 when the chosen
// provider has no key of its own.
func (h *Handler) requireAPIKey(w http.ResponseWriter, r *http.Request, providerName string) (string, bool) {
	provider, err := h.Generator.Provider(providerName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" && llm.NeedsAPIKey(provider) {
		writeError(w, http.StatusBadRequest, "API key is required")
		return "", false
	}
	return apiKey, true
}

func (h *Handler) writeGenerationError(w http.ResponseWriter, err error) {
	var parseErr *generator.ParseError
	switch {
	case errors.Is(err, llm.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, llm.ErrMissingAPIKey):
		writeError(w, http.StatusBadRequest, "API key is required")
	case errors.As(err, &parseErr):
		// Already logged with the raw response by the generator.
		writeError(w, http.StatusInternalServerError, parseErr.Error())
	default:
		h.Logger.Error("Generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// recordGeneration stores res so it can be fetched again until it expires.
// A failed write only drops the generation ID from the response.
func (h *Handler) recordGeneration(ctx context.Context, res *generator.Result) generationResponse {
	resp := generationResponse{
		Character:   res.Character,
		RawPrompt:   res.RawPrompt,
		RawResponse: res.RawResponse,
	}
	err := h.Store.SaveGeneration(ctx, &db.GenerationRecord{
		ID:          res.ID,
		Mode:        res.Mode.String(),
		Provider:    res.Provider,
		Model:       res.Model,
		Prompt:      res.RawPrompt,
		RawResponse: res.RawResponse,
		Character:   res.Character,
		CreatedAt:   res.CreatedAt,
		ExpiresAt:   res.CreatedAt.Add(h.GenerationTTL),
	})
	if err != nil {
		h.Logger.Warn("Could not record generation", zap.String("generation_id", res.ID), zap.Error(err))
		return resp
	}
	resp.GenerationID = res.ID
	return resp
}

type fixJSONRequest struct {
	Content string `json:"content"`
}

// FixJSONHandler recovers a JSON object from pasted model output.
func (h *Handler) FixJSONHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req fixJSONRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}

	obj, err := character.Extract(req.Content)
	if err != nil {
		h.Logger.Error("Could not fix JSON", zap.Error(err), zap.String("content", req.Content))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to parse JSON: %s", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"character": obj})
}
