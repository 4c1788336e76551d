package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"charsmith/agent"
	"charsmith/character"

	"go.uber.org/zap"
)

type launchResponse struct {
	Message   string              `json:"message"`
	Status    string              `json:"status"`
	Stdout    string              `json:"stdout"`
	Character *character.Document `json:"character"`
	AgentID   string              `json:"agentId"`
}

type launchFailure struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

// LaunchLatestHandler starts the agent runtime on the most recently written
// character file and waits for it to come up.
func (h *Handler) LaunchLatestHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	if err := os.MkdirAll(h.CharacterDir, 0o755); err != nil {
		h.Logger.Error("Creating character directory failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get latest character file")
		return
	}
	latest, err := character.LatestFile(h.CharacterDir)
	if errors.Is(err, character.ErrNoCharacterFiles) {
		writeError(w, http.StatusBadRequest, "No character files found")
		return
	}
	if err != nil {
		h.Logger.Error("Finding latest character file failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get latest character file")
		return
	}

	doc, err := character.LoadFile(filepath.Join(h.CharacterDir, latest))
	if err != nil {
		h.Logger.Error("Loading character file failed", zap.String("file", latest), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Invalid character JSON format")
		return
	}
	h.checkRuntimeSettings(doc)

	log := h.Logger.With(zap.String("file", latest))
	log.Info("Starting agent runtime")
	proc, err := h.Agents.Start(r.Context(), agent.Spec{
		Name:          doc.Name,
		Script:        h.SetupScript,
		Args:          []string{"start-background"},
		CharacterFile: latest,
	})
	if err != nil {
		log.Error("Starting agent failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, launchFailure{Error: "Script execution failed", Details: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.ReadyTimeout)
	defer cancel()
	if err := proc.WaitReady(ctx); err != nil {
		log.Error("Agent did not start", zap.Error(err), zap.String("stderr", proc.Stderr()))
		if !errors.As(err, new(*agent.ExitError)) {
			err = fmt.Errorf("agent was not ready after %s: %w", h.ReadyTimeout, err)
			h.stopQuietly(proc.ID())
		}
		writeJSON(w, http.StatusInternalServerError, launchFailure{
			Error:   "Script execution failed",
			Details: err.Error(),
			Stdout:  agent.StripANSI(proc.Stdout()),
			Stderr:  agent.StripANSI(agent.FilterStderr(proc.Stderr())),
		})
		return
	}

	if stderr := agent.StripANSI(agent.FilterStderr(proc.Stderr())); stderr != "" {
		log.Warn("Agent wrote to stderr", zap.String("stderr", stderr))
	}
	writeJSON(w, http.StatusOK, launchResponse{
		Message:   "Character generated and Eliza started successfully!",
		Status:    "success",
		Stdout:    proc.Stdout(),
		Character: doc,
		AgentID:   proc.ID(),
	})
}

// checkRuntimeSettings warns about characters the runtime will struggle to
// boot. It never blocks a launch.
func (h *Handler) checkRuntimeSettings(doc *character.Document) {
	log := h.Logger.With(zap.String("name", doc.Name))
	if err := character.Validate(doc); err != nil {
		log.Warn("Character may not boot", zap.Error(err))
	}
	if character.NeedsToken(doc.ModelProvider) && character.TokenForProvider(doc, h.getenv) == "" {
		log.Warn("No model token configured", zap.String("provider", doc.ModelProvider))
	}
}

func (h *Handler) stopQuietly(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*agent.DefaultGracePeriod)
	defer cancel()
	if err := h.Agents.Stop(ctx, id); err != nil && !errors.Is(err, agent.ErrNotFound) {
		h.Logger.Warn("Stopping agent failed", zap.String("agent_id", id), zap.Error(err))
	}
}

type startAgentRequest struct {
	CharacterName string `json:"characterName"`
}

// StartAgentHandler launches the start script for a named character and
// returns without waiting for it.
func (h *Handler) StartAgentHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req startAgentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CharacterName == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: characterName")
		return
	}

	proc, err := h.Agents.Start(r.Context(), agent.Spec{
		Name:   req.CharacterName,
		Script: h.StartScript,
		Args:   []string{req.CharacterName},
	})
	if err != nil {
		h.Logger.Error("Starting agent failed", zap.String("name", req.CharacterName), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start agent.")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.ReadyTimeout)
		defer cancel()
		if err := proc.WaitReady(ctx); err != nil {
			h.Logger.Error("Agent did not start", zap.String("agent_id", proc.ID()), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Agent for %s is starting...", req.CharacterName),
		"agentId": proc.ID(),
	})
}

type stopAgentRequest struct {
	AgentID string `json:"agentId"`
}

// StopAgentHandler terminates a spawned agent.
func (h *Handler) StopAgentHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req stopAgentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: agentId")
		return
	}

	err := h.Agents.Stop(r.Context(), req.AgentID)
	if errors.Is(err, agent.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Agent not found")
		return
	}
	if err != nil {
		h.Logger.Error("Stopping agent failed", zap.String("agent_id", req.AgentID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to stop agent")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListAgentsHandler reports every spawned agent.
func (h *Handler) ListAgentsHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]agent.Info{"agents": h.Agents.List()})
}
