// Package handlers implements the HTTP API.
package handlers

import (
	"net/http"
	"os"
	"time"

	"charsmith/agent"
	"charsmith/db"
	"charsmith/generator"
	"charsmith/middleware"

	"go.uber.org/zap"
)

// Options wires a Handler to its collaborators.
type Options struct {
	Generator   *generator.Service
	Store       db.Store
	Agents      *agent.Manager
	AgentClient *agent.Client
	Logger      *zap.Logger

	CharacterDir  string
	SetupScript   string
	StartScript   string
	ReadyTimeout  time.Duration
	GenerationTTL time.Duration
}

// Handler serves every route. It is safe for concurrent use.
type Handler struct {
	Options
	getenv func(string) string
}

func New(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 20 * time.Second
	}
	if opts.GenerationTTL <= 0 {
		opts.GenerationTTL = time.Hour
	}
	return &Handler{Options: opts, getenv: os.Getenv}
}

// Routes registers every endpoint. Unknown paths get a JSON 404.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate-prompt-character", h.GenerateCharacterHandler)
	mux.HandleFunc("/api/refine-character", h.RefineCharacterHandler)
	mux.HandleFunc("/api/fix-json", h.FixJSONHandler)
	mux.HandleFunc("/api/process-files", h.ProcessFilesHandler)
	mux.HandleFunc("/api/generations/", h.GenerationDetailRESTHandler)
	mux.HandleFunc("/api/characters", h.ListCharactersHandler)
	mux.HandleFunc("/save-json", h.SaveCharacterHandler)
	mux.HandleFunc("/generate-character", h.LaunchLatestHandler)
	mux.HandleFunc("/start-agent", h.StartAgentHandler)
	mux.HandleFunc("/stop-agent", h.StopAgentHandler)
	mux.HandleFunc("/agents", h.ListAgentsHandler)
	mux.HandleFunc("/chat", h.ChatHandler)
	mux.HandleFunc("/", middleware.NotFound)
	return mux
}
