package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"charsmith/agent"
	"charsmith/config"
	"charsmith/db"
	"charsmith/generator"
	"charsmith/handlers"
	"charsmith/llm"
	"charsmith/middleware"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(logger **zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *logger)
		},
	}
}

func serve(ctx context.Context, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := db.Open(connectCtx, db.Options{
		MongoURI:      config.GetMongoDBURI(),
		MongoDatabase: config.GetMongoDBDatabase(),
		SQLitePath:    config.GetSQLiteFile(),
	}, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("Closing store failed", zap.Error(err))
		}
	}()

	providers := llm.NewRegistry("openrouter",
		llm.NewOpenRouter(llm.OpenRouterConfig{
			BaseURL: config.GetOpenRouterBaseURL(),
			Referer: config.GetAppURL(),
			Title:   "Eliza Character Generator",
		}),
		llm.NewGemini(llm.GeminiConfig{
			APIKey: config.GetGeminiAPIKey(),
			Model:  config.GetGeminiModel(),
		}),
	)
	agents := agent.NewManager(logger)

	h := handlers.New(handlers.Options{
		Generator:     generator.New(providers, logger),
		Store:         store,
		Agents:        agents,
		AgentClient:   agent.NewClient(config.GetAgentBaseURL(), nil),
		Logger:        logger,
		CharacterDir:  config.GetCharacterDir(),
		SetupScript:   config.GetAgentSetupScript(),
		StartScript:   config.GetAgentStartScript(),
		ReadyTimeout:  config.GetAgentReadyTimeout(),
		GenerationTTL: config.GetGenerationTTL(),
	})

	server := &http.Server{
		Addr: config.GetAddr(),
		Handler: middleware.Chain(h.Routes(),
			middleware.Recover(logger),
			middleware.AccessLog(logger),
			middleware.EnableCORS(config.GetAllowedOrigins()),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server running", zap.String("addr", "http://"+server.Addr), zap.Strings("providers", providers.Names()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			server.Shutdown(shutdownCtx),
			agents.StopAll(shutdownCtx),
		)
	})
	return g.Wait()
}
