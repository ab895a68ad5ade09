package main

import (
	"context"
	"fmt"
	"time"

	"finbot/internal/api"
	"finbot/internal/api/handlers"
	"finbot/internal/repository"
	"finbot/internal/service"
	"finbot/pkg/auth"
	"finbot/pkg/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const sessionPurgeInterval = 10 * time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and admin API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	appLogger.Info("Starting finbot")

	location, err := time.LoadLocation(cfg.Assistant.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Assistant.Timezone, err)
	}

	// Initialize database
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize repositories
	txRepo := repository.NewTransactionRepository(db, appLogger)
	learningRepo := repository.NewLearningRepository(db, appLogger)
	profileRepo := repository.NewProfileRepository(db, appLogger)

	sessions, closeSessions := sessionStore(ctx, db)
	defer closeSessions()

	// Initialize services
	llmService := service.NewLLMService(&cfg.GigaChat, appLogger)
	whatsapp := service.NewWhatsAppClient(&cfg.WhatsApp, appLogger)
	rates := service.NewCurrencyService(&cfg.Currency, cfg.Assistant.BaseCurrency, appLogger)

	var insight service.InsightWriter
	insightWriter, err := service.NewGigaInsightWriter(ctx, &cfg.GigaChat, appLogger)
	if err != nil {
		appLogger.Warn("Report insights disabled", zap.Error(err))
	} else {
		insight = insightWriter
		defer insightWriter.Close()
	}
	reports := service.NewReportService(txRepo, profileRepo, insight, cfg.Assistant.BaseCurrency, location, appLogger)

	prompts, err := service.NewPromptSelector(nil)
	if err != nil {
		return err
	}

	processor := service.NewDataProcessor(txRepo, llmService, rates, cfg.Assistant.BaseCurrency,
		cfg.Assistant.ConfidenceThreshold, location, appLogger)
	hitl := service.NewHITLReconciler(sessions, txRepo, learningRepo, cfg.Assistant.CorrectionTTL, appLogger)

	assistant := service.NewAssistantService(service.AssistantDeps{
		Guardrail: service.NewGuardrail(appLogger),
		Cache:     service.NewResponseCache(sessions, cfg.Assistant.CacheTTL, appLogger),
		Retriever: service.NewContextRetriever(llmService, txRepo, cfg.Assistant.ContextTopK, appLogger),
		Memory:    service.NewConversationMemory(sessions, cfg.Assistant.MemoryTTL, cfg.Assistant.MemoryTurns, appLogger),
		Prompts:   prompts,
		Router:    service.NewModelRouter(cfg.GigaChat.LiteModel, cfg.GigaChat.ProModel),
		Engine:    service.NewCompletionEngine(llmService, cfg.Breaker, appLogger),
		Tools:     service.NewToolDispatcher(profileRepo, reports, location, appLogger),
		Processor: processor,
		HITL:      hitl,
		Uploader:  llmService,
		Location:  location,
	}, appLogger)

	messages := service.NewMessageService(assistant, hitl, service.NewStatementService(processor, appLogger), whatsapp, appLogger)

	// Initialize handlers
	handlerCtx, cancelHandlers := context.WithCancel(context.Background())
	defer cancelHandlers()
	webhookHandler := handlers.NewWebhookHandler(handlerCtx, messages, cfg.WhatsApp.VerifyToken, cfg.Assistant.MessageTimeout, appLogger)
	txHandler := handlers.NewTransactionHandler(txRepo, learningRepo, appLogger)

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration)

	// Setup router
	app := api.SetupRouter(webhookHandler, txHandler, jwtManager, cfg.WhatsApp.AppSecret, appLogger)
	app.Server().ReadTimeout = cfg.Server.ReadTimeout
	app.Server().WriteTimeout = cfg.Server.WriteTimeout

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		serverErr <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	appLogger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}

	// let in-flight messages finish, then cut them off
	done := make(chan struct{})
	go func() {
		webhookHandler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		appLogger.Warn("Abandoning in-flight messages")
		cancelHandlers()
		<-done
	}
	return nil
}

// sessionStore picks the backend for memory, tickets and the response cache.
func sessionStore(ctx context.Context, db *pgxpool.Pool) (service.SessionStore, func()) {
	if cfg.Assistant.SessionBackend == "memory" {
		appLogger.Warn("Using in-memory session store; state is lost on restart")
		store := service.NewMemorySessionStore(time.Minute)
		return store, store.Close
	}

	repo := repository.NewSessionRepository(db, appLogger)
	purgeCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				n, err := repo.PurgeExpired(purgeCtx)
				if err != nil {
					appLogger.Warn("Failed to purge expired sessions", zap.Error(err))
					continue
				}
				if n > 0 {
					appLogger.Debug("Purged expired sessions", zap.Int64("count", n))
				}
			}
		}
	}()
	return repo, cancel
}
