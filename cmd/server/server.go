package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"line-dify-bridge/internal/config"
	"line-dify-bridge/internal/domain/knowledge"
	"line-dify-bridge/internal/domain/message"
	"line-dify-bridge/internal/domain/webhook"
	"line-dify-bridge/internal/domain/workflow"
	"line-dify-bridge/internal/infrastructure/crontab"
	"line-dify-bridge/internal/infrastructure/database"
	"line-dify-bridge/internal/infrastructure/dedupe"
	"line-dify-bridge/internal/infrastructure/dify"
	"line-dify-bridge/internal/infrastructure/line"
	"line-dify-bridge/internal/infrastructure/logger"
	"line-dify-bridge/internal/infrastructure/metrics"
	"line-dify-bridge/internal/infrastructure/observability"
	"line-dify-bridge/internal/infrastructure/repository/linemessage"
	workflowrepo "line-dify-bridge/internal/infrastructure/repository/workflow"
	"line-dify-bridge/internal/infrastructure/worker"
	"line-dify-bridge/internal/interfaces/httpserver"
	"line-dify-bridge/internal/interfaces/httpserver/handlers"
)

// Application owns the long running parts of the bridge and stops them in order.
type Application struct {
	httpServer *httpserver.HttpServer
	webhooks   *webhook.Service
	dispatcher *workflow.Dispatcher
	workerPool *worker.Pool
	cron       *crontab.Crontab
	cfg        *config.Config
	log        zerolog.Logger
}

func NewApplication(
	cfg *config.Config,
	httpServer *httpserver.HttpServer,
	webhooks *webhook.Service,
	dispatcher *workflow.Dispatcher,
	workerPool *worker.Pool,
	cron *crontab.Crontab,
	log zerolog.Logger,
) *Application {
	return &Application{
		httpServer: httpServer,
		webhooks:   webhooks,
		dispatcher: dispatcher,
		workerPool: workerPool,
		cron:       cron,
		cfg:        cfg,
		log:        log,
	}
}

// Start blocks until ctx is cancelled and every component has stopped.
func (a *Application) Start(ctx context.Context) error {
	a.workerPool.Start(ctx)

	cronDone := make(chan struct{})
	go func() {
		defer close(cronDone)
		if err := a.cron.Run(ctx); err != nil {
			a.log.Error().Err(err).Msg("crontab stopped with error")
		}
	}()

	serveErr := a.httpServer.Run(ctx)

	// accepted deliveries finish dispatching before in-flight runs are drained
	a.webhooks.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.dispatcher.Close(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("in-flight workflows interrupted; they will resume from their last checkpoint")
	}

	a.log.Info().Msg("stopping worker pool")
	a.workerPool.Stop()
	<-cronDone

	return serveErr
}

// @title LINE Dify Bridge API
// @version 1.0
// @description Relays LINE messages to Dify chat and exposes chat history, workflow status and the Dify knowledge API to admins.
// @BasePath /
// @securityDefinitions.basic BasicAuth
func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := newGormDB(ctx, newDatabaseConfig(cfg), log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize database")
	}
	defer closeDB(db, log)

	log.Info().
		Str("line_access_token", logger.Preview(cfg.LineChannelAccessToken, 6)).
		Str("dify_chat_key", logger.Preview(cfg.DifyChatAPIKey, 6)).
		Str("dify_knowledge_key", logger.Preview(cfg.DifyKnowledgeAPIKey, 6)).
		Str("dify_endpoint", cfg.DifyAPIEndpoint).
		Bool("premium_features", cfg.DifyPremiumFeatures).
		Msg("bridge configuration loaded")

	if !cfg.AdminConfigured() {
		log.Warn().Msg("ADMIN_USER or ADMIN_PASSWORD is not set; the admin API will refuse every request")
	}

	messageService := message.NewService(linemessage.NewPostgresRepository(db), log)
	workflowRepository := workflowrepo.NewPostgresRepository(db, log)

	engine := workflow.NewEngine(
		workflowRepository,
		newEngineConfig(cfg),
		metrics.WorkflowObserver{},
		log,
		workflow.NewLineMessageWorkflow(messageService, newChatClient(cfg, log), newPushClient(cfg, log), log),
	)

	eventCache, err := dedupe.NewEventCache(cfg.WebhookDedupeSize)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize webhook dedupe cache")
	}
	dispatcher := workflow.NewDispatcher(workflowRepository, engine, eventCache, cfg.WorkflowLease, log)
	webhookService := webhook.NewService(cfg.LineChannelSecret, line.VerifySignature, dispatcher, metrics.RecordWebhookEvent, log).
		WithRedactor(logger.NewSanitizer(cfg.LogPIILevel, cfg.ServiceName))

	workerPool := worker.NewPool(workflowRepository, engine, worker.Config{
		WorkerCount:  cfg.WorkflowWorkerCount,
		PollInterval: cfg.WorkflowPollInterval,
		Lease:        cfg.WorkflowLease,
	}, log)
	cron := crontab.NewCrontab(workflowRepository, crontab.Config{
		MaxAttempts: cfg.WorkflowMaxAttempts,
		Retention:   cfg.WorkflowRetention,
	}, log)

	handlerProvider := handlers.NewProvider(
		webhookService,
		messageService,
		workflowRepository,
		newKnowledgeService(cfg, log),
		log,
	)
	httpServer := httpserver.New(cfg, log, handlerProvider, func(ctx context.Context) error {
		return database.Ping(ctx, db)
	})

	app := NewApplication(cfg, httpServer, webhookService, dispatcher, workerPool, cron, log)
	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func closeDB(db *gorm.DB, log zerolog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("close database")
	}
}

func newEngineConfig(cfg *config.Config) workflow.EngineConfig {
	engineCfg := workflow.DefaultEngineConfig()
	engineCfg.MaxAttempts = cfg.WorkflowMaxAttempts
	return engineCfg
}

func newChatClient(cfg *config.Config, log zerolog.Logger) *dify.ChatClient {
	if cfg.DifyChatAPIKey == "" {
		log.Warn().Msg("DIFY_CHAT_API_KEY is not set; chat requests will fall back to the error reply")
	}
	return dify.NewChatClient(dify.ChatConfig{
		BaseURL:          cfg.DifyAPIEndpoint,
		APIKey:           cfg.DifyChatAPIKey,
		Timeout:          cfg.DifyChatTimeout,
		EnabledVariables: cfg.DifyEnabledVariables,
	}, log)
}

func newPushClient(cfg *config.Config, log zerolog.Logger) *line.PushClient {
	return line.NewPushClient(line.PushConfig{
		BaseURL:     cfg.LineAPIBaseURL,
		AccessToken: cfg.LineChannelAccessToken,
		Timeout:     cfg.LinePushTimeout,
	}, log)
}

// newKnowledgeService leaves the client unset without a key so every admin
// knowledge call reports the missing configuration.
func newKnowledgeService(cfg *config.Config, log zerolog.Logger) knowledge.Service {
	var client knowledge.Client
	if cfg.DifyKnowledgeAPIKey != "" {
		client = dify.NewKnowledgeClient(cfg.DifyAPIEndpoint, cfg.DifyKnowledgeAPIKey, log)
	}
	return knowledge.NewService(client, cfg.DifyPremiumFeatures, log)
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
