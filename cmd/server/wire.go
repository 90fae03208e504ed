//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"line-dify-bridge/internal/config"
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
	"line-dify-bridge/internal/infrastructure/repository/linemessage"
	workflowrepo "line-dify-bridge/internal/infrastructure/repository/workflow"
	"line-dify-bridge/internal/infrastructure/worker"
	"line-dify-bridge/internal/interfaces/httpserver"
	"line-dify-bridge/internal/interfaces/httpserver/handlers"
)

var repositorySet = wire.NewSet(
	linemessage.NewPostgresRepository,
	wire.Bind(new(message.Repository), new(*linemessage.PostgresRepository)),
	workflowrepo.NewPostgresRepository,
	wire.Bind(new(workflow.Repository), new(*workflowrepo.PostgresRepository)),
	wire.Bind(new(handlers.WorkflowReader), new(*workflowrepo.PostgresRepository)),
)

var workflowSet = wire.NewSet(
	newChatClient,
	newPushClient,
	newLineMessageWorkflow,
	newEngine,
	newEventCache,
	newDispatcher,
	wire.Bind(new(webhook.Dispatcher), new(*workflow.Dispatcher)),
	newWorkerPool,
	newCrontab,
)

var serviceSet = wire.NewSet(
	message.NewService,
	newKnowledgeService,
	newWebhookService,
	wire.Bind(new(handlers.WebhookService), new(*webhook.Service)),
)

// BuildApplication assembles the bridge with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		repositorySet,
		workflowSet,
		serviceSet,
		handlers.NewProvider,
		newReadinessCheck,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newLineMessageWorkflow(messages message.Service, chatClient *dify.ChatClient, pushClient *line.PushClient, log zerolog.Logger) *workflow.LineMessageWorkflow {
	return workflow.NewLineMessageWorkflow(messages, chatClient, pushClient, log)
}

func newEngine(cfg *config.Config, repo workflow.Repository, lineMessage *workflow.LineMessageWorkflow, log zerolog.Logger) *workflow.Engine {
	return workflow.NewEngine(repo, newEngineConfig(cfg), metrics.WorkflowObserver{}, log, lineMessage)
}

func newEventCache(cfg *config.Config) (*dedupe.EventCache, error) {
	return dedupe.NewEventCache(cfg.WebhookDedupeSize)
}

func newDispatcher(cfg *config.Config, repo workflow.Repository, engine *workflow.Engine, cache *dedupe.EventCache, log zerolog.Logger) *workflow.Dispatcher {
	return workflow.NewDispatcher(repo, engine, cache, cfg.WorkflowLease, log)
}

func newWebhookService(cfg *config.Config, dispatcher webhook.Dispatcher, log zerolog.Logger) *webhook.Service {
	return webhook.NewService(cfg.LineChannelSecret, line.VerifySignature, dispatcher, metrics.RecordWebhookEvent, log).
		WithRedactor(logger.NewSanitizer(cfg.LogPIILevel, cfg.ServiceName))
}

func newWorkerPool(cfg *config.Config, repo workflow.Repository, engine *workflow.Engine, log zerolog.Logger) *worker.Pool {
	return worker.NewPool(repo, engine, worker.Config{
		WorkerCount:  cfg.WorkflowWorkerCount,
		PollInterval: cfg.WorkflowPollInterval,
		Lease:        cfg.WorkflowLease,
	}, log)
}

func newCrontab(cfg *config.Config, repo workflow.Repository, log zerolog.Logger) *crontab.Crontab {
	return crontab.NewCrontab(repo, crontab.Config{
		MaxAttempts: cfg.WorkflowMaxAttempts,
		Retention:   cfg.WorkflowRetention,
	}, log)
}

func newReadinessCheck(db *gorm.DB) httpserver.ReadinessCheck {
	return func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}
}
