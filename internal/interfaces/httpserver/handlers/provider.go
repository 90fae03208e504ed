package handlers

import (
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/knowledge"
	"line-dify-bridge/internal/domain/message"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Webhook   *WebhookHandler
	Message   *MessageHandler
	Workflow  *WorkflowHandler
	Knowledge *KnowledgeHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(
	webhookService WebhookService,
	messageService message.Service,
	workflowReader WorkflowReader,
	knowledgeService knowledge.Service,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Webhook:   NewWebhookHandler(webhookService, log),
		Message:   NewMessageHandler(messageService, log),
		Workflow:  NewWorkflowHandler(workflowReader, log),
		Knowledge: NewKnowledgeHandler(knowledgeService, log),
	}
}
