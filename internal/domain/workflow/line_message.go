package workflow

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/chat"
	"line-dify-bridge/internal/domain/message"
)

// Notifier pushes a text message to a LINE user.
type Notifier interface {
	Push(ctx context.Context, userID, text string) error
}

// LineMessageWorkflow answers one inbound LINE message:
// resolve the conversation, ask the AI, then save and notify.
type LineMessageWorkflow struct {
	messages message.Service
	chat     chat.Client
	notifier Notifier
	log      zerolog.Logger
}

func NewLineMessageWorkflow(messages message.Service, chatClient chat.Client, notifier Notifier, log zerolog.Logger) *LineMessageWorkflow {
	return &LineMessageWorkflow{
		messages: messages,
		chat:     chatClient,
		notifier: notifier,
		log:      log.With().Str("component", "line-message-workflow").Logger(),
	}
}

func (w *LineMessageWorkflow) Name() string {
	return LineMessageWorkflowName
}

func (w *LineMessageWorkflow) Run(ctx context.Context, inst *Instance, steps *Steps) error {
	p := inst.Params
	if strings.TrimSpace(p.UserID) == "" {
		w.log.Error().Str("instance_id", inst.ID).Msg("userId is missing from workflow params")
		return NewFatal(ErrCodeInvalidInput, "userId is required for workflow execution")
	}
	log := w.log.With().Str("instance_id", inst.ID).Str("message_type", p.MessageType).Logger()

	conversationID, err := RunStep(ctx, steps, "get-conversation-id", func(ctx context.Context) (string, error) {
		return w.messages.ResolveConversationID(ctx, p.UserID)
	})
	if err != nil {
		return err
	}

	content := ""
	if p.MessageContent != nil {
		content = *p.MessageContent
	}
	answer, err := RunStep(ctx, steps, "process-dify", func(ctx context.Context) (chat.Answer, error) {
		if content == "" {
			return chat.Answer{ConversationID: conversationID}, nil
		}
		req := chat.Request{Message: content, ConversationID: conversationID, UserID: p.UserID}
		if p.ImageURL != nil {
			req.ImageURL = *p.ImageURL
		}
		return w.chat.Send(ctx, req), nil
	})
	if err != nil {
		return err
	}

	finalConversationID := answer.ConversationID
	if finalConversationID == "" {
		finalConversationID = conversationID
	}
	reply := answer.Answer
	record := message.NewRecord{
		ConversationID: finalConversationID,
		UserID:         p.UserID,
		MessageType:    p.MessageType,
		MessageContent: p.MessageContent,
		ImageURL:       p.ImageURL,
		DifyResponse:   &reply,
	}
	save := func(ctx context.Context) (int64, error) {
		rec, err := w.messages.Save(ctx, record)
		if err != nil {
			return 0, err
		}
		return rec.ID, nil
	}

	if reply == "" {
		// nothing to send back, keep the turn on record
		_, err = RunStep(ctx, steps, "save-to-database", save)
		return err
	}

	result, err := RunStep(ctx, steps, "save-and-send-parallel", func(ctx context.Context) (JoinResult, error) {
		return SaveAndNotify(ctx, save, func(ctx context.Context) error {
			return w.notifier.Push(ctx, p.UserID, reply)
		}, log)
	})
	if err != nil {
		return err
	}
	log.Info().
		Bool("saved", result.Saved).
		Bool("notified", result.Notified).
		Bool("fallback", answer.Fallback).
		Int("answer_runes", len([]rune(reply))).
		Msg("line message processed")
	return nil
}
