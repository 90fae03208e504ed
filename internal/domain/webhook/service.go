package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/workflow"
)

// MaxBodyBytes is the largest webhook body accepted.
const MaxBodyBytes = 8 << 20

var (
	ErrBodyTooLarge        = errors.New("request too large")
	ErrMissingSignature    = errors.New("missing signature")
	ErrSecretNotConfigured = errors.New("channel secret not configured")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidPayload      = errors.New("invalid webhook payload")
)

// Event outcomes reported to the observer.
const (
	OutcomeDispatched = "dispatched"
	OutcomeSkipped    = "skipped"
	OutcomeDuplicate  = "duplicate"
	OutcomeFailed     = "failed"
)

// VerifyFunc checks a signature over the raw body with the channel secret.
type VerifyFunc func(body []byte, signature, secret string) bool

// Redactor masks end-user data before it reaches the log.
type Redactor interface {
	UserID(userID string) string
	Text(text string) string
}

type redactAll struct{}

func (redactAll) UserID(string) string { return "[REDACTED]" }
func (redactAll) Text(string) string   { return "[REDACTED]" }

// Dispatcher starts one durable workflow per message event.
type Dispatcher interface {
	Dispatch(ctx context.Context, params workflow.Params) (*workflow.Instance, error)
}

// Service authenticates webhook deliveries and hands their message events to
// the dispatcher in the background.
type Service struct {
	secret     string
	verify     VerifyFunc
	dispatcher Dispatcher
	observe    func(outcome string)
	redact     Redactor
	log        zerolog.Logger
	wg         sync.WaitGroup
}

func NewService(secret string, verify VerifyFunc, dispatcher Dispatcher, observe func(outcome string), log zerolog.Logger) *Service {
	if observe == nil {
		observe = func(string) {}
	}
	return &Service{
		secret:     secret,
		verify:     verify,
		dispatcher: dispatcher,
		observe:    observe,
		redact:     redactAll{},
		log:        log.With().Str("component", "webhook-service").Logger(),
	}
}

// WithRedactor sets how user ids and message text are logged. Without one
// both are fully redacted.
func (s *Service) WithRedactor(r Redactor) *Service {
	if r != nil {
		s.redact = r
	}
	return s
}

// CheckContentLength rejects a declared length above MaxBodyBytes.
// An unknown length (-1) passes; the body read is bounded separately.
func CheckContentLength(n int64) error {
	if n > MaxBodyBytes {
		return ErrBodyTooLarge
	}
	return nil
}

// Accept verifies the signature over the exact raw body and only then parses it.
func (s *Service) Accept(ctx context.Context, signature string, body []byte) (*Batch, error) {
	if signature == "" {
		s.log.Warn().Msg("webhook request without signature")
		return nil, ErrMissingSignature
	}
	if s.secret == "" {
		s.log.Error().Msg("LINE_CHANNEL_SECRET is not configured")
		return nil, ErrSecretNotConfigured
	}
	if !s.verify(body, signature, s.secret) {
		s.log.Warn().Str("signature_preview", preview(signature)).Msg("webhook signature mismatch")
		return nil, ErrInvalidSignature
	}

	var batch Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	s.log.Debug().Str("destination", batch.Destination).Int("events", len(batch.Events)).Msg("webhook batch accepted")
	return &batch, nil
}

// DispatchAsync processes the batch after the caller has answered. The work is
// detached from ctx cancellation.
func (s *Service) DispatchAsync(ctx context.Context, batch *Batch) {
	if batch == nil || len(batch.Events) == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.DispatchBatch(context.WithoutCancel(ctx), batch)
	}()
}

// DispatchBatch dispatches every dispatchable event. A failing event is logged
// and does not stop the rest of the batch.
func (s *Service) DispatchBatch(ctx context.Context, batch *Batch) (dispatched int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("webhook batch dispatch aborted")
		}
	}()

	for _, event := range batch.Events {
		if !event.Dispatchable() {
			s.observe(OutcomeSkipped)
			continue
		}
		params := toParams(event)
		log := s.log.With().
			Str("webhook_event_id", event.WebhookEventID).
			Str("message_type", params.MessageType).
			Str("user", s.redact.UserID(params.UserID)).
			Logger()
		if params.MessageContent != nil {
			log.Debug().Str("text", s.redact.Text(*params.MessageContent)).Msg("message event received")
		}

		inst, err := s.dispatcher.Dispatch(ctx, params)
		switch {
		case errors.Is(err, workflow.ErrDuplicateEvent):
			s.observe(OutcomeDuplicate)
			log.Info().Bool("redelivery", event.Redelivered()).Msg("event already dispatched, skipping")
		case err != nil:
			s.observe(OutcomeFailed)
			log.Error().Err(err).Msg("failed to dispatch workflow for event")
		default:
			s.observe(OutcomeDispatched)
			dispatched++
			log.Debug().Str("instance_id", inst.ID).Msg("event dispatched")
		}
	}
	return dispatched
}

// Wait blocks until background dispatches have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func toParams(event Event) workflow.Params {
	msg := event.Message
	params := workflow.Params{
		UserID:         event.userID(),
		MessageType:    msg.Type,
		WebhookEventID: event.WebhookEventID,
	}
	if msg.Text != "" {
		text := msg.Text
		params.MessageContent = &text
	}
	if msg.Type == "image" && msg.ContentProvider != nil && msg.ContentProvider.OriginalContentURL != "" {
		url := msg.ContentProvider.OriginalContentURL
		params.ImageURL = &url
	}
	return params
}

func preview(s string) string {
	const n = 10
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
