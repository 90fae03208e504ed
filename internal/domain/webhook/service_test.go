package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/domain/workflow"
	"line-dify-bridge/internal/infrastructure/line"
)

const testSecret = "channel-secret"

type spyDispatcher struct {
	mu           sync.Mutex
	params       []workflow.Params
	DispatchFunc func(ctx context.Context, params workflow.Params) (*workflow.Instance, error)
}

func (s *spyDispatcher) Dispatch(ctx context.Context, params workflow.Params) (*workflow.Instance, error) {
	s.mu.Lock()
	s.params = append(s.params, params)
	s.mu.Unlock()
	if s.DispatchFunc != nil {
		return s.DispatchFunc(ctx, params)
	}
	return &workflow.Instance{ID: "inst-" + params.UserID, Params: params}, nil
}

func (s *spyDispatcher) Calls() []workflow.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]workflow.Params(nil), s.params...)
}

func newTestService(secret string, d Dispatcher) *Service {
	return NewService(secret, line.VerifySignature, d, nil, zerolog.Nop())
}

const batchBody = `{
  "destination": "Uxxxxxxxx",
  "events": [
    {"type":"message","timestamp":1700000000000,"source":{"type":"user","userId":"U1"},"webhookEventId":"evt-text","deliveryContext":{"isRedelivery":false},"message":{"id":"m1","type":"text","text":"Hello"},"replyToken":"r1"},
    {"type":"message","timestamp":1700000000001,"source":{"type":"user","userId":"U2"},"webhookEventId":"evt-image","deliveryContext":{"isRedelivery":false},"message":{"id":"m2","type":"image","contentProvider":{"type":"external","originalContentUrl":"https://example.com/a.png","previewImageUrl":"https://example.com/p.png"}},"replyToken":"r2"},
    {"type":"follow","timestamp":1700000000002,"source":{"type":"user","userId":"U3"},"webhookEventId":"evt-follow","deliveryContext":{"isRedelivery":false},"replyToken":"r3"},
    {"type":"message","timestamp":1700000000003,"source":{"type":"group","groupId":"G1"},"webhookEventId":"evt-group","deliveryContext":{"isRedelivery":false},"message":{"id":"m4","type":"text","text":"hi all"},"replyToken":"r4"}
  ]
}`

func TestService_AcceptRejections(t *testing.T) {
	body := []byte(batchBody)
	valid := line.Sign(body, testSecret)

	tests := []struct {
		name      string
		secret    string
		signature string
		body      []byte
		wantErr   error
	}{
		{name: "missing signature", secret: testSecret, signature: "", body: body, wantErr: ErrMissingSignature},
		{name: "missing secret", secret: "", signature: valid, body: body, wantErr: ErrSecretNotConfigured},
		{name: "mismatch", secret: testSecret, signature: line.Sign(body, "other"), body: body, wantErr: ErrInvalidSignature},
		{name: "invalid json after valid signature", secret: testSecret, signature: line.Sign([]byte("{"), testSecret), body: []byte("{"), wantErr: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyDispatcher{}
			svc := newTestService(tt.secret, spy)

			batch, err := svc.Accept(context.Background(), tt.signature, tt.body)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, batch)
			assert.Empty(t, spy.Calls())
		})
	}
}

func TestService_MissingSignatureIsCheckedBeforeParsing(t *testing.T) {
	spy := &spyDispatcher{}
	svc := newTestService(testSecret, spy)

	_, err := svc.Accept(context.Background(), "", []byte("not json at all"))
	assert.ErrorIs(t, err, ErrMissingSignature)
	assert.Empty(t, spy.Calls())
}

func TestService_DispatchesMessageEventsOnly(t *testing.T) {
	body := []byte(batchBody)
	spy := &spyDispatcher{}
	var outcomes []string
	svc := NewService(testSecret, line.VerifySignature, spy, func(o string) { outcomes = append(outcomes, o) }, zerolog.Nop())

	batch, err := svc.Accept(context.Background(), line.Sign(body, testSecret), body)
	require.NoError(t, err)
	require.Len(t, batch.Events, 4)

	n := svc.DispatchBatch(context.Background(), batch)
	assert.Equal(t, 2, n)

	calls := spy.Calls()
	require.Len(t, calls, 2)

	text := calls[0]
	assert.Equal(t, "U1", text.UserID)
	assert.Equal(t, "text", text.MessageType)
	require.NotNil(t, text.MessageContent)
	assert.Equal(t, "Hello", *text.MessageContent)
	assert.Nil(t, text.ImageURL)
	assert.Equal(t, "evt-text", text.WebhookEventID)

	image := calls[1]
	assert.Equal(t, "U2", image.UserID)
	assert.Equal(t, "image", image.MessageType)
	assert.Nil(t, image.MessageContent)
	require.NotNil(t, image.ImageURL)
	assert.Equal(t, "https://example.com/a.png", *image.ImageURL)

	assert.Equal(t, []string{OutcomeDispatched, OutcomeDispatched, OutcomeSkipped, OutcomeSkipped}, outcomes)
}

func TestService_DispatchContinuesPastFailures(t *testing.T) {
	body := []byte(`{"destination":"D","events":[
	  {"type":"message","source":{"type":"user","userId":"U1"},"webhookEventId":"e1","message":{"id":"1","type":"text","text":"a"}},
	  {"type":"message","source":{"type":"user","userId":"U2"},"webhookEventId":"e2","message":{"id":"2","type":"text","text":"b"}},
	  {"type":"message","source":{"type":"user","userId":"U3"},"webhookEventId":"e3","message":{"id":"3","type":"text","text":"c"}}
	]}`)
	spy := &spyDispatcher{DispatchFunc: func(ctx context.Context, p workflow.Params) (*workflow.Instance, error) {
		switch p.UserID {
		case "U1":
			return nil, errors.New("db unavailable")
		case "U2":
			return nil, workflow.ErrDuplicateEvent
		}
		return &workflow.Instance{ID: "ok"}, nil
	}}
	svc := newTestService(testSecret, spy)

	batch, err := svc.Accept(context.Background(), line.Sign(body, testSecret), body)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.DispatchBatch(context.Background(), batch))
	assert.Len(t, spy.Calls(), 3)
}

func TestService_DispatchRecoversPanics(t *testing.T) {
	spy := &spyDispatcher{DispatchFunc: func(ctx context.Context, p workflow.Params) (*workflow.Instance, error) {
		panic("boom")
	}}
	svc := newTestService(testSecret, spy)
	batch := &Batch{Events: []Event{{Type: "message", Source: &Source{UserID: "U1"}, Message: &Message{Type: "text", Text: "hi"}}}}

	assert.NotPanics(t, func() {
		svc.DispatchAsync(context.Background(), batch)
		svc.Wait()
	})
	assert.Len(t, spy.Calls(), 1)
}

func TestService_DispatchAsyncOutlivesRequest(t *testing.T) {
	spy := &spyDispatcher{DispatchFunc: func(ctx context.Context, p workflow.Params) (*workflow.Instance, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &workflow.Instance{ID: "ok"}, nil
	}}
	svc := newTestService(testSecret, spy)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.DispatchAsync(ctx, &Batch{Events: []Event{{Type: "message", Source: &Source{UserID: "U1"}, Message: &Message{Type: "text", Text: "hi"}}}})
	svc.Wait()
	assert.Len(t, spy.Calls(), 1)
}

func TestCheckContentLength(t *testing.T) {
	assert.NoError(t, CheckContentLength(-1))
	assert.NoError(t, CheckContentLength(MaxBodyBytes))
	assert.ErrorIs(t, CheckContentLength(MaxBodyBytes+1), ErrBodyTooLarge)
}

type recordingRedactor struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingRedactor) UserID(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	return "hashed"
}

func (r *recordingRedactor) Text(string) string { return "masked" }

func TestService_LogsThroughRedactor(t *testing.T) {
	redactor := &recordingRedactor{}
	svc := newTestService(testSecret, &spyDispatcher{}).WithRedactor(redactor)

	batch, err := svc.Accept(context.Background(), line.Sign([]byte(batchBody), testSecret), []byte(batchBody))
	require.NoError(t, err)
	svc.DispatchBatch(context.Background(), batch)

	assert.Equal(t, []string{"U1", "U2"}, redactor.users)
}
