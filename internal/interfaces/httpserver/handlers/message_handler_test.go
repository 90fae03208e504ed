package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/domain/message"
	"line-dify-bridge/internal/interfaces/httpserver/handlers"
	"line-dify-bridge/internal/utils/platformerrors"
)

// MockMessageService is a mock implementation of message.Service for testing.
type MockMessageService struct {
	SaveFunc                  func(ctx context.Context, in message.NewRecord) (*message.Record, error)
	GetFunc                   func(ctx context.Context, id int64) (*message.Record, error)
	ListFunc                  func(ctx context.Context, filter message.Filter) (*message.Page, error)
	ResolveConversationIDFunc func(ctx context.Context, userID string) (string, error)
}

func (m *MockMessageService) Save(ctx context.Context, in message.NewRecord) (*message.Record, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, in)
	}
	return nil, nil
}

func (m *MockMessageService) Get(ctx context.Context, id int64) (*message.Record, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockMessageService) List(ctx context.Context, filter message.Filter) (*message.Page, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return &message.Page{Messages: []*message.Record{}}, nil
}

func (m *MockMessageService) ResolveConversationID(ctx context.Context, userID string) (string, error) {
	if m.ResolveConversationIDFunc != nil {
		return m.ResolveConversationIDFunc(ctx, userID)
	}
	return "", nil
}

func setupMessageTestRouter(handler *handlers.MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/chat/messages", handler.List)
	router.GET("/api/chat/messages/:id", handler.Get)
	return router
}

func strPtr(s string) *string { return &s }

func TestMessageHandler_List(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var got message.Filter
	mockService := &MockMessageService{
		ListFunc: func(ctx context.Context, filter message.Filter) (*message.Page, error) {
			got = filter
			return &message.Page{
				Messages: []*message.Record{{
					ID:             7,
					ConversationID: "9f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f",
					UserID:         "U1",
					MessageType:    "text",
					MessageContent: strPtr("hello"),
					DifyResponse:   strPtr("hi there"),
					CreatedAt:      created,
					UpdatedAt:      created,
				}},
				Total:  1,
				Limit:  10,
				Offset: 5,
			}, nil
		},
	}
	router := setupMessageTestRouter(handlers.NewMessageHandler(mockService, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/chat/messages?limit=10&offset=5&user_id=U1&start_date=2024-05-01T00:00:00Z", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, 5, got.Offset)
	assert.Equal(t, "U1", got.UserID)
	require.NotNil(t, got.StartDate)
	assert.True(t, got.StartDate.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, got.EndDate)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Messages []map[string]any `json:"messages"`
			Total    int64            `json:"total"`
			Limit    int              `json:"limit"`
			Offset   int              `json:"offset"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.EqualValues(t, 1, body.Data.Total)
	require.Len(t, body.Data.Messages, 1)
	assert.Equal(t, "hello", body.Data.Messages[0]["message_content"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", body.Data.Messages[0]["created_at"])
}

func TestMessageHandler_ListDefaultsLeftToService(t *testing.T) {
	var got message.Filter
	mockService := &MockMessageService{
		ListFunc: func(ctx context.Context, filter message.Filter) (*message.Page, error) {
			got = filter
			return &message.Page{Messages: []*message.Record{}, Limit: 50}, nil
		},
	}
	router := setupMessageTestRouter(handlers.NewMessageHandler(mockService, zerolog.Nop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/messages", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, got.Limit)
	assert.Zero(t, got.Offset)
	assert.Contains(t, w.Body.String(), `"messages":[]`)
}

func TestMessageHandler_ListRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"limit=0", "limit=101", "offset=-1", "limit=abc", "start_date=yesterday"} {
		t.Run(query, func(t *testing.T) {
			mockService := &MockMessageService{
				ListFunc: func(ctx context.Context, filter message.Filter) (*message.Page, error) {
					t.Error("service must not be called")
					return nil, nil
				},
			}
			router := setupMessageTestRouter(handlers.NewMessageHandler(mockService, zerolog.Nop()))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/messages?"+query, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestMessageHandler_Get(t *testing.T) {
	mockService := &MockMessageService{
		GetFunc: func(ctx context.Context, id int64) (*message.Record, error) {
			if id != 42 {
				return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "message not found", message.ErrNotFound, "")
			}
			return &message.Record{ID: 42, UserID: "U1", MessageType: "image", ImageURL: strPtr("https://example.com/a.png")}, nil
		},
	}
	router := setupMessageTestRouter(handlers.NewMessageHandler(mockService, zerolog.Nop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/messages/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.EqualValues(t, 42, body.Data["id"])
	assert.Equal(t, "https://example.com/a.png", body.Data["image_url"])
	assert.Nil(t, body.Data["message_content"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/messages/43", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/messages/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
