package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/domain/workflow"
	"line-dify-bridge/internal/interfaces/httpserver/handlers"
)

type MockWorkflowReader struct {
	GetFunc func(ctx context.Context, id string) (*workflow.Instance, error)
}

func (m *MockWorkflowReader) Get(ctx context.Context, id string) (*workflow.Instance, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, workflow.ErrNotFound
}

func setupWorkflowTestRouter(handler *handlers.WorkflowHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/workflows/:id", handler.Get)
	return router
}

func TestWorkflowHandler_Get(t *testing.T) {
	const id = "4f6c1a52-8f0e-4d7e-9a3b-2c1d0e9f8a7b"
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	mockReader := &MockWorkflowReader{
		GetFunc: func(ctx context.Context, got string) (*workflow.Instance, error) {
			if got != id {
				return nil, workflow.ErrNotFound
			}
			return &workflow.Instance{
				ID:          id,
				Workflow:    workflow.LineMessageWorkflowName,
				Status:      workflow.StatusCompleted,
				Attempts:    1,
				Params:      workflow.Params{UserID: "U1", MessageType: "text"},
				CreatedAt:   now,
				UpdatedAt:   now,
				CompletedAt: &now,
				Steps: []workflow.StepRecord{
					{Name: "get-conversation-id", Status: workflow.StepCompleted, Output: json.RawMessage(`""`), Attempts: 1, UpdatedAt: now},
				},
			}, nil
		},
	}
	router := setupWorkflowTestRouter(handlers.NewWorkflowHandler(mockReader, zerolog.Nop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/workflows/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Steps  []struct {
				Name string `json:"name"`
			} `json:"steps"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, id, body.Data.ID)
	assert.Equal(t, string(workflow.StatusCompleted), body.Data.Status)
	require.Len(t, body.Data.Steps, 1)
	assert.Equal(t, "get-conversation-id", body.Data.Steps[0].Name)
}

func TestWorkflowHandler_GetErrors(t *testing.T) {
	mockReader := &MockWorkflowReader{
		GetFunc: func(ctx context.Context, id string) (*workflow.Instance, error) {
			if id == "00000000-0000-4000-8000-000000000000" {
				return nil, errors.New("connection refused")
			}
			return nil, workflow.ErrNotFound
		},
	}
	router := setupWorkflowTestRouter(handlers.NewWorkflowHandler(mockReader, zerolog.Nop()))

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/api/workflows/not-a-uuid", wantStatus: http.StatusBadRequest},
		{path: "/api/workflows/4f6c1a52-8f0e-4d7e-9a3b-2c1d0e9f8a7c", wantStatus: http.StatusNotFound},
		{path: "/api/workflows/00000000-0000-4000-8000-000000000000", wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.wantStatus, w.Code, tt.path)
	}
}
