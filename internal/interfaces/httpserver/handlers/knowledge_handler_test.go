package handlers_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/domain/knowledge"
	"line-dify-bridge/internal/infrastructure/dify"
	"line-dify-bridge/internal/interfaces/httpserver/handlers"
)

func setupKnowledgeTestRouter(t *testing.T, premium bool, upstream http.HandlerFunc) *gin.Engine {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	service := knowledge.NewService(dify.NewKnowledgeClient(server.URL, "dataset-key", zerolog.Nop()), premium, zerolog.Nop())
	return knowledgeRouter(handlers.NewKnowledgeHandler(service, zerolog.Nop()))
}

func knowledgeRouter(handler *handlers.KnowledgeHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/get-knowledge-list", handler.ListDatasets)
	router.POST("/api/datasets", handler.CreateDataset)
	router.DELETE("/api/datasets/:datasetId", handler.DeleteDataset)
	router.POST("/api/datasets/:datasetId/documents/file", handler.CreateDocumentByFile)
	router.GET("/api/datasets/:datasetId/documents/:documentId", handler.GetDocument)
	router.POST("/api/datasets/:datasetId/documents/:documentId/segments", handler.CreateSegments)
	router.POST("/api/datasets/:datasetId/documents/:documentId/segments/:segmentId", handler.UpdateSegment)
	return router
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestKnowledgeHandler_ListDatasets(t *testing.T) {
	router := setupKnowledgeTestRouter(t, false, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[{"id":"ds-1"}],"has_more":false,"limit":20,"total":1,"page":1}`))
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/get-knowledge-list", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"id":"ds-1"}],"has_more":false,"limit":20,"total":1,"page":1}`, w.Body.String())
}

func TestKnowledgeHandler_InvalidPagination(t *testing.T) {
	router := setupKnowledgeTestRouter(t, false, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	for _, query := range []string{"page=0", "limit=101", "limit=x"} {
		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/get-knowledge-list?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
		assert.JSONEq(t, `{"error":"Invalid pagination parameters","message":"Page must be >= 1 and limit must be between 1 and 100"}`, w.Body.String(), query)
	}
}

func TestKnowledgeHandler_CreateDatasetValidation(t *testing.T) {
	router := setupKnowledgeTestRouter(t, false, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/datasets", strings.NewReader(`{"permission":"only_me"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Validation failed"`)
	assert.Contains(t, w.Body.String(), "name is required")

	w = serve(router, httptest.NewRequest(http.MethodPost, "/api/datasets", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKnowledgeHandler_DeleteDataset(t *testing.T) {
	router := setupKnowledgeTestRouter(t, false, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/datasets/ds-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	w := serve(router, httptest.NewRequest(http.MethodDelete, "/api/datasets/ds-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"message":"Dataset deleted successfully"}}`, w.Body.String())
}

func TestKnowledgeHandler_UpstreamErrorIsBadGateway(t *testing.T) {
	router := setupKnowledgeTestRouter(t, false, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"document_not_found"}`))
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/datasets/ds/documents/doc", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"404"`)
	assert.Contains(t, w.Body.String(), "document_not_found")
}

func TestKnowledgeHandler_GetDocumentMetadata(t *testing.T) {
	router := setupKnowledgeTestRouter(t, false, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "only", r.URL.Query().Get("metadata"))
		_, _ = w.Write([]byte(`{"id":"doc"}`))
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/datasets/ds/documents/doc?metadata=only", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"id":"doc"}}`, w.Body.String())

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/datasets/ds/documents/doc?metadata=some", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKnowledgeHandler_CreateDocumentByFile(t *testing.T) {
	router := setupKnowledgeTestRouter(t, false, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/ds/document/create-by-file", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.JSONEq(t, `{"indexing_technique":"high_quality","process_rule":{"mode":"automatic"}}`, r.FormValue("data"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "faq.md", header.Filename)
		assert.Equal(t, "# FAQ", string(content))
		_, _ = w.Write([]byte(`{"document":{"id":"doc-9"},"batch":"b"}`))
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "faq.md")
	require.NoError(t, err)
	_, _ = part.Write([]byte("# FAQ"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/ds/documents/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"id":"doc-9"}}`, w.Body.String())
}

func TestKnowledgeHandler_CreateDocumentByFileRequiresFile(t *testing.T) {
	router := setupKnowledgeTestRouter(t, false, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("data", `{}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/ds/documents/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := serve(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `File is required in FormData under \"file\" key`)
}

func TestKnowledgeHandler_SegmentCreateRequiresPremium(t *testing.T) {
	router := setupKnowledgeTestRouter(t, false, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/datasets/ds/documents/doc/segments", strings.NewReader(`{"segments":[{"content":"x"}]}`)))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"premium_feature_required"`)
	assert.Contains(t, w.Body.String(), knowledge.SegmentCreateDisabled)
}

func TestKnowledgeHandler_UpdateSegmentOptionalBody(t *testing.T) {
	var bodies []string
	router := setupKnowledgeTestRouter(t, true, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/ds/documents/doc/segments/seg", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))
		_, _ = w.Write([]byte(`{"data":{"id":"seg"},"doc_form":"text_model"}`))
	})

	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/datasets/ds/documents/doc/segments/seg", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"id":"seg"},"doc_form":"text_model"}`, w.Body.String())

	w = serve(router, httptest.NewRequest(http.MethodPost, "/api/datasets/ds/documents/doc/segments/seg", strings.NewReader(`{"segment":{"content":"new"}}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, bodies, 2)
	assert.Empty(t, bodies[0])
	assert.JSONEq(t, `{"segment":{"content":"new"}}`, bodies[1])
}

func TestKnowledgeHandler_NotConfigured(t *testing.T) {
	router := knowledgeRouter(handlers.NewKnowledgeHandler(knowledge.NewService(nil, true, zerolog.Nop()), zerolog.Nop()))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/get-knowledge-list", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Failed to initialize Dify service"`)
}
