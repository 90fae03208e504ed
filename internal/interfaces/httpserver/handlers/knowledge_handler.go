package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/knowledge"
	"line-dify-bridge/internal/interfaces/httpserver/requests"
	"line-dify-bridge/internal/interfaces/httpserver/responses"
)

// KnowledgeHandler proxies knowledge base management to Dify.
type KnowledgeHandler struct {
	service knowledge.Service
	log     zerolog.Logger
}

func NewKnowledgeHandler(service knowledge.Service, log zerolog.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		service: service,
		log:     log.With().Str("handler", "knowledge").Logger(),
	}
}

// ListDatasets handles GET /api/get-knowledge-list
// @Summary List knowledge datasets
// @Tags Knowledge
// @Security BasicAuth
// @Produce json
// @Param page query int false "Page, from 1" default(1)
// @Param limit query int false "Page size, 1-100" default(20)
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/get-knowledge-list [get]
func (h *KnowledgeHandler) ListDatasets(c *gin.Context) {
	page, limit, ok := bindPage(c)
	if !ok {
		return
	}
	env, err := h.service.ListDatasets(c.Request.Context(), page, limit)
	responses.Knowledge(c, env, err)
}

// CreateDataset handles POST /api/datasets
// @Summary Create a dataset
// @Tags Knowledge
// @Security BasicAuth
// @Accept json
// @Produce json
// @Param request body knowledge.CreateDatasetInput true "Dataset"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets [post]
func (h *KnowledgeHandler) CreateDataset(c *gin.Context) {
	var in knowledge.CreateDatasetInput
	if !bindBody(c, &in) {
		return
	}
	env, err := h.service.CreateDataset(c.Request.Context(), in)
	responses.Knowledge(c, env, err)
}

// GetDataset handles GET /api/datasets/:datasetId
// @Summary Get a dataset
// @Tags Knowledge
// @Security BasicAuth
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId} [get]
func (h *KnowledgeHandler) GetDataset(c *gin.Context) {
	env, err := h.service.GetDataset(c.Request.Context(), c.Param("datasetId"))
	responses.Knowledge(c, env, err)
}

// DeleteDataset handles DELETE /api/datasets/:datasetId
// @Summary Delete a dataset
// @Tags Knowledge
// @Security BasicAuth
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId} [delete]
func (h *KnowledgeHandler) DeleteDataset(c *gin.Context) {
	env, err := h.service.DeleteDataset(c.Request.Context(), c.Param("datasetId"))
	responses.Knowledge(c, env, err)
}

// ListDocuments handles GET /api/datasets/:datasetId/documents
// @Summary List documents of a dataset
// @Tags Knowledge
// @Security BasicAuth
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param page query int false "Page, from 1" default(1)
// @Param limit query int false "Page size, 1-100" default(20)
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents [get]
func (h *KnowledgeHandler) ListDocuments(c *gin.Context) {
	page, limit, ok := bindPage(c)
	if !ok {
		return
	}
	env, err := h.service.ListDocuments(c.Request.Context(), c.Param("datasetId"), page, limit)
	responses.Knowledge(c, env, err)
}

// CreateDocumentByText handles POST /api/datasets/:datasetId/documents/text
// @Summary Create a document from text
// @Tags Knowledge
// @Security BasicAuth
// @Accept json
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param request body knowledge.CreateDocumentByTextInput true "Document"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/text [post]
func (h *KnowledgeHandler) CreateDocumentByText(c *gin.Context) {
	var in knowledge.CreateDocumentByTextInput
	if !bindBody(c, &in) {
		return
	}
	env, err := h.service.CreateDocumentByText(c.Request.Context(), c.Param("datasetId"), in)
	responses.Knowledge(c, env, err)
}

// CreateDocumentByFile handles POST /api/datasets/:datasetId/documents/file
// @Summary Create a document from a file
// @Tags Knowledge
// @Security BasicAuth
// @Accept multipart/form-data
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param file formData file true "Document file"
// @Param data formData string false "Document settings JSON"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/file [post]
func (h *KnowledgeHandler) CreateDocumentByFile(c *gin.Context) {
	upload, closeFile := h.fileUpload(c)
	defer closeFile()
	env, err := h.service.CreateDocumentByFile(c.Request.Context(), c.Param("datasetId"), upload)
	responses.Knowledge(c, env, err)
}

// UpdateDocumentByText handles PUT /api/datasets/:datasetId/documents/:documentId/text
// @Summary Replace a document with text
// @Tags Knowledge
// @Security BasicAuth
// @Accept json
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param documentId path string true "Document ID"
// @Param request body knowledge.UpdateDocumentByTextInput true "Document"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/{documentId}/text [put]
func (h *KnowledgeHandler) UpdateDocumentByText(c *gin.Context) {
	var in knowledge.UpdateDocumentByTextInput
	if !bindBody(c, &in) {
		return
	}
	env, err := h.service.UpdateDocumentByText(c.Request.Context(), c.Param("datasetId"), c.Param("documentId"), in)
	responses.Knowledge(c, env, err)
}

// UpdateDocumentByFile handles PUT /api/datasets/:datasetId/documents/:documentId/file
// @Summary Replace a document with a file
// @Tags Knowledge
// @Security BasicAuth
// @Accept multipart/form-data
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param documentId path string true "Document ID"
// @Param file formData file true "Document file"
// @Param data formData string false "Document settings JSON"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/{documentId}/file [put]
func (h *KnowledgeHandler) UpdateDocumentByFile(c *gin.Context) {
	upload, closeFile := h.fileUpload(c)
	defer closeFile()
	env, err := h.service.UpdateDocumentByFile(c.Request.Context(), c.Param("datasetId"), c.Param("documentId"), upload)
	responses.Knowledge(c, env, err)
}

// GetDocument handles GET /api/datasets/:datasetId/documents/:documentId
// @Summary Get a document
// @Tags Knowledge
// @Security BasicAuth
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param documentId path string true "Document ID"
// @Param metadata query string false "Metadata filter" Enums(all, only, without)
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/{documentId} [get]
func (h *KnowledgeHandler) GetDocument(c *gin.Context) {
	var query requests.DocumentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.Knowledge(c, nil, invalidBody("metadata must be one of all, only, without"))
		return
	}
	env, err := h.service.GetDocument(c.Request.Context(), c.Param("datasetId"), c.Param("documentId"), query.Metadata)
	responses.Knowledge(c, env, err)
}

// GetDocumentStatus handles GET /api/datasets/:datasetId/documents/:documentId/status
// @Summary Get document indexing status
// @Tags Knowledge
// @Security BasicAuth
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param documentId path string true "Document ID"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/{documentId}/status [get]
func (h *KnowledgeHandler) GetDocumentStatus(c *gin.Context) {
	env, err := h.service.GetDocumentStatus(c.Request.Context(), c.Param("datasetId"), c.Param("documentId"))
	responses.Knowledge(c, env, err)
}

// DeleteDocument handles DELETE /api/datasets/:datasetId/documents/:documentId
// @Summary Delete a document
// @Tags Knowledge
// @Security BasicAuth
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param documentId path string true "Document ID"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/{documentId} [delete]
func (h *KnowledgeHandler) DeleteDocument(c *gin.Context) {
	env, err := h.service.DeleteDocument(c.Request.Context(), c.Param("datasetId"), c.Param("documentId"))
	responses.Knowledge(c, env, err)
}

// ListSegments handles GET /api/datasets/:datasetId/documents/:documentId/segments
// @Summary List segments of a document
// @Tags Knowledge
// @Security BasicAuth
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param documentId path string true "Document ID"
// @Param page query int false "Page, from 1" default(1)
// @Param limit query int false "Page size, 1-100" default(20)
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/{documentId}/segments [get]
func (h *KnowledgeHandler) ListSegments(c *gin.Context) {
	page, limit, ok := bindPage(c)
	if !ok {
		return
	}
	env, err := h.service.ListSegments(c.Request.Context(), c.Param("datasetId"), c.Param("documentId"), page, limit)
	responses.Knowledge(c, env, err)
}

// CreateSegments handles POST /api/datasets/:datasetId/documents/:documentId/segments
// @Summary Create segments (premium)
// @Tags Knowledge
// @Security BasicAuth
// @Accept json
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param documentId path string true "Document ID"
// @Param request body knowledge.CreateSegmentsInput true "Segments"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 403 {object} responses.KnowledgeErrorResponse
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/{documentId}/segments [post]
func (h *KnowledgeHandler) CreateSegments(c *gin.Context) {
	var in knowledge.CreateSegmentsInput
	if !bindBody(c, &in) {
		return
	}
	env, err := h.service.CreateSegments(c.Request.Context(), c.Param("datasetId"), c.Param("documentId"), in)
	responses.Knowledge(c, env, err)
}

// UpdateSegment handles POST /api/datasets/:datasetId/documents/:documentId/segments/:segmentId.
// The body is optional.
// @Summary Update a segment
// @Tags Knowledge
// @Security BasicAuth
// @Accept json
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param documentId path string true "Document ID"
// @Param segmentId path string true "Segment ID"
// @Param request body object false "Optional {\"segment\": {...}}"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/{documentId}/segments/{segmentId} [post]
func (h *KnowledgeHandler) UpdateSegment(c *gin.Context) {
	var in *knowledge.SegmentUpdate
	if c.Request.ContentLength != 0 {
		var body struct {
			Segment *knowledge.SegmentUpdate `json:"segment"`
		}
		err := c.ShouldBindJSON(&body)
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			responses.Knowledge(c, nil, invalidBody("request body must be a JSON object"))
			return
		default:
			in = body.Segment
		}
	}
	env, err := h.service.UpdateSegment(c.Request.Context(), c.Param("datasetId"), c.Param("documentId"), c.Param("segmentId"), in)
	responses.Knowledge(c, env, err)
}

// DeleteSegment handles DELETE /api/datasets/:datasetId/documents/:documentId/segments/:segmentId
// @Summary Delete a segment (premium)
// @Tags Knowledge
// @Security BasicAuth
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Param documentId path string true "Document ID"
// @Param segmentId path string true "Segment ID"
// @Success 200 {object} knowledge.Envelope
// @Failure 400 {object} responses.KnowledgeErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 403 {object} responses.KnowledgeErrorResponse
// @Failure 500 {object} responses.KnowledgeErrorResponse
// @Failure 502 {object} responses.KnowledgeErrorResponse
// @Router /api/datasets/{datasetId}/documents/{documentId}/segments/{segmentId} [delete]
func (h *KnowledgeHandler) DeleteSegment(c *gin.Context) {
	env, err := h.service.DeleteSegment(c.Request.Context(), c.Param("datasetId"), c.Param("documentId"), c.Param("segmentId"))
	responses.Knowledge(c, env, err)
}

// fileUpload reads the multipart "file" and "data" fields. A missing file
// leaves Content nil for the service to reject.
func (h *KnowledgeHandler) fileUpload(c *gin.Context) (knowledge.FileUpload, func()) {
	upload := knowledge.FileUpload{Data: c.PostForm("data")}

	header, err := c.FormFile("file")
	if err != nil {
		return upload, func() {}
	}
	file, err := header.Open()
	if err != nil {
		h.log.Warn().Err(err).Str("filename", header.Filename).Msg("open uploaded file")
		return upload, func() {}
	}
	upload.Filename = header.Filename
	upload.Content = file
	return upload, func() { closeQuietly(file) }
}

func closeQuietly(f multipart.File) {
	_ = f.Close()
}

func bindPage(c *gin.Context) (int, int, bool) {
	var query requests.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.KnowledgeErrorResponse{
			Error:   "Invalid pagination parameters",
			Message: "Page must be >= 1 and limit must be between 1 and 100",
		})
		return 0, 0, false
	}
	page, limit := query.Values()
	return page, limit, true
}

func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		responses.Knowledge(c, nil, invalidBody("request body must be a JSON object"))
		return false
	}
	return true
}

func invalidBody(message string) error {
	return &knowledge.Error{Status: http.StatusBadRequest, Label: "Validation failed", Message: message}
}
