package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/knowledge"
	"line-dify-bridge/internal/infrastructure/httpclients"
	"line-dify-bridge/internal/infrastructure/metrics"
)

const knowledgeTimeout = 60 * time.Second

// KnowledgeClient calls the Dify datasets API with the knowledge key.
type KnowledgeClient struct {
	http *resty.Client
	log  zerolog.Logger
}

func NewKnowledgeClient(baseURL, apiKey string, log zerolog.Logger) *KnowledgeClient {
	log = log.With().Str("component", "dify-knowledge").Logger()
	return &KnowledgeClient{
		http: httpclients.NewClient("dify-knowledge", baseURL, knowledgeTimeout, log).
			SetAuthToken(apiKey),
		log: log,
	}
}

func (c *KnowledgeClient) ListDatasets(ctx context.Context, page, limit int) (json.RawMessage, error) {
	return c.do(ctx, "list_datasets", c.http.R().SetQueryParams(pageParams(page, limit)), http.MethodGet, "/datasets")
}

func (c *KnowledgeClient) CreateDataset(ctx context.Context, in knowledge.CreateDatasetInput) (json.RawMessage, error) {
	return c.do(ctx, "create_dataset", c.http.R().SetBody(in), http.MethodPost, "/datasets")
}

func (c *KnowledgeClient) GetDataset(ctx context.Context, datasetID string) (json.RawMessage, error) {
	return c.do(ctx, "get_dataset", c.http.R(), http.MethodGet, datasetPath(datasetID))
}

func (c *KnowledgeClient) DeleteDataset(ctx context.Context, datasetID string) error {
	_, err := c.do(ctx, "delete_dataset", c.http.R(), http.MethodDelete, datasetPath(datasetID))
	return err
}

func (c *KnowledgeClient) ListDocuments(ctx context.Context, datasetID string, page, limit int) (json.RawMessage, error) {
	return c.do(ctx, "list_documents", c.http.R().SetQueryParams(pageParams(page, limit)), http.MethodGet, datasetPath(datasetID)+"/documents")
}

func (c *KnowledgeClient) CreateDocumentByText(ctx context.Context, datasetID string, in knowledge.CreateDocumentByTextInput) (json.RawMessage, error) {
	raw, err := c.do(ctx, "create_document_by_text", c.http.R().SetBody(in), http.MethodPost, datasetPath(datasetID)+"/document/create_by_text")
	if err != nil {
		return nil, err
	}
	return unwrapDocument(raw), nil
}

func (c *KnowledgeClient) CreateDocumentByFile(ctx context.Context, datasetID string, upload knowledge.FileUpload) (json.RawMessage, error) {
	raw, err := c.do(ctx, "create_document_by_file", fileRequest(c.http.R(), upload), http.MethodPost, datasetPath(datasetID)+"/document/create-by-file")
	if err != nil {
		return nil, err
	}
	return unwrapDocument(raw), nil
}

func (c *KnowledgeClient) UpdateDocumentByText(ctx context.Context, datasetID, documentID string, in knowledge.UpdateDocumentByTextInput) (json.RawMessage, error) {
	return c.do(ctx, "update_document_by_text", c.http.R().SetBody(in), http.MethodPost, documentPath(datasetID, documentID)+"/update_by_text")
}

func (c *KnowledgeClient) UpdateDocumentByFile(ctx context.Context, datasetID, documentID string, upload knowledge.FileUpload) (json.RawMessage, error) {
	return c.do(ctx, "update_document_by_file", fileRequest(c.http.R(), upload), http.MethodPost, documentPath(datasetID, documentID)+"/update-by-file")
}

func (c *KnowledgeClient) GetDocument(ctx context.Context, datasetID, documentID, metadata string) (json.RawMessage, error) {
	return c.do(ctx, "get_document", c.http.R().SetQueryParam("metadata", metadata), http.MethodGet, documentPath(datasetID, documentID))
}

func (c *KnowledgeClient) GetDocumentStatus(ctx context.Context, datasetID, documentID string) (json.RawMessage, error) {
	return c.do(ctx, "get_document_status", c.http.R(), http.MethodGet, documentPath(datasetID, documentID)+"/status")
}

func (c *KnowledgeClient) DeleteDocument(ctx context.Context, datasetID, documentID string) error {
	_, err := c.do(ctx, "delete_document", c.http.R(), http.MethodDelete, documentPath(datasetID, documentID))
	return err
}

func (c *KnowledgeClient) ListSegments(ctx context.Context, datasetID, documentID string, page, limit int) (json.RawMessage, error) {
	return c.do(ctx, "list_segments", c.http.R().SetQueryParams(pageParams(page, limit)), http.MethodGet, documentPath(datasetID, documentID)+"/segments")
}

func (c *KnowledgeClient) CreateSegments(ctx context.Context, datasetID, documentID string, in knowledge.CreateSegmentsInput) (json.RawMessage, error) {
	return c.do(ctx, "create_segments", c.http.R().SetBody(in), http.MethodPost, documentPath(datasetID, documentID)+"/segments")
}

func (c *KnowledgeClient) UpdateSegment(ctx context.Context, datasetID, documentID, segmentID string, in *knowledge.SegmentUpdate) (json.RawMessage, error) {
	req := c.http.R()
	if in != nil {
		req.SetBody(map[string]*knowledge.SegmentUpdate{"segment": in})
	}
	return c.do(ctx, "update_segment", req, http.MethodPost, segmentPath(datasetID, documentID, segmentID))
}

func (c *KnowledgeClient) DeleteSegment(ctx context.Context, datasetID, documentID, segmentID string) error {
	_, err := c.do(ctx, "delete_segment", c.http.R(), http.MethodDelete, segmentPath(datasetID, documentID, segmentID))
	return err
}

func (c *KnowledgeClient) do(ctx context.Context, op string, req *resty.Request, method, path string) (json.RawMessage, error) {
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		metrics.RecordKnowledge(op, 0)
		return nil, fmt.Errorf("dify %s: %w", op, err)
	}
	metrics.RecordKnowledge(op, resp.StatusCode())

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		c.log.Error().Str("operation", op).Int("status", resp.StatusCode()).Msg("dify knowledge api error")
		return nil, &knowledge.UpstreamError{Operation: op, Status: resp.StatusCode(), Body: resp.String()}
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("dify %s: %w", op, knowledge.ErrInvalidResponse)
	}
	return json.RawMessage(body), nil
}

func fileRequest(req *resty.Request, upload knowledge.FileUpload) *resty.Request {
	req.SetFileReader("file", upload.Filename, upload.Content)
	if upload.Data != "" {
		req.SetMultipartFormData(map[string]string{"data": upload.Data})
	}
	return req
}

// unwrapDocument returns the nested document of a create answer.
func unwrapDocument(raw json.RawMessage) json.RawMessage {
	var wrapper struct {
		Document json.RawMessage `json:"document"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Document) > 0 {
		return wrapper.Document
	}
	return raw
}

func pageParams(page, limit int) map[string]string {
	return map[string]string{"page": strconv.Itoa(page), "limit": strconv.Itoa(limit)}
}

func datasetPath(datasetID string) string {
	return "/datasets/" + url.PathEscape(datasetID)
}

func documentPath(datasetID, documentID string) string {
	return datasetPath(datasetID) + "/documents/" + url.PathEscape(documentID)
}

func segmentPath(datasetID, documentID, segmentID string) string {
	return documentPath(datasetID, documentID) + "/segments/" + url.PathEscape(segmentID)
}

var _ knowledge.Client = (*KnowledgeClient)(nil)
