package knowledge

import (
	"context"
	"encoding/json"
)

// Client is the Dify datasets API. Successful calls return the upstream body;
// non-2xx answers are reported as *UpstreamError.
type Client interface {
	ListDatasets(ctx context.Context, page, limit int) (json.RawMessage, error)
	CreateDataset(ctx context.Context, in CreateDatasetInput) (json.RawMessage, error)
	GetDataset(ctx context.Context, datasetID string) (json.RawMessage, error)
	DeleteDataset(ctx context.Context, datasetID string) error

	ListDocuments(ctx context.Context, datasetID string, page, limit int) (json.RawMessage, error)
	CreateDocumentByText(ctx context.Context, datasetID string, in CreateDocumentByTextInput) (json.RawMessage, error)
	CreateDocumentByFile(ctx context.Context, datasetID string, upload FileUpload) (json.RawMessage, error)
	UpdateDocumentByText(ctx context.Context, datasetID, documentID string, in UpdateDocumentByTextInput) (json.RawMessage, error)
	UpdateDocumentByFile(ctx context.Context, datasetID, documentID string, upload FileUpload) (json.RawMessage, error)
	GetDocument(ctx context.Context, datasetID, documentID, metadata string) (json.RawMessage, error)
	GetDocumentStatus(ctx context.Context, datasetID, documentID string) (json.RawMessage, error)
	DeleteDocument(ctx context.Context, datasetID, documentID string) error

	ListSegments(ctx context.Context, datasetID, documentID string, page, limit int) (json.RawMessage, error)
	CreateSegments(ctx context.Context, datasetID, documentID string, in CreateSegmentsInput) (json.RawMessage, error)
	UpdateSegment(ctx context.Context, datasetID, documentID, segmentID string, in *SegmentUpdate) (json.RawMessage, error)
	DeleteSegment(ctx context.Context, datasetID, documentID, segmentID string) error
}
