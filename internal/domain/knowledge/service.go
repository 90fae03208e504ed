package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Service proxies knowledge base management to Dify with local validation
// and premium-feature gating.
type Service interface {
	ListDatasets(ctx context.Context, page, limit int) (Envelope, error)
	CreateDataset(ctx context.Context, in CreateDatasetInput) (Envelope, error)
	GetDataset(ctx context.Context, datasetID string) (Envelope, error)
	DeleteDataset(ctx context.Context, datasetID string) (Envelope, error)

	ListDocuments(ctx context.Context, datasetID string, page, limit int) (Envelope, error)
	CreateDocumentByText(ctx context.Context, datasetID string, in CreateDocumentByTextInput) (Envelope, error)
	CreateDocumentByFile(ctx context.Context, datasetID string, upload FileUpload) (Envelope, error)
	UpdateDocumentByText(ctx context.Context, datasetID, documentID string, in UpdateDocumentByTextInput) (Envelope, error)
	UpdateDocumentByFile(ctx context.Context, datasetID, documentID string, upload FileUpload) (Envelope, error)
	GetDocument(ctx context.Context, datasetID, documentID, metadata string) (Envelope, error)
	GetDocumentStatus(ctx context.Context, datasetID, documentID string) (Envelope, error)
	DeleteDocument(ctx context.Context, datasetID, documentID string) (Envelope, error)

	ListSegments(ctx context.Context, datasetID, documentID string, page, limit int) (Envelope, error)
	CreateSegments(ctx context.Context, datasetID, documentID string, in CreateSegmentsInput) (Envelope, error)
	UpdateSegment(ctx context.Context, datasetID, documentID, segmentID string, in *SegmentUpdate) (Envelope, error)
	DeleteSegment(ctx context.Context, datasetID, documentID, segmentID string) (Envelope, error)
}

const defaultFileData = `{"indexing_technique":"high_quality","process_rule":{"mode":"automatic"}}`

type service struct {
	client   Client
	premium  bool
	validate *validator.Validate
	log      zerolog.Logger
}

// NewService wires the knowledge proxy. A nil client means the knowledge API
// key is not configured; every call then fails with a configuration error.
func NewService(client Client, premium bool, log zerolog.Logger) Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &service{
		client:   client,
		premium:  premium,
		validate: validate,
		log:      log.With().Str("component", "knowledge-service").Logger(),
	}
}

func (s *service) ListDatasets(ctx context.Context, page, limit int) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !validPage(page, limit) {
		return nil, paginationError()
	}
	return s.relay("Get knowledge list", func() (json.RawMessage, error) {
		return s.client.ListDatasets(ctx, page, limit)
	})
}

func (s *service) CreateDataset(ctx context.Context, in CreateDatasetInput) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, validationError(describe(err))
	}
	return s.relay("Create dataset", func() (json.RawMessage, error) {
		return s.client.CreateDataset(ctx, in)
	})
}

func (s *service) GetDataset(ctx context.Context, datasetID string) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) {
		return nil, validationError("Dataset ID is required")
	}
	return s.relay("Get dataset "+datasetID, func() (json.RawMessage, error) {
		return s.client.GetDataset(ctx, datasetID)
	})
}

func (s *service) DeleteDataset(ctx context.Context, datasetID string) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) {
		return nil, validationError("Dataset ID is required")
	}
	if _, err := s.relay("Delete dataset "+datasetID, func() (json.RawMessage, error) {
		return nil, s.client.DeleteDataset(ctx, datasetID)
	}); err != nil {
		return nil, err
	}
	return Message("Dataset deleted successfully"), nil
}

func (s *service) ListDocuments(ctx context.Context, datasetID string, page, limit int) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) {
		return nil, validationError("Dataset ID is required")
	}
	if !validPage(page, limit) {
		return nil, paginationError()
	}
	return s.relay("Get documents for dataset "+datasetID, func() (json.RawMessage, error) {
		return s.client.ListDocuments(ctx, datasetID, page, limit)
	})
}

func (s *service) CreateDocumentByText(ctx context.Context, datasetID string, in CreateDocumentByTextInput) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) {
		return nil, validationError("Dataset ID is required")
	}
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, validationError(describe(err))
	}
	if in.IndexingTechnique == "" {
		in.IndexingTechnique = "high_quality"
	}
	if in.ProcessRule == nil {
		in.ProcessRule = map[string]any{"mode": "automatic"}
	}
	return s.relay("Create document by text in dataset "+datasetID, func() (json.RawMessage, error) {
		return s.client.CreateDocumentByText(ctx, datasetID, in)
	})
}

func (s *service) CreateDocumentByFile(ctx context.Context, datasetID string, upload FileUpload) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) {
		return nil, validationError("Dataset ID is required")
	}
	if upload.Content == nil {
		return nil, validationError(`File is required in FormData under "file" key`)
	}
	if blank(upload.Data) {
		upload.Data = defaultFileData
	} else if !json.Valid([]byte(upload.Data)) {
		return nil, validationError("data must be a JSON object")
	}
	return s.relay("Create document by file", func() (json.RawMessage, error) {
		return s.client.CreateDocumentByFile(ctx, datasetID, upload)
	})
}

func (s *service) UpdateDocumentByText(ctx context.Context, datasetID, documentID string, in UpdateDocumentByTextInput) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) || blank(documentID) {
		return nil, validationError("Dataset ID and Document ID are required")
	}
	if blank(in.Text) {
		return nil, validationError("Text content is required")
	}
	return s.relay(fmt.Sprintf("Update document %s by text in dataset %s", documentID, datasetID), func() (json.RawMessage, error) {
		return s.client.UpdateDocumentByText(ctx, datasetID, documentID, in)
	})
}

func (s *service) UpdateDocumentByFile(ctx context.Context, datasetID, documentID string, upload FileUpload) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) || blank(documentID) {
		return nil, validationError("Dataset ID and Document ID are required")
	}
	if upload.Content == nil {
		return nil, validationError(`File is required in FormData under "file" key`)
	}
	if !blank(upload.Data) && !json.Valid([]byte(upload.Data)) {
		return nil, validationError("data must be a JSON object")
	}
	return s.relay("Update document by file", func() (json.RawMessage, error) {
		return s.client.UpdateDocumentByFile(ctx, datasetID, documentID, upload)
	})
}

func (s *service) GetDocument(ctx context.Context, datasetID, documentID, metadata string) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) || blank(documentID) {
		return nil, validationError("Dataset ID and Document ID are required")
	}
	if metadata == "" {
		metadata = "all"
	}
	return s.relay(fmt.Sprintf("Get document %s details in dataset %s", documentID, datasetID), func() (json.RawMessage, error) {
		return s.client.GetDocument(ctx, datasetID, documentID, metadata)
	})
}

func (s *service) GetDocumentStatus(ctx context.Context, datasetID, documentID string) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) || blank(documentID) {
		return nil, validationError("Dataset ID and Document ID are required")
	}
	return s.relay(fmt.Sprintf("Get document %s embedding status in dataset %s", documentID, datasetID), func() (json.RawMessage, error) {
		return s.client.GetDocumentStatus(ctx, datasetID, documentID)
	})
}

func (s *service) DeleteDocument(ctx context.Context, datasetID, documentID string) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) || blank(documentID) {
		return nil, validationError("Dataset ID and Document ID are required")
	}
	if _, err := s.relay(fmt.Sprintf("Delete document %s from dataset %s", documentID, datasetID), func() (json.RawMessage, error) {
		return nil, s.client.DeleteDocument(ctx, datasetID, documentID)
	}); err != nil {
		return nil, err
	}
	return Message("Document deleted successfully"), nil
}

func (s *service) ListSegments(ctx context.Context, datasetID, documentID string, page, limit int) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) || blank(documentID) {
		return nil, validationError("Dataset ID and Document ID are required")
	}
	if !validPage(page, limit) {
		return nil, paginationError()
	}
	return s.relay(fmt.Sprintf("Get segments for document %s in dataset %s", documentID, datasetID), func() (json.RawMessage, error) {
		return s.client.ListSegments(ctx, datasetID, documentID, page, limit)
	})
}

func (s *service) CreateSegments(ctx context.Context, datasetID, documentID string, in CreateSegmentsInput) (Envelope, error) {
	if !s.premium {
		s.log.Warn().Msg("segment creation rejected: premium features disabled")
		return nil, premiumError(SegmentCreateDisabled)
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) || blank(documentID) {
		return nil, validationError("Dataset ID and Document ID are required")
	}
	if len(in.Segments) == 0 {
		return nil, validationError("Segments array is required and cannot be empty")
	}
	for i, seg := range in.Segments {
		if blank(seg.Content) {
			return nil, validationError(fmt.Sprintf("Segment %d must have non-empty content", i+1))
		}
	}
	return s.relay(fmt.Sprintf("Create segments for document %s in dataset %s", documentID, datasetID), func() (json.RawMessage, error) {
		return s.client.CreateSegments(ctx, datasetID, documentID, in)
	})
}

func (s *service) UpdateSegment(ctx context.Context, datasetID, documentID, segmentID string, in *SegmentUpdate) (Envelope, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) || blank(documentID) || blank(segmentID) {
		return nil, validationError("Dataset ID, Document ID, and Segment ID are required")
	}
	return s.relay(fmt.Sprintf("Update segment %s in document %s", segmentID, documentID), func() (json.RawMessage, error) {
		return s.client.UpdateSegment(ctx, datasetID, documentID, segmentID, in)
	})
}

func (s *service) DeleteSegment(ctx context.Context, datasetID, documentID, segmentID string) (Envelope, error) {
	if !s.premium {
		s.log.Warn().Msg("segment deletion rejected: premium features disabled")
		return nil, premiumError(SegmentDeleteDisabled)
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if blank(datasetID) || blank(documentID) || blank(segmentID) {
		return nil, validationError("Dataset ID, Document ID, and Segment ID are required")
	}
	if _, err := s.relay(fmt.Sprintf("Delete segment %s from document %s", segmentID, documentID), func() (json.RawMessage, error) {
		return nil, s.client.DeleteSegment(ctx, datasetID, documentID, segmentID)
	}); err != nil {
		return nil, err
	}
	return Message("Segment deleted successfully"), nil
}

func (s *service) ready() error {
	if s.client == nil {
		s.log.Error().Msg("DIFY_KNOWLEDGE_KEY is not configured")
		return &Error{
			Status:  http.StatusInternalServerError,
			Label:   "Failed to initialize Dify service",
			Message: "API key is required for DifyService",
		}
	}
	return nil
}

// relay runs one upstream call and converts its failure into an *Error.
func (s *service) relay(op string, call func() (json.RawMessage, error)) (Envelope, error) {
	raw, err := call()
	if err == nil {
		return Wrap(raw), nil
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		s.log.Error().Str("operation", upstream.Operation).Int("status", upstream.Status).Msg(op + " failed")
		message := upstream.Body
		if message == "" {
			message = "Unknown error occurred"
		}
		return nil, &Error{
			Status:  http.StatusBadGateway,
			Label:   fmt.Sprintf("%s failed: %d %s", op, upstream.Status, http.StatusText(upstream.Status)),
			Code:    fmt.Sprintf("%d", upstream.Status),
			Message: message,
		}
	}

	if errors.Is(err, ErrInvalidResponse) {
		s.log.Error().Err(err).Msg(op + " returned invalid JSON")
		return nil, &Error{
			Status:  http.StatusBadGateway,
			Label:   op + " failed: Invalid JSON response",
			Message: "Failed to parse response data",
		}
	}

	s.log.Error().Err(err).Msg(op + " failed")
	return nil, &Error{
		Status:  http.StatusBadGateway,
		Label:   op + " failed: Network or runtime error",
		Message: err.Error(),
	}
}

func validPage(page, limit int) bool {
	return page >= 1 && limit >= 1 && limit <= MaxLimit
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request data"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "min":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(parts, "; ")
}
