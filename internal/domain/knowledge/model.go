package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	PremiumFeatureRequired = "premium_feature_required"

	SegmentCreateDisabled = "セグメントの作成は有料プラン限定機能です"
	SegmentDeleteDisabled = "セグメントの削除は有料プラン限定機能です"
)

// Envelope is the admin-facing body of a knowledge call: {data, ...}.
type Envelope map[string]json.RawMessage

// CreateDatasetInput mirrors the Dify create-dataset body.
type CreateDatasetInput struct {
	Name                   string         `json:"name" validate:"required,min=1"`
	Description            *string        `json:"description,omitempty"`
	Permission             string         `json:"permission" validate:"required,oneof=only_me all_team_members partial_members"`
	IndexingTechnique      string         `json:"indexing_technique,omitempty" validate:"omitempty,oneof=high_quality economy"`
	EmbeddingModel         string         `json:"embedding_model,omitempty"`
	EmbeddingModelProvider string         `json:"embedding_model_provider,omitempty"`
	RetrievalModel         map[string]any `json:"retrieval_model,omitempty"`
}

type CreateDocumentByTextInput struct {
	Name               string         `json:"name" validate:"required,min=1"`
	Text               string         `json:"text" validate:"required,min=1"`
	IndexingTechnique  string         `json:"indexing_technique" validate:"omitempty,oneof=high_quality economy"`
	ProcessRule        map[string]any `json:"process_rule"`
	DuplicateCheck     *bool          `json:"duplicate_check,omitempty"`
	OriginalDocumentID string         `json:"original_document_id,omitempty"`
	DocForm            string         `json:"doc_form,omitempty" validate:"omitempty,oneof=text_model qa_model"`
	DocLanguage        string         `json:"doc_language,omitempty"`
}

type UpdateDocumentByTextInput struct {
	Name        string         `json:"name,omitempty"`
	Text        string         `json:"text"`
	ProcessRule map[string]any `json:"process_rule,omitempty"`
}

// FileUpload is a document file forwarded as multipart form data.
// Data is the optional JSON document settings sent alongside the file.
type FileUpload struct {
	Filename string
	Content  io.Reader
	Data     string
}

type SegmentInput struct {
	Content  string   `json:"content"`
	Answer   *string  `json:"answer,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

type CreateSegmentsInput struct {
	Segments []SegmentInput `json:"segments"`
}

// SegmentUpdate is forwarded as {"segment": ...} when present.
type SegmentUpdate struct {
	Content  string   `json:"content,omitempty"`
	Answer   *string  `json:"answer,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty"`
}

// Error is a knowledge failure rendered as {error, code, message}.
type Error struct {
	Status  int
	Label   string
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Label
	}
	return fmt.Sprintf("%s: %s", e.Label, e.Message)
}

// ErrInvalidResponse marks a 2xx upstream body that is not JSON.
var ErrInvalidResponse = errors.New("invalid JSON response")

// UpstreamError is a non-2xx answer from the Dify datasets API.
type UpstreamError struct {
	Operation string
	Status    int
	Body      string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("dify %s: status %d", e.Operation, e.Status)
}

func validationError(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Label: "Validation failed", Message: message}
}

func paginationError() *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Label:   "Invalid pagination parameters",
		Message: "Page must be >= 1 and limit must be between 1 and 100",
	}
}

func premiumError(message string) *Error {
	return &Error{
		Status:  http.StatusForbidden,
		Label:   PremiumFeatureRequired,
		Code:    "403",
		Message: message,
	}
}

// Wrap shapes an upstream body into an Envelope. Bodies that already carry a
// data key (paginated lists) are relayed unchanged.
func Wrap(raw json.RawMessage) Envelope {
	if len(raw) == 0 {
		return Envelope{"data": json.RawMessage("null")}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		if _, ok := obj["data"]; ok {
			return Envelope(obj)
		}
	}
	return Envelope{"data": raw}
}

// Message builds a {data:{message}} envelope.
func Message(text string) Envelope {
	body, _ := json.Marshal(map[string]string{"message": text})
	return Envelope{"data": body}
}
