// Package platformerrors carries typed errors from repositories and services
// up to the admin API, where the type picks the HTTP status.
package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithRequestID attaches the inbound request id to ctx. Empty ids are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type ErrorType string

const (
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeUnauthorized   ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden      ErrorType = "FORBIDDEN"
	ErrorTypeTooLarge       ErrorType = "PAYLOAD_TOO_LARGE"
	ErrorTypeInternal       ErrorType = "INTERNAL"
	ErrorTypeExternal       ErrorType = "EXTERNAL"
	ErrorTypeTimeout        ErrorType = "TIMEOUT"
	ErrorTypeDatabaseError  ErrorType = "DATABASE_ERROR"
	ErrorTypeConfiguration  ErrorType = "CONFIGURATION"
	ErrorTypeNotImplemented ErrorType = "NOT_IMPLEMENTED"
)

var httpStatusByType = map[ErrorType]int{
	ErrorTypeNotFound:       http.StatusNotFound,
	ErrorTypeValidation:     http.StatusBadRequest,
	ErrorTypeUnauthorized:   http.StatusUnauthorized,
	ErrorTypeForbidden:      http.StatusForbidden,
	ErrorTypeTooLarge:       http.StatusRequestEntityTooLarge,
	ErrorTypeExternal:       http.StatusBadGateway,
	ErrorTypeTimeout:        http.StatusGatewayTimeout,
	ErrorTypeNotImplemented: http.StatusNotImplemented,
}

// ErrorTypeToHTTPStatus maps a type to its status. Database, configuration,
// internal and unknown types all answer 500.
func ErrorTypeToHTTPStatus(errorType ErrorType) int {
	if status, ok := httpStatusByType[errorType]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Layer names where an error was raised.
type Layer string

const (
	LayerRepository Layer = "repository"
	LayerDomain     Layer = "domain"
	LayerHandler    Layer = "handler"
	LayerRoute      Layer = "route"
)

// PlatformError is a typed error. UUID is stable across AsError wrapping so
// the code shown to an admin matches the one in the logs.
type PlatformError struct {
	UUID      string
	Type      ErrorType
	Layer     Layer
	Message   string
	RequestID string
	Err       error
}

func (e *PlatformError) Error() string {
	head := fmt.Sprintf("%s/%s %s: %s", e.Layer, e.Type, e.UUID, e.Message)
	if e.Err == nil {
		return head
	}
	return head + ": " + e.Err.Error()
}

func (e *PlatformError) Unwrap() error { return e.Err }

func (e *PlatformError) GetErrorType() ErrorType { return e.Type }
func (e *PlatformError) GetRequestID() string    { return e.RequestID }
func (e *PlatformError) GetUUID() string         { return e.UUID }

// NewError builds a PlatformError. An empty id gets a fresh uuid.
func NewError(ctx context.Context, layer Layer, errorType ErrorType, message string, err error, id string) *PlatformError {
	if id == "" {
		id = uuid.NewString()
	}
	return &PlatformError{
		UUID:      id,
		Type:      errorType,
		Layer:     layer,
		Message:   message,
		RequestID: RequestIDFromContext(ctx),
		Err:       err,
	}
}

// AsError rewraps err at layer. A PlatformError inside keeps its type and
// uuid with message prefixed; anything else becomes INTERNAL.
func AsError(ctx context.Context, layer Layer, err error, message string) *PlatformError {
	if err == nil {
		return nil
	}
	var inner *PlatformError
	if !errors.As(err, &inner) {
		return NewError(ctx, layer, ErrorTypeInternal, message, err, "")
	}
	return NewError(ctx, layer, inner.Type, message+": "+inner.Message, inner, inner.UUID)
}

func IsErrorType(err error, errorType ErrorType) bool {
	var pe *PlatformError
	return errors.As(err, &pe) && pe.Type == errorType
}
