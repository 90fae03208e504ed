package platformerrors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorCarriesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	err := NewError(ctx, LayerDomain, ErrorTypeNotFound, "message not found", nil, "")

	require.NotNil(t, err)
	assert.Equal(t, "req-1", err.GetRequestID())
	assert.NotEmpty(t, err.GetUUID())
	assert.Equal(t, ErrorTypeNotFound, err.GetErrorType())
}

func TestAsErrorKeepsInnerType(t *testing.T) {
	ctx := context.Background()
	inner := NewError(ctx, LayerRepository, ErrorTypeNotFound, "record missing", nil, "fixed-uuid")

	wrapped := AsError(ctx, LayerDomain, inner, "get message")
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeNotFound, wrapped.Type)
	assert.Equal(t, "fixed-uuid", wrapped.UUID)
	assert.Equal(t, "get message: record missing", wrapped.Message)
	assert.True(t, errors.Is(wrapped, inner))

	plain := AsError(ctx, LayerDomain, errors.New("boom"), "list messages")
	assert.Equal(t, ErrorTypeInternal, plain.Type)
	assert.Nil(t, AsError(ctx, LayerDomain, nil, "noop"))
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	cases := map[ErrorType]int{
		ErrorTypeNotFound:      http.StatusNotFound,
		ErrorTypeValidation:    http.StatusBadRequest,
		ErrorTypeUnauthorized:  http.StatusUnauthorized,
		ErrorTypeForbidden:     http.StatusForbidden,
		ErrorTypeTooLarge:      http.StatusRequestEntityTooLarge,
		ErrorTypeExternal:      http.StatusBadGateway,
		ErrorTypeTimeout:       http.StatusGatewayTimeout,
		ErrorTypeConfiguration: http.StatusInternalServerError,
		ErrorType("unknown"):   http.StatusInternalServerError,
	}
	for errType, want := range cases {
		assert.Equal(t, want, ErrorTypeToHTTPStatus(errType), string(errType))
	}
}

func TestIsErrorType(t *testing.T) {
	err := NewError(context.Background(), LayerHandler, ErrorTypeValidation, "bad limit", nil, "")
	assert.True(t, IsErrorType(err, ErrorTypeValidation))
	assert.False(t, IsErrorType(err, ErrorTypeNotFound))
	assert.False(t, IsErrorType(errors.New("plain"), ErrorTypeValidation))
	assert.False(t, IsErrorType(nil, ErrorTypeValidation))
}
