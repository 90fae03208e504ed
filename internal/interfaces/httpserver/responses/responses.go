package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"line-dify-bridge/internal/domain/knowledge"
	"line-dify-bridge/internal/utils/platformerrors"
)

// InternalErrorCode is the code of the generic 500 body.
const InternalErrorCode = 7000

// ErrorResponse is the admin API error body. Code is the error uuid.
type ErrorResponse struct {
	Code          string `json:"code"`
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	ErrorInstance error  `json:"-"`
	RequestID     string `json:"request_id,omitempty"`
}

// SuccessResponse is the admin API envelope for message and workflow reads.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type ErrorItem struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FailureResponse is the body of unhandled errors.
type FailureResponse struct {
	Success bool        `json:"success"`
	Errors  []ErrorItem `json:"errors"`
}

// KnowledgeErrorResponse is the body of a failed knowledge proxy call.
type KnowledgeErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func Success(reqCtx *gin.Context, data any) {
	reqCtx.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// Empty answers with {} and the given status; the webhook never says more.
func Empty(reqCtx *gin.Context, status int) {
	reqCtx.AbortWithStatusJSON(status, gin.H{})
}

func InternalServerError(reqCtx *gin.Context) {
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, FailureResponse{
		Success: false,
		Errors:  []ErrorItem{{Code: InternalErrorCode, Message: "Internal Server Error"}},
	})
}

// HandleError renders err as an ErrorResponse. Typed errors pick their own
// status and code; anything else is a 500 labelled with message.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var pe *platformerrors.PlatformError
	if !errors.As(err, &pe) {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:         message,
			Message:       message,
			ErrorInstance: err,
		})
		return
	}
	abortWith(reqCtx, pe, message)
}

// HandleNewError raises a route level error of errorType and renders it.
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	pe := platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerRoute, errorType, message, nil, uuid)
	abortWith(reqCtx, pe, message)
}

func abortWith(reqCtx *gin.Context, pe *platformerrors.PlatformError, label string) {
	_ = reqCtx.Error(pe)
	reqCtx.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(pe.GetErrorType()), ErrorResponse{
		Code:          pe.GetUUID(),
		Error:         label,
		Message:       pe.Message,
		ErrorInstance: pe,
		RequestID:     pe.GetRequestID(),
	})
}

// Knowledge renders a knowledge proxy result: the envelope on success,
// {error, code, message} with the error's status otherwise.
func Knowledge(reqCtx *gin.Context, env knowledge.Envelope, err error) {
	if err == nil {
		reqCtx.JSON(http.StatusOK, env)
		return
	}
	var kerr *knowledge.Error
	if errors.As(err, &kerr) {
		reqCtx.AbortWithStatusJSON(kerr.Status, KnowledgeErrorResponse{
			Error:   kerr.Label,
			Code:    kerr.Code,
			Message: kerr.Message,
		})
		return
	}
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, KnowledgeErrorResponse{
		Error:   "Internal Server Error",
		Message: err.Error(),
	})
}
