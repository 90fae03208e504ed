package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/webhook"
	"line-dify-bridge/internal/interfaces/httpserver/responses"
)

const signatureHeader = "X-Line-Signature"

// WebhookService is the part of webhook.Service the handler drives.
type WebhookService interface {
	Accept(ctx context.Context, signature string, body []byte) (*webhook.Batch, error)
	DispatchAsync(ctx context.Context, batch *webhook.Batch)
}

// WebhookHandler receives LINE deliveries.
type WebhookHandler struct {
	service WebhookService
	log     zerolog.Logger
}

func NewWebhookHandler(service WebhookService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		log:     log.With().Str("handler", "webhook").Logger(),
	}
}

// Receive handles POST /webhook. The answer is sent before any event is
// processed; LINE only needs to know the delivery was authentic.
// @Summary Receive LINE webhook events
// @Tags Webhook
// @Accept json
// @Produce json
// @Param X-Line-Signature header string true "Base64 HMAC-SHA256 of the raw body"
// @Param request body object true "LINE webhook batch"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /webhook [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	if err := webhook.CheckContentLength(c.Request.ContentLength); err != nil {
		h.tooLarge(c, c.Request.ContentLength)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, webhook.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(c, maxErr.Limit)
			return
		}
		h.log.Warn().Err(err).Msg("read webhook body")
		responses.Empty(c, http.StatusBadRequest)
		return
	}

	batch, err := h.service.Accept(c.Request.Context(), c.GetHeader(signatureHeader), body)
	if err != nil {
		responses.Empty(c, acceptStatus(err))
		return
	}

	h.service.DispatchAsync(c.Request.Context(), batch)
	c.JSON(http.StatusOK, gin.H{})
}

func (h *WebhookHandler) tooLarge(c *gin.Context, size int64) {
	h.log.Warn().Int64("content_length", size).Msg("webhook body too large")
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request too large"})
}

func acceptStatus(err error) int {
	switch {
	case errors.Is(err, webhook.ErrMissingSignature), errors.Is(err, webhook.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, webhook.ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, webhook.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
