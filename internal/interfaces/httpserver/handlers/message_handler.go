package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/message"
	"line-dify-bridge/internal/interfaces/httpserver/requests"
	"line-dify-bridge/internal/interfaces/httpserver/responses"
	"line-dify-bridge/internal/utils/platformerrors"
)

// MessageHandler exposes the persisted chat history.
type MessageHandler struct {
	service message.Service
	log     zerolog.Logger
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(service message.Service, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		log:     log.With().Str("handler", "message").Logger(),
	}
}

// List handles GET /api/chat/messages
// @Summary List chat messages
// @Description Lists persisted LINE messages newest first.
// @Tags Messages
// @Security BasicAuth
// @Produce json
// @Param limit query int false "Page size, 1-100" default(50)
// @Param offset query int false "Offset" default(0)
// @Param conversation_id query string false "Conversation ID"
// @Param user_id query string false "LINE user ID"
// @Param start_date query string false "Created at or after (RFC3339)"
// @Param end_date query string false "Created at or before (RFC3339)"
// @Success 200 {object} responses.SuccessResponse{data=responses.MessageListPayload}
// @Failure 400 {object} responses.ErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Router /api/chat/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	var query requests.ListMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid query parameters: "+err.Error(), "")
		return
	}

	filter := message.Filter{
		ConversationID: query.ConversationID,
		UserID:         query.UserID,
		StartDate:      query.StartDate,
		EndDate:        query.EndDate,
	}
	if query.Limit != nil {
		filter.Limit = *query.Limit
	}
	if query.Offset != nil {
		filter.Offset = *query.Offset
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		responses.HandleError(c, err, "failed to list messages")
		return
	}

	responses.Success(c, responses.FromMessagePage(page))
}

// Get handles GET /api/chat/messages/:id
// @Summary Get a chat message
// @Tags Messages
// @Security BasicAuth
// @Produce json
// @Param id path int true "Message ID"
// @Success 200 {object} responses.SuccessResponse{data=responses.MessagePayload}
// @Failure 400 {object} responses.ErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 404 {object} responses.ErrorResponse
// @Router /api/chat/messages/{id} [get]
func (h *MessageHandler) Get(c *gin.Context) {
	var param requests.MessageIDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "message id must be a positive integer", "")
		return
	}

	rec, err := h.service.Get(c.Request.Context(), param.ID)
	if err != nil {
		responses.HandleError(c, err, "failed to get message")
		return
	}

	responses.Success(c, responses.FromMessage(rec))
}
