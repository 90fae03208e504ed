package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/workflow"
	"line-dify-bridge/internal/interfaces/httpserver/requests"
	"line-dify-bridge/internal/interfaces/httpserver/responses"
	"line-dify-bridge/internal/utils/platformerrors"
)

// WorkflowReader loads an instance with its step log.
type WorkflowReader interface {
	Get(ctx context.Context, id string) (*workflow.Instance, error)
}

// WorkflowHandler gives operators a view of durable executions.
type WorkflowHandler struct {
	reader WorkflowReader
	log    zerolog.Logger
}

func NewWorkflowHandler(reader WorkflowReader, log zerolog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		reader: reader,
		log:    log.With().Str("handler", "workflow").Logger(),
	}
}

// Get handles GET /api/workflows/:id
// @Summary Get a workflow instance
// @Description Returns the instance status with its checkpointed steps.
// @Tags Workflows
// @Security BasicAuth
// @Produce json
// @Param id path string true "Workflow instance ID" format(uuid)
// @Success 200 {object} responses.SuccessResponse{data=responses.WorkflowPayload}
// @Failure 400 {object} responses.ErrorResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 404 {object} responses.ErrorResponse
// @Failure 500 {object} responses.ErrorResponse
// @Router /api/workflows/{id} [get]
func (h *WorkflowHandler) Get(c *gin.Context) {
	var param requests.WorkflowIDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "workflow id must be a uuid", "")
		return
	}

	ctx := c.Request.Context()
	inst, err := h.reader.Get(ctx, param.ID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			responses.HandleNewError(c, platformerrors.ErrorTypeNotFound, "workflow instance not found", "")
			return
		}
		responses.HandleError(c, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "get workflow instance"), "failed to get workflow")
		return
	}

	responses.Success(c, responses.FromWorkflow(inst))
}
