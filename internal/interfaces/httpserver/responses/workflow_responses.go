package responses

import (
	"encoding/json"

	"line-dify-bridge/internal/domain/message"
	"line-dify-bridge/internal/domain/workflow"
)

type WorkflowStepPayload struct {
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt string          `json:"updated_at"`
}

// WorkflowPayload exposes an instance and its step log for operators.
type WorkflowPayload struct {
	ID             string                `json:"id"`
	Workflow       string                `json:"workflow"`
	Status         string                `json:"status"`
	Attempts       int                   `json:"attempts"`
	WebhookEventID string                `json:"webhook_event_id,omitempty"`
	UserID         string                `json:"user_id"`
	MessageType    string                `json:"message_type"`
	LastError      string                `json:"last_error,omitempty"`
	LeaseUntil     *string               `json:"lease_until,omitempty"`
	CreatedAt      string                `json:"created_at"`
	UpdatedAt      string                `json:"updated_at"`
	CompletedAt    *string               `json:"completed_at,omitempty"`
	Steps          []WorkflowStepPayload `json:"steps"`
}

func FromWorkflow(inst *workflow.Instance) WorkflowPayload {
	out := WorkflowPayload{
		ID:             inst.ID,
		Workflow:       inst.Workflow,
		Status:         string(inst.Status),
		Attempts:       inst.Attempts,
		WebhookEventID: inst.WebhookEventID,
		UserID:         inst.Params.UserID,
		MessageType:    inst.Params.MessageType,
		LastError:      inst.LastError,
		CreatedAt:      message.FormatTime(inst.CreatedAt),
		UpdatedAt:      message.FormatTime(inst.UpdatedAt),
		Steps:          make([]WorkflowStepPayload, 0, len(inst.Steps)),
	}
	if inst.LeaseUntil != nil {
		s := message.FormatTime(*inst.LeaseUntil)
		out.LeaseUntil = &s
	}
	if inst.CompletedAt != nil {
		s := message.FormatTime(*inst.CompletedAt)
		out.CompletedAt = &s
	}
	for _, step := range inst.Steps {
		out.Steps = append(out.Steps, WorkflowStepPayload{
			Name:      step.Name,
			Status:    string(step.Status),
			Attempts:  step.Attempts,
			Output:    step.Output,
			Error:     step.Error,
			UpdatedAt: message.FormatTime(step.UpdatedAt),
		})
	}
	return out
}
