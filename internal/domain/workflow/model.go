package workflow

import (
	"encoding/json"
	"time"
)

// LineMessageWorkflowName identifies the per-event LINE message workflow.
const LineMessageWorkflowName = "line-message"

// Params is the durable unit of work created for one inbound message event.
// Runtime capabilities (clients, credentials) are injected into the workflow,
// never stored here.
type Params struct {
	UserID         string  `json:"user_id"`
	MessageType    string  `json:"message_type"`
	MessageContent *string `json:"message_content"`
	ImageURL       *string `json:"image_url"`
	WebhookEventID string  `json:"webhook_event_id,omitempty"`
}

// Instance is one durable run of a workflow.
type Instance struct {
	ID             string
	Workflow       string
	WebhookEventID string
	Params         Params
	Status         Status
	Attempts       int
	LeaseUntil     *time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
	Steps          []StepRecord
}

// StepRecord is the checkpoint of one named step.
type StepRecord struct {
	Name      string
	Status    StepStatus
	Output    json.RawMessage
	Attempts  int
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JoinResult is the checkpointed outcome of the save-and-notify step.
type JoinResult struct {
	RecordID  int64  `json:"record_id,omitempty"`
	Saved     bool   `json:"saved"`
	Notified  bool   `json:"notified"`
	SaveError string `json:"save_error,omitempty"`
	PushError string `json:"push_error,omitempty"`
}
