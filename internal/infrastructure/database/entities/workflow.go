package entities

import (
	"time"

	"gorm.io/datatypes"
)

// TableName specifies the table name for WorkflowInstance.
func (WorkflowInstance) TableName() string {
	return "workflow_instances"
}

// WorkflowInstance is one durable run of a named workflow.
type WorkflowInstance struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	Workflow       string         `gorm:"size:64;not null"`
	WebhookEventID *string        `gorm:"size:128;uniqueIndex"`
	Params         datatypes.JSON `gorm:"type:jsonb;not null"`
	Status         string         `gorm:"size:32;not null;index:idx_workflow_instances_status_lease,priority:1"`
	Attempts       int            `gorm:"not null;default:0"`
	LeaseUntil     *time.Time     `gorm:"index:idx_workflow_instances_status_lease,priority:2"`
	LastError      *string        `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time

	Steps []WorkflowStep `gorm:"foreignKey:InstanceID"`
}

// TableName specifies the table name for WorkflowStep.
func (WorkflowStep) TableName() string {
	return "workflow_steps"
}

// WorkflowStep is the checkpoint of one named step within an instance.
type WorkflowStep struct {
	InstanceID string         `gorm:"type:uuid;primaryKey"`
	Name       string         `gorm:"size:64;primaryKey"`
	Status     string         `gorm:"size:32;not null"`
	Output     datatypes.JSON `gorm:"type:jsonb"`
	Attempts   int            `gorm:"not null;default:0"`
	Error      *string        `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
