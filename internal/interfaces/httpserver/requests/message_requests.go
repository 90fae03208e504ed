package requests

import "time"

// ListMessagesQuery binds the chat history filters.
type ListMessagesQuery struct {
	Limit          *int       `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset         *int       `form:"offset" binding:"omitempty,min=0"`
	ConversationID string     `form:"conversation_id" binding:"omitempty,max=64"`
	UserID         string     `form:"user_id" binding:"omitempty,max=128"`
	StartDate      *time.Time `form:"start_date" time_format:"2006-01-02T15:04:05Z07:00"`
	EndDate        *time.Time `form:"end_date" time_format:"2006-01-02T15:04:05Z07:00"`
}

// MessageIDParam binds the :id path segment.
type MessageIDParam struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// WorkflowIDParam binds the :id path segment of a workflow instance.
type WorkflowIDParam struct {
	ID string `uri:"id" binding:"required,uuid"`
}
