package entities

import "time"

// TableName specifies the table name for LineMessage.
func (LineMessage) TableName() string {
	return "line_messages"
}

// LineMessage is the persisted form of one conversation turn.
type LineMessage struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	ConversationID string    `gorm:"type:text;not null;default:'';index:idx_line_messages_conversation"`
	UserID         string    `gorm:"type:text;not null;index:idx_line_messages_user_created,priority:1"`
	MessageType    string    `gorm:"type:text;not null"`
	MessageContent *string   `gorm:"type:text"`
	ImageURL       *string   `gorm:"type:text"`
	DifyResponse   *string   `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null;index:idx_line_messages_user_created,priority:2,sort:desc"`
	UpdatedAt      time.Time `gorm:"not null"`
}
