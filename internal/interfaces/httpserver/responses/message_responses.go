package responses

import (
	"line-dify-bridge/internal/domain/message"
)

// MessagePayload is one chat history row as the admin UI reads it.
type MessagePayload struct {
	ID             int64   `json:"id"`
	ConversationID string  `json:"conversation_id"`
	UserID         string  `json:"user_id"`
	MessageType    string  `json:"message_type"`
	MessageContent *string `json:"message_content"`
	ImageURL       *string `json:"image_url"`
	DifyResponse   *string `json:"dify_response"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type MessageListPayload struct {
	Messages []MessagePayload `json:"messages"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

func FromMessage(r *message.Record) MessagePayload {
	return MessagePayload{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		UserID:         r.UserID,
		MessageType:    r.MessageType,
		MessageContent: r.MessageContent,
		ImageURL:       r.ImageURL,
		DifyResponse:   r.DifyResponse,
		CreatedAt:      message.FormatTime(r.CreatedAt),
		UpdatedAt:      message.FormatTime(r.UpdatedAt),
	}
}

func FromMessagePage(p *message.Page) MessageListPayload {
	out := MessageListPayload{
		Messages: make([]MessagePayload, 0, len(p.Messages)),
		Total:    p.Total,
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
	for _, r := range p.Messages {
		out.Messages = append(out.Messages, FromMessage(r))
	}
	return out
}
