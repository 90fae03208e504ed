package webhook

// Batch is the body LINE posts to the webhook.
type Batch struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one delivery in a batch. Only message events are acted on.
type Event struct {
	Type            string           `json:"type"`
	Mode            string           `json:"mode,omitempty"`
	Timestamp       int64            `json:"timestamp"`
	Source          *Source          `json:"source,omitempty"`
	WebhookEventID  string           `json:"webhookEventId"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
	Message         *Message         `json:"message,omitempty"`
	ReplyToken      string           `json:"replyToken,omitempty"`
}

type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

type Message struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	QuoteToken      string           `json:"quoteToken,omitempty"`
	Text            string           `json:"text,omitempty"`
	ContentProvider *ContentProvider `json:"contentProvider,omitempty"`
}

type ContentProvider struct {
	Type               string `json:"type"`
	OriginalContentURL string `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string `json:"previewImageUrl,omitempty"`
}

func (e Event) userID() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.UserID
}

// Dispatchable reports whether the event starts a workflow: a message event
// with a message payload and a sender user id.
func (e Event) Dispatchable() bool {
	return e.Type == "message" && e.Message != nil && e.userID() != ""
}

// Redelivered reports whether LINE flagged the event as a retry of an earlier delivery.
func (e Event) Redelivered() bool {
	return e.DeliveryContext != nil && e.DeliveryContext.IsRedelivery
}
