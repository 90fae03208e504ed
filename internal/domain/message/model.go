package message

import (
	"regexp"
	"strings"
	"time"
)

// ISOTimeLayout renders timestamps the way the admin API has always exposed them.
const ISOTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var conversationIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Record is one user turn together with the answer that was produced for it.
type Record struct {
	ID             int64
	ConversationID string
	UserID         string
	MessageType    string
	MessageContent *string
	ImageURL       *string
	DifyResponse   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewRecord carries the fields supplied by the workflow when a turn is persisted.
type NewRecord struct {
	ConversationID string
	UserID         string
	MessageType    string
	MessageContent *string
	ImageURL       *string
	DifyResponse   *string
}

// Filter narrows the chat history listing.
type Filter struct {
	ConversationID string
	UserID         string
	StartDate      *time.Time
	EndDate        *time.Time
	Limit          int
	Offset         int
}

// Page is one slice of the chat history.
type Page struct {
	Messages []*Record
	Total    int64
	Limit    int
	Offset   int
}

// IsConversationID reports whether id is a UUID v1-v5 the chat API can continue.
func IsConversationID(id string) bool {
	return conversationIDPattern.MatchString(id)
}

// NormalizeConversationID returns the lowercase form of a valid id, or "" otherwise.
func NormalizeConversationID(id string) string {
	id = strings.TrimSpace(id)
	if !IsConversationID(id) {
		return ""
	}
	return strings.ToLower(id)
}

// FormatTime renders t as an ISO-8601 UTC string with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(ISOTimeLayout)
}
