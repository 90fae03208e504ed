package chat

import (
	"context"
	"unicode/utf8"
)

// Fallback answers sent to the user in place of a real answer.
const (
	FallbackAuth           = "申し訳ございません。認証エラーが発生しました。"
	FallbackForbidden      = "申し訳ございません。アクセス権限がありません。"
	FallbackRateLimited    = "申し訳ございません。リクエスト制限に達しました。しばらく時間をおいて再度お試しください。"
	FallbackServerError    = "申し訳ございません。サーバーエラーが発生しました。"
	FallbackUnavailable    = "申し訳ございません。一時的にサービスが利用できません。"
	FallbackParseFailed    = "申し訳ございません。応答の解析に失敗しました。"
	FallbackEmptyAnswer    = "申し訳ございません。回答を生成できませんでした。"
	FallbackTimeout        = "申し訳ございません。応答に時間がかかりすぎています。もう一度お試しください。"
	MaxMessageRunes        = 10000
	messageTruncatedSuffix = "..."
)

// Request is one user turn sent to the conversational AI.
type Request struct {
	Message        string
	ConversationID string
	UserID         string
	ImageURL       string
}

// Answer is what the AI produced. ConversationID is empty when the upstream did not issue one.
type Answer struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id,omitempty"`
	// Fallback is set when Answer is one of the fixed apology texts.
	Fallback bool `json:"fallback,omitempty"`
}

// Client sends a turn to the conversational AI.
//
// Send never fails: every transport or upstream error is folded into a fallback Answer.
type Client interface {
	Send(ctx context.Context, req Request) Answer
}

// TruncateMessage shortens message to MaxMessageRunes runes and marks the cut.
func TruncateMessage(message string) (string, bool) {
	if utf8.RuneCountInString(message) <= MaxMessageRunes {
		return message, false
	}
	runes := []rune(message)
	return string(runes[:MaxMessageRunes]) + messageTruncatedSuffix, true
}
