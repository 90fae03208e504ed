package dify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/domain/chat"
	"line-dify-bridge/internal/infrastructure/httpclients"
	"line-dify-bridge/internal/infrastructure/metrics"
)

// ErrConversationNotFound marks a 404 for a conversation id the upstream no longer knows.
var ErrConversationNotFound = errors.New("dify conversation not found")

// ChatConfig is everything a chat client needs; the client keeps no other state.
type ChatConfig struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	EnabledVariables []string
}

// ChatClient calls the Dify chat-messages endpoint in blocking mode.
type ChatClient struct {
	http    *resty.Client
	inputs  *chat.InputBuilder
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewChatClient builds a chat client from cfg.
func NewChatClient(cfg ChatConfig, log zerolog.Logger) *ChatClient {
	log = log.With().Str("component", "dify-chat").Logger()
	// the per-call deadline is enforced through the context
	httpClient := httpclients.NewClient("dify-chat", cfg.BaseURL, 0, log).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &ChatClient{
		http:    httpClient,
		inputs:  chat.NewInputBuilder(chat.DefaultVariables, cfg.EnabledVariables, log),
		timeout: cfg.Timeout,
		now:     time.Now,
		log:     log,
	}
}

type chatFile struct {
	Type           string `json:"type"`
	TransferMethod string `json:"transfer_method"`
	URL            string `json:"url"`
}

type chatRequest struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	ResponseMode   string         `json:"response_mode"`
	User           string         `json:"user"`
	ConversationID string         `json:"conversation_id"`
	Files          []chatFile     `json:"files,omitempty"`
}

type chatResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// Send implements chat.Client. It retries at most once, with a fresh conversation,
// when the upstream reports the conversation as unknown.
func (c *ChatClient) Send(ctx context.Context, req chat.Request) chat.Answer {
	message, truncated := chat.TruncateMessage(req.Message)
	if truncated {
		c.log.Warn().Int("runes", len([]rune(req.Message))).Msg("message too long, truncating")
	}

	answer, err := c.send(ctx, message, req.ConversationID, req)
	if errors.Is(err, ErrConversationNotFound) {
		c.log.Info().Str("conversation_id", req.ConversationID).Msg("conversation not found, retrying with a new conversation")
		// an empty conversation id never reports ErrConversationNotFound
		answer, _ = c.send(ctx, message, "", req)
	}
	return answer
}

func (c *ChatClient) send(ctx context.Context, message, conversationID string, req chat.Request) (chat.Answer, error) {
	start := time.Now()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body := chatRequest{
		Inputs: c.inputs.Build(chat.VariableContext{
			ConversationID: conversationID,
			UserID:         req.UserID,
			Timestamp:      c.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}),
		Query:          message,
		ResponseMode:   "blocking",
		User:           req.UserID,
		ConversationID: conversationID,
	}
	if req.ImageURL != "" {
		body.Files = []chatFile{{Type: "image", TransferMethod: "remote_url", URL: req.ImageURL}}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat-messages")
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(ctx, err) {
			c.log.Error().Err(err).Dur("elapsed", elapsed).Msg("dify request timed out")
			return c.fallback(chat.FallbackTimeout, "timeout", elapsed), nil
		}
		c.log.Error().Err(err).Dur("elapsed", elapsed).Msg("dify request failed")
		return c.fallback(chat.FallbackUnavailable, "transport_error", elapsed), nil
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		c.log.Error().Int("status", status).Str("body", truncateForLog(resp.String())).Msg("dify api error")
		if status == http.StatusNotFound && conversationID != "" && isConversationNotFound(resp.Body()) {
			return chat.Answer{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
		}
		text, outcome := fallbackForStatus(status)
		return c.fallback(text, outcome, elapsed), nil
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		c.log.Error().Err(err).Msg("failed to parse dify response")
		return c.fallback(chat.FallbackParseFailed, "parse_error", elapsed), nil
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return c.fallback(chat.FallbackEmptyAnswer, "empty_answer", elapsed), nil
	}

	metrics.RecordDify("ok", elapsed.Seconds())
	return chat.Answer{
		Answer:         parsed.Answer,
		ConversationID: parsed.ConversationID,
	}, nil
}

func (c *ChatClient) fallback(text, outcome string, elapsed time.Duration) chat.Answer {
	metrics.RecordDify(outcome, elapsed.Seconds())
	return chat.Answer{Answer: text, Fallback: true}
}

// apiError is the error body of the Dify service API.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// isConversationNotFound reports whether a 404 body names an unknown
// conversation, as opposed to a missing app or route.
func isConversationNotFound(body []byte) bool {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	return e.Code == "not_found" && strings.Contains(strings.ToLower(e.Message), "conversation")
}

func fallbackForStatus(status int) (string, string) {
	switch {
	case status == http.StatusUnauthorized:
		return chat.FallbackAuth, "unauthorized"
	case status == http.StatusForbidden:
		return chat.FallbackForbidden, "forbidden"
	case status == http.StatusTooManyRequests:
		return chat.FallbackRateLimited, "rate_limited"
	case status >= 500:
		return chat.FallbackServerError, "server_error"
	default:
		return chat.FallbackUnavailable, "unexpected_status"
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncateForLog(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

var _ chat.Client = (*ChatClient)(nil)
