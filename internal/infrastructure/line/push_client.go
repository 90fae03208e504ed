package line

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/infrastructure/httpclients"
	"line-dify-bridge/internal/infrastructure/metrics"
)

const (
	// MaxTextRunes is the platform limit for one text message.
	MaxTextRunes = 5000
	// truncatedRunes is how much of an oversized text is kept.
	truncatedRunes   = 4900
	TruncationNotice = "...\n（メッセージが長すぎたため省略されました）"
)

// ErrPushTimeout is returned when the push call exceeds its deadline.
var ErrPushTimeout = errors.New("LINE Push API timeout")

// APIError is a non-2xx push answer.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LINE API error: %d", e.Status)
}

type PushConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// PushClient sends text messages through the Messaging API push endpoint.
type PushClient struct {
	http    *resty.Client
	timeout time.Duration
	log     zerolog.Logger
}

func NewPushClient(cfg PushConfig, log zerolog.Logger) *PushClient {
	log = log.With().Str("component", "line-push").Logger()
	return &PushClient{
		http: httpclients.NewClient("line-push", cfg.BaseURL, 0, log).
			SetAuthToken(cfg.AccessToken).
			SetHeader("Content-Type", "application/json"),
		timeout: cfg.Timeout,
		log:     log,
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// Push delivers text to userID. Unlike the chat client it fails loudly so the
// caller can record the failed side.
func (c *PushClient) Push(ctx context.Context, userID, text string) error {
	text, truncated := TruncateText(text)
	if truncated {
		c.log.Warn().Msg("push text too long, truncating")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(pushRequest{To: userID, Messages: []textMessage{{Type: "text", Text: text}}}).
		Post("/v2/bot/message/push")
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			metrics.RecordPush("timeout")
			c.log.Error().Dur("timeout", c.timeout).Msg("LINE push timed out")
			return ErrPushTimeout
		}
		metrics.RecordPush("transport_error")
		return fmt.Errorf("push to LINE: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		metrics.RecordPush("api_error")
		c.log.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Msg("LINE push api error")
		return &APIError{Status: resp.StatusCode(), Body: resp.String()}
	}

	metrics.RecordPush("ok")
	return nil
}

// TruncateText applies the platform length limit.
func TruncateText(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= MaxTextRunes {
		return text, false
	}
	return string(runes[:truncatedRunes]) + TruncationNotice, true
}
