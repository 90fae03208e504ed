package httpclients

import (
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/utils/platformerrors"
)

// NewClient returns a resty client that logs every exchange at debug level.
// Bodies are never logged: they carry end-user text and bearer tokens.
func NewClient(clientName, baseURL string, timeout time.Duration, log zerolog.Logger) *resty.Client {
	clientLog := log.With().Str("client", clientName).Logger()

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", "line-dify-bridge/1.0")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	client.OnAfterResponse(func(c *resty.Client, r *resty.Response) error {
		clientLog.Debug().
			Str("request_id", platformerrors.RequestIDFromContext(r.Request.Context())).
			Int("status", r.StatusCode()).
			Str("method", r.Request.Method).
			Str("path", pathOf(r.Request.URL)).
			Dur("latency", r.Time()).
			Msg("HTTP client request")
		return nil
	})
	client.OnError(func(r *resty.Request, err error) {
		clientLog.Debug().
			Err(err).
			Str("request_id", platformerrors.RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", pathOf(r.URL)).
			Msg("HTTP client request failed")
	})
	return client
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
