package middlewares

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/interfaces/httpserver/responses"
)

// Recovery turns a panic into the generic 500 body.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("request_id", c.GetString("request_id")).
					Str("path", c.Request.URL.Path).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("Global error handler caught panic")
				_ = c.Error(fmt.Errorf("panic: %v", r))
				responses.InternalServerError(c)
			}
		}()
		c.Next()
	}
}
