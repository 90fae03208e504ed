package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const basicAuthRealm = `Basic realm="Secure Area"`

// BasicAuth protects the admin API. With no configured credentials every
// request is refused.
func BasicAuth(user, password string, logger zerolog.Logger) gin.HandlerFunc {
	configured := user != "" && password != ""

	return func(c *gin.Context) {
		if !configured {
			logger.Error().Msg("ADMIN_USER or ADMIN_PASSWORD is not set")
			unauthorized(c)
			return
		}

		gotUser, gotPassword, ok := c.Request.BasicAuth()
		if !ok || !equal(gotUser, user) || !equal(gotPassword, password) {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", basicAuthRealm)
	c.AbortWithStatus(http.StatusUnauthorized)
	_, _ = c.Writer.WriteString("Unauthorized")
}
