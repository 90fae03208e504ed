package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newAuthRouter(user, password string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BasicAuth(user, password, zerolog.Nop()))
	r.GET("/api/messages", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestBasicAuth(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		password   string
		reqUser    string
		reqPass    string
		sendAuth   bool
		wantStatus int
	}{
		{name: "valid credentials", user: "admin", password: "secret", reqUser: "admin", reqPass: "secret", sendAuth: true, wantStatus: http.StatusOK},
		{name: "wrong password", user: "admin", password: "secret", reqUser: "admin", reqPass: "nope", sendAuth: true, wantStatus: http.StatusUnauthorized},
		{name: "wrong user", user: "admin", password: "secret", reqUser: "root", reqPass: "secret", sendAuth: true, wantStatus: http.StatusUnauthorized},
		{name: "no header", user: "admin", password: "secret", wantStatus: http.StatusUnauthorized},
		{name: "credentials not configured", reqUser: "", reqPass: "", sendAuth: true, wantStatus: http.StatusUnauthorized},
		{name: "password not configured", user: "admin", reqUser: "admin", reqPass: "", sendAuth: true, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthRouter(tt.user, tt.password)
			req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
			if tt.sendAuth {
				req.SetBasicAuth(tt.reqUser, tt.reqPass)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, basicAuthRealm, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
