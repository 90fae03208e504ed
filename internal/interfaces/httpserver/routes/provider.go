package routes

import (
	"github.com/gin-gonic/gin"

	"line-dify-bridge/internal/interfaces/httpserver/handlers"
	"line-dify-bridge/internal/interfaces/httpserver/routes/api"
)

// Provider coordinates all route registrations.
type Provider struct {
	handlers *handlers.Provider
	API      *api.Routes
}

// NewProvider constructs the route provider. adminAuth guards the /api group.
func NewProvider(handlerProvider *handlers.Provider, adminAuth gin.HandlerFunc) *Provider {
	return &Provider{
		handlers: handlerProvider,
		API:      api.NewRoutes(handlerProvider, adminAuth),
	}
}

// Register attaches all available routes to the gin engine.
func (p *Provider) Register(engine *gin.Engine) {
	engine.POST("/webhook", p.handlers.Webhook.Receive)
	p.API.Register(engine)
}
