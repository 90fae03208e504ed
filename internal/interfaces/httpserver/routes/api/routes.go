package api

import (
	"github.com/gin-gonic/gin"

	"line-dify-bridge/internal/interfaces/httpserver/handlers"
)

// Routes registers the admin API.
type Routes struct {
	handlers *handlers.Provider
	auth     gin.HandlerFunc
}

func NewRoutes(handlerProvider *handlers.Provider, auth gin.HandlerFunc) *Routes {
	return &Routes{
		handlers: handlerProvider,
		auth:     auth,
	}
}

// Register attaches all admin routes under the /api prefix.
func (r *Routes) Register(engine *gin.Engine) {
	group := engine.Group("/api")
	if r.auth != nil {
		group.Use(r.auth)
	}

	registerMessageRoutes(group, r.handlers.Message)
	registerWorkflowRoutes(group, r.handlers.Workflow)
	registerKnowledgeRoutes(group, r.handlers.Knowledge)
}
