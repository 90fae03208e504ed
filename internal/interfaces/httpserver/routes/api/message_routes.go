package api

import (
	"github.com/gin-gonic/gin"

	"line-dify-bridge/internal/interfaces/httpserver/handlers"
)

func registerMessageRoutes(router gin.IRoutes, handler *handlers.MessageHandler) {
	router.GET("/chat/messages", handler.List)
	router.GET("/chat/messages/:id", handler.Get)
}

func registerWorkflowRoutes(router gin.IRoutes, handler *handlers.WorkflowHandler) {
	router.GET("/workflows/:id", handler.Get)
}
