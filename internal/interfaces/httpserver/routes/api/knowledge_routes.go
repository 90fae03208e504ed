package api

import (
	"github.com/gin-gonic/gin"

	"line-dify-bridge/internal/interfaces/httpserver/handlers"
)

func registerKnowledgeRoutes(router gin.IRoutes, handler *handlers.KnowledgeHandler) {
	router.GET("/get-knowledge-list", handler.ListDatasets)

	router.POST("/datasets", handler.CreateDataset)
	router.GET("/datasets/:datasetId", handler.GetDataset)
	router.DELETE("/datasets/:datasetId", handler.DeleteDataset)

	// Documents
	router.GET("/datasets/:datasetId/documents", handler.ListDocuments)
	router.POST("/datasets/:datasetId/documents/text", handler.CreateDocumentByText)
	router.POST("/datasets/:datasetId/documents/file", handler.CreateDocumentByFile)
	router.GET("/datasets/:datasetId/documents/:documentId", handler.GetDocument)
	router.DELETE("/datasets/:datasetId/documents/:documentId", handler.DeleteDocument)
	router.PUT("/datasets/:datasetId/documents/:documentId/text", handler.UpdateDocumentByText)
	router.PUT("/datasets/:datasetId/documents/:documentId/file", handler.UpdateDocumentByFile)
	router.GET("/datasets/:datasetId/documents/:documentId/status", handler.GetDocumentStatus)

	// Segments
	router.GET("/datasets/:datasetId/documents/:documentId/segments", handler.ListSegments)
	router.POST("/datasets/:datasetId/documents/:documentId/segments", handler.CreateSegments)
	router.POST("/datasets/:datasetId/documents/:documentId/segments/:segmentId", handler.UpdateSegment)
	router.DELETE("/datasets/:datasetId/documents/:documentId/segments/:segmentId", handler.DeleteSegment)
}
