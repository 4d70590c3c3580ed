package router

import (
	"github.com/gin-gonic/gin"

	"databug.app/engine/internal/http/handler"
)

func BugRouter(router *gin.RouterGroup, ingest *handler.IngestHandler, correlation *handler.CorrelationHandler) {
	router.POST("", ingest.IngestBug)
	router.POST("/:id/resolve", correlation.Resolve)
	router.POST("/:id/duplicates", correlation.FindDuplicates)
	router.GET("/:id/priority", correlation.GetPriority)
}
