package router

import (
	"github.com/gin-gonic/gin"

	"databug.app/engine/internal/http/handler"
	"databug.app/engine/internal/service"
)

type RouterConfig struct {
	TraceHeader string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		ingestHandler := handler.NewIngestHandler(services.Ingest(), cfg.TraceHeader)
		correlationHandler := handler.NewCorrelationHandler(services.Correlation(), services.Dedup())
		clusterHandler := handler.NewClusterHandler(services.Clusters())
		resolutionHandler := handler.NewResolutionHandler(services.Resolution())
		lineageHandler := handler.NewLineageHandler(services.Lineage())

		IncidentRouter(v1.Group("/incidents"), ingestHandler, resolutionHandler)
		BugRouter(v1.Group("/bugs"), ingestHandler, correlationHandler)
		ClusterRouter(v1.Group("/clusters"), clusterHandler)
		LineageRouter(v1.Group("/lineage"), lineageHandler)
	}
}
