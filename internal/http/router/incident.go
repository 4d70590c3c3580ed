package router

import (
	"github.com/gin-gonic/gin"

	"databug.app/engine/internal/http/handler"
)

func IncidentRouter(router *gin.RouterGroup, ingest *handler.IngestHandler, resolution *handler.ResolutionHandler) {
	router.POST("", ingest.IngestIncident)
	router.POST("/:id/resolve", resolution.Propagate)
}
