package router

import (
	"github.com/gin-gonic/gin"

	"databug.app/engine/internal/http/handler"
)

func ClusterRouter(router *gin.RouterGroup, clusters *handler.ClusterHandler) {
	router.GET("/:kind/:id", clusters.GetByMember)
}
