package router

import (
	"github.com/gin-gonic/gin"

	"databug.app/engine/internal/http/handler"
)

func LineageRouter(router *gin.RouterGroup, lineage *handler.LineageHandler) {
	router.PUT("", lineage.Sync)
}
