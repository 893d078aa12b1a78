package route

import (
	"mediastore/controller"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Public(router *gin.Engine, h *controller.Handler) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/artifacts", h.ListArtifacts)
	router.GET("/artifacts/search", h.SearchArtifacts)
	router.GET("/artifacts/:category", h.ListArtifactsByCategory)
}
