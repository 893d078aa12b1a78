package route

import (
	"mediastore/controller"

	"github.com/gin-gonic/gin"
)

// Upload registers every route that ends in a store write.
func Upload(router *gin.Engine, h *controller.Handler) {
	upload := router.Group("/upload")
	upload.POST("/", h.Upload)
	upload.POST("/image", h.UploadImage)
	upload.POST("/image/file", h.UploadImageFile)
	upload.POST("/audio", h.UploadAudio)

	render := router.Group("/render-and-upload")
	render.POST("/code", h.RenderCode)
	render.POST("/mermaid", h.RenderMermaid)
}
