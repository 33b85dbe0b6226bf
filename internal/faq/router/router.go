// Package router 注册 FAQ 服务的 HTTP 路由。
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/internal/faq/handler"
	"github.com/kart-io/sentinel-faq/pkg/utils/validator"
)

// Register 在 engine 上注册 /api 路由；metrics 非 nil 时同时挂载 /metrics。
func Register(engine *gin.Engine, faqHandler *handler.FAQHandler, metrics http.Handler) {
	logger.Info("Registering FAQ routes...")

	// binding 标签使用带自定义规则与翻译的校验器
	binding.Validator = validator.Global()

	api := engine.Group("/api")
	{
		api.GET("/health", faqHandler.Health)
		api.POST("/ask", faqHandler.Ask)
		api.POST("/documents", faqHandler.UploadDocument)
		api.GET("/history", faqHandler.History)
		api.GET("/stats", faqHandler.Stats)
		api.DELETE("/cache", faqHandler.ClearCache)

		providers := api.Group("/providers")
		{
			providers.GET("", faqHandler.Providers)
			providers.PUT("/active", faqHandler.SelectProvider)
		}
	}

	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics))
	}

	logger.Info("HTTP routes registered")
}
