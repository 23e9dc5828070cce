package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Выпуск токенов
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}

	// Экстренные вызовы
	sos := api.Group("/sos", JWTAuthMiddleware(h.tokens, h.logger))
	{
		sos.POST("", h.createSOS)
		sos.GET("/my", h.mySOS)
		// :id в маршруте аудио - это dispatchId, публичный идентификатор
		sos.POST("/:id/audio", h.uploadAudio)

		// Только responder/admin
		dispatch := sos.Group("", RequireDispatchRole(h.logger))
		{
			dispatch.GET("", h.listSOS)
			dispatch.GET("/nearby", h.nearbySOS)
			dispatch.PUT("/:id/status", h.updateStatus)
		}
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
