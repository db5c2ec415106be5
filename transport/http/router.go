package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/apiclient/service"
	"github.com/rs/zerolog"
)

// Routes the sandbox backend serves. They mirror the defaults of the client.
const (
	LoginPath   = "/auth/token/"
	RefreshPath = "/auth/token/refresh/"
	LogoutPath  = "/auth/logout/"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(RequestLogger(logger), gin.Recovery())

	handlers := NewAuthHandlers(authService)

	router.POST(LoginPath, handlers.Login)
	router.POST(RefreshPath, handlers.Refresh)
	router.POST(LogoutPath, handlers.Logout)

	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me/", handlers.Me)
		api.POST("/uploads/", handlers.Upload)
	}

	return router
}
