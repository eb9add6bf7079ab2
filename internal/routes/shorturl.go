package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/CodeFormerCodeFormer/shorty/internal/handlers"
	"github.com/CodeFormerCodeFormer/shorty/internal/middleware"
)

// RegisterShortUrlRoutes registers the authenticated management endpoints
func RegisterShortUrlRoutes(r *gin.RouterGroup) {
	shortUrls := r.Group("/short-urls")
	shortUrls.Use(middleware.AuthMiddleware())
	{
		shortUrls.GET("", handlers.ListShortUrls)
		shortUrls.POST("", handlers.CreateShortUrl)
		shortUrls.GET("/:id", handlers.GetShortUrl)
		shortUrls.GET("/:id/country-clicks", handlers.GetCountryClicks)
		shortUrls.DELETE("/:id", handlers.DeleteShortUrl)
		shortUrls.PATCH("/:id/toggle-active", handlers.ToggleShortUrlActive)
	}
}

// RegisterRedirectRoutes registers the public redirect route
func RegisterRedirectRoutes(r *gin.Engine) {
	r.GET("/j/:code", middleware.RedirectRateLimit(), handlers.Redirect)
}
