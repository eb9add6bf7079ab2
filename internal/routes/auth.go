package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/CodeFormerCodeFormer/shorty/internal/handlers"
	"github.com/CodeFormerCodeFormer/shorty/internal/middleware"
)

func RegisterAuthRoutes(r gin.IRouter) {
	r.POST("/register", handlers.Register)
	r.POST("/login", handlers.Login)
	// Logout needs the middleware so claims are available for revocation
	r.POST("/logout", middleware.AuthMiddleware(), handlers.Logout)
	r.GET("/me", middleware.AuthMiddleware(), handlers.GetMe)
}
