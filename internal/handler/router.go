package handler

import (
	"bookmarker/internal/config"
	"bookmarker/internal/middleware"
	auth "bookmarker/pkg/jwt"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// NewEngine 创建带公共中间件的 gin 引擎
//
// 拒绝未知字段依赖进程级的 binding.EnableDecoderDisallowUnknownFields，由 main 在启动时设置。
func NewEngine(logger *zap.Logger, limit *config.Limit) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.GinZapRecovery(logger, true))
	router.Use(middleware.GinZapLogger(logger))
	router.Use(middleware.RateLimit(limit))

	router.NoRoute(notFound)
	return router
}

// RegisterRoutes 注册全部路由
func RegisterRoutes(
	router *gin.Engine,
	bookmarkHandler *BookmarkHandler,
	authHandler *AuthHandler,
	tokens middleware.TokenValidator,
) {
	accessMiddleware := middleware.AuthMiddleware(tokens, auth.AccessToken)
	refreshMiddleware := middleware.AuthMiddleware(tokens, auth.RefreshToken)

	router.GET("/", bookmarkHandler.Index)
	router.GET("/hello", bookmarkHandler.Hello)
	router.GET("/health", bookmarkHandler.HealthCheck)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/:code", bookmarkHandler.RedirectToOriginal)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/me", accessMiddleware, authHandler.GetCurrentUser)
		authGroup.GET("/token/refresh", refreshMiddleware, authHandler.RefreshToken)
	}

	bookmarks := router.Group("/bookmarks")
	bookmarks.Use(accessMiddleware)
	{
		bookmarks.GET("/", bookmarkHandler.ListBookmarks)
		bookmarks.POST("/", bookmarkHandler.CreateBookmark)
		// 不带斜杠的路径否则会被 /:code 匹配
		bookmarks.GET("", bookmarkHandler.ListBookmarks)
		bookmarks.POST("", bookmarkHandler.CreateBookmark)
		bookmarks.GET("/stats", bookmarkHandler.GetStats)
		bookmarks.GET("/:id", bookmarkHandler.GetBookmark)
		bookmarks.PATCH("/:id", bookmarkHandler.UpdateBookmark)
		bookmarks.PUT("/:id", bookmarkHandler.UpdateBookmark)
		bookmarks.DELETE("/:id", bookmarkHandler.DeleteBookmark)
	}
}
