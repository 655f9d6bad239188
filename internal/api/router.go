package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/postboard/config"
	_ "github.com/d60-Lab/postboard/docs"
	"github.com/d60-Lab/postboard/internal/api/handler"
	"github.com/d60-Lab/postboard/internal/api/middleware"
	"github.com/d60-Lab/postboard/internal/service"
)

// NewRouter 注册中间件与全部路由
func NewRouter(cfg *config.Config, h *handler.Handler, sessions service.SessionService) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logger())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{cfg.Upload.URLPrefix})))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.Static(cfg.Upload.URLPrefix, cfg.Upload.Dir)

	auth := middleware.Auth(sessions)
	v1 := r.Group("/api/v1")
	{
		a := v1.Group("/auth")
		a.POST("/register", h.Register)
		a.POST("/login", h.Login)
		a.POST("/forgot-password", h.ForgotPassword)
		a.POST("/reset-password/:token", h.ResetPassword)
		a.GET("/me", auth, h.Me)

		p := v1.Group("/posts")
		p.GET("", h.ListPosts)
		p.GET("/stats", auth, h.PostStats)
		p.GET("/:id", h.GetPost)
		p.POST("", auth, h.CreatePost)
		p.PUT("/:id", auth, h.UpdatePost)
		p.DELETE("/:id", auth, h.DeletePost)
		p.POST("/:id/like", auth, h.LikePost)
		p.POST("/:id/comment", auth, h.CommentPost)
	}
	return r
}
