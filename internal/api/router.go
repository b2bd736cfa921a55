package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/repo_audit_server/config"
	"github.com/qs3c/repo_audit_server/internal/api/handler"
	"github.com/qs3c/repo_audit_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	analysisHandler  *handler.AnalysisHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	analysisHandler *handler.AnalysisHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		analysisHandler:  analysisHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			analyses := authenticated.Group("/analyses")
			{
				analyses.POST("", r.analysisHandler.Start)
				analyses.POST("/batch", r.analysisHandler.BatchStart)
				// history 必须注册在 :id 之前，避免被参数路由吞掉
				analyses.GET("/history", r.analysisHandler.History)
				analyses.GET("/:id", r.analysisHandler.Get)
			}
		}
	}

	return engine
}
