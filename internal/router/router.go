package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"toolsite/backend/internal/handler"
	"toolsite/backend/internal/middleware"
	"toolsite/backend/internal/service"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Pomodoro *handler.PomodoroHandler
	Stream   *handler.StreamHandler
	Tools    *handler.ToolsHandler
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func New(authService *service.AuthService, handlers Handlers, corsOrigins []string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if handlers.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(handlers.Metrics))
	}

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", handlers.Auth.Register)
	auth.POST("/login", handlers.Auth.Login)

	tools := api.Group("/tools")
	tools.POST("/jwt/decode", handlers.Tools.DecodeJWT)
	tools.POST("/jwt/expire-later", handlers.Tools.ExpireLater)

	pomodoro := api.Group("/pomodoro")
	pomodoro.Use(middleware.Auth(authService))
	pomodoro.GET("/state", handlers.Pomodoro.GetState)
	pomodoro.POST("/start", handlers.Pomodoro.Start)
	pomodoro.POST("/pause", handlers.Pomodoro.Pause)
	pomodoro.POST("/reset", handlers.Pomodoro.Reset)
	pomodoro.PUT("/settings", handlers.Pomodoro.UpdateSettings)
	pomodoro.GET("/records", handlers.Pomodoro.GetRecords)
	pomodoro.DELETE("/records", handlers.Pomodoro.ClearRecords)
	pomodoro.GET("/history", handlers.Pomodoro.GetHistory)
	pomodoro.GET("/stream", handlers.Stream.Events)
	pomodoro.GET("/ws", handlers.Stream.WebSocket)

	return engine
}
