package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/engageflow/backend/internal/api/handlers"
	"github.com/engageflow/backend/internal/api/middleware"
	"github.com/engageflow/backend/internal/logger"
	"github.com/engageflow/backend/internal/services"
	"github.com/engageflow/backend/internal/websocket"
)

type Server struct {
	router   *gin.Engine
	services *services.Container
}

func NewServer(svc *services.Container) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(logger.GinMiddleware())
	router.Use(logger.GinRecovery())

	server := &Server{
		router:   router,
		services: svc,
	}

	server.setupRoutes()
	return server
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.CORS(s.services.Config.CORSOrigin))

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.Auth(s.services.Config.JWTSecret))
	{
		rules := v1.Group("/rules")
		{
			ruleHandler := handlers.NewRuleHandler(s.services)
			rules.GET("", ruleHandler.List)
			rules.POST("", ruleHandler.Create)
			rules.GET("/:id", ruleHandler.Get)
			rules.PUT("/:id", ruleHandler.Update)
			rules.DELETE("/:id", ruleHandler.Delete)
		}

		logHandler := handlers.NewLogHandler(s.services)
		v1.GET("/logs", logHandler.List)

		eventHandler := handlers.NewEventHandler(s.services)
		v1.POST("/events", eventHandler.Ingest)

		statsHandler := handlers.NewStatsHandler(s.services)
		v1.GET("/dashboard/stats", statsHandler.Workspace)

		// Activity feed
		v1.GET("/ws", func(c *gin.Context) {
			workspaceID, _ := c.Get("workspace_id")
			websocket.ServeWs(s.services.Hub, c.Writer, c.Request, workspaceID.(uuid.UUID).String())
		})
	}
}
