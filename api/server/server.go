package server

import (
	"context"
	"time"

	"dbwatch/api/middleware"
	"dbwatch/internal/elasticsearch"
	"dbwatch/internal/monitor"
	"dbwatch/internal/storage"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router         *gin.Engine
	store          *storage.Store
	monitorService *monitor.Service
	es             *elasticsearch.Client
}

func NewServer(store *storage.Store, monitorService *monitor.Service, esClient *elasticsearch.Client) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	// Per-request timeout
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	server := &Server{
		router:         router,
		store:          store,
		monitorService: monitorService,
		es:             esClient,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	// Apply rate limiting to all API routes
	api := s.router.Group("/api/v1")
	api.Use(middleware.RateLimit())

	{
		// Group management - all using POST
		api.POST("/group/add", s.addGroup)
		api.POST("/group/list", s.listGroups)
		api.POST("/group/get", s.getGroup)

		// Database management - using POST
		api.POST("/database/add", s.addDatabase)
		api.POST("/database/list", s.listDatabases)
		api.POST("/database/get", s.getDatabase)
		api.POST("/database/check", s.checkDatabase)

		// Filesystem management - using POST
		api.POST("/filesystem/add", s.addFileSystem)
		api.POST("/filesystem/list", s.listFileSystems)
		api.POST("/filesystem/check", s.checkFileSystem)

		// Thresholds - using POST
		api.POST("/threshold/add", s.addThreshold)
		api.POST("/threshold/list", s.listThresholds)
		api.POST("/threshold/resolve", s.resolveThresholds)

		// Alerts - using POST
		api.POST("/alert/list", s.listAlerts)
		api.POST("/alert/active", s.listActiveAlerts)
		api.POST("/alert/acknowledge", s.acknowledgeAlert)

		// Monitoring control
		api.POST("/monitor/run", s.runMonitoring)

		// Check history - using POST
		api.POST("/history/search", s.searchHistory)

		// Settings and integrations
		api.POST("/settings/get", s.getSettings)
		api.POST("/settings/update", s.updateSettings)
		api.POST("/itsd/get", s.getItsdIntegration)
		api.POST("/itsd/update", s.updateItsdIntegration)
	}

	s.router.GET("/health", s.healthCheck)
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
