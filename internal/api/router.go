package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/api/handlers"
	"github.com/leozw/uptime-dashboard/internal/api/middleware"
	"github.com/leozw/uptime-dashboard/internal/config"
)

type Server struct {
	Config   *config.Config
	Router   *gin.Engine
	handler  *handlers.Handler
	gatherer prometheus.Gatherer
}

func NewServer(cfg *config.Config, handler *handlers.Handler, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	server := &Server{
		Config:   cfg,
		Router:   router,
		handler:  handler,
		gatherer: gatherer,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	h := s.handler

	// Health check
	s.Router.GET("/health", h.Health)
	s.Router.GET("/ready", h.Ready)
	s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.Router.Group("/api/v1")
	if s.Config.Auth.Secret != "" {
		api.Use(middleware.AuthRequired(s.Config.Auth.Secret, s.Config.Auth.Issuer))
	}

	api.POST("/healthcheck", h.RunHealthcheck)
	api.GET("/monitors/:id/response-time", h.ResponseTime)

	// Site routes
	{
		api.GET("/sites", h.ListSites)
		api.POST("/sites", h.CreateSite)
		api.GET("/sites/:id", h.GetSite)
		api.PUT("/sites/:id", h.UpdateSite)
		api.DELETE("/sites/:id", h.DeleteSite)
		api.POST("/sites/:id/check", h.TriggerCheck)
		api.GET("/sites/:id/results", h.SiteResults)
		api.GET("/sites/:id/histogram", h.SiteHistogram)
		api.GET("/sites/:id/sla", h.SiteSLA)
	}

	api.GET("/histogram/loading", h.LoadingFrame)
	api.GET("/histogram/loading/stream", h.LoadingStream)

	// Interval slider
	{
		api.GET("/interval/ticks", h.IntervalTicks)
		api.GET("/interval/slider", h.IntervalSlider)
		api.GET("/interval/seconds", h.IntervalSeconds)
	}

	api.GET("/account", h.Account)

	// Settings
	{
		api.GET("/settings", h.ListSettings)
		api.GET("/settings/:key", h.GetSetting)
		api.PUT("/settings/:key", h.PutSetting)
		api.DELETE("/settings/:key", h.DeleteSetting)
	}
}
