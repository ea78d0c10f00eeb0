package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vigil-worker-go/internal/alerts"
	"vigil-worker-go/internal/analysis"
	"vigil-worker-go/internal/api/handlers"
	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/fanout"
	"vigil-worker-go/internal/logging"
	"vigil-worker-go/internal/pipeline"
	"vigil-worker-go/internal/sched"
)

type Server struct {
	cfg    *config.Config
	router *gin.Engine
	server *http.Server
	logger zerolog.Logger

	healthHandler    *handlers.HealthHandler
	cameraHandler    *handlers.CameraHandler
	processorHandler *handlers.ProcessorHandler
	streamHandler    *handlers.StreamHandler
	alertHandler     *handlers.AlertHandler
	systemHandler    *handlers.SystemHandler
}

func NewServer(cfg *config.Config, device *config.DeviceFile, manager *pipeline.Manager,
	registry *analysis.Registry, hub *fanout.Hub, engine *alerts.Engine, scheduler *sched.Scheduler) *Server {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		cfg:              cfg,
		router:           router,
		logger:           logging.NewServiceLogger(cfg, "api"),
		healthHandler:    handlers.NewHealthHandler(cfg, device),
		cameraHandler:    handlers.NewCameraHandler(manager),
		processorHandler: handlers.NewProcessorHandler(registry),
		streamHandler:    handlers.NewStreamHandler(cfg, manager, hub),
		alertHandler:     handlers.NewAlertHandler(engine),
		systemHandler:    handlers.NewSystemHandler(cfg, manager, scheduler, hub),
	}
}

func (s *Server) Setup() {
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.router,
	}
}

func (s *Server) Start() error {
	s.logger.Info().Int("port", s.cfg.Port).Msg("API server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("API server shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
