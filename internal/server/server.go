package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/api/middleware"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/infrastructure/config"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/logging"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/orchestrator"
	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/ws"
)

// Server wraps the HTTP server and the orchestrator behind it.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	router  *gin.Engine
	orch    *orchestrator.Orchestrator
	metrics *monitoring.Metrics
	httpSrv *http.Server
}

// New creates a server instance and wires all routes.
func New(cfg *config.Config, log *logging.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.NewNop()
	}

	metrics := monitoring.NewMetrics()
	orch, err := orchestrator.New(cfg, log, metrics)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := NewHandlers(orch, metrics)
	wsHandler := ws.NewHandler(orch, metrics, log)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Sandbox lifecycle
	router.POST("/sandboxes", handlers.CreateSandbox)
	router.GET("/sandboxes", handlers.ListSandboxes)
	router.GET("/sandboxes/:id", handlers.GetSandbox)
	router.DELETE("/sandboxes/:id", handlers.DeleteSandbox)
	router.POST("/sandboxes/:id/permissions", handlers.AssignPermissions)
	router.POST("/sandboxes/:id/run", handlers.RunScript)

	// Capability operations
	router.POST("/capabilities/execute", handlers.Execute)
	router.GET("/capabilities/operations", handlers.Operations)

	// Observability
	router.GET("/stats", handlers.Stats)
	router.GET("/alerts", handlers.Alerts)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket message stream
	router.GET("/stream", wsHandler.HandleConnection)

	return &Server{
		cfg:     cfg,
		log:     log,
		router:  router,
		orch:    orch,
		metrics: metrics,
	}, nil
}

// Run starts background maintenance and serves HTTP until Shutdown.
func (s *Server) Run() error {
	s.orch.Start()

	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("Server listening", zap.String("addr", addr))

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains HTTP, then stops the orchestrator.
func (s *Server) Shutdown(ctx context.Context) error {
	var httpErr error
	if s.httpSrv != nil {
		httpErr = s.httpSrv.Shutdown(ctx)
	}
	s.orch.Shutdown()
	return httpErr
}
