package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xpanvictor/hearken/internal/config"
	"github.com/xpanvictor/hearken/internal/handlers"
	wshandler "github.com/xpanvictor/hearken/internal/handlers/websocket"
	"github.com/xpanvictor/hearken/internal/metrics"
	"github.com/xpanvictor/hearken/pkg/Logger"
)

type Dependencies struct {
	Status    *handlers.StatusHandler
	WebSocket *wshandler.WebSocketHandler
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Logger    *Logger.Logger
}

// InitializeRoutes mounts the status API, /metrics and /ws on r.
func InitializeRoutes(r *gin.Engine, dep Dependencies) {
	if dep.Logger == nil {
		dep.Logger = Logger.Nop()
	}
	r.Use(handlers.ErrorHandlerMiddleware(dep.Logger))
	r.Use(handlers.RequestLoggerMiddleware(dep.Logger))
	r.Use(handlers.CORSMiddleware())
	if dep.Metrics != nil {
		r.Use(handlers.MetricsMiddleware(dep.Metrics))
	}

	r.GET("/", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"message": "Server healthy"}) })
	dep.Status.RegisterRoutes(r)
	if dep.WebSocket != nil {
		dep.WebSocket.RegisterRoutes(r)
	}
	if dep.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(dep.Gatherer, promhttp.HandlerOpts{})))
	}
}

func NewRouter(cfg *config.Settings, dep Dependencies) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	InitializeRoutes(r, dep)
	return r
}

// Server runs the HTTP surface next to the pipeline.
type Server struct {
	http   *http.Server
	logger *Logger.Logger
}

func New(addr string, handler http.Handler, logger *Logger.Logger) *Server {
	if logger == nil {
		logger = Logger.Nop()
	}
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background. Listen failures other than a clean
// shutdown are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("http server listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
