package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/adapters"
	"github.com/tracewire/tracewire/internal/infrastructure/config"
	"github.com/tracewire/tracewire/internal/infrastructure/monitoring"
	"github.com/tracewire/tracewire/internal/trace"
	"github.com/tracewire/tracewire/internal/trace/export"
	"github.com/tracewire/tracewire/internal/ws"
)

// Server assembles the trace pipeline and the instrumented HTTP surface.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	httpSrv  *http.Server
	recorder *trace.Recorder
	queue    *export.Queue
	metrics  *monitoring.Metrics
	hub      *ws.Hub
	db       *adapters.DB
	cache    *adapters.Cache
}

// New wires the pipeline bottom-up: transport, queue, recorder, then the
// adapters and routes on top.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	metrics := monitoring.NewMetrics()
	hub := ws.NewHub(cfg.Service.Name, logger)

	transport := export.NewTCPTransport(cfg.Collector.Endpoint)
	queue := export.NewQueue(cfg.Service.Name, transport, export.Config{
		Capacity:  cfg.Export.QueueCapacity,
		BatchSize: cfg.Export.BatchSize,
		Interval:  time.Duration(cfg.Export.IntervalMs) * time.Millisecond,
		RetryMax:  cfg.Export.RetryMax,
	}, logger,
		export.WithMetrics(metrics),
		export.WithTap(hub.Tap),
	)

	recorder := trace.NewRecorder(cfg.Service.Name, queue, logger,
		trace.WithSampleRate(cfg.Export.SampleRate))
	metrics.ObserveActiveSpans(func() float64 {
		return float64(recorder.ActiveSpans())
	})

	db, err := adapters.OpenDB("postgres", cfg.Database.DSN, recorder, logger)
	if err != nil {
		// sql.Open only validates the DSN; a dead database surfaces
		// per-request, not here.
		queue.Shutdown(context.Background())
		return nil, err
	}
	cache := adapters.NewCache(cfg.Cache.Addr, recorder, logger)
	client := adapters.NewHTTPClient(recorder, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORS())
	router.Use(RequestID())
	if cfg.RateLimit.Enabled {
		router.Use(RateLimit(cfg.RateLimit))
	}
	router.Use(monitoring.Middleware(metrics))
	router.Use(adapters.HTTPMiddleware(recorder, logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		router:   router,
		recorder: recorder,
		queue:    queue,
		metrics:  metrics,
		hub:      hub,
		db:       db,
		cache:    cache,
	}

	h := newHandlers(recorder, queue, db, cache, client, hub, metrics, logger)
	router.GET("/", h.Root)
	router.GET("/db-test", h.DBTest)
	router.GET("/httpx-test", h.HTTPXTest)
	router.GET("/logging-test", h.LoggingTest)
	router.GET("/favorites", h.Favorites)
	router.GET("/health", h.Health)
	router.GET("/status", h.Status)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/stream", hub.HandleConnection)

	return s, nil
}

// Run serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info("server starting",
		zap.String("addr", addr),
		zap.String("collector", s.cfg.Collector.Endpoint),
		zap.Float64("sample_rate", s.cfg.Export.SampleRate))

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then flushes the export pipeline.
// The queue shutdown comes last so in-flight request spans still reach
// the collector.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.queue.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.cache.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
