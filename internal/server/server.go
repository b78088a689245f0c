package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/GriffinCanCode/scriptbridge/internal/api/http"
	"github.com/GriffinCanCode/scriptbridge/internal/api/middleware"
	"github.com/GriffinCanCode/scriptbridge/internal/config"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/providers"
	"github.com/GriffinCanCode/scriptbridge/internal/providers/fetch"
	"github.com/GriffinCanCode/scriptbridge/internal/service"
	"github.com/GriffinCanCode/scriptbridge/internal/store"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi/bridge"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi/events"
	"github.com/GriffinCanCode/scriptbridge/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and the plugin runtime
type Server struct {
	config     *config.Config
	router     *gin.Engine
	logger     *logging.Logger
	registry   *prometheus.Registry
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	services   *service.Registry
	store      *store.Store
	hub        *ws.Hub
	events     *events.Channel
	supervisor *userapi.Supervisor
}

// NewServer builds every component from cfg. A nil logger derives one from
// cfg.Logging.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}

	logger.Info("Initializing scriptbridge server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("script_dir", cfg.Store.Dir),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	tracer := tracing.New("scriptbridge", logger)

	s := &Server{
		config:   cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		tracer:   tracer,
		services: service.NewRegistry(),
	}

	// The hub observes the channel and dispatches into the supervisor, which
	// needs the channel. The func breaks the cycle.
	s.hub = ws.NewHub(ws.DispatcherFunc(func(ctx context.Context, action, payload string) (bool, error) {
		return s.supervisor.DispatchAction(ctx, action, payload)
	}), ws.Options{Logger: logger, Metrics: metrics})
	s.events = events.NewChannel(s.hub, logger, metrics, events.WithQueueLimit(cfg.Runtime.EventQueueSize))

	client := fetch.NewClient(fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		Retries:   cfg.Fetch.Retries,
		RPS:       cfg.Fetch.RPS,
		UserAgent: cfg.Fetch.UserAgent,
	}, metrics)
	s.registerProviders(client)

	supervisor, err := userapi.New(userapi.Config{
		Runtime: cfg.Runtime,
		Bridge: bridge.New(bridge.Config{
			Services: s.services,
			Fetcher:  client,
			Logger:   logger,
			Metrics:  metrics,
		}),
		Events:  s.events,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		s.closeStreams()
		return nil, fmt.Errorf("create supervisor: %w", err)
	}
	s.supervisor = supervisor

	if cfg.Store.Dir != "" {
		st, err := store.New(cfg.Store.Dir, logger)
		if err != nil {
			_ = supervisor.Close()
			s.closeStreams()
			return nil, fmt.Errorf("open script store: %w", err)
		}
		s.store = st
	}

	s.router = s.buildRouter()
	logger.Info("Server initialized successfully",
		zap.Int("services", len(s.services.List(nil))))
	return s, nil
}

func (s *Server) registerProviders(client *fetch.Client) {
	cfg := s.config
	for _, provider := range []service.Provider{
		providers.NewCrypto(s.logger),
		providers.NewCodec(),
		providers.NewCache(cfg.Cache.Dirs, s.logger),
		providers.NewLyric(s.events.Host()),
		providers.NewDevice(cfg.Device, s.events.Host()),
		fetch.NewProvider(client, s.logger),
	} {
		if err := s.services.Register(provider); err != nil {
			s.logger.Warn("Failed to register service provider", zap.Error(err))
		}
	}
}

func (s *Server) buildRouter() *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			Skip:              []string{"/events", "/health"},
		}))
	}

	handlers := apihttp.NewHandlers(apihttp.Deps{
		Runtime:  s.supervisor,
		Services: s.services,
		Store:    s.store,
		Tracer:   s.tracer,
		Gatherer: s.registry,
		Logger:   s.logger,
		Metrics:  s.metrics,
	})
	handlers.Register(router)
	router.GET("/events", s.hub.HandleConnection)

	return router
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the script store, or nil when none is configured
func (s *Server) Store() *store.Store {
	return s.store
}

// Supervisor returns the plugin runtime
func (s *Server) Supervisor() *userapi.Supervisor {
	return s.supervisor
}

// Run serves HTTP until ctx is done, then shuts down gracefully. With
// SCRIPT_WATCH it also reloads the active plugin when its script changes.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown
		s.hub.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	if s.store != nil && s.config.Store.Watch {
		watcher, err := store.NewWatcher(s.store.Dir(), 0, s.logger)
		if err != nil {
			s.logger.Warn("Script watching disabled", zap.Error(err))
		} else {
			g.Go(func() error {
				return watcher.Run(ctx, func(change store.Change) {
					s.reload(ctx, change)
				})
			})
		}
	}

	return g.Wait()
}

// reload replaces the active plugin when its script changed on disk
func (s *Server) reload(ctx context.Context, change store.Change) {
	status := s.supervisor.Status()
	if status.Plugin == nil || status.Plugin.ID != change.ID {
		return
	}
	if change.Removed {
		s.logger.Info("Active plugin script removed, keeping running session",
			zap.String("plugin_id", change.ID))
		return
	}

	d, _, err := s.store.Get(ctx, change.ID)
	if err != nil {
		s.logger.Warn("Failed to read changed script", zap.String("plugin_id", change.ID), zap.Error(err))
		return
	}
	if _, err := s.supervisor.Load(ctx, d); err != nil {
		s.logger.Warn("Reload failed", zap.String("plugin_id", change.ID), zap.Error(err))
		return
	}
	s.logger.Info("Reloaded plugin", zap.String("plugin_id", change.ID))
}

// Close tears down the runtime and flushes telemetry
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	err := s.supervisor.Close()
	s.closeStreams()
	_ = s.logger.Sync()
	return err
}

func (s *Server) closeStreams() {
	s.events.Close()
	s.hub.Close()
	s.tracer.Close()
}
