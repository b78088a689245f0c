package http

import (
	"context"
	"net/http"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/service"
	"github.com/GriffinCanCode/scriptbridge/internal/store"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Version = "1.0.0"

// Runtime is the plugin runtime the handlers drive
type Runtime interface {
	Load(ctx context.Context, d userapi.Descriptor) (userapi.Info, error)
	DispatchAction(ctx context.Context, action, payload string) (bool, error)
	Destroy(ctx context.Context) error
	Status() userapi.Status
}

// Deps holds everything the handlers need. Store and Gatherer are optional.
type Deps struct {
	Runtime  Runtime
	Services *service.Registry
	Store    *store.Store
	Tracer   *tracing.Tracer
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
}

// Handlers contains all HTTP handlers
type Handlers struct {
	runtime  Runtime
	services *service.Registry
	store    *store.Store
	tracer   *tracing.Tracer
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	metrics  *HandlerMetrics
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		runtime:  deps.Runtime,
		services: deps.Services,
		store:    deps.Store,
		tracer:   deps.Tracer,
		gatherer: deps.Gatherer,
		logger:   deps.Logger.Named("api"),
		metrics:  NewHandlerMetrics(deps.Metrics),
	}
}

// Register mounts every route on router
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	// Plugin runtime
	router.POST("/userapi/load", h.LoadPlugin)
	router.POST("/userapi/actions", h.DispatchAction)
	router.DELETE("/userapi", h.DestroyPlugin)
	router.GET("/userapi/state", h.State)

	// Host services
	router.GET("/services", h.ListServices)
	router.POST("/services/execute", h.ExecuteService)

	// Installed scripts
	if h.store != nil {
		router.GET("/scripts", h.ListScripts)
		router.POST("/scripts", h.InstallScript)
		router.GET("/scripts/:id", h.GetScript)
		router.DELETE("/scripts/:id", h.RemoveScript)
		router.POST("/scripts/:id/load", h.LoadScript)
	}
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "scriptbridge",
		"version": Version,
	})
}

// Health reports the runtime state and registry statistics
func (h *Handlers) Health(c *gin.Context) {
	status := h.runtime.Status()
	body := gin.H{
		"status":           "healthy",
		"runtime":          status,
		"service_registry": h.services.Stats(),
	}
	if h.store != nil {
		body["store"] = gin.H{"dir": h.store.Dir()}
	}
	c.JSON(http.StatusOK, body)
}

func errorBody(err error) gin.H {
	return gin.H{"error": err.Error()}
}
