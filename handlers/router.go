package handlers

import (
	"net/http"

	"cuadrofirma-backend/auth"
	"cuadrofirma-backend/metrics"
	"cuadrofirma-backend/notify"
	"cuadrofirma-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Workflow    *service.WorkflowService
	Verifier    *auth.Verifier
	Hub         *notify.Hub
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	RateLimiter *IPRateLimiter
	Log         *zap.SugaredLogger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(cfg.Gatherer)))
	}

	cuadros := NewCuadroHandler(cfg.Workflow, cfg.Log)

	// API routes
	api := r.Group("/api")
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Middleware())
	}
	api.Use(auth.RequireAuth(cfg.Verifier))
	{
		api.POST("/cuadros", cuadros.CreateCuadro)
		api.GET("/cuadros/:id", cuadros.GetCuadro)
		api.PUT("/cuadros/:id/responsables", cuadros.SetResponsables)
		api.GET("/cuadros/:id/validar-orden", cuadros.ValidarOrden)
		api.POST("/cuadros/:id/firmar", cuadros.Firmar)
		api.POST("/cuadros/:id/estado", cuadros.CambiarEstado)
		api.POST("/cuadros/:id/rechazar", cuadros.Rechazar)
		api.GET("/cuadros/:id/historial", cuadros.Historial)
		api.GET("/cuadros/:id/url", cuadros.URL)

		api.GET("/asignaciones", cuadros.Asignaciones)
		api.GET("/supervision", cuadros.Supervision)

		if cfg.Hub != nil {
			api.GET("/notificaciones/stream", NewNotificationHandler(cfg.Hub).Stream)
		}
	}

	return r
}
