package handlers

import (
	"reflow_oven/internal/logger"
	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.metricsMiddleware)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Status stream, one envelope per interval.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerOvenRoutes(api)
		h.registerSensorRoutes(api)
		h.registerProfileRoutes(api)
		h.registerRunRoutes(api)
		h.registerLogRoutes(api)
		h.registerOperatorRoutes(api)
	}
}

func (h *Handler) registerOvenRoutes(api *gin.RouterGroup) {
	oven := api.Group("/oven")
	{
		// Body example: {"profile_id":0}
		oven.POST("/run", h.startRun)
		oven.POST("/abort", h.abortRun)
		oven.POST("/ack", h.acknowledge)
		oven.GET("/status", h.getStatus)
		oven.GET("/status/saved", h.getSavedStatus)
		oven.GET("/plot", h.getPlot)

		oven.POST("/manual", h.startManual)
		// Body example: {"command":"up"}
		oven.POST("/manual/command", h.manualCommand)

		oven.POST("/monitor", h.startMonitor)
		oven.DELETE("/monitor", h.stopMonitor)
	}
}

func (h *Handler) registerSensorRoutes(api *gin.RouterGroup) {
	sensors := api.Group("/sensors")
	{
		sensors.GET("", h.listChannels)
		sensors.POST("/:channel/toggle", h.toggleChannel)
	}
}

func (h *Handler) registerProfileRoutes(api *gin.RouterGroup) {
	profiles := api.Group("/profiles")
	{
		profiles.GET("", h.listProfiles)
		profiles.GET("/:id", h.getProfile)
		profiles.PUT("/:id", h.saveProfile)
		profiles.GET("/:id/preview", h.previewProfile)
	}
}

func (h *Handler) registerRunRoutes(api *gin.RouterGroup) {
	runs := api.Group("/runs")
	{
		runs.GET("", h.listRuns)
		runs.GET("/:id", h.getRun)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}

// Operators are created by an authenticated operator; the first account
// comes from the configuration.
func (h *Handler) registerOperatorRoutes(api *gin.RouterGroup) {
	operators := api.Group("/operators")
	{
		operators.GET("", h.listOperators)
		operators.POST("", h.createOperator)
	}
}
