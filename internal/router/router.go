package router

import (
	"github.com/gin-gonic/gin"

	"docsift/internal/handler"
	"docsift/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	allowedOrigins []string,
	documentH *handler.DocumentHandler,
	caseH *handler.CaseHandler,
	extractH *handler.ExtractHandler,
	splitH *handler.SplitHandler,
	exportH *handler.ExportHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	// Document ingestion and lookup
	docs := v1.Group("/documents")
	docs.POST("", documentH.Create)
	docs.GET("/:id", documentH.Get)
	docs.GET("/:id/results", documentH.Results)
	docs.GET("/:id/export", exportH.Export)

	// Cases
	cases := v1.Group("/cases")
	cases.POST("", caseH.Create)
	cases.GET("/:id", caseH.Get)

	// Extraction pipeline
	v1.POST("/extract", extractH.Extract)
	v1.POST("/split", splitH.Split)

	return r
}
