package router

import (
	"github.com/gin-gonic/gin"

	"customsdesk/internal/handler"
	"customsdesk/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	allowedOrigins []string,
	sessionH *handler.SessionHandler,
	reportH *handler.ReportHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	sessions := v1.Group("/sessions")
	sessions.POST("", sessionH.Create)
	sessions.GET("", sessionH.List)
	sessions.GET("/:id", sessionH.GetByID)
	sessions.DELETE("/:id", sessionH.Cancel)
	sessions.PUT("/:id/client", sessionH.UpdateClient)
	sessions.POST("/:id/invoice", sessionH.UploadInvoice)
	sessions.POST("/:id/bill-of-lading", sessionH.UploadBillOfLading)
	sessions.GET("/:id/discrepancies", sessionH.Discrepancies)
	sessions.POST("/:id/resolutions", sessionH.Resolve)
	sessions.POST("/:id/advance", sessionH.Advance)
	sessions.PATCH("/:id/working", sessionH.EditWorking)
	sessions.POST("/:id/submit", sessionH.Submit)
	sessions.GET("/:id/export", sessionH.Export)
	sessions.GET("/:id/documents/:kind", sessionH.DocumentURL)

	reports := v1.Group("/reports")
	reports.GET("/sessions.csv", reportH.SessionsCSV)

	return r
}
