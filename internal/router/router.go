package router

import (
	"github.com/gin-gonic/gin"

	"clinsight/internal/handler"
	"clinsight/internal/middleware"
	"clinsight/internal/service"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	tokenSvc service.TokenService,
	creditsSvc service.CreditsService,
	allowedOrigins []string,
	analysisH *handler.AnalysisHandler,
	creditsH *handler.CreditsHandler,
	recordingH *handler.RecordingHandler,
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

	// Protected routes - require valid JWT
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(tokenSvc))

	analyses := protected.Group("/analyses")
	analyses.POST("", analysisH.Submit)
	analyses.GET("", analysisH.List)
	analyses.GET("/export/csv", analysisH.ExportCSV)
	analyses.GET("/:id", analysisH.GetByID)
	analyses.DELETE("/:id", analysisH.Delete)
	analyses.GET("/:id/images/:index", analysisH.ImageURL)

	protected.GET("/credits", creditsH.GetBalance)

	recordings := protected.Group("/recordings")
	recordings.POST("", recordingH.Start)
	recordings.POST("/:id/chunks", recordingH.AppendChunk)
	recordings.POST("/:id/pause", recordingH.Pause)
	recordings.POST("/:id/resume", recordingH.Resume)
	recordings.DELETE("/:id", recordingH.Abort)

	// Admin routes - ledger administration
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin(creditsSvc))
	admin.POST("/credits/grant", creditsH.Grant)
	admin.PUT("/credits/:userId/admin", creditsH.SetAdmin)

	return r
}
