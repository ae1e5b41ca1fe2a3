package routes

import (
	"fleetrecon/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupSessionRoutes sets up the session-scoped ingest and reporting routes
func SetupSessionRoutes(r *gin.RouterGroup, uploadHandler *handlers.UploadHandler, reportHandler *handlers.ReportHandler, dashboardHandler *handlers.DashboardHandler) {
	sessions := r.Group("/sessions/:session_id")
	{
		sessions.POST("/uploads", uploadHandler.UploadFiles)
		sessions.GET("/uploads", uploadHandler.ListUploads)
		sessions.POST("/uploads/:upload_id/reprocess", uploadHandler.ReprocessUpload)
		sessions.DELETE("/data", uploadHandler.ResetSession)

		sessions.GET("/reconciliation", reportHandler.GetReconciliation)
		sessions.GET("/shifts", reportHandler.GetShifts)
		sessions.GET("/dashboard", dashboardHandler.GetDashboard)
	}
}
