package handlers

import (
	"net/http"

	"fleetrecon/internal/services"
	"fleetrecon/internal/utils"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	performanceService services.PerformanceService
}

func NewDashboardHandler(performanceService services.PerformanceService) *DashboardHandler {
	return &DashboardHandler{
		performanceService: performanceService,
	}
}

// GetDashboard returns the revenue rollups and efficiency ratios
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		utils.BadRequestResponse(c, "Missing session ID")
		return
	}

	from, to, ok := dateRangeQuery(c)
	if !ok {
		return
	}

	dashboard, err := h.performanceService.GetDashboard(c.Request.Context(), sessionID, from, to)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "DASHBOARD_FAILED", "Failed to build dashboard: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Dashboard built successfully", dashboard)
}
