package handlers

import (
	"net/http"
	"time"

	"fleetrecon/internal/services"
	"fleetrecon/internal/utils"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reconcileService services.ReconcileService
	shiftService     services.ShiftService
}

func NewReportHandler(reconcileService services.ReconcileService, shiftService services.ShiftService) *ReportHandler {
	return &ReportHandler{
		reconcileService: reconcileService,
		shiftService:     shiftService,
	}
}

// GetReconciliation returns the per-vehicle bonus reconciliation
func (h *ReportHandler) GetReconciliation(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		utils.BadRequestResponse(c, "Missing session ID")
		return
	}

	from, to, ok := dateRangeQuery(c)
	if !ok {
		return
	}

	summaries, err := h.reconcileService.GetDriverSummaries(c.Request.Context(), sessionID, from, to)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "RECONCILIATION_FAILED", "Failed to compute reconciliation: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Reconciliation computed successfully", summaries)
}

// GetShifts returns the detected shifts and their summary
func (h *ReportHandler) GetShifts(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		utils.BadRequestResponse(c, "Missing session ID")
		return
	}

	from, to, ok := dateRangeQuery(c)
	if !ok {
		return
	}

	shifts, summary, err := h.shiftService.GetShifts(c.Request.Context(), sessionID, from, to)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SHIFT_DETECTION_FAILED", "Failed to detect shifts: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Shifts detected successfully", gin.H{
		"shifts":  shifts,
		"summary": summary,
	})
}

// dateRangeQuery parses optional from/to query parameters (YYYY-MM-DD).
// The end bound is stretched to end of day so the range is inclusive. On a
// malformed value it writes the error response and returns ok=false.
func dateRangeQuery(c *gin.Context) (time.Time, time.Time, bool) {
	var from, to time.Time

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid from date, expected YYYY-MM-DD")
			return from, to, false
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid to date, expected YYYY-MM-DD")
			return from, to, false
		}
		to = utils.EndOfDay(parsed)
	}

	return from, to, true
}
