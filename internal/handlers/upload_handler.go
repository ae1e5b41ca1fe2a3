package handlers

import (
	"errors"
	"io"
	"net/http"

	"fleetrecon/internal/services"
	"fleetrecon/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UploadHandler struct {
	ingestService services.IngestService
}

func NewUploadHandler(ingestService services.IngestService) *UploadHandler {
	return &UploadHandler{
		ingestService: ingestService,
	}
}

// UploadFiles ingests a batch of vendor CSV files for one session
func (h *UploadHandler) UploadFiles(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		utils.BadRequestResponse(c, "Missing session ID")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, "Invalid multipart form: "+err.Error())
		return
	}

	var files []services.UploadFile
	for _, header := range form.File["files"] {
		file, err := header.Open()
		if err != nil {
			utils.BadRequestResponse(c, "Failed to open uploaded file: "+err.Error())
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			utils.BadRequestResponse(c, "Failed to read uploaded file: "+err.Error())
			return
		}
		files = append(files, services.UploadFile{
			Filename: header.Filename,
			Data:     data,
		})
	}

	result, err := h.ingestService.IngestFiles(c.Request.Context(), sessionID, files)
	if err != nil {
		if errors.Is(err, services.ErrNoFiles) {
			utils.BadRequestResponse(c, "No files provided")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "INGEST_FAILED", "Failed to ingest files: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Files ingested successfully", result)
}

// ListUploads returns a session's upload records, newest first
func (h *UploadHandler) ListUploads(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		utils.BadRequestResponse(c, "Missing session ID")
		return
	}

	params := utils.GetPaginationParams(c)

	uploads, total, err := h.ingestService.ListUploads(c.Request.Context(), sessionID, params)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "UPLOAD_LIST_FAILED", "Failed to list uploads: "+err.Error())
		return
	}

	utils.SuccessResponseWithMeta(c, "Uploads retrieved successfully", uploads, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// ReprocessUpload re-runs extraction from an archived original file
func (h *UploadHandler) ReprocessUpload(c *gin.Context) {
	uploadID, err := primitive.ObjectIDFromHex(c.Param("upload_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid upload ID")
		return
	}

	result, err := h.ingestService.ReprocessUpload(c.Request.Context(), uploadID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "REPROCESS_FAILED", "Failed to reprocess upload: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Upload reprocessed successfully", result)
}

// ResetSession deletes all ingested data and archives for a session
func (h *UploadHandler) ResetSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		utils.BadRequestResponse(c, "Missing session ID")
		return
	}

	if err := h.ingestService.ResetSession(c.Request.Context(), sessionID); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "RESET_FAILED", "Failed to reset session: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Session data deleted successfully", nil)
}
