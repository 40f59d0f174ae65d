package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/vrp-import-service/internal/models"
	"github.com/SAP-F-2025/vrp-import-service/internal/repositories"
	"github.com/SAP-F-2025/vrp-import-service/internal/services"
	"github.com/SAP-F-2025/vrp-import-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ImportHandler struct {
	BaseHandler
	importService services.ImportService
	// maxUploadBytes caps the multipart body; the parser enforces the file limit itself
	maxUploadBytes int64
}

func NewImportHandler(importService services.ImportService, maxUploadBytes int64, logger utils.Logger) *ImportHandler {
	return &ImportHandler{
		BaseHandler:    NewBaseHandler(logger),
		importService:  importService,
		maxUploadBytes: maxUploadBytes,
	}
}

// ===== SESSION LIFECYCLE =====

// StartImport uploads a file and opens an import session
// @Summary Start import
// @Description Parses a CSV or XLSX upload and computes mapping, validation, duplicates and locations
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param table_type formData string true "vehicles, jobs, locations or routes"
// @Success 201 {object} services.SessionView
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /imports [post]
func (h *ImportHandler) StartImport(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		// leave room for the multipart envelope and form fields
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}

	var req services.StartImportRequest
	if err := c.ShouldBind(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "File is required", err, err.Error())
		return
	}
	file, err := header.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}
	defer file.Close()

	h.LogRequest(c, "Starting import", "table_type", req.TableType, "file_name", header.Filename, "file_size", header.Size)

	view, err := h.importService.StartSession(c.Request.Context(), owner, &req, header.Filename, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogResponse(c, http.StatusCreated, "session_id", view.ID)
	c.JSON(http.StatusCreated, view)
}

// GetImport returns the current state of a session
// @Router /imports/{id} [get]
func (h *ImportHandler) GetImport(c *gin.Context) {
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.GetSession(c.Request.Context(), id, owner)
	})
}

// ListImports lists the caller's finished sessions
// @Router /imports [get]
func (h *ImportHandler) ListImports(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	filters := repositories.ImportSessionFilters{
		Owner:     owner,
		TableType: strings.ToLower(c.Query("table_type")),
		Limit:     queryInt(c, "limit", 20),
		Offset:    queryInt(c, "offset", 0),
	}
	if status := c.Query("status"); status != "" {
		st := models.ImportSessionStatus(status)
		filters.Status = &st
	}
	for key, target := range map[string]**time.Time{"date_from": &filters.DateFrom, "date_to": &filters.DateTo} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.RespondWithError(c, http.StatusBadRequest, "Invalid "+key, err, "expected RFC3339 timestamp")
			return
		}
		*target = &t
	}

	sessions, total, err := h.importService.ListSessions(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Data:   sessions,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// Transition moves the wizard to another step
// @Router /imports/{id}/transition [post]
func (h *ImportHandler) Transition(c *gin.Context) {
	var req services.TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.Transition(c.Request.Context(), id, owner, &req)
	})
}

// Undo restores the previous revision
// @Router /imports/{id}/undo [post]
func (h *ImportHandler) Undo(c *gin.Context) {
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.Undo(c.Request.Context(), id, owner)
	})
}

// Abort cancels a running import or closes the session
// @Router /imports/{id}/abort [post]
func (h *ImportHandler) Abort(c *gin.Context) {
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.Abort(c.Request.Context(), id, owner)
	})
}

// ===== COLUMN MAPPING =====

// UpdateMapping sets or clears the target field of one source column
// @Router /imports/{id}/mappings [put]
func (h *ImportHandler) UpdateMapping(c *gin.Context) {
	var req services.UpdateMappingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.UpdateMapping(c.Request.Context(), id, owner, &req)
	})
}

// AutoMap re-runs automatic mapping
// @Router /imports/{id}/mappings/auto [post]
func (h *ImportHandler) AutoMap(c *gin.Context) {
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.AutoMap(c.Request.Context(), id, owner)
	})
}

// Suggestions ranks schema fields for one source column
// @Router /imports/{id}/mappings/suggestions [get]
func (h *ImportHandler) Suggestions(c *gin.Context) {
	column := c.Query("column")
	if column == "" {
		h.RespondWithError(c, http.StatusBadRequest, "column is required", nil)
		return
	}
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.Suggestions(c.Request.Context(), id, owner, column)
	})
}

// ===== DUPLICATES AND LOCATIONS =====

// ResolveDuplicate resolves one duplicate, or all of them when row is 0
// @Router /imports/{id}/duplicates/resolve [post]
func (h *ImportHandler) ResolveDuplicate(c *gin.Context) {
	var req services.ResolveDuplicateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.ResolveDuplicate(c.Request.Context(), id, owner, &req)
	})
}

// AcceptDuplicateSuggestions applies the suggested resolution to every pending duplicate
// @Router /imports/{id}/duplicates/accept [post]
func (h *ImportHandler) AcceptDuplicateSuggestions(c *gin.Context) {
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.AcceptDuplicateSuggestions(c.Request.Context(), id, owner)
	})
}

// ResolveLocation picks, creates or skips the location of one row
// @Router /imports/{id}/locations/resolve [post]
func (h *ImportHandler) ResolveLocation(c *gin.Context) {
	var req services.ResolveLocationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.ResolveLocation(c.Request.Context(), id, owner, &req)
	})
}

// AutoResolveLocations accepts every high confidence location match
// @Router /imports/{id}/locations/auto [post]
func (h *ImportHandler) AutoResolveLocations(c *gin.Context) {
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.AutoResolveLocations(c.Request.Context(), id, owner)
	})
}

// ===== EXECUTION AND RESULTS =====

// Execute starts applying the rows in the background
// @Success 202 {object} services.SessionView
// @Router /imports/{id}/execute [post]
func (h *ImportHandler) Execute(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	view, err := h.importService.Execute(c.Request.Context(), id, owner)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogInfo(c, "Import execution started", "session_id", id)
	c.JSON(http.StatusAccepted, view)
}

// GetReport returns the issue list and outcome of a session
// @Router /imports/{id}/report [get]
func (h *ImportHandler) GetReport(c *gin.Context) {
	h.withSession(c, func(owner, id string) (interface{}, error) {
		return h.importService.GetReport(c.Request.Context(), id, owner)
	})
}

// DownloadTemplate serves an XLSX template for a table
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /templates/{table} [get]
func (h *ImportHandler) DownloadTemplate(c *gin.Context) {
	table := ParseStringIDParam(c, "table")
	if table == "" {
		return
	}

	data, err := h.importService.GenerateTemplate(c.Request.Context(), table)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_template.xlsx", strings.ToLower(table)))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ===== HELPERS =====

func (h *ImportHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return false
	}
	return true
}

// withSession resolves the caller and session id, runs fn and writes its result
func (h *ImportHandler) withSession(c *gin.Context, fn func(owner, id string) (interface{}, error)) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	result, err := fn(owner, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
